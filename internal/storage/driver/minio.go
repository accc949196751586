package driver

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	pkgminio "github.com/bytevault/bytevault/internal/pkg/minio"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// presignExpiry is the lifetime of presigned URLs handed out for buckets
// without a public base URL.
const presignExpiry = time.Hour

// MinioStore keeps objects in one S3-compatible bucket
type MinioStore struct {
	client        *pkgminio.Client
	bucket        string
	publicBaseURL string
}

// NewMinioStore wraps a connected client for one bucket, creating the bucket
// when it does not exist yet.
func NewMinioStore(ctx context.Context, client *pkgminio.Client, bucket, publicBaseURL string) (*MinioStore, error) {
	if err := client.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	return &MinioStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (s *MinioStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, path, r, size, pkgminio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *MinioStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := s.client.GetObject(ctx, s.bucket, path)
	if err != nil {
		if pkgminio.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", biz.ErrNotFound, path)
		}
		return nil, err
	}
	return rc, nil
}

func (s *MinioStore) Delete(ctx context.Context, path string) error {
	return s.client.RemoveObject(ctx, s.bucket, path)
}

func (s *MinioStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, path)
	if err == nil {
		return true, nil
	}
	if pkgminio.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// PublicURL prefers the configured public base and falls back to a presigned
// URL.
func (s *MinioStore) PublicURL(ctx context.Context, path string) (string, error) {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + path, nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, presignExpiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
