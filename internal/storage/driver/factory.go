package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	pkgminio "github.com/bytevault/bytevault/internal/pkg/minio"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// Factory builds and caches a BlobStore per bucket configuration. Cache
// entries are keyed by bucket ID and invalidated when the bucket row's
// UpdatedAt moves.
type Factory struct {
	mu     sync.Mutex
	cache  map[string]cachedStore
	logger *zap.Logger
}

type cachedStore struct {
	store     biz.BlobStore
	updatedAt time.Time
}

// NewFactory creates the driver factory
func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{
		cache:  make(map[string]cachedStore),
		logger: logger,
	}
}

// ForBucket resolves a bucket configuration into a connected store
func (f *Factory) ForBucket(ctx context.Context, b *biz.Bucket) (biz.BlobStore, error) {
	f.mu.Lock()
	if cached, ok := f.cache[b.ID]; ok && cached.updatedAt.Equal(b.UpdatedAt) {
		f.mu.Unlock()
		return cached.store, nil
	}
	f.mu.Unlock()

	store, err := f.build(ctx, b)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[b.ID] = cachedStore{store: store, updatedAt: b.UpdatedAt}
	f.mu.Unlock()

	f.logger.Info("bucket driver connected",
		zap.String("bucket_id", b.ID),
		zap.String("bucket", b.Name),
		zap.String("provider", b.Provider))
	return store, nil
}

func (f *Factory) build(ctx context.Context, b *biz.Bucket) (biz.BlobStore, error) {
	switch b.Provider {
	case biz.ProviderLocal:
		return NewLocalStore(b.BasePath, b.PublicBaseURL)
	case biz.ProviderMinIO:
		client, err := pkgminio.NewClient(&pkgminio.Config{
			Endpoint:        b.Endpoint,
			AccessKeyID:     b.AccessKey,
			SecretAccessKey: b.SecretKey,
			UseSSL:          b.UseSSL,
		}, f.logger)
		if err != nil {
			return nil, err
		}
		return NewMinioStore(ctx, client, b.BucketName, b.PublicBaseURL)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", biz.ErrValidation, b.Provider)
	}
}
