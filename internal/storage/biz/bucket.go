package biz

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Bucket providers
const (
	ProviderLocal = "local"
	ProviderMinIO = "minio"
)

// Bucket is a configured storage target. Writes fan out over enabled buckets
// in ascending Priority order.
type Bucket struct {
	ID        string
	Name      string
	Provider  string // local, minio
	Enabled   bool
	Priority  int // lower is tried first
	MaxSizeMB int64

	// Local provider settings
	BasePath string

	// Remote provider settings
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	BucketName string

	// PublicBaseURL, when set, is used to build public URLs for objects in
	// this bucket instead of presigning.
	PublicBaseURL string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the provider-specific connection settings
func (b *Bucket) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("%w: bucket name is required", ErrValidation)
	}
	switch b.Provider {
	case ProviderLocal:
		if b.BasePath == "" {
			return fmt.Errorf("%w: base path is required for local buckets", ErrValidation)
		}
	case ProviderMinIO:
		if b.Endpoint == "" || b.AccessKey == "" || b.SecretKey == "" || b.BucketName == "" {
			return fmt.Errorf("%w: endpoint, credentials and bucket name are required for minio buckets", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrValidation, b.Provider)
	}
	return nil
}

// BucketRepo is the registry access for Buckets
type BucketRepo interface {
	Create(ctx context.Context, b *Bucket) error
	Update(ctx context.Context, b *Bucket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Bucket, error)
	List(ctx context.Context) ([]*Bucket, error)
	// ListEnabled returns enabled buckets ordered by ascending priority
	ListEnabled(ctx context.Context) ([]*Bucket, error)
}

// BucketUsage is the on-demand usage report of one bucket
type BucketUsage struct {
	BucketID  string `json:"bucket_id"`
	UsedBytes int64  `json:"used_bytes"`
	Copies    int64  `json:"copies"`
	MaxBytes  int64  `json:"max_bytes"` // 0 when unbounded
	FreeBytes int64  `json:"free_bytes"`
}

// BucketUseCase is the admin surface for bucket configuration
type BucketUseCase struct {
	buckets   BucketRepo
	locations FileLocationRepo
	logger    *zap.Logger
}

// NewBucketUseCase creates the bucket admin use case
func NewBucketUseCase(buckets BucketRepo, locations FileLocationRepo, logger *zap.Logger) *BucketUseCase {
	return &BucketUseCase{
		buckets:   buckets,
		locations: locations,
		logger:    logger,
	}
}

// CreateBucket validates and persists a new bucket
func (uc *BucketUseCase) CreateBucket(ctx context.Context, b *Bucket) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := uc.buckets.Create(ctx, b); err != nil {
		return err
	}
	uc.logger.Info("bucket created",
		zap.String("bucket_id", b.ID),
		zap.String("name", b.Name),
		zap.String("provider", b.Provider))
	return nil
}

// UpdateBucket validates and persists bucket changes. Mid-flight writers see
// the change on their next bucket listing; in-progress fan-outs are allowed
// to finish against the old configuration.
func (uc *BucketUseCase) UpdateBucket(ctx context.Context, b *Bucket) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return uc.buckets.Update(ctx, b)
}

// DeleteBucket removes a bucket configuration
func (uc *BucketUseCase) DeleteBucket(ctx context.Context, id string) error {
	return uc.buckets.Delete(ctx, id)
}

// GetBucket returns one bucket
func (uc *BucketUseCase) GetBucket(ctx context.Context, id string) (*Bucket, error) {
	return uc.buckets.GetByID(ctx, id)
}

// ListBuckets returns all configured buckets
func (uc *BucketUseCase) ListBuckets(ctx context.Context) ([]*Bucket, error) {
	return uc.buckets.List(ctx)
}

// Usage computes the bucket's usage from its FileLocations
func (uc *BucketUseCase) Usage(ctx context.Context, bucketID string) (*BucketUsage, error) {
	bucket, err := uc.buckets.GetByID(ctx, bucketID)
	if err != nil {
		return nil, err
	}

	used, copies, err := uc.locations.UsageByBucket(ctx, bucketID)
	if err != nil {
		return nil, err
	}

	usage := &BucketUsage{
		BucketID:  bucketID,
		UsedBytes: used,
		Copies:    copies,
		MaxBytes:  bucket.MaxSizeMB * 1024 * 1024,
	}
	if usage.MaxBytes > 0 {
		usage.FreeBytes = usage.MaxBytes - used
		if usage.FreeBytes < 0 {
			usage.FreeBytes = 0
		}
	}
	return usage, nil
}
