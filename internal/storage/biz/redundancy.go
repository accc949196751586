package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"
)

// Redundancy bounds
const (
	MinRedundancy = 1
	MaxRedundancy = 5
)

// BlobStore is one bucket's byte-level backend
type BlobStore interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	// PublicURL returns a URL under which the object can be fetched, or ""
	// when the bucket cannot serve it publicly.
	PublicURL(ctx context.Context, path string) (string, error)
}

// DriverFactory resolves a Bucket's configuration into a connected BlobStore
type DriverFactory interface {
	ForBucket(ctx context.Context, b *Bucket) (BlobStore, error)
}

// StoreResult reports the outcome of one redundant write
type StoreResult struct {
	// Succeeded holds the buckets that accepted the write, in the order
	// they were written.
	Succeeded []*Bucket
	// Failed maps bucket IDs to their write errors
	Failed map[string]error
	// Requested is the clamped number of copies asked for
	Requested int
}

// Partial reports whether fewer copies than requested landed
func (r *StoreResult) Partial() bool {
	return len(r.Succeeded) < r.Requested
}

// Redundancy coordinates fan-out writes and priority reads over the enabled
// buckets. A write succeeds when at least one bucket accepts it.
type Redundancy struct {
	buckets BucketRepo
	drivers DriverFactory
	logger  *zap.Logger
}

// NewRedundancy creates the redundancy coordinator
func NewRedundancy(buckets BucketRepo, drivers DriverFactory, logger *zap.Logger) *Redundancy {
	return &Redundancy{
		buckets: buckets,
		drivers: drivers,
		logger:  logger,
	}
}

// ClampCopies bounds a requested copy count to the supported range
func ClampCopies(n int) int {
	if n < MinRedundancy {
		return MinRedundancy
	}
	if n > MaxRedundancy {
		return MaxRedundancy
	}
	return n
}

// Store writes the bytes to up to copies enabled buckets in priority order.
// More buckets than requested are tried when earlier ones fail. Returns
// ErrStorageBackend only when every bucket rejects the write.
func (r *Redundancy) Store(ctx context.Context, path string, data []byte, contentType string, copies int) (*StoreResult, error) {
	copies = ClampCopies(copies)

	enabled, err := r.buckets.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if len(enabled) == 0 {
		return nil, ErrNoBucketsConfigured
	}

	result := &StoreResult{
		Failed:    make(map[string]error),
		Requested: copies,
	}

	for _, bucket := range enabled {
		if len(result.Succeeded) >= copies {
			break
		}

		store, err := r.drivers.ForBucket(ctx, bucket)
		if err != nil {
			result.Failed[bucket.ID] = err
			r.logger.Warn("bucket driver unavailable",
				zap.String("bucket_id", bucket.ID),
				zap.String("bucket", bucket.Name),
				zap.Error(err))
			continue
		}

		if err := store.Put(ctx, path, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			result.Failed[bucket.ID] = err
			r.logger.Warn("bucket write failed",
				zap.String("bucket_id", bucket.ID),
				zap.String("bucket", bucket.Name),
				zap.String("path", path),
				zap.Error(err))
			continue
		}

		result.Succeeded = append(result.Succeeded, bucket)
	}

	if len(result.Succeeded) == 0 {
		errs := make([]error, 0, len(result.Failed))
		for id, err := range result.Failed {
			errs = append(errs, fmt.Errorf("bucket %s: %w", id, err))
		}
		return result, fmt.Errorf("%w: all bucket writes failed: %w", ErrStorageBackend, errors.Join(errs...))
	}

	if result.Partial() {
		r.logger.Warn("partial redundancy",
			zap.String("path", path),
			zap.Int("requested", copies),
			zap.Int("stored", len(result.Succeeded)))
	}

	return result, nil
}

// Read returns the bytes of the first reachable location, tried in priority
// order.
func (r *Redundancy) Read(ctx context.Context, locs []*FileLocation) ([]byte, error) {
	if len(locs) == 0 {
		return nil, ErrNotFound
	}

	sorted := make([]*FileLocation, len(locs))
	copy(sorted, locs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	var lastErr error
	for _, loc := range sorted {
		bucket, err := r.buckets.GetByID(ctx, loc.BucketID)
		if err != nil {
			lastErr = err
			continue
		}
		store, err := r.drivers.ForBucket(ctx, bucket)
		if err != nil {
			lastErr = err
			continue
		}
		rc, err := store.Get(ctx, loc.Path)
		if err != nil {
			lastErr = err
			r.logger.Warn("location read failed, trying next",
				zap.String("bucket_id", loc.BucketID),
				zap.String("path", loc.Path),
				zap.Error(err))
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w: no readable location: %w", ErrStorageBackend, lastErr)
}

// ExistsAny reports whether the bytes are present in at least one location
func (r *Redundancy) ExistsAny(ctx context.Context, locs []*FileLocation) (bool, error) {
	var lastErr error
	for _, loc := range locs {
		bucket, err := r.buckets.GetByID(ctx, loc.BucketID)
		if err != nil {
			lastErr = err
			continue
		}
		store, err := r.drivers.ForBucket(ctx, bucket)
		if err != nil {
			lastErr = err
			continue
		}
		ok, err := store.Exists(ctx, loc.Path)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return true, nil
		}
	}
	if lastErr != nil {
		return false, lastErr
	}
	return false, nil
}

// Delete removes the bytes from every location. Failures are collected; an
// error is returned only when every delete failed.
func (r *Redundancy) Delete(ctx context.Context, locs []*FileLocation) error {
	if len(locs) == 0 {
		return nil
	}

	var errs []error
	for _, loc := range locs {
		bucket, err := r.buckets.GetByID(ctx, loc.BucketID)
		if err != nil {
			errs = append(errs, fmt.Errorf("bucket %s: %w", loc.BucketID, err))
			continue
		}
		store, err := r.drivers.ForBucket(ctx, bucket)
		if err != nil {
			errs = append(errs, fmt.Errorf("bucket %s: %w", loc.BucketID, err))
			continue
		}
		if err := store.Delete(ctx, loc.Path); err != nil {
			errs = append(errs, fmt.Errorf("bucket %s: %w", loc.BucketID, err))
			r.logger.Warn("location delete failed",
				zap.String("bucket_id", loc.BucketID),
				zap.String("path", loc.Path),
				zap.Error(err))
		}
	}

	if len(errs) == len(locs) {
		return fmt.Errorf("%w: all location deletes failed: %w", ErrStorageBackend, errors.Join(errs...))
	}
	return nil
}
