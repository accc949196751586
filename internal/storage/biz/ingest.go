package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestResult is the outcome of one upload
type IngestResult struct {
	File      *File
	Duplicate bool
	// Copies is the number of physical copies written (or already present
	// for duplicates).
	Copies int
}

// DuplicateChecker reports whether a registry error is a unique-constraint
// violation. Backed by the database layer; injected so the ingest pipeline
// stays storage-agnostic.
type DuplicateChecker func(err error) bool

// IngestUseCase is the upload pipeline: dedup check, redundant fan-out,
// registry commit, variant scheduling and duplicate self-healing.
type IngestUseCase struct {
	files       FileRepo
	instances   FileInstanceRepo
	locations   FileLocationRepo
	redundancy  *Redundancy
	tx          Transactor
	queue       TaskQueue
	isDuplicate DuplicateChecker
	logger      *zap.Logger
}

// NewIngestUseCase creates the upload pipeline
func NewIngestUseCase(
	files FileRepo,
	instances FileInstanceRepo,
	locations FileLocationRepo,
	redundancy *Redundancy,
	tx Transactor,
	queue TaskQueue,
	isDuplicate DuplicateChecker,
	logger *zap.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		files:       files,
		instances:   instances,
		locations:   locations,
		redundancy:  redundancy,
		tx:          tx,
		queue:       queue,
		isDuplicate: isDuplicate,
		logger:      logger,
	}
}

// Ingest stores an upload. Identical bytes from the same user resolve to the
// existing File; a duplicate hit also re-verifies the stored copy and repairs
// it when the registry and the buckets disagree.
func (uc *IngestUseCase) Ingest(ctx context.Context, userID, fileName string, data []byte, copies int) (*IngestResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if fileName == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	checksum := ContentChecksum(data)
	userChecksum := UserChecksum(userID, checksum)

	existing, err := uc.files.GetByUserChecksum(ctx, userChecksum)
	if err == nil {
		return uc.recover(ctx, existing, fileName, data, copies)
	}
	if !IsNotFound(err) {
		return nil, err
	}

	mimeType := MimeTypeForFilename(fileName)
	prefix := StoragePrefix(userID, checksum)
	path := InstancePath(prefix, checksum, VariantOriginal, FileExtension(fileName))

	stored, err := uc.redundancy.Store(ctx, path, data, mimeType, copies)
	if err != nil {
		return nil, err
	}

	file := &File{
		ID:               uuid.NewString(),
		UserID:           userID,
		FileName:         fileName,
		FileType:         FileTypeForMime(mimeType),
		MimeType:         mimeType,
		Checksum:         checksum,
		UserFileChecksum: userChecksum,
		Size:             int64(len(data)),
		Status:           FileStatusProcessing,
		StoragePrefix:    prefix,
	}
	inst := &FileInstance{
		ID:               uuid.NewString(),
		FileID:           file.ID,
		Variant:          VariantOriginal,
		Path:             path,
		MimeType:         mimeType,
		Checksum:         checksum,
		Size:             int64(len(data)),
		ProcessingStatus: InstanceStatusCompleted,
	}

	err = uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.files.Create(ctx, file); err != nil {
			return err
		}
		if err := uc.instances.Create(ctx, inst); err != nil {
			return err
		}
		return uc.createLocations(ctx, inst.ID, path, stored.Succeeded)
	})
	if err != nil {
		if uc.isDuplicate != nil && uc.isDuplicate(err) {
			// Lost a concurrent race for the same user and bytes. The stored
			// copy shares the winner's content-addressed path, so the bytes
			// must stay; resolve against the winner's record instead.
			uc.logger.Info("concurrent duplicate upload, resolving to existing file",
				zap.String("user_id", userID),
				zap.String("checksum", checksum))
			winner, lookupErr := uc.files.GetByUserChecksum(ctx, userChecksum)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return uc.recover(ctx, winner, fileName, data, copies)
		}

		// Registry commit failed for a non-duplicate reason; the just-written
		// bytes are unreferenced, take them back out.
		uc.rollbackStored(ctx, path, stored.Succeeded)
		return nil, err
	}

	uc.enqueueVariants(ctx, file.ID)

	uc.logger.Info("file ingested",
		zap.String("file_id", file.ID),
		zap.String("user_id", userID),
		zap.String("checksum", checksum),
		zap.Int64("size", file.Size),
		zap.Int("copies", len(stored.Succeeded)),
		zap.Int("requested_copies", stored.Requested))

	return &IngestResult{File: file, Copies: len(stored.Succeeded)}, nil
}

// recover resolves a duplicate upload against the existing File, repairing
// whatever the registry promises but the buckets (or the registry itself) no
// longer hold. The caller still has the full bytes in hand, which makes every
// repair possible.
func (uc *IngestUseCase) recover(ctx context.Context, file *File, fileName string, data []byte, copies int) (*IngestResult, error) {
	inst, err := uc.instances.GetByFileAndVariant(ctx, file.ID, VariantOriginal)
	if IsNotFound(err) {
		return uc.recoverMissingInstance(ctx, file, fileName, data, copies)
	}
	if err != nil {
		return nil, err
	}

	locs, err := uc.locations.ListByInstance(ctx, inst.ID)
	if err != nil {
		return nil, err
	}

	present, err := uc.redundancy.ExistsAny(ctx, locs)
	if err != nil {
		// Unreachable is not absent. Teardown needs a definitive miss from
		// every location; a transient outage leaves the registry untouched.
		uc.logger.Warn("duplicate verification could not reach any bucket",
			zap.String("file_id", file.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: could not verify stored copy: %w", ErrStorageBackend, err)
	}
	if present {
		// Best-effort: variants may have been lost independently of the
		// original, so re-queue generation; the pipeline skips anything
		// already complete.
		uc.enqueueVariants(ctx, file.ID)
		return &IngestResult{File: file, Duplicate: true, Copies: len(locs)}, nil
	}

	// Registry says stored, no bucket has the bytes. Tear down every stale
	// instance, re-store the original at the same path prefix and rebuild
	// from there. The logical File identity survives.
	uc.logger.Warn("duplicate upload found missing bytes, re-ingesting in place",
		zap.String("file_id", file.ID),
		zap.String("checksum", file.Checksum))

	instances, err := uc.instances.ListByFile(ctx, file.ID)
	if err != nil {
		return nil, err
	}

	err = uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, stale := range instances {
			if err := uc.locations.DeleteByInstance(ctx, stale.ID); err != nil {
				return err
			}
		}
		return uc.instances.DeleteByFile(ctx, file.ID)
	})
	if err != nil {
		return nil, err
	}

	return uc.recoverMissingInstance(ctx, file, fileName, data, copies)
}

// recoverMissingInstance handles a File whose original instance record is
// gone: re-store the bytes and recreate the instance and its locations.
func (uc *IngestUseCase) recoverMissingInstance(ctx context.Context, file *File, fileName string, data []byte, copies int) (*IngestResult, error) {
	uc.logger.Warn("duplicate upload found missing original instance, rebuilding",
		zap.String("file_id", file.ID),
		zap.String("checksum", file.Checksum))

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = MimeTypeForFilename(fileName)
	}
	path := InstancePath(file.StoragePrefix, file.Checksum, VariantOriginal, FileExtension(file.FileName))

	stored, err := uc.redundancy.Store(ctx, path, data, mimeType, copies)
	if err != nil {
		return nil, err
	}

	inst := &FileInstance{
		ID:               uuid.NewString(),
		FileID:           file.ID,
		Variant:          VariantOriginal,
		Path:             path,
		MimeType:         mimeType,
		Checksum:         file.Checksum,
		Size:             int64(len(data)),
		ProcessingStatus: InstanceStatusCompleted,
	}

	err = uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.instances.Create(ctx, inst); err != nil {
			return err
		}
		return uc.createLocations(ctx, inst.ID, path, stored.Succeeded)
	})
	if err != nil {
		return nil, err
	}

	uc.enqueueVariants(ctx, file.ID)

	return &IngestResult{File: file, Duplicate: true, Copies: len(stored.Succeeded)}, nil
}

func (uc *IngestUseCase) createLocations(ctx context.Context, instanceID, path string, buckets []*Bucket) error {
	for i, bucket := range buckets {
		loc := &FileLocation{
			ID:         uuid.NewString(),
			InstanceID: instanceID,
			BucketID:   bucket.ID,
			Path:       path,
			Status:     LocationStatusActive,
			Priority:   i,
		}
		if err := uc.locations.Create(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}

// rollbackStored removes bytes written during a failed ingest. Best effort;
// anything left behind is unreferenced and falls to orphan reclamation.
func (uc *IngestUseCase) rollbackStored(ctx context.Context, path string, buckets []*Bucket) {
	for _, bucket := range buckets {
		store, err := uc.redundancy.drivers.ForBucket(ctx, bucket)
		if err != nil {
			continue
		}
		if err := store.Delete(ctx, path); err != nil {
			uc.logger.Warn("rollback delete failed",
				zap.String("bucket_id", bucket.ID),
				zap.String("path", path),
				zap.Error(err))
		}
	}
}

func (uc *IngestUseCase) enqueueVariants(ctx context.Context, fileID string) {
	if uc.queue == nil {
		return
	}
	task := &Task{
		ID:          uuid.NewString(),
		Type:        TaskTypeVariants,
		Payload:     map[string]string{"file_id": fileID},
		MaxAttempts: 3,
		CreatedAt:   time.Now(),
	}
	if err := uc.queue.Enqueue(ctx, task, 0); err != nil {
		// The upload itself is durable; variants can be regenerated by a
		// later re-enqueue.
		uc.logger.Error("failed to enqueue variant generation",
			zap.String("file_id", fileID),
			zap.Error(err))
	}
}
