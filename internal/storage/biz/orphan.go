package biz

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReclaimGracePeriod is how long a file flagged as orphaned waits before the
// reclaim worker re-checks and deletes it. The window lets a reference that
// is being written concurrently land first.
const ReclaimGracePeriod = 60 * time.Second

// ReferenceProbe answers whether anything outside the storage engine still
// points at a file.
type ReferenceProbe interface {
	IsReferenced(ctx context.Context, fileID string) (bool, error)
}

// OrphanUseCase finds files nothing references anymore and reclaims their
// space through a delayed, re-verified deletion.
type OrphanUseCase struct {
	files  FileRepo
	probe  ReferenceProbe
	queue  TaskQueue
	fileUC *FileUseCase
	logger *zap.Logger
}

// NewOrphanUseCase creates the reclamation use case
func NewOrphanUseCase(
	files FileRepo,
	probe ReferenceProbe,
	queue TaskQueue,
	fileUC *FileUseCase,
	logger *zap.Logger,
) *OrphanUseCase {
	return &OrphanUseCase{
		files:  files,
		probe:  probe,
		queue:  queue,
		fileUC: fileUC,
		logger: logger,
	}
}

// IsOrphaned reports whether the file exists and nothing references it
func (uc *OrphanUseCase) IsOrphaned(ctx context.Context, fileID string) (bool, error) {
	if _, err := uc.files.GetByID(ctx, fileID); err != nil {
		return false, err
	}
	referenced, err := uc.probe.IsReferenced(ctx, fileID)
	if err != nil {
		return false, err
	}
	return !referenced, nil
}

// FindOrphans returns a page of files with no remaining references
func (uc *OrphanUseCase) FindOrphans(ctx context.Context, limit, offset int) ([]*File, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var orphans []*File
	// Scan in repo order; the probe decides. Page boundaries are on the scan,
	// not the result, so callers walk offsets until an empty page.
	files, err := uc.files.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		referenced, err := uc.probe.IsReferenced(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		if !referenced {
			orphans = append(orphans, f)
		}
	}
	return orphans, nil
}

// CountOrphans walks the whole registry and counts unreferenced files
func (uc *OrphanUseCase) CountOrphans(ctx context.Context) (int64, error) {
	const pageSize = 200

	var count int64
	for offset := 0; ; offset += pageSize {
		files, err := uc.files.List(ctx, pageSize, offset)
		if err != nil {
			return 0, err
		}
		if len(files) == 0 {
			return count, nil
		}
		for _, f := range files {
			referenced, err := uc.probe.IsReferenced(ctx, f.ID)
			if err != nil {
				return 0, err
			}
			if !referenced {
				count++
			}
		}
		if len(files) < pageSize {
			return count, nil
		}
	}
}

// QueueCleanup verifies a file is orphaned and schedules its reclamation
// after the grace period.
func (uc *OrphanUseCase) QueueCleanup(ctx context.Context, fileID string) error {
	orphaned, err := uc.IsOrphaned(ctx, fileID)
	if err != nil {
		return err
	}
	if !orphaned {
		uc.logger.Info("cleanup requested for referenced file, skipping",
			zap.String("file_id", fileID))
		return nil
	}

	task := &Task{
		ID:          uuid.NewString(),
		Type:        TaskTypeReclaim,
		Payload:     map[string]string{"file_id": fileID},
		MaxAttempts: 3,
		CreatedAt:   time.Now(),
	}
	if err := uc.queue.Enqueue(ctx, task, ReclaimGracePeriod); err != nil {
		return err
	}

	uc.logger.Info("orphan queued for reclamation",
		zap.String("file_id", fileID),
		zap.Duration("grace_period", ReclaimGracePeriod))
	return nil
}

// Sweep queues reclamation for every orphan found. Returns the number queued.
func (uc *OrphanUseCase) Sweep(ctx context.Context) (int, error) {
	const pageSize = 200

	queued := 0
	for offset := 0; ; offset += pageSize {
		files, err := uc.files.List(ctx, pageSize, offset)
		if err != nil {
			return queued, err
		}
		if len(files) == 0 {
			return queued, nil
		}
		for _, f := range files {
			referenced, err := uc.probe.IsReferenced(ctx, f.ID)
			if err != nil {
				return queued, err
			}
			if referenced {
				continue
			}
			if err := uc.QueueCleanup(ctx, f.ID); err != nil {
				return queued, err
			}
			queued++
		}
		if len(files) < pageSize {
			return queued, nil
		}
	}
}

// Reclaim runs after the grace period. The orphan check is repeated here: a
// file that gained a reference while waiting, or that is already gone, is
// left alone.
func (uc *OrphanUseCase) Reclaim(ctx context.Context, fileID string) error {
	orphaned, err := uc.IsOrphaned(ctx, fileID)
	if IsNotFound(err) {
		uc.logger.Info("orphan already gone", zap.String("file_id", fileID))
		return nil
	}
	if err != nil {
		return err
	}
	if !orphaned {
		uc.logger.Info("orphan regained a reference during grace period, keeping",
			zap.String("file_id", fileID))
		return nil
	}

	if err := uc.fileUC.DeleteCompletely(ctx, fileID); err != nil {
		return err
	}

	uc.logger.Info("orphan reclaimed", zap.String("file_id", fileID))
	return nil
}
