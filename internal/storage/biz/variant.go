package biz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/pkg/workerpool"
)

// MediaInfo is the probed metadata of an upload. Fields are nil when the
// prober cannot determine them.
type MediaInfo struct {
	Width           *int
	Height          *int
	DurationSeconds *float64
	Pages           *int
	Format          string
}

// MediaProber extracts metadata from a media file on local disk
type MediaProber interface {
	Probe(ctx context.Context, path, mimeType string) (*MediaInfo, error)
}

// RenderResult is one rendered variant, written to a scratch file the caller
// must remove.
type RenderResult struct {
	Path     string
	MimeType string
	Width    int
	Height   int
}

// VariantRenderer renders one dimension of a source file into a scratch file
type VariantRenderer interface {
	Render(ctx context.Context, srcPath, fileType string, dim *Dimension) (*RenderResult, error)
}

// VariantUseCase is the async post-ingest pipeline: probe the original,
// render every applicable dimension and register the results.
type VariantUseCase struct {
	files      FileRepo
	instances  FileInstanceRepo
	locations  FileLocationRepo
	dimensions DimensionRepo
	redundancy *Redundancy
	tx         Transactor
	prober     MediaProber
	renderer   VariantRenderer
	pool       *workerpool.Pool
	copies     int
	logger     *zap.Logger
}

// NewVariantUseCase creates the variant pipeline. pool may be nil, in which
// case dimensions render sequentially.
func NewVariantUseCase(
	files FileRepo,
	instances FileInstanceRepo,
	locations FileLocationRepo,
	dimensions DimensionRepo,
	redundancy *Redundancy,
	tx Transactor,
	prober MediaProber,
	renderer VariantRenderer,
	pool *workerpool.Pool,
	copies int,
	logger *zap.Logger,
) *VariantUseCase {
	return &VariantUseCase{
		files:      files,
		instances:  instances,
		locations:  locations,
		dimensions: dimensions,
		redundancy: redundancy,
		tx:         tx,
		prober:     prober,
		renderer:   renderer,
		pool:       pool,
		copies:     ClampCopies(copies),
		logger:     logger,
	}
}

// Process probes a file and renders its variants. Safe to run repeatedly:
// completed variants are skipped, half-done ones are torn down and redone. A
// non-nil return means at least one dimension failed and the task should be
// retried; dimensions that succeeded stay registered either way.
func (uc *VariantUseCase) Process(ctx context.Context, fileID string) error {
	file, err := uc.files.GetByID(ctx, fileID)
	if err != nil {
		if IsNotFound(err) {
			// Deleted while queued; nothing to do.
			uc.logger.Info("variant task for deleted file, skipping", zap.String("file_id", fileID))
			return nil
		}
		return err
	}

	original, err := uc.instances.GetByFileAndVariant(ctx, fileID, VariantOriginal)
	if err != nil {
		return err
	}
	locs, err := uc.locations.ListByInstance(ctx, original.ID)
	if err != nil {
		return err
	}
	data, err := uc.redundancy.Read(ctx, locs)
	if err != nil {
		return err
	}

	srcPath, cleanup, err := uc.scratchFile(file, data)
	if err != nil {
		return err
	}
	defer cleanup()

	metadata := uc.probe(ctx, file, srcPath)

	var renderErr error
	if file.FileType == FileTypeImage || file.FileType == FileTypeVideo {
		renderErr = uc.renderAll(ctx, file, srcPath)
	}

	// The file turns active even when some variants failed; the original is
	// durable and the task retry covers the rest.
	if err := uc.files.UpdateMetadata(ctx, fileID, metadata, FileStatusActive); err != nil {
		return errors.Join(renderErr, err)
	}

	return renderErr
}

// scratchFile writes the original bytes to a temp file for the probers and
// renderers, which work on paths rather than readers.
func (uc *VariantUseCase) scratchFile(file *File, data []byte) (string, func(), error) {
	dir, err := os.MkdirTemp("", "bytevault-variant-")
	if err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			uc.logger.Warn("failed to remove scratch dir", zap.String("dir", dir), zap.Error(err))
		}
	}

	name := "original"
	if ext := FileExtension(file.FileName); ext != "" {
		name += "." + ext
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write scratch file: %w", err)
	}
	return path, cleanup, nil
}

// probe extracts metadata from the original. Probe failures degrade to an
// empty metadata map; they never block variant generation.
func (uc *VariantUseCase) probe(ctx context.Context, file *File, srcPath string) map[string]interface{} {
	metadata := map[string]interface{}{}
	if uc.prober == nil {
		return metadata
	}

	info, err := uc.prober.Probe(ctx, srcPath, file.MimeType)
	if err != nil {
		uc.logger.Warn("media probe failed",
			zap.String("file_id", file.ID),
			zap.String("mime_type", file.MimeType),
			zap.Error(err))
		return metadata
	}

	if info.Width != nil {
		metadata["width"] = *info.Width
	}
	if info.Height != nil {
		metadata["height"] = *info.Height
	}
	if info.DurationSeconds != nil {
		metadata["duration_seconds"] = *info.DurationSeconds
	}
	if info.Pages != nil {
		metadata["pages"] = *info.Pages
	}
	if info.Format != "" {
		metadata["format"] = info.Format
	}
	return metadata
}

// renderAll renders every applicable enabled dimension, collecting failures
// per dimension.
func (uc *VariantUseCase) renderAll(ctx context.Context, file *File, srcPath string) error {
	if uc.renderer == nil {
		return nil
	}

	dims, err := uc.dimensions.ListEnabled(ctx)
	if err != nil {
		return err
	}

	var applicable []*Dimension
	for _, dim := range dims {
		if dim.AppliesToType(file.FileType) {
			applicable = append(applicable, dim)
		}
	}
	if len(applicable) == 0 {
		return nil
	}

	var mu sync.Mutex
	var errs []error
	record := func(dim *Dimension, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, fmt.Errorf("variant %s: %w", dim.Name, err))
		mu.Unlock()
		uc.logger.Error("variant generation failed",
			zap.String("file_id", file.ID),
			zap.String("variant", dim.Name),
			zap.Error(err))
	}

	if uc.pool != nil && len(applicable) > 1 {
		tasks := make([]func(), 0, len(applicable))
		for _, dim := range applicable {
			dim := dim
			tasks = append(tasks, func() {
				record(dim, uc.renderOne(ctx, file, srcPath, dim))
			})
		}
		if err := uc.pool.SubmitAndWait(tasks); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	} else {
		for _, dim := range applicable {
			record(dim, uc.renderOne(ctx, file, srcPath, dim))
		}
	}

	return errors.Join(errs...)
}

// renderOne renders and registers a single dimension. The instance row moves
// through pending, processing and completed or failed. Re-runs are safe: a
// completed instance short-circuits, anything else is replaced.
func (uc *VariantUseCase) renderOne(ctx context.Context, file *File, srcPath string, dim *Dimension) error {
	existing, err := uc.instances.GetByFileAndVariant(ctx, file.ID, dim.Name)
	if err == nil {
		if existing.ProcessingStatus == InstanceStatusCompleted {
			return nil
		}
		if err := uc.teardownInstance(ctx, existing); err != nil {
			return err
		}
	} else if !IsNotFound(err) {
		return err
	}

	inst := &FileInstance{
		ID:               uuid.NewString(),
		FileID:           file.ID,
		Variant:          dim.Name,
		ProcessingStatus: InstanceStatusPending,
	}
	if err := uc.instances.Create(ctx, inst); err != nil {
		return err
	}
	if err := uc.instances.UpdateStatus(ctx, inst.ID, InstanceStatusProcessing); err != nil {
		return err
	}

	out, err := uc.renderer.Render(ctx, srcPath, file.FileType, dim)
	if err != nil {
		return uc.failInstance(ctx, inst.ID, err)
	}
	defer os.Remove(out.Path)

	rendered, err := os.ReadFile(out.Path)
	if err != nil {
		return uc.failInstance(ctx, inst.ID, fmt.Errorf("read rendered variant: %w", err))
	}

	checksum := ContentChecksum(rendered)
	path := InstancePath(file.StoragePrefix, file.Checksum, dim.Name, extensionForMime(out.MimeType))

	stored, err := uc.redundancy.Store(ctx, path, rendered, out.MimeType, uc.copies)
	if err != nil {
		return uc.failInstance(ctx, inst.ID, err)
	}

	width, height := out.Width, out.Height
	inst.Path = path
	inst.MimeType = out.MimeType
	inst.Checksum = checksum
	inst.Size = int64(len(rendered))
	inst.Width = &width
	inst.Height = &height
	inst.ProcessingStatus = InstanceStatusCompleted

	err = uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.instances.Update(ctx, inst); err != nil {
			return err
		}
		for i, bucket := range stored.Succeeded {
			loc := &FileLocation{
				ID:         uuid.NewString(),
				InstanceID: inst.ID,
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
	})
	if err != nil {
		return err
	}

	uc.logger.Info("variant generated",
		zap.String("file_id", file.ID),
		zap.String("variant", dim.Name),
		zap.Int("width", out.Width),
		zap.Int("height", out.Height),
		zap.Int64("size", inst.Size),
		zap.Int("copies", len(stored.Succeeded)))
	return nil
}

// failInstance marks a variant row failed and returns the cause. The failed
// row is what the retry finds and replaces.
func (uc *VariantUseCase) failInstance(ctx context.Context, id string, cause error) error {
	if err := uc.instances.UpdateStatus(ctx, id, InstanceStatusFailed); err != nil {
		uc.logger.Warn("could not mark variant instance failed",
			zap.String("instance_id", id),
			zap.Error(err))
	}
	return cause
}

// teardownInstance removes a half-finished variant before regeneration
func (uc *VariantUseCase) teardownInstance(ctx context.Context, inst *FileInstance) error {
	locs, err := uc.locations.ListByInstance(ctx, inst.ID)
	if err != nil {
		return err
	}
	if err := uc.redundancy.Delete(ctx, locs); err != nil {
		uc.logger.Warn("stale variant cleanup incomplete",
			zap.String("instance_id", inst.ID),
			zap.Error(err))
	}
	return uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.locations.DeleteByInstance(ctx, inst.ID); err != nil {
			return err
		}
		return uc.instances.Delete(ctx, inst.ID)
	})
}

// extensionForMime picks the written file extension of a rendered variant
func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	default:
		return ""
	}
}
