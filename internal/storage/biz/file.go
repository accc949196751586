package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// File statuses
const (
	FileStatusProcessing = "processing"
	FileStatusActive     = "active"
)

// Instance processing statuses
const (
	InstanceStatusPending    = "pending"
	InstanceStatusProcessing = "processing"
	InstanceStatusCompleted  = "completed"
	InstanceStatusFailed     = "failed"
)

// VariantOriginal is the instance name of the as-uploaded rendition
const VariantOriginal = "original"

// File types derived from the upload's mime type
const (
	FileTypeImage    = "image"
	FileTypeVideo    = "video"
	FileTypeDocument = "document"
	FileTypeOther    = "other"
)

// Location statuses
const (
	LocationStatusActive = "active"
)

// File is the logical content-addressed upload record, deduplicated per user
// via UserFileChecksum.
type File struct {
	ID               string
	UserID           string
	FileName         string
	FileType         string
	MimeType         string
	Checksum         string // sha256 of the bytes, lower-case hex
	UserFileChecksum string // sha256 of user_id || content checksum, unique
	Size             int64
	Status           string
	StoragePrefix    string
	Metadata         map[string]interface{}
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FileInstance is one named rendition of a File ("original", "thumbnail", ...)
type FileInstance struct {
	ID               string
	FileID           string
	Variant          string
	Path             string
	MimeType         string
	Checksum         string
	Size             int64
	Width            *int
	Height           *int
	ProcessingStatus string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FileLocation is one physical copy of a FileInstance inside one Bucket
type FileLocation struct {
	ID         string
	InstanceID string
	BucketID   string
	Path       string
	Status     string
	Priority   int
	CreatedAt  time.Time
}

// FileRepo is the registry access for Files
type FileRepo interface {
	Create(ctx context.Context, f *File) error
	GetByID(ctx context.Context, id string) (*File, error)
	GetByUserChecksum(ctx context.Context, userFileChecksum string) (*File, error)
	UpdateMetadata(ctx context.Context, id string, metadata map[string]interface{}, status string) error
	List(ctx context.Context, limit, offset int) ([]*File, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

// FileInstanceRepo is the registry access for FileInstances
type FileInstanceRepo interface {
	Create(ctx context.Context, inst *FileInstance) error
	GetByFileAndVariant(ctx context.Context, fileID, variant string) (*FileInstance, error)
	ListByFile(ctx context.Context, fileID string) ([]*FileInstance, error)
	UpdateStatus(ctx context.Context, id, status string) error
	// Update rewrites the mutable fields of an instance row, keyed by ID
	Update(ctx context.Context, inst *FileInstance) error
	Delete(ctx context.Context, id string) error
	DeleteByFile(ctx context.Context, fileID string) error
}

// FileLocationRepo is the registry access for FileLocations
type FileLocationRepo interface {
	Create(ctx context.Context, loc *FileLocation) error
	ListByInstance(ctx context.Context, instanceID string) ([]*FileLocation, error)
	DeleteByInstance(ctx context.Context, instanceID string) error
	UsageByBucket(ctx context.Context, bucketID string) (bytes int64, count int64, err error)
}

// Transactor runs a function with every repo call inside one transaction
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ContentChecksum returns the lower-case hex sha256 of the bytes
func ContentChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// UserChecksum returns the per-user dedup key: sha256 of user_id || content
// checksum. Two users uploading identical bytes get distinct keys.
func UserChecksum(userID, contentChecksum string) string {
	sum := sha256.Sum256([]byte(userID + contentChecksum))
	return hex.EncodeToString(sum[:])
}

// StoragePrefix builds the sharded path prefix
// "{first2(user_id)}/{first2(hash)}/{hash}". The two-character prefixes keep
// any one directory's fan-out bounded.
func StoragePrefix(userID, checksum string) string {
	return fmt.Sprintf("%s/%s/%s", shard(userID), shard(checksum), checksum)
}

// InstancePath builds the bucket key of one rendition:
// "{prefix}/{hash}_{variant}.{ext}". ext is passed without the leading dot.
func InstancePath(prefix, checksum, variant, ext string) string {
	if ext == "" {
		return fmt.Sprintf("%s/%s_%s", prefix, checksum, variant)
	}
	return fmt.Sprintf("%s/%s_%s.%s", prefix, checksum, variant, ext)
}

func shard(s string) string {
	if len(s) < 2 {
		return s
	}
	return s[:2]
}

// extensionMimeTypes maps lower-case file extensions to mime types for
// uploads that arrive without one.
var extensionMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".pdf":  "application/pdf",
	".epub": "application/epub+zip",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".zip":  "application/zip",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
}

// MimeTypeForFilename infers a mime type from the filename extension,
// defaulting to application/octet-stream.
func MimeTypeForFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := extensionMimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// FileTypeForMime classifies a mime type into the engine's coarse file types
func FileTypeForMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return FileTypeVideo
	case mimeType == "application/pdf",
		mimeType == "application/epub+zip",
		mimeType == "application/msword",
		strings.HasPrefix(mimeType, "application/vnd.openxmlformats-officedocument"),
		strings.HasPrefix(mimeType, "text/"):
		return FileTypeDocument
	default:
		return FileTypeOther
	}
}

// FileExtension returns the filename extension without the leading dot,
// lower-cased, or "" when there is none.
func FileExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return strings.TrimPrefix(ext, ".")
}

// FileUseCase covers the read/delete side of the public surface:
// retrieve-by-id, retrieve-by-hash, public URLs, instance listing and
// complete deletion.
type FileUseCase struct {
	files      FileRepo
	instances  FileInstanceRepo
	locations  FileLocationRepo
	buckets    BucketRepo
	redundancy *Redundancy
	tx         Transactor
	logger     *zap.Logger
}

// NewFileUseCase creates the file read/delete use case
func NewFileUseCase(
	files FileRepo,
	instances FileInstanceRepo,
	locations FileLocationRepo,
	buckets BucketRepo,
	redundancy *Redundancy,
	tx Transactor,
	logger *zap.Logger,
) *FileUseCase {
	return &FileUseCase{
		files:      files,
		instances:  instances,
		locations:  locations,
		buckets:    buckets,
		redundancy: redundancy,
		tx:         tx,
		logger:     logger,
	}
}

// GetFile returns the File with the given id
func (uc *FileUseCase) GetFile(ctx context.Context, id string) (*File, error) {
	return uc.files.GetByID(ctx, id)
}

// GetFileByChecksum returns the user's File with the given content checksum
func (uc *FileUseCase) GetFileByChecksum(ctx context.Context, userID, checksum string) (*File, error) {
	return uc.files.GetByUserChecksum(ctx, UserChecksum(userID, checksum))
}

// ListInstances returns every rendition of a File
func (uc *FileUseCase) ListInstances(ctx context.Context, fileID string) ([]*FileInstance, error) {
	if _, err := uc.files.GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	return uc.instances.ListByFile(ctx, fileID)
}

// PublicURL resolves a URL for one rendition of a File. Locations are tried
// in priority order; the first bucket able to produce a URL wins. Returns ""
// when no bucket can serve the instance publicly.
func (uc *FileUseCase) PublicURL(ctx context.Context, fileID, variant string) (string, error) {
	if variant == "" {
		variant = VariantOriginal
	}

	inst, err := uc.instances.GetByFileAndVariant(ctx, fileID, variant)
	if err != nil {
		return "", err
	}

	locs, err := uc.locations.ListByInstance(ctx, inst.ID)
	if err != nil {
		return "", err
	}
	sort.SliceStable(locs, func(i, j int) bool { return locs[i].Priority < locs[j].Priority })

	for _, loc := range locs {
		bucket, err := uc.buckets.GetByID(ctx, loc.BucketID)
		if err != nil {
			continue
		}
		store, err := uc.redundancy.drivers.ForBucket(ctx, bucket)
		if err != nil {
			continue
		}
		url, err := store.PublicURL(ctx, loc.Path)
		if err == nil && url != "" {
			return url, nil
		}
	}

	return "", nil
}

// RetrieveContent reads the bytes of one rendition from the first reachable
// location.
func (uc *FileUseCase) RetrieveContent(ctx context.Context, fileID, variant string) ([]byte, *FileInstance, error) {
	if variant == "" {
		variant = VariantOriginal
	}

	inst, err := uc.instances.GetByFileAndVariant(ctx, fileID, variant)
	if err != nil {
		return nil, nil, err
	}

	locs, err := uc.locations.ListByInstance(ctx, inst.ID)
	if err != nil {
		return nil, nil, err
	}

	data, err := uc.redundancy.Read(ctx, locs)
	if err != nil {
		return nil, nil, err
	}
	return data, inst, nil
}

// DeleteCompletely removes a File, its instances, its locations and its
// physical copies. Physical deletion is best-effort: a bucket that fails to
// delete is logged and does not block the registry deletion.
func (uc *FileUseCase) DeleteCompletely(ctx context.Context, fileID string) error {
	file, err := uc.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}

	instances, err := uc.instances.ListByFile(ctx, fileID)
	if err != nil {
		return err
	}

	for _, inst := range instances {
		locs, err := uc.locations.ListByInstance(ctx, inst.ID)
		if err != nil {
			return err
		}
		if err := uc.redundancy.Delete(ctx, locs); err != nil {
			uc.logger.Warn("physical delete incomplete, continuing with registry deletion",
				zap.String("file_id", fileID),
				zap.String("variant", inst.Variant),
				zap.Error(err))
		}
	}

	// Children first, parent last, all in one transaction. Explicit instead
	// of relying on database-level cascades.
	err = uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, inst := range instances {
			if err := uc.locations.DeleteByInstance(ctx, inst.ID); err != nil {
				return err
			}
		}
		if err := uc.instances.DeleteByFile(ctx, fileID); err != nil {
			return err
		}
		return uc.files.Delete(ctx, fileID)
	})
	if err != nil {
		return err
	}

	uc.logger.Info("file deleted",
		zap.String("file_id", fileID),
		zap.String("checksum", file.Checksum),
		zap.Int("instances", len(instances)))
	return nil
}
