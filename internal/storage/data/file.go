package data

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytevault/bytevault/internal/pkg/database"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// MetadataJSON stores probed media metadata as JSONB
type MetadataJSON map[string]interface{}

func (j *MetadataJSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j MetadataJSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// FilePO represents the database model
type FilePO struct {
	ID       string `gorm:"type:uuid;primarykey"`
	UserID   string `gorm:"type:uuid;not null;index:idx_files_user_id"`
	FileName string `gorm:"size:512;not null"`
	FileType string `gorm:"size:32;not null"`
	MimeType string `gorm:"size:128;not null"`

	// Content addressing. UserFileChecksum carries the per-user uniqueness
	// the dedup path relies on.
	Checksum         string `gorm:"size:64;not null;index:idx_files_checksum"`
	UserFileChecksum string `gorm:"size:64;not null;uniqueIndex:idx_files_user_file_checksum"`
	StoragePrefix    string `gorm:"size:256;not null"`

	Size     int64        `gorm:"not null"`
	Status   string       `gorm:"size:32;not null;default:processing"`
	Metadata MetadataJSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FilePO) TableName() string {
	return "files"
}

// FileRepo implements biz.FileRepo
type FileRepo struct {
	db *database.DB
}

func NewFileRepo(db *database.DB) biz.FileRepo {
	return &FileRepo{db: db}
}

func (r *FileRepo) Create(ctx context.Context, f *biz.File) error {
	po := fileToPO(f)
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		return err
	}
	f.CreatedAt = po.CreatedAt
	f.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *FileRepo) GetByID(ctx context.Context, id string) (*biz.File, error) {
	var po FilePO
	if err := r.db.GetDBFromContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("%w: file %s", biz.ErrNotFound, id)
		}
		return nil, err
	}
	return fileToDomain(&po), nil
}

func (r *FileRepo) GetByUserChecksum(ctx context.Context, userFileChecksum string) (*biz.File, error) {
	var po FilePO
	err := r.db.GetDBFromContext(ctx).
		Where("user_file_checksum = ?", userFileChecksum).
		First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("%w: no file with user checksum %s", biz.ErrNotFound, userFileChecksum)
		}
		return nil, err
	}
	return fileToDomain(&po), nil
}

func (r *FileRepo) UpdateMetadata(ctx context.Context, id string, metadata map[string]interface{}, status string) error {
	result := r.db.GetDBFromContext(ctx).
		Model(&FilePO{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"metadata":   MetadataJSON(metadata),
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: file %s", biz.ErrNotFound, id)
	}
	return nil
}

func (r *FileRepo) List(ctx context.Context, limit, offset int) ([]*biz.File, error) {
	var pos []FilePO
	err := r.db.GetDBFromContext(ctx).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	files := make([]*biz.File, len(pos))
	for i := range pos {
		files[i] = fileToDomain(&pos[i])
	}
	return files, nil
}

func (r *FileRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetDBFromContext(ctx).Model(&FilePO{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FileRepo) Delete(ctx context.Context, id string) error {
	return r.db.GetDBFromContext(ctx).Where("id = ?", id).Delete(&FilePO{}).Error
}

func fileToPO(f *biz.File) *FilePO {
	return &FilePO{
		ID:               f.ID,
		UserID:           f.UserID,
		FileName:         f.FileName,
		FileType:         f.FileType,
		MimeType:         f.MimeType,
		Checksum:         f.Checksum,
		UserFileChecksum: f.UserFileChecksum,
		StoragePrefix:    f.StoragePrefix,
		Size:             f.Size,
		Status:           f.Status,
		Metadata:         MetadataJSON(f.Metadata),
	}
}

func fileToDomain(po *FilePO) *biz.File {
	return &biz.File{
		ID:               po.ID,
		UserID:           po.UserID,
		FileName:         po.FileName,
		FileType:         po.FileType,
		MimeType:         po.MimeType,
		Checksum:         po.Checksum,
		UserFileChecksum: po.UserFileChecksum,
		StoragePrefix:    po.StoragePrefix,
		Size:             po.Size,
		Status:           po.Status,
		Metadata:         map[string]interface{}(po.Metadata),
		CreatedAt:        po.CreatedAt,
		UpdatedAt:        po.UpdatedAt,
	}
}
