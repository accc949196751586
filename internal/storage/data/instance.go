package data

import (
	"context"
	"fmt"
	"time"

	"github.com/bytevault/bytevault/internal/pkg/database"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// FileInstancePO represents the database model
type FileInstancePO struct {
	ID       string `gorm:"type:uuid;primarykey"`
	FileID   string `gorm:"type:uuid;not null;index:idx_file_instances_file_id;uniqueIndex:idx_file_instances_file_variant"`
	Variant  string `gorm:"size:64;not null;uniqueIndex:idx_file_instances_file_variant"`
	Path     string `gorm:"size:1024;not null"`
	MimeType string `gorm:"size:128;not null"`
	Checksum string `gorm:"size:64;not null"`
	Size     int64  `gorm:"not null"`
	Width    *int
	Height   *int

	ProcessingStatus string `gorm:"size:32;not null;default:pending"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FileInstancePO) TableName() string {
	return "file_instances"
}

// FileInstanceRepo implements biz.FileInstanceRepo
type FileInstanceRepo struct {
	db *database.DB
}

func NewFileInstanceRepo(db *database.DB) biz.FileInstanceRepo {
	return &FileInstanceRepo{db: db}
}

func (r *FileInstanceRepo) Create(ctx context.Context, inst *biz.FileInstance) error {
	po := instanceToPO(inst)
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		return err
	}
	inst.CreatedAt = po.CreatedAt
	inst.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *FileInstanceRepo) GetByFileAndVariant(ctx context.Context, fileID, variant string) (*biz.FileInstance, error) {
	var po FileInstancePO
	err := r.db.GetDBFromContext(ctx).
		Where("file_id = ? AND variant = ?", fileID, variant).
		First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("%w: instance %s of file %s", biz.ErrNotFound, variant, fileID)
		}
		return nil, err
	}
	return instanceToDomain(&po), nil
}

func (r *FileInstanceRepo) ListByFile(ctx context.Context, fileID string) ([]*biz.FileInstance, error) {
	var pos []FileInstancePO
	err := r.db.GetDBFromContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	instances := make([]*biz.FileInstance, len(pos))
	for i := range pos {
		instances[i] = instanceToDomain(&pos[i])
	}
	return instances, nil
}

func (r *FileInstanceRepo) UpdateStatus(ctx context.Context, id, status string) error {
	result := r.db.GetDBFromContext(ctx).
		Model(&FileInstancePO{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": status,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: instance %s", biz.ErrNotFound, id)
	}
	return nil
}

func (r *FileInstanceRepo) Update(ctx context.Context, inst *biz.FileInstance) error {
	result := r.db.GetDBFromContext(ctx).
		Model(&FileInstancePO{}).
		Where("id = ?", inst.ID).
		Updates(map[string]interface{}{
			"path":              inst.Path,
			"mime_type":         inst.MimeType,
			"checksum":          inst.Checksum,
			"size":              inst.Size,
			"width":             inst.Width,
			"height":            inst.Height,
			"processing_status": inst.ProcessingStatus,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: instance %s", biz.ErrNotFound, inst.ID)
	}
	return nil
}

func (r *FileInstanceRepo) Delete(ctx context.Context, id string) error {
	return r.db.GetDBFromContext(ctx).Where("id = ?", id).Delete(&FileInstancePO{}).Error
}

func (r *FileInstanceRepo) DeleteByFile(ctx context.Context, fileID string) error {
	return r.db.GetDBFromContext(ctx).Where("file_id = ?", fileID).Delete(&FileInstancePO{}).Error
}

func instanceToPO(inst *biz.FileInstance) *FileInstancePO {
	return &FileInstancePO{
		ID:               inst.ID,
		FileID:           inst.FileID,
		Variant:          inst.Variant,
		Path:             inst.Path,
		MimeType:         inst.MimeType,
		Checksum:         inst.Checksum,
		Size:             inst.Size,
		Width:            inst.Width,
		Height:           inst.Height,
		ProcessingStatus: inst.ProcessingStatus,
	}
}

func instanceToDomain(po *FileInstancePO) *biz.FileInstance {
	return &biz.FileInstance{
		ID:               po.ID,
		FileID:           po.FileID,
		Variant:          po.Variant,
		Path:             po.Path,
		MimeType:         po.MimeType,
		Checksum:         po.Checksum,
		Size:             po.Size,
		Width:            po.Width,
		Height:           po.Height,
		ProcessingStatus: po.ProcessingStatus,
		CreatedAt:        po.CreatedAt,
		UpdatedAt:        po.UpdatedAt,
	}
}
