package data

import (
	"context"
	"time"

	"github.com/bytevault/bytevault/internal/pkg/database"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// FileLocationPO represents the database model
type FileLocationPO struct {
	ID         string `gorm:"type:uuid;primarykey"`
	InstanceID string `gorm:"type:uuid;not null;index:idx_file_locations_instance_id"`
	BucketID   string `gorm:"type:uuid;not null;index:idx_file_locations_bucket_id"`
	Path       string `gorm:"size:1024;not null"`
	Status     string `gorm:"size:32;not null;default:active"`
	Priority   int    `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FileLocationPO) TableName() string {
	return "file_locations"
}

// FileLocationRepo implements biz.FileLocationRepo
type FileLocationRepo struct {
	db *database.DB
}

func NewFileLocationRepo(db *database.DB) biz.FileLocationRepo {
	return &FileLocationRepo{db: db}
}

func (r *FileLocationRepo) Create(ctx context.Context, loc *biz.FileLocation) error {
	po := locationToPO(loc)
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		return err
	}
	loc.CreatedAt = po.CreatedAt
	return nil
}

func (r *FileLocationRepo) ListByInstance(ctx context.Context, instanceID string) ([]*biz.FileLocation, error) {
	var pos []FileLocationPO
	err := r.db.GetDBFromContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("priority ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	locs := make([]*biz.FileLocation, len(pos))
	for i := range pos {
		locs[i] = locationToDomain(&pos[i])
	}
	return locs, nil
}

func (r *FileLocationRepo) DeleteByInstance(ctx context.Context, instanceID string) error {
	return r.db.GetDBFromContext(ctx).
		Where("instance_id = ?", instanceID).
		Delete(&FileLocationPO{}).Error
}

// UsageByBucket sums the stored bytes and counts the copies held in one
// bucket by joining locations to their instance sizes.
func (r *FileLocationRepo) UsageByBucket(ctx context.Context, bucketID string) (int64, int64, error) {
	var row struct {
		Bytes int64
		Count int64
	}
	err := r.db.GetDBFromContext(ctx).
		Table("file_locations").
		Select("COALESCE(SUM(file_instances.size), 0) AS bytes, COUNT(*) AS count").
		Joins("JOIN file_instances ON file_instances.id = file_locations.instance_id").
		Where("file_locations.bucket_id = ?", bucketID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Bytes, row.Count, nil
}

func locationToPO(loc *biz.FileLocation) *FileLocationPO {
	return &FileLocationPO{
		ID:         loc.ID,
		InstanceID: loc.InstanceID,
		BucketID:   loc.BucketID,
		Path:       loc.Path,
		Status:     loc.Status,
		Priority:   loc.Priority,
	}
}

func locationToDomain(po *FileLocationPO) *biz.FileLocation {
	return &biz.FileLocation{
		ID:         po.ID,
		InstanceID: po.InstanceID,
		BucketID:   po.BucketID,
		Path:       po.Path,
		Status:     po.Status,
		Priority:   po.Priority,
		CreatedAt:  po.CreatedAt,
	}
}
