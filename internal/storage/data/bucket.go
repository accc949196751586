package data

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bytevault/bytevault/internal/pkg/database"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// BucketPO represents the database model
type BucketPO struct {
	ID        string `gorm:"type:uuid;primarykey"`
	Name      string `gorm:"size:128;not null;uniqueIndex:idx_buckets_name"`
	Provider  string `gorm:"size:32;not null"`
	Enabled   bool   `gorm:"not null;default:true"`
	Priority  int    `gorm:"not null;default:0"`
	MaxSizeMB int64  `gorm:"not null;default:0"`

	BasePath string `gorm:"size:512"`

	Endpoint   string `gorm:"size:256"`
	AccessKey  string `gorm:"size:256"`
	SecretKey  string `gorm:"size:256"`
	UseSSL     bool   `gorm:"not null;default:false"`
	BucketName string `gorm:"size:128"`

	PublicBaseURL string `gorm:"size:512"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (BucketPO) TableName() string {
	return "buckets"
}

// BucketRepo implements biz.BucketRepo
type BucketRepo struct {
	db *database.DB
}

func NewBucketRepo(db *database.DB) biz.BucketRepo {
	return &BucketRepo{db: db}
}

func (r *BucketRepo) Create(ctx context.Context, b *biz.Bucket) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	po := bucketToPO(b)
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		return err
	}
	b.CreatedAt = po.CreatedAt
	b.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *BucketRepo) Update(ctx context.Context, b *biz.Bucket) error {
	po := bucketToPO(b)
	result := r.db.GetDBFromContext(ctx).
		Model(&BucketPO{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"name":            po.Name,
			"provider":        po.Provider,
			"enabled":         po.Enabled,
			"priority":        po.Priority,
			"max_size_mb":     po.MaxSizeMB,
			"base_path":       po.BasePath,
			"endpoint":        po.Endpoint,
			"access_key":      po.AccessKey,
			"secret_key":      po.SecretKey,
			"use_ssl":         po.UseSSL,
			"bucket_name":     po.BucketName,
			"public_base_url": po.PublicBaseURL,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: bucket %s", biz.ErrNotFound, b.ID)
	}
	return nil
}

func (r *BucketRepo) Delete(ctx context.Context, id string) error {
	return r.db.GetDBFromContext(ctx).Where("id = ?", id).Delete(&BucketPO{}).Error
}

func (r *BucketRepo) GetByID(ctx context.Context, id string) (*biz.Bucket, error) {
	var po BucketPO
	if err := r.db.GetDBFromContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("%w: bucket %s", biz.ErrNotFound, id)
		}
		return nil, err
	}
	return bucketToDomain(&po), nil
}

func (r *BucketRepo) List(ctx context.Context) ([]*biz.Bucket, error) {
	var pos []BucketPO
	if err := r.db.GetDBFromContext(ctx).Order("priority ASC").Find(&pos).Error; err != nil {
		return nil, err
	}
	return bucketsToDomain(pos), nil
}

func (r *BucketRepo) ListEnabled(ctx context.Context) ([]*biz.Bucket, error) {
	var pos []BucketPO
	err := r.db.GetDBFromContext(ctx).
		Where("enabled = ?", true).
		Order("priority ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return bucketsToDomain(pos), nil
}

func bucketsToDomain(pos []BucketPO) []*biz.Bucket {
	buckets := make([]*biz.Bucket, len(pos))
	for i := range pos {
		buckets[i] = bucketToDomain(&pos[i])
	}
	return buckets
}

func bucketToPO(b *biz.Bucket) *BucketPO {
	return &BucketPO{
		ID:            b.ID,
		Name:          b.Name,
		Provider:      b.Provider,
		Enabled:       b.Enabled,
		Priority:      b.Priority,
		MaxSizeMB:     b.MaxSizeMB,
		BasePath:      b.BasePath,
		Endpoint:      b.Endpoint,
		AccessKey:     b.AccessKey,
		SecretKey:     b.SecretKey,
		UseSSL:        b.UseSSL,
		BucketName:    b.BucketName,
		PublicBaseURL: b.PublicBaseURL,
	}
}

func bucketToDomain(po *BucketPO) *biz.Bucket {
	return &biz.Bucket{
		ID:            po.ID,
		Name:          po.Name,
		Provider:      po.Provider,
		Enabled:       po.Enabled,
		Priority:      po.Priority,
		MaxSizeMB:     po.MaxSizeMB,
		BasePath:      po.BasePath,
		Endpoint:      po.Endpoint,
		AccessKey:     po.AccessKey,
		SecretKey:     po.SecretKey,
		UseSSL:        po.UseSSL,
		BucketName:    po.BucketName,
		PublicBaseURL: po.PublicBaseURL,
		CreatedAt:     po.CreatedAt,
		UpdatedAt:     po.UpdatedAt,
	}
}
