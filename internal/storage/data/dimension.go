package data

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bytevault/bytevault/internal/pkg/database"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// DimensionPO represents the database model
type DimensionPO struct {
	ID        string `gorm:"type:uuid;primarykey"`
	Name      string `gorm:"size:64;not null;uniqueIndex:idx_dimensions_name"`
	Width     int    `gorm:"not null"`
	Height    int    `gorm:"not null"`
	Quality   int    `gorm:"not null;default:0"`
	Format    string `gorm:"size:16;not null"`
	AppliesTo string `gorm:"size:16;not null"`
	Enabled   bool   `gorm:"not null;default:true"`
	SortOrder int    `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DimensionPO) TableName() string {
	return "dimensions"
}

// DimensionRepo implements biz.DimensionRepo
type DimensionRepo struct {
	db *database.DB
}

func NewDimensionRepo(db *database.DB) biz.DimensionRepo {
	return &DimensionRepo{db: db}
}

func (r *DimensionRepo) Create(ctx context.Context, d *biz.Dimension) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	po := dimensionToPO(d)
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		return err
	}
	d.CreatedAt = po.CreatedAt
	d.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *DimensionRepo) Update(ctx context.Context, d *biz.Dimension) error {
	po := dimensionToPO(d)
	result := r.db.GetDBFromContext(ctx).
		Model(&DimensionPO{}).
		Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"name":       po.Name,
			"width":      po.Width,
			"height":     po.Height,
			"quality":    po.Quality,
			"format":     po.Format,
			"applies_to": po.AppliesTo,
			"enabled":    po.Enabled,
			"sort_order": po.SortOrder,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: dimension %s", biz.ErrNotFound, d.ID)
	}
	return nil
}

func (r *DimensionRepo) Delete(ctx context.Context, id string) error {
	return r.db.GetDBFromContext(ctx).Where("id = ?", id).Delete(&DimensionPO{}).Error
}

func (r *DimensionRepo) GetByID(ctx context.Context, id string) (*biz.Dimension, error) {
	var po DimensionPO
	if err := r.db.GetDBFromContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("%w: dimension %s", biz.ErrNotFound, id)
		}
		return nil, err
	}
	return dimensionToDomain(&po), nil
}

func (r *DimensionRepo) List(ctx context.Context) ([]*biz.Dimension, error) {
	var pos []DimensionPO
	if err := r.db.GetDBFromContext(ctx).Order("sort_order ASC").Find(&pos).Error; err != nil {
		return nil, err
	}
	return dimensionsToDomain(pos), nil
}

func (r *DimensionRepo) ListEnabled(ctx context.Context) ([]*biz.Dimension, error) {
	var pos []DimensionPO
	err := r.db.GetDBFromContext(ctx).
		Where("enabled = ?", true).
		Order("sort_order ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return dimensionsToDomain(pos), nil
}

func (r *DimensionRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetDBFromContext(ctx).Model(&DimensionPO{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func dimensionsToDomain(pos []DimensionPO) []*biz.Dimension {
	dims := make([]*biz.Dimension, len(pos))
	for i := range pos {
		dims[i] = dimensionToDomain(&pos[i])
	}
	return dims
}

func dimensionToPO(d *biz.Dimension) *DimensionPO {
	return &DimensionPO{
		ID:        d.ID,
		Name:      d.Name,
		Width:     d.Width,
		Height:    d.Height,
		Quality:   d.Quality,
		Format:    d.Format,
		AppliesTo: d.AppliesTo,
		Enabled:   d.Enabled,
		SortOrder: d.SortOrder,
	}
}

func dimensionToDomain(po *DimensionPO) *biz.Dimension {
	return &biz.Dimension{
		ID:        po.ID,
		Name:      po.Name,
		Width:     po.Width,
		Height:    po.Height,
		Quality:   po.Quality,
		Format:    po.Format,
		AppliesTo: po.AppliesTo,
		Enabled:   po.Enabled,
		SortOrder: po.SortOrder,
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	}
}
