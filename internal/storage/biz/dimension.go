package biz

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Dimension applicability
const (
	AppliesToImage = "image"
	AppliesToVideo = "video"
	AppliesToBoth  = "both"
)

// Dimension is a configured variant spec. Enabled dimensions applicable to a
// file's type are rendered by the variant pipeline.
type Dimension struct {
	ID        string
	Name      string // becomes the FileInstance variant name
	Width     int
	Height    int
	Quality   int    // 1-100, used by lossy encoders
	Format    string // target container/encoding: jpeg, png, mp4
	AppliesTo string // image, video, both
	Enabled   bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the variant spec
func (d *Dimension) Validate() error {
	if d.Name == "" || d.Name == VariantOriginal {
		return fmt.Errorf("%w: dimension name must be set and must not be %q", ErrValidation, VariantOriginal)
	}
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: dimension width and height must be positive", ErrValidation)
	}
	if d.Quality < 0 || d.Quality > 100 {
		return fmt.Errorf("%w: dimension quality must be between 0 and 100", ErrValidation)
	}
	switch d.Format {
	case "", "jpeg", "jpg", "png", "mp4":
	default:
		return fmt.Errorf("%w: format must be jpeg, png or mp4", ErrValidation)
	}
	switch d.AppliesTo {
	case AppliesToImage, AppliesToVideo, AppliesToBoth:
	default:
		return fmt.Errorf("%w: applies_to must be image, video or both", ErrValidation)
	}
	return nil
}

// AppliesToType reports whether this dimension targets the given file type
func (d *Dimension) AppliesToType(fileType string) bool {
	switch d.AppliesTo {
	case AppliesToBoth:
		return fileType == FileTypeImage || fileType == FileTypeVideo
	case AppliesToImage:
		return fileType == FileTypeImage
	case AppliesToVideo:
		return fileType == FileTypeVideo
	}
	return false
}

// DimensionRepo is the registry access for Dimensions
type DimensionRepo interface {
	Create(ctx context.Context, d *Dimension) error
	Update(ctx context.Context, d *Dimension) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Dimension, error)
	List(ctx context.Context) ([]*Dimension, error)
	// ListEnabled returns enabled dimensions ordered by sort order
	ListEnabled(ctx context.Context) ([]*Dimension, error)
	Count(ctx context.Context) (int64, error)
}

// DimensionUseCase is the admin surface for variant specs
type DimensionUseCase struct {
	dimensions DimensionRepo
	logger     *zap.Logger
}

// NewDimensionUseCase creates the dimension admin use case
func NewDimensionUseCase(dimensions DimensionRepo, logger *zap.Logger) *DimensionUseCase {
	return &DimensionUseCase{
		dimensions: dimensions,
		logger:     logger,
	}
}

// CreateDimension validates and persists a new variant spec
func (uc *DimensionUseCase) CreateDimension(ctx context.Context, d *Dimension) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return uc.dimensions.Create(ctx, d)
}

// UpdateDimension validates and persists changes to a variant spec
func (uc *DimensionUseCase) UpdateDimension(ctx context.Context, d *Dimension) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return uc.dimensions.Update(ctx, d)
}

// DeleteDimension removes a variant spec. Existing instances are unaffected.
func (uc *DimensionUseCase) DeleteDimension(ctx context.Context, id string) error {
	return uc.dimensions.Delete(ctx, id)
}

// GetDimension returns one variant spec
func (uc *DimensionUseCase) GetDimension(ctx context.Context, id string) (*Dimension, error) {
	return uc.dimensions.GetByID(ctx, id)
}

// ListDimensions returns all variant specs
func (uc *DimensionUseCase) ListDimensions(ctx context.Context) ([]*Dimension, error) {
	return uc.dimensions.List(ctx)
}

// SeedDefaults inserts the default variant specs when none exist yet
func (uc *DimensionUseCase) SeedDefaults(ctx context.Context) error {
	count, err := uc.dimensions.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []*Dimension{
		{Name: "thumbnail", Width: 256, Height: 256, Quality: 80, Format: "jpeg", AppliesTo: AppliesToImage, Enabled: true, SortOrder: 1},
		{Name: "small", Width: 640, Height: 640, Quality: 85, Format: "jpeg", AppliesTo: AppliesToImage, Enabled: true, SortOrder: 2},
		{Name: "medium", Width: 1280, Height: 1280, Quality: 85, Format: "jpeg", AppliesTo: AppliesToImage, Enabled: true, SortOrder: 3},
		{Name: "360p", Width: 640, Height: 360, Quality: 0, Format: "mp4", AppliesTo: AppliesToVideo, Enabled: true, SortOrder: 4},
		{Name: "720p", Width: 1280, Height: 720, Quality: 0, Format: "mp4", AppliesTo: AppliesToVideo, Enabled: true, SortOrder: 5},
	}

	for _, d := range defaults {
		if err := uc.dimensions.Create(ctx, d); err != nil {
			return err
		}
	}

	uc.logger.Info("seeded default dimensions", zap.Int("count", len(defaults)))
	return nil
}
