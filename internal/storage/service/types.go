package service

import (
	"time"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

// FileResponse is the wire shape of a File
type FileResponse struct {
	ID        string                 `json:"id"`
	FileName  string                 `json:"file_name"`
	FileType  string                 `json:"file_type"`
	MimeType  string                 `json:"mime_type"`
	Checksum  string                 `json:"checksum"`
	Size      int64                  `json:"size"`
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// UploadResponse reports an ingest outcome
type UploadResponse struct {
	File      *FileResponse `json:"file"`
	Duplicate bool          `json:"duplicate"`
	Copies    int           `json:"copies"`
}

// InstanceResponse is the wire shape of a FileInstance
type InstanceResponse struct {
	ID               string    `json:"id"`
	Variant          string    `json:"variant"`
	MimeType         string    `json:"mime_type"`
	Checksum         string    `json:"checksum"`
	Size             int64     `json:"size"`
	Width            *int      `json:"width,omitempty"`
	Height           *int      `json:"height,omitempty"`
	ProcessingStatus string    `json:"processing_status"`
	CreatedAt        time.Time `json:"created_at"`
}

// URLResponse carries a resolved public URL
type URLResponse struct {
	URL string `json:"url"`
}

// BucketRequest is the create/update payload of a Bucket
type BucketRequest struct {
	Name          string `json:"name" binding:"required"`
	Provider      string `json:"provider" binding:"required"`
	Enabled       *bool  `json:"enabled"`
	Priority      int    `json:"priority"`
	MaxSizeMB     int64  `json:"max_size_mb"`
	BasePath      string `json:"base_path"`
	Endpoint      string `json:"endpoint"`
	AccessKey     string `json:"access_key"`
	SecretKey     string `json:"secret_key"`
	UseSSL        bool   `json:"use_ssl"`
	BucketName    string `json:"bucket_name"`
	PublicBaseURL string `json:"public_base_url"`
}

// BucketResponse is the wire shape of a Bucket. Credentials stay server-side.
type BucketResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Provider      string    `json:"provider"`
	Enabled       bool      `json:"enabled"`
	Priority      int       `json:"priority"`
	MaxSizeMB     int64     `json:"max_size_mb"`
	BasePath      string    `json:"base_path,omitempty"`
	Endpoint      string    `json:"endpoint,omitempty"`
	BucketName    string    `json:"bucket_name,omitempty"`
	UseSSL        bool      `json:"use_ssl"`
	PublicBaseURL string    `json:"public_base_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DimensionRequest is the create/update payload of a Dimension
type DimensionRequest struct {
	Name      string `json:"name" binding:"required"`
	Width     int    `json:"width" binding:"required"`
	Height    int    `json:"height" binding:"required"`
	Quality   int    `json:"quality"`
	Format    string `json:"format"`
	AppliesTo string `json:"applies_to" binding:"required"`
	Enabled   *bool  `json:"enabled"`
	SortOrder int    `json:"sort_order"`
}

// DimensionResponse is the wire shape of a Dimension
type DimensionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Quality   int       `json:"quality"`
	Format    string    `json:"format"`
	AppliesTo string    `json:"applies_to"`
	Enabled   bool      `json:"enabled"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueueStatsResponse reports queue depths
type QueueStatsResponse struct {
	Ready      int64 `json:"ready"`
	Delayed    int64 `json:"delayed"`
	Processing int64 `json:"processing"`
}

func toFileResponse(f *biz.File) *FileResponse {
	return &FileResponse{
		ID:        f.ID,
		FileName:  f.FileName,
		FileType:  f.FileType,
		MimeType:  f.MimeType,
		Checksum:  f.Checksum,
		Size:      f.Size,
		Status:    f.Status,
		Metadata:  f.Metadata,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func toInstanceResponse(inst *biz.FileInstance) *InstanceResponse {
	return &InstanceResponse{
		ID:               inst.ID,
		Variant:          inst.Variant,
		MimeType:         inst.MimeType,
		Checksum:         inst.Checksum,
		Size:             inst.Size,
		Width:            inst.Width,
		Height:           inst.Height,
		ProcessingStatus: inst.ProcessingStatus,
		CreatedAt:        inst.CreatedAt,
	}
}

func toBucketResponse(b *biz.Bucket) *BucketResponse {
	return &BucketResponse{
		ID:            b.ID,
		Name:          b.Name,
		Provider:      b.Provider,
		Enabled:       b.Enabled,
		Priority:      b.Priority,
		MaxSizeMB:     b.MaxSizeMB,
		BasePath:      b.BasePath,
		Endpoint:      b.Endpoint,
		BucketName:    b.BucketName,
		UseSSL:        b.UseSSL,
		PublicBaseURL: b.PublicBaseURL,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toDimensionResponse(d *biz.Dimension) *DimensionResponse {
	return &DimensionResponse{
		ID:        d.ID,
		Name:      d.Name,
		Width:     d.Width,
		Height:    d.Height,
		Quality:   d.Quality,
		Format:    d.Format,
		AppliesTo: d.AppliesTo,
		Enabled:   d.Enabled,
		SortOrder: d.SortOrder,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (r *BucketRequest) toDomain(id string) *biz.Bucket {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &biz.Bucket{
		ID:            id,
		Name:          r.Name,
		Provider:      r.Provider,
		Enabled:       enabled,
		Priority:      r.Priority,
		MaxSizeMB:     r.MaxSizeMB,
		BasePath:      r.BasePath,
		Endpoint:      r.Endpoint,
		AccessKey:     r.AccessKey,
		SecretKey:     r.SecretKey,
		UseSSL:        r.UseSSL,
		BucketName:    r.BucketName,
		PublicBaseURL: r.PublicBaseURL,
	}
}

func (r *DimensionRequest) toDomain(id string) *biz.Dimension {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	format := r.Format
	if format == "" {
		format = "jpeg"
	}
	return &biz.Dimension{
		ID:        id,
		Name:      r.Name,
		Width:     r.Width,
		Height:    r.Height,
		Quality:   r.Quality,
		Format:    format,
		AppliesTo: r.AppliesTo,
		Enabled:   enabled,
		SortOrder: r.SortOrder,
	}
}
