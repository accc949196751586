package service

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/pkg/logger"
	"github.com/bytevault/bytevault/internal/pkg/response"
	"github.com/bytevault/bytevault/internal/storage/biz"
	"github.com/bytevault/bytevault/internal/storage/queue"
)

// AdminService is the HTTP surface of bucket, dimension and reclamation
// administration.
type AdminService struct {
	buckets    *biz.BucketUseCase
	dimensions *biz.DimensionUseCase
	orphans    *biz.OrphanUseCase
	queue      *queue.RedisQueue
	logger     *logger.Logger
}

// NewAdminService creates the admin HTTP service
func NewAdminService(
	buckets *biz.BucketUseCase,
	dimensions *biz.DimensionUseCase,
	orphans *biz.OrphanUseCase,
	q *queue.RedisQueue,
	log *logger.Logger,
) *AdminService {
	return &AdminService{
		buckets:    buckets,
		dimensions: dimensions,
		orphans:    orphans,
		queue:      q,
		logger:     log,
	}
}

// CreateBucket registers a new storage target
func (s *AdminService) CreateBucket(c *gin.Context) {
	var req BucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	bucket := req.toDomain("")
	if err := s.buckets.CreateBucket(c.Request.Context(), bucket); err != nil {
		s.handleError(c, err)
		return
	}
	response.Created(c, toBucketResponse(bucket))
}

// UpdateBucket rewrites a storage target's configuration
func (s *AdminService) UpdateBucket(c *gin.Context) {
	var req BucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	bucket := req.toDomain(c.Param("id"))
	if err := s.buckets.UpdateBucket(c.Request.Context(), bucket); err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toBucketResponse(bucket))
}

// DeleteBucket removes a storage target configuration
func (s *AdminService) DeleteBucket(c *gin.Context) {
	if err := s.buckets.DeleteBucket(c.Request.Context(), c.Param("id")); err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// GetBucket returns one storage target
func (s *AdminService) GetBucket(c *gin.Context) {
	bucket, err := s.buckets.GetBucket(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toBucketResponse(bucket))
}

// ListBuckets returns every storage target
func (s *AdminService) ListBuckets(c *gin.Context) {
	buckets, err := s.buckets.ListBuckets(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, lo.Map(buckets, func(b *biz.Bucket, _ int) *BucketResponse {
		return toBucketResponse(b)
	}))
}

// BucketUsage reports the bytes and copies held in one bucket
func (s *AdminService) BucketUsage(c *gin.Context) {
	usage, err := s.buckets.Usage(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, usage)
}

// CreateDimension registers a new variant spec
func (s *AdminService) CreateDimension(c *gin.Context) {
	var req DimensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dim := req.toDomain("")
	if err := s.dimensions.CreateDimension(c.Request.Context(), dim); err != nil {
		s.handleError(c, err)
		return
	}
	response.Created(c, toDimensionResponse(dim))
}

// UpdateDimension rewrites a variant spec
func (s *AdminService) UpdateDimension(c *gin.Context) {
	var req DimensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dim := req.toDomain(c.Param("id"))
	if err := s.dimensions.UpdateDimension(c.Request.Context(), dim); err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toDimensionResponse(dim))
}

// DeleteDimension removes a variant spec
func (s *AdminService) DeleteDimension(c *gin.Context) {
	if err := s.dimensions.DeleteDimension(c.Request.Context(), c.Param("id")); err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// GetDimension returns one variant spec
func (s *AdminService) GetDimension(c *gin.Context) {
	dim, err := s.dimensions.GetDimension(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toDimensionResponse(dim))
}

// ListDimensions returns every variant spec
func (s *AdminService) ListDimensions(c *gin.Context) {
	dims, err := s.dimensions.ListDimensions(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, lo.Map(dims, func(d *biz.Dimension, _ int) *DimensionResponse {
		return toDimensionResponse(d)
	}))
}

// ListOrphans returns a page of files nothing references
func (s *AdminService) ListOrphans(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orphans, err := s.orphans.FindOrphans(c.Request.Context(), limit, offset)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, lo.Map(orphans, func(f *biz.File, _ int) *FileResponse {
		return toFileResponse(f)
	}))
}

// CountOrphans reports how many unreferenced files exist
func (s *AdminService) CountOrphans(c *gin.Context) {
	count, err := s.orphans.CountOrphans(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

// QueueOrphanCleanup schedules one file's delayed reclamation
func (s *AdminService) QueueOrphanCleanup(c *gin.Context) {
	if err := s.orphans.QueueCleanup(c.Request.Context(), c.Param("id")); err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"queued": true})
}

// SweepOrphans queues reclamation for every orphan found
func (s *AdminService) SweepOrphans(c *gin.Context) {
	queued, err := s.orphans.Sweep(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"queued": queued})
}

// QueueStats reports the task queue depths
func (s *AdminService) QueueStats(c *gin.Context) {
	ctx := c.Request.Context()

	ready, err := s.queue.ReadySize(ctx)
	if err != nil {
		s.handleError(c, err)
		return
	}
	delayed, err := s.queue.DelayedSize(ctx)
	if err != nil {
		s.handleError(c, err)
		return
	}
	processing, err := s.queue.ProcessingCount(ctx)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, &QueueStatsResponse{
		Ready:      ready,
		Delayed:    delayed,
		Processing: processing,
	})
}

func (s *AdminService) handleError(c *gin.Context, err error) {
	switch {
	case biz.IsNotFound(err):
		response.NotFound(c, err.Error())
	case errors.Is(err, biz.ErrValidation):
		response.BadRequest(c, err.Error())
	default:
		s.logger.WithContext(c.Request.Context()).Error("admin request failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "internal server error")
	}
}
