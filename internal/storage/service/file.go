package service

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/pkg/logger"
	"github.com/bytevault/bytevault/internal/pkg/response"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// maxUploadBytes caps a single upload at 1 GiB
const maxUploadBytes = 1 << 30

// FileService is the HTTP surface of the upload and retrieval pipeline
type FileService struct {
	ingest *biz.IngestUseCase
	files  *biz.FileUseCase
	logger *logger.Logger
}

// NewFileService creates the file HTTP service
func NewFileService(ingest *biz.IngestUseCase, files *biz.FileUseCase, log *logger.Logger) *FileService {
	return &FileService{
		ingest: ingest,
		files:  files,
		logger: log,
	}
}

// Upload ingests a multipart upload. The optional redundancy form field asks
// for a copy count; out-of-range values are clamped server-side.
func (s *FileService) Upload(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file field is required")
		return
	}
	if header.Size > maxUploadBytes {
		response.BadRequest(c, "file too large")
		return
	}

	copies := 1
	if v := c.PostForm("redundancy"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(c, "redundancy must be an integer")
			return
		}
		copies = n
	}

	src, err := header.Open()
	if err != nil {
		response.InternalError(c, "failed to read upload")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		response.InternalError(c, "failed to read upload")
		return
	}
	if len(data) > maxUploadBytes {
		response.BadRequest(c, "file too large")
		return
	}

	result, err := s.ingest.Ingest(c.Request.Context(), userID, header.Filename, data, copies)
	if err != nil {
		s.handleError(c, err)
		return
	}

	resp := &UploadResponse{
		File:      toFileResponse(result.File),
		Duplicate: result.Duplicate,
		Copies:    result.Copies,
	}
	if result.Duplicate {
		response.Success(c, resp)
		return
	}
	response.Created(c, resp)
}

// GetFile returns one file's registry record
func (s *FileService) GetFile(c *gin.Context) {
	file, err := s.ownedFile(c)
	if err != nil {
		return
	}
	response.Success(c, toFileResponse(file))
}

// GetFileByChecksum looks a file up by its content hash for the caller
func (s *FileService) GetFileByChecksum(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	file, err := s.files.GetFileByChecksum(c.Request.Context(), userID, c.Param("checksum"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toFileResponse(file))
}

// ListInstances returns every rendition of a file
func (s *FileService) ListInstances(c *gin.Context) {
	file, err := s.ownedFile(c)
	if err != nil {
		return
	}

	instances, err := s.files.ListInstances(c.Request.Context(), file.ID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	resp := make([]*InstanceResponse, len(instances))
	for i, inst := range instances {
		resp[i] = toInstanceResponse(inst)
	}
	response.Success(c, resp)
}

// PublicURL resolves a URL for one rendition. Variant defaults to the
// original.
func (s *FileService) PublicURL(c *gin.Context) {
	file, err := s.ownedFile(c)
	if err != nil {
		return
	}

	url, err := s.files.PublicURL(c.Request.Context(), file.ID, c.Query("variant"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	if url == "" {
		response.NotFound(c, "no public URL available")
		return
	}
	response.Success(c, &URLResponse{URL: url})
}

// Download streams one rendition's bytes
func (s *FileService) Download(c *gin.Context) {
	file, err := s.ownedFile(c)
	if err != nil {
		return
	}

	data, inst, err := s.files.RetrieveContent(c.Request.Context(), file.ID, c.Query("variant"))
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, inst.MimeType, data)
}

// DeleteFile removes a file, its renditions and its physical copies
func (s *FileService) DeleteFile(c *gin.Context) {
	file, err := s.ownedFile(c)
	if err != nil {
		return
	}

	if err := s.files.DeleteCompletely(c.Request.Context(), file.ID); err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// ownedFile loads the :id file and enforces that it belongs to the caller.
// On failure it writes the response itself and returns a non-nil error.
func (s *FileService) ownedFile(c *gin.Context) (*biz.File, error) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return nil, errors.New("unauthorized")
	}

	file, err := s.files.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return nil, err
	}
	if file.UserID != userID {
		// Hide other users' files entirely
		response.NotFound(c, "file not found")
		return nil, errors.New("forbidden")
	}
	return file, nil
}

func (s *FileService) handleError(c *gin.Context, err error) {
	switch {
	case biz.IsNotFound(err):
		response.NotFound(c, err.Error())
	case errors.Is(err, biz.ErrValidation), errors.Is(err, biz.ErrEmptyFile):
		response.BadRequest(c, err.Error())
	case errors.Is(err, biz.ErrNoBucketsConfigured):
		response.Error(c, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.WithContext(c.Request.Context()).Error("request failed", zap.Error(err))
		response.InternalError(c, "internal server error")
	}
}
