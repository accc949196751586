package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/pkg/logger"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

type stubDimensionRepo struct {
	dims map[string]*biz.Dimension
}

func (r *stubDimensionRepo) Create(ctx context.Context, d *biz.Dimension) error {
	r.dims[d.ID] = d
	return nil
}

func (r *stubDimensionRepo) Update(ctx context.Context, d *biz.Dimension) error {
	if _, ok := r.dims[d.ID]; !ok {
		return fmt.Errorf("%w: dimension %s", biz.ErrNotFound, d.ID)
	}
	r.dims[d.ID] = d
	return nil
}

func (r *stubDimensionRepo) Delete(ctx context.Context, id string) error {
	delete(r.dims, id)
	return nil
}

func (r *stubDimensionRepo) GetByID(ctx context.Context, id string) (*biz.Dimension, error) {
	d, ok := r.dims[id]
	if !ok {
		return nil, fmt.Errorf("%w: dimension %s", biz.ErrNotFound, id)
	}
	return d, nil
}

func (r *stubDimensionRepo) List(ctx context.Context) ([]*biz.Dimension, error) {
	var out []*biz.Dimension
	for _, d := range r.dims {
		out = append(out, d)
	}
	return out, nil
}

func (r *stubDimensionRepo) ListEnabled(ctx context.Context) ([]*biz.Dimension, error) {
	var out []*biz.Dimension
	for _, d := range r.dims {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *stubDimensionRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.dims)), nil
}

func newDimensionTestRouter(t *testing.T, dims ...*biz.Dimension) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &stubDimensionRepo{dims: make(map[string]*biz.Dimension)}
	for _, d := range dims {
		repo.dims[d.ID] = d
	}

	log, err := logger.New(nil)
	require.NoError(t, err)

	svc := NewAdminService(nil, biz.NewDimensionUseCase(repo, zap.NewNop()), nil, nil, log)

	router := gin.New()
	router.GET("/admin/dimensions/:id", svc.GetDimension)
	return router
}

func TestGetDimensionHandler(t *testing.T) {
	router := newDimensionTestRouter(t, &biz.Dimension{
		ID: "d1", Name: "thumbnail", Width: 256, Height: 256,
		Quality: 80, Format: "jpeg", AppliesTo: biz.AppliesToImage, Enabled: true,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/dimensions/d1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Code int                `json:"code"`
		Data *DimensionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Zero(t, envelope.Code)
	require.NotNil(t, envelope.Data)
	assert.Equal(t, "thumbnail", envelope.Data.Name)
	assert.Equal(t, 256, envelope.Data.Width)
	assert.Equal(t, "jpeg", envelope.Data.Format)
}

func TestGetDimensionHandlerNotFound(t *testing.T) {
	router := newDimensionTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/dimensions/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
