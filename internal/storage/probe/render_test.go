package probe

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

func writeTestPNG(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, boxW, boxH int
		wantW, wantH           int
	}{
		{"landscape downscale", 1600, 900, 640, 640, 640, 360},
		{"portrait downscale", 900, 1600, 640, 640, 360, 640},
		{"already fits", 100, 80, 640, 640, 100, 80},
		{"exact fit", 640, 640, 640, 640, 640, 640},
		{"extreme aspect stays at least one pixel", 10000, 2, 64, 64, 64, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fitWithin(tt.srcW, tt.srcH, tt.boxW, tt.boxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestRenderImageScalesDown(t *testing.T) {
	src := writeTestPNG(t, 800, 400)
	renderer := NewRenderer(zap.NewNop())

	dim := &biz.Dimension{Name: "thumbnail", Width: 200, Height: 200, Quality: 80, Format: "jpeg", AppliesTo: biz.AppliesToImage}
	out, err := renderer.Render(context.Background(), src, biz.FileTypeImage, dim)
	require.NoError(t, err)
	defer os.Remove(out.Path)

	assert.Equal(t, "image/jpeg", out.MimeType)
	assert.Equal(t, 200, out.Width)
	assert.Equal(t, 100, out.Height)

	f, err := os.Open(out.Path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestRenderImagePNGFormat(t *testing.T) {
	src := writeTestPNG(t, 300, 300)
	renderer := NewRenderer(zap.NewNop())

	dim := &biz.Dimension{Name: "small", Width: 100, Height: 100, Format: "png", AppliesTo: biz.AppliesToImage}
	out, err := renderer.Render(context.Background(), src, biz.FileTypeImage, dim)
	require.NoError(t, err)
	defer os.Remove(out.Path)

	assert.Equal(t, "image/png", out.MimeType)

	f, err := os.Open(out.Path)
	require.NoError(t, err)
	defer f.Close()
	_, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestRenderRejectsUnknownFileType(t *testing.T) {
	renderer := NewRenderer(zap.NewNop())
	dim := &biz.Dimension{Name: "x", Width: 10, Height: 10, AppliesTo: biz.AppliesToImage}

	_, err := renderer.Render(context.Background(), "whatever", biz.FileTypeDocument, dim)
	assert.ErrorIs(t, err, biz.ErrValidation)
}

func TestProbeImage(t *testing.T) {
	src := writeTestPNG(t, 123, 45)
	prober := NewProber(zap.NewNop())

	info, err := prober.Probe(context.Background(), src, "image/png")
	require.NoError(t, err)
	require.NotNil(t, info.Width)
	require.NotNil(t, info.Height)
	assert.Equal(t, 123, *info.Width)
	assert.Equal(t, 45, *info.Height)
	assert.Equal(t, "png", info.Format)
}

func TestProbeUnknownMimeIsEmptyNotError(t *testing.T) {
	prober := NewProber(zap.NewNop())

	info, err := prober.Probe(context.Background(), "does-not-matter", "application/zip")
	require.NoError(t, err)
	assert.Nil(t, info.Width)
	assert.Nil(t, info.Pages)
}
