package probe

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

// Renderer renders dimensions for images in-process and for videos via
// ffmpeg. It implements biz.VariantRenderer.
type Renderer struct {
	video  *FFmpeg
	logger *zap.Logger
}

// NewRenderer creates the composite renderer
func NewRenderer(logger *zap.Logger) *Renderer {
	return &Renderer{
		video:  NewFFmpeg(logger),
		logger: logger,
	}
}

// Render produces one scaled rendition in a scratch file the caller removes
func (r *Renderer) Render(ctx context.Context, srcPath, fileType string, dim *biz.Dimension) (*biz.RenderResult, error) {
	switch fileType {
	case biz.FileTypeImage:
		return r.renderImage(srcPath, dim)
	case biz.FileTypeVideo:
		return r.video.Render(ctx, srcPath, dim)
	default:
		return nil, fmt.Errorf("%w: no renderer for file type %q", biz.ErrValidation, fileType)
	}
}

func (r *Renderer) renderImage(srcPath string, dim *biz.Dimension) (*biz.RenderResult, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), dim.Width, dim.Height)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	out, err := os.CreateTemp("", "bytevault-render-*."+imageExt(dim.Format))
	if err != nil {
		return nil, err
	}
	defer out.Close()

	mimeType := "image/jpeg"
	switch dim.Format {
	case "png":
		mimeType = "image/png"
		err = png.Encode(out, dst)
	default:
		quality := dim.Quality
		if quality <= 0 {
			quality = 85
		}
		err = jpeg.Encode(out, dst, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		os.Remove(out.Name())
		return nil, fmt.Errorf("encode image: %w", err)
	}

	return &biz.RenderResult{
		Path:     out.Name(),
		MimeType: mimeType,
		Width:    w,
		Height:   h,
	}, nil
}

// fitWithin scales source geometry down to fit the box, preserving aspect
// ratio and never upscaling.
func fitWithin(srcW, srcH, boxW, boxH int) (int, int) {
	if srcW <= boxW && srcH <= boxH {
		return srcW, srcH
	}

	scaleW := float64(boxW) / float64(srcW)
	scaleH := float64(boxH) / float64(srcH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	w := int(float64(srcW) * scale)
	h := int(float64(srcH) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func imageExt(format string) string {
	if format == "png" {
		return "png"
	}
	return "jpg"
}
