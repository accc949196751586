package probe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

const ffmpegTimeout = 10 * time.Minute

// FFmpeg shells out to ffmpeg for video transcodes
type FFmpeg struct {
	prober *FFprobe
	logger *zap.Logger
}

// NewFFmpeg creates an ffmpeg-backed video renderer
func NewFFmpeg(logger *zap.Logger) *FFmpeg {
	return &FFmpeg{
		prober: NewFFprobe(logger),
		logger: logger,
	}
}

// Render transcodes the source to fit the dimension's box. The scale filter
// keeps the aspect ratio and rounds to even pixel counts for the encoder.
func (f *FFmpeg) Render(ctx context.Context, srcPath string, dim *biz.Dimension) (*biz.RenderResult, error) {
	out, err := os.CreateTemp("", "bytevault-render-*.mp4")
	if err != nil {
		return nil, err
	}
	outPath := out.Name()
	out.Close()

	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	scale := fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2", dim.Width, dim.Height)
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", srcPath,
		"-vf", scale,
		"-c:v", "libx264",
		"-preset", "fast",
		"-movflags", "+faststart",
		"-c:a", "aac",
		outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outPath)
		f.logger.Error("ffmpeg transcode failed",
			zap.String("src", srcPath),
			zap.String("variant", dim.Name),
			zap.ByteString("output", tail(output, 2048)),
			zap.Error(err))
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	result := &biz.RenderResult{
		Path:     outPath,
		MimeType: "video/mp4",
	}

	// The encoder decides the final geometry; read it back off the output.
	if info, err := f.prober.Probe(ctx, outPath); err == nil {
		if info.Width != nil {
			result.Width = *info.Width
		}
		if info.Height != nil {
			result.Height = *info.Height
		}
	}

	return result, nil
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
