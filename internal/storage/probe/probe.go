// Package probe extracts media metadata from uploads and renders the
// configured variants. Probing is best effort: a file the tools cannot read
// yields empty metadata, not a failed ingest.
package probe

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

// Prober dispatches to the format-specific probers by mime type
type Prober struct {
	video  *FFprobe
	logger *zap.Logger
}

// NewProber creates the composite prober
func NewProber(logger *zap.Logger) *Prober {
	return &Prober{
		video:  NewFFprobe(logger),
		logger: logger,
	}
}

// Probe implements biz.MediaProber
func (p *Prober) Probe(ctx context.Context, path, mimeType string) (*biz.MediaInfo, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return probeImage(path)
	case strings.HasPrefix(mimeType, "video/"):
		return p.video.Probe(ctx, path)
	case mimeType == "application/pdf", mimeType == "application/epub+zip":
		return probeDocument(path)
	default:
		return &biz.MediaInfo{}, nil
	}
}
