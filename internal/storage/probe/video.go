package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

const ffprobeTimeout = 30 * time.Second

// FFprobe shells out to ffprobe for container and stream metadata
type FFprobe struct {
	logger *zap.Logger
}

// NewFFprobe creates an ffprobe-backed video prober
func NewFFprobe(logger *zap.Logger) *FFprobe {
	return &FFprobe{logger: logger}
}

// Probe runs ffprobe and picks the first video stream's geometry plus the
// container duration.
func (p *FFprobe) Probe(ctx context.Context, path string) (*biz.MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	info := &biz.MediaInfo{
		Format: gjson.GetBytes(out, "format.format_name").String(),
	}

	if d := gjson.GetBytes(out, "format.duration").String(); d != "" {
		if seconds, err := strconv.ParseFloat(d, 64); err == nil {
			info.DurationSeconds = &seconds
		}
	}

	for _, stream := range gjson.GetBytes(out, "streams").Array() {
		if stream.Get("codec_type").String() != "video" {
			continue
		}
		w := int(stream.Get("width").Int())
		h := int(stream.Get("height").Int())
		if w > 0 && h > 0 {
			info.Width = &w
			info.Height = &h
		}
		break
	}

	return info, nil
}
