package probe

import (
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

// probeImage reads the image header without decoding pixels
func probeImage(path string) (*biz.MediaInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}

	return &biz.MediaInfo{
		Width:  &cfg.Width,
		Height: &cfg.Height,
		Format: format,
	}, nil
}
