package probe

import (
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

// probeDocument opens the document with MuPDF and reports its page count and
// the first page's pixel geometry.
func probeDocument(path string) (*biz.MediaInfo, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	info := &biz.MediaInfo{Pages: &pages}

	if pages > 0 {
		img, err := doc.Image(0)
		if err == nil {
			w := img.Bounds().Dx()
			h := img.Bounds().Dy()
			info.Width = &w
			info.Height = &h
		}
	}

	return info, nil
}
