package pdf

import (
	"context"
)

// Media types the extraction providers accept
const (
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
)

// PageImage is one rendered page ready to be sent for extraction
type PageImage struct {
	Index     int    `json:"index"` // zero-based page index
	Data      []byte `json:"-"`
	MediaType string `json:"media_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// PageNumber returns the 1-based page number
func (p PageImage) PageNumber() int {
	return p.Index + 1
}

// Renderer turns a PDF file into one image per page, in page order
type Renderer interface {
	Render(ctx context.Context, path string) ([]PageImage, error)
	Name() string
}

// RenderOptions configures renderer construction
type RenderOptions struct {
	DPI          int    // rasterization resolution for pdftoppm
	PDFToPPMPath string // pdftoppm binary; looked up on PATH when empty
}
