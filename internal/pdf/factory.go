package pdf

import (
	"fmt"
)

// Renderer names accepted by NewRenderer
const (
	RendererAuto     = "auto"
	RendererPDFCPU   = "pdfcpu"
	RendererPDFToPPM = "pdftoppm"
)

// NewRenderer creates the renderer named by kind. "auto" prefers a true
// rasterizer when pdftoppm is installed and falls back to extracting the
// embedded scan with pdfcpu.
func NewRenderer(kind string, opts RenderOptions) (Renderer, error) {
	switch kind {
	case RendererPDFCPU:
		return NewPDFCPURenderer(), nil
	case RendererPDFToPPM:
		return NewPDFToPPMRenderer(opts.PDFToPPMPath, opts.DPI), nil
	case RendererAuto, "":
		poppler := NewPDFToPPMRenderer(opts.PDFToPPMPath, opts.DPI)
		if poppler.IsAvailable() {
			return poppler, nil
		}
		return NewPDFCPURenderer(), nil
	default:
		return nil, fmt.Errorf("unknown renderer: %s", kind)
	}
}
