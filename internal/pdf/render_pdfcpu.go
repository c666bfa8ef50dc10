package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG for DecodeConfig
	"image/png"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/tiff"

	perrors "github.com/a3tai/survey-pdf-processor/internal/errors"
)

// PDFCPURenderer renders scanned PDFs by extracting the embedded page
// image with pdfcpu. A scanned survey page is a single full-page image
// XObject, so no rasterization is needed.
type PDFCPURenderer struct{}

// NewPDFCPURenderer creates a pdfcpu backed renderer
func NewPDFCPURenderer() *PDFCPURenderer {
	return &PDFCPURenderer{}
}

// Name returns the renderer name
func (r *PDFCPURenderer) Name() string {
	return "pdfcpu"
}

// Render extracts the largest image of every page in page order
func (r *PDFCPURenderer) Render(ctx context.Context, path string) ([]PageImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrorTypeRender, "failed to open file", err).WithFile(path)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrorTypeRender, "failed to read PDF context", err).WithFile(path)
	}

	pages := make([]PageImage, 0, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		images, err := pdfcpu.ExtractPageImages(pdfCtx, pageNr, false)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrorTypeRender, "failed to extract page image", err).
				WithFile(path).WithPage(pageNr)
		}

		candidates, err := readImages(images)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrorTypeRender, "failed to read page image", err).
				WithFile(path).WithPage(pageNr)
		}

		img, ok := largestImage(candidates)
		if !ok {
			return nil, perrors.New(perrors.ErrorTypeRender, "no embedded image on page (not a scanned page?)").
				WithFile(path).WithPage(pageNr)
		}

		page, err := toPageImage(pageNr-1, img)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrorTypeRender, "failed to convert page image", err).
				WithFile(path).WithPage(pageNr)
		}
		pages = append(pages, page)
	}

	return pages, nil
}

// pageImageData is one embedded image with its stream read and its
// pixel size taken from the encoded header
type pageImageData struct {
	objNr    int
	fileType string
	data     []byte
	width    int
	height   int
}

// readImages reads every image stream of a page in object number order.
// pdfcpu leaves model.Image's size unset outside stub mode, so the size
// comes from decoding the image header.
func readImages(images map[int]model.Image) ([]pageImageData, error) {
	objNrs := make([]int, 0, len(images))
	for objNr := range images {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	out := make([]pageImageData, 0, len(objNrs))
	for _, objNr := range objNrs {
		img := images[objNr]
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return nil, fmt.Errorf("reading image stream %d: %w", objNr, err)
		}
		d := pageImageData{objNr: objNr, fileType: img.FileType, data: data}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			d.width, d.height = cfg.Width, cfg.Height
		}
		out = append(out, d)
	}
	return out, nil
}

// largestImage picks the image covering the most pixels. Ties go to the
// lowest object number so the choice is stable.
func largestImage(images []pageImageData) (pageImageData, bool) {
	var best pageImageData
	found := false
	for _, img := range images {
		if !found || img.width*img.height > best.width*best.height ||
			(img.width*img.height == best.width*best.height && img.objNr < best.objNr) {
			best = img
			found = true
		}
	}
	return best, found
}

// toPageImage converts an extracted image into a media type the
// extraction providers accept. JPEG and PNG pass through; TIFF (the
// output for CCITT fax scans) is re-encoded as PNG.
func toPageImage(index int, img pageImageData) (PageImage, error) {
	page := PageImage{
		Index:  index,
		Width:  img.width,
		Height: img.height,
	}

	switch strings.ToLower(img.fileType) {
	case "jpg", "jpeg":
		page.Data = img.data
		page.MediaType = MediaTypeJPEG
	case "png":
		page.Data = img.data
		page.MediaType = MediaTypePNG
	case "tif", "tiff":
		decoded, err := tiff.Decode(bytes.NewReader(img.data))
		if err != nil {
			return PageImage{}, fmt.Errorf("decoding tiff: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, decoded); err != nil {
			return PageImage{}, fmt.Errorf("encoding png: %w", err)
		}
		bounds := decoded.Bounds()
		page.Data = buf.Bytes()
		page.MediaType = MediaTypePNG
		page.Width = bounds.Dx()
		page.Height = bounds.Dy()
	default:
		return PageImage{}, fmt.Errorf("unsupported image type %q", img.fileType)
	}

	return page, nil
}
