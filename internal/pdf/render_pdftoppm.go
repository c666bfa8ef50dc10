package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	perrors "github.com/a3tai/survey-pdf-processor/internal/errors"
)

const pdftoppmBinary = "pdftoppm"

// PDFToPPMRenderer rasterizes every page with poppler's pdftoppm. It
// handles PDFs whose pages are not a single embedded image.
type PDFToPPMRenderer struct {
	binary string
	dpi    int
}

// NewPDFToPPMRenderer creates a pdftoppm backed renderer
func NewPDFToPPMRenderer(binary string, dpi int) *PDFToPPMRenderer {
	if binary == "" {
		binary = pdftoppmBinary
	}
	return &PDFToPPMRenderer{binary: binary, dpi: dpi}
}

// Name returns the renderer name
func (r *PDFToPPMRenderer) Name() string {
	return "pdftoppm"
}

// IsAvailable reports whether the pdftoppm binary can be found
func (r *PDFToPPMRenderer) IsAvailable() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Render rasterizes all pages to PNG
func (r *PDFToPPMRenderer) Render(ctx context.Context, path string) ([]PageImage, error) {
	if !r.IsAvailable() {
		return nil, perrors.New(perrors.ErrorTypeRender,
			"pdftoppm not found: install poppler or use --renderer=pdfcpu").WithFile(path)
	}

	tempDir, err := os.MkdirTemp("", "survey-pages-*")
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrorTypeRender, "failed to create temp directory", err)
	}
	defer os.RemoveAll(tempDir)

	outputBase := filepath.Join(tempDir, "page")
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, "-png", "-r", strconv.Itoa(r.dpi), path, outputBase)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, perrors.Wrap(perrors.ErrorTypeRender,
			fmt.Sprintf("pdftoppm failed: %s", strings.TrimSpace(stderr.String())), err).WithFile(path)
	}

	files, err := pageFiles(tempDir)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrorTypeRender, "failed to list rendered pages", err).WithFile(path)
	}
	if len(files) == 0 {
		return nil, perrors.New(perrors.ErrorTypeRender, "pdftoppm produced no pages").WithFile(path)
	}

	pages := make([]PageImage, 0, len(files))
	for i, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrorTypeRender, "failed to read rendered page", err).
				WithFile(path).WithPage(i + 1)
		}

		page := PageImage{Index: i, Data: data, MediaType: MediaTypePNG}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			page.Width = cfg.Width
			page.Height = cfg.Height
		}
		pages = append(pages, page)
	}

	return pages, nil
}

// pageFiles returns the page-N.png files in dir ordered by page number.
// pdftoppm zero-pads N to the width of the page count, so names alone do
// not sort numerically.
func pageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type numbered struct {
		n    int
		path string
	}
	var found []numbered
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "page-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".png"))
		if err != nil {
			continue
		}
		found = append(found, numbered{n: n, path: filepath.Join(dir, name)})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}
