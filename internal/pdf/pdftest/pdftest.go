// Package pdftest builds small scanned-style PDFs for tests.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ScannedPDF writes a PDF with one full-page PNG per page into a temp dir
// and returns its path. Page i carries a (40+i)x60 grey image.
func ScannedPDF(t testing.TB, pages int) string {
	t.Helper()
	dir := t.TempDir()

	var imgFiles []string
	for i := 0; i < pages; i++ {
		path := filepath.Join(dir, fmt.Sprintf("scan-%03d.png", i))
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("create page image: %v", err)
		}
		if err := png.Encode(f, Gray(40+i, 60, uint8(40*i))); err != nil {
			t.Fatalf("encode page image: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close page image: %v", err)
		}
		imgFiles = append(imgFiles, path)
	}

	out := filepath.Join(dir, "surveys.pdf")
	if err := api.ImportImagesFile(imgFiles, out, nil, model.NewDefaultConfiguration()); err != nil {
		t.Fatalf("build scanned PDF: %v", err)
	}
	return out
}

// StampedPDF writes a one-page PDF carrying two grey images: a small
// "logo" drawn in a corner and a full-page "scan". The logo has the lower
// object number. Both are flate-compressed DeviceGray images.
func StampedPDF(t testing.TB, logo, scan image.Point) string {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	obj := func(body string, stream []byte) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\n", len(offsets), body)
		if stream != nil {
			buf.WriteString("stream\n")
			buf.Write(stream)
			buf.WriteString("\nendstream\n")
		}
		buf.WriteString("endobj\n")
	}
	imageObj := func(size image.Point, shade uint8) {
		raw := bytes.Repeat([]byte{shade}, size.X*size.Y)
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		if _, err := zw.Write(raw); err != nil {
			t.Fatalf("compress image: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("compress image: %v", err)
		}
		obj(fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray "+
			"/BitsPerComponent 8 /Filter /FlateDecode /Length %d >>", size.X, size.Y, z.Len()), z.Bytes())
	}

	content := []byte(fmt.Sprintf("q %d 0 0 %d 0 0 cm /Scan Do Q\nq %d 0 0 %d 10 10 cm /Logo Do Q",
		scan.X, scan.Y, logo.X, logo.Y))

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>", nil)
	obj("<< /Type /Pages /Kids [3 0 R] /Count 1 >>", nil)
	obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] "+
		"/Resources << /XObject << /Logo 4 0 R /Scan 5 0 R >> >> /Contents 6 0 R >>", scan.X, scan.Y), nil)
	imageObj(logo, 10)
	imageObj(scan, 200)
	obj(fmt.Sprintf("<< /Length %d >>", len(content)), content)

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	out := filepath.Join(t.TempDir(), "stamped.pdf")
	if err := os.WriteFile(out, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write stamped PDF: %v", err)
	}
	return out
}

// Gray returns a w x h image filled with one shade
func Gray(w, h int, shade uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: shade})
		}
	}
	return img
}
