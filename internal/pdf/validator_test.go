package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/a3tai/survey-pdf-processor/internal/errors"
	"github.com/a3tai/survey-pdf-processor/internal/pdf/pdftest"
)

func TestValidator_ValidatePDF(t *testing.T) {
	dir := t.TempDir()

	emptyPDF := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(emptyPDF, nil, 0o600))

	textFile := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textFile, []byte("hello"), 0o600))

	garbagePDF := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbagePDF, []byte("this is not a pdf at all"), 0o600))

	bigPDF := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(bigPDF, make([]byte, 2048), 0o600))

	dirPDF := filepath.Join(dir, "folder.pdf")
	require.NoError(t, os.Mkdir(dirPDF, 0o750))

	validator := NewValidator(1024)

	tests := []struct {
		name    string
		path    string
		wantMsg string
	}{
		{"empty path", "", "path cannot be empty"},
		{"non-existent file", filepath.Join(dir, "missing.pdf"), "file does not exist"},
		{"directory", dirPDF, "path is a directory"},
		{"not a pdf extension", textFile, "file is not a PDF"},
		{"empty file", emptyPDF, "file is empty"},
		{"too large", bigPDF, "file too large"},
		{"garbage content", garbagePDF, "invalid PDF file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := validator.ValidatePDF(tt.path)
			require.Error(t, err)
			assert.Equal(t, 0, pages)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.True(t, perrors.Is(err, perrors.ErrorTypeValidation))
		})
	}
}

func TestValidator_ValidPDF(t *testing.T) {
	path := pdftest.ScannedPDF(t, 4)

	pages, err := NewValidator(10 * 1024 * 1024).ValidatePDF(path)
	require.NoError(t, err)
	assert.Equal(t, 4, pages)
}
