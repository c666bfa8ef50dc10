package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	perrors "github.com/a3tai/survey-pdf-processor/internal/errors"
)

// Validator handles PDF file validation operations
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator. A maxFileSize of 0 disables
// the size check.
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidatePDF checks that filePath is a readable PDF within the size
// limit and returns its page count
func (v *Validator) ValidatePDF(filePath string) (int, error) {
	if filePath == "" {
		return 0, validationError("path cannot be empty", filePath)
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return 0, validationError("file does not exist", filePath)
	}
	if err != nil {
		return 0, perrors.Wrap(perrors.ErrorTypeValidation, "cannot access file", err).WithFile(filePath)
	}

	if err := v.ValidateFileInfo(filePath, fileInfo); err != nil {
		return 0, err
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return 0, perrors.Wrap(perrors.ErrorTypeValidation, "invalid PDF file", err).WithFile(filePath)
	}
	defer f.Close()

	pages := r.NumPage()
	if pages < 1 {
		return 0, validationError("PDF has no pages", filePath)
	}

	return pages, nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return validationError("path is a directory, not a file", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return validationError("file is not a PDF", filePath)
	}

	if fileInfo.Size() == 0 {
		return validationError("file is empty", filePath)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return validationError(fmt.Sprintf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize), filePath)
	}

	return nil
}

func validationError(msg, filePath string) error {
	return perrors.New(perrors.ErrorTypeValidation, msg).WithFile(filePath)
}
