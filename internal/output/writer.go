package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/survey-pdf-processor/internal/config"
	perrors "github.com/a3tai/survey-pdf-processor/internal/errors"
)

// SheetName is the worksheet XLSX output is written to
const SheetName = "Responses"

// Writer persists a Table
type Writer interface {
	Write(path string, table Table) error
}

// NewWriter returns the writer for a resolved format (csv or xlsx)
func NewWriter(format string) (Writer, error) {
	switch format {
	case config.FormatCSV:
		return &CSVWriter{}, nil
	case config.FormatXLSX:
		return &XLSXWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// CSVWriter writes RFC 4180 CSV with a header row
type CSVWriter struct{}

func (w *CSVWriter) Write(path string, table Table) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(table.Header); err != nil {
		return writeError("failed to encode header", path, err)
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		return writeError("failed to encode rows", path, err)
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return writeError("failed to write output file", path, err)
	}
	return nil
}

// XLSXWriter writes a workbook with a single Responses sheet
type XLSXWriter struct{}

func (w *XLSXWriter) Write(path string, table Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, SheetName); err != nil {
		return writeError("failed to name worksheet", path, err)
	}

	if err := setRow(f, 1, table.Header); err != nil {
		return writeError("failed to write header", path, err)
	}
	for i, row := range table.Rows {
		if err := setRow(f, i+2, row); err != nil {
			return writeError(fmt.Sprintf("failed to write row %d", i+1), path, err)
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return writeError("failed to freeze header row", path, err)
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return writeError("failed to save workbook", path, err)
	}
	return nil
}

func setRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &row)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return writeError("failed to create output directory", path, err)
	}
	return nil
}

func writeError(msg, path string, err error) error {
	return perrors.Wrap(perrors.ErrorTypeWrite, msg, err).WithFile(path)
}
