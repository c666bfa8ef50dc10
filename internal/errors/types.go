package errors

import (
	"errors"
	"fmt"
	"time"
)

// ProcessingError represents a survey processing error with the context
// needed to report it to the user
type ProcessingError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	FilePath   string    `json:"file_path,omitempty"`
	PageNumber int       `json:"page_number,omitempty"` // 1-based, 0 when not page specific
	Err        error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorType represents the stage of the pipeline an error came from
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfig
	ErrorTypeValidation
	ErrorTypeRender
	ErrorTypeExtraction
	ErrorTypeMerge
	ErrorTypeWrite
)

// Error implements the error interface
func (e *ProcessingError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.FilePath != "" {
		msg += fmt.Sprintf(" (file: %s)", e.FilePath)
	}
	if e.PageNumber > 0 {
		msg += fmt.Sprintf(" (page: %d)", e.PageNumber)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeRender:
		return "RENDER"
	case ErrorTypeExtraction:
		return "EXTRACTION"
	case ErrorTypeMerge:
		return "MERGE"
	case ErrorTypeWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// IsFatal reports whether an error of this type aborts the whole run.
// Extraction errors are page-level and only mark the page as failed.
func (et ErrorType) IsFatal() bool {
	return et != ErrorTypeExtraction
}

// New creates a new ProcessingError
func New(errorType ErrorType, message string) *ProcessingError {
	return &ProcessingError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps err as a ProcessingError of the given type
func Wrap(errorType ErrorType, message string, err error) *ProcessingError {
	e := New(errorType, message)
	e.Err = err
	return e
}

// WithFile adds file path information
func (e *ProcessingError) WithFile(filePath string) *ProcessingError {
	e.FilePath = filePath
	return e
}

// WithPage adds 1-based page number information
func (e *ProcessingError) WithPage(pageNumber int) *ProcessingError {
	e.PageNumber = pageNumber
	return e
}

// IsFatal reports whether this error aborts the run
func (e *ProcessingError) IsFatal() bool {
	return e.Type.IsFatal()
}

// TypeOf returns the ErrorType of the first ProcessingError in err's
// chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries a ProcessingError of the given type
func Is(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// ErrorCollection gathers page-level errors of one run
type ErrorCollection struct {
	Errors   []*ProcessingError `json:"errors"`
	FilePath string             `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*ProcessingError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err *ProcessingError) {
	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}
	ec.Errors = append(ec.Errors, err)
}

// Pages returns the 1-based page numbers of collected errors
func (ec *ErrorCollection) Pages() []int {
	pages := make([]int, 0, len(ec.Errors))
	for _, err := range ec.Errors {
		if err.PageNumber > 0 {
			pages = append(pages, err.PageNumber)
		}
	}
	return pages
}

// Count returns the number of collected errors
func (ec *ErrorCollection) Count() int {
	return len(ec.Errors)
}

// Summary returns a text summary of all errors
func (ec *ErrorCollection) Summary() string {
	if len(ec.Errors) == 0 {
		return "No page errors"
	}
	return fmt.Sprintf("%d page(s) failed extraction: %v", len(ec.Errors), ec.Pages())
}
