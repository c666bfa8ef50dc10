// Package survey turns per-page field extractions into survey records.
//
// A survey spans a fixed number of consecutive pages (two by default).
// Merge groups page extractions in physical page order and combines each
// group into one SurveyRecord under a fixed collision policy. Pages whose
// extraction failed contribute no fields; the resulting record carries a
// failure marker instead so callers can flag or skip the row.
package survey

import (
	"errors"
	"fmt"
)

// DefaultPagesPerRecord is the number of pages a single survey spans
const DefaultPagesPerRecord = 2

var (
	// ErrPageOrder is returned when extractions are not contiguous from page 0
	ErrPageOrder = errors.New("page extractions out of order")

	// ErrIncompleteRecord is returned under TrailingFail when the page
	// count is not a multiple of the pages per record
	ErrIncompleteRecord = errors.New("incomplete survey record")

	// ErrInvalidOptions is returned for unusable MergeOptions
	ErrInvalidOptions = errors.New("invalid merge options")
)

// CollisionPolicy decides what happens when two pages of one record
// extract the same field label
type CollisionPolicy string

const (
	// CollisionLast keeps the value from the later page
	CollisionLast CollisionPolicy = "last"
	// CollisionFirst keeps the value from the earlier page
	CollisionFirst CollisionPolicy = "first"
	// CollisionNamespace prefixes colliding labels with their page number
	CollisionNamespace CollisionPolicy = "namespace"
)

// TrailingPolicy decides what happens to pages left over when the page
// count is not a multiple of the pages per record
type TrailingPolicy string

const (
	// TrailingPartial emits a partial record from the leftover pages
	TrailingPartial TrailingPolicy = "partial"
	// TrailingDrop drops the leftover pages with a warning
	TrailingDrop TrailingPolicy = "drop"
	// TrailingFail fails the merge
	TrailingFail TrailingPolicy = "fail"
)

// RecordStatus summarises the health of a SurveyRecord
type RecordStatus string

const (
	// StatusOK means every page of the record was extracted
	StatusOK RecordStatus = "ok"
	// StatusPartial marks a trailing record with fewer pages than configured
	StatusPartial RecordStatus = "partial"
	// StatusIncomplete means some, but not all, pages failed
	StatusIncomplete RecordStatus = "incomplete"
	// StatusFailed means every page of the record failed
	StatusFailed RecordStatus = "failed"
)

// PageExtraction is the result of extracting fields from one rendered page
type PageExtraction struct {
	Index  int       // zero-based page index
	Fields *FieldMap // nil when Err is set
	Err    error
}

// Failed reports whether extraction failed for this page
func (p PageExtraction) Failed() bool {
	return p.Err != nil
}

// PageFailure marks a page of a record whose extraction failed
type PageFailure struct {
	Page    int    `json:"page"`
	Message string `json:"message"`
}

// SurveyRecord is one completed survey merged from consecutive pages
type SurveyRecord struct {
	ID       int           `json:"response_id"`
	Pages    []int         `json:"pages"`
	Fields   *FieldMap     `json:"-"`
	Failures []PageFailure `json:"failures,omitempty"`
	Partial  bool          `json:"partial"`
}

// Status returns the record status
func (r SurveyRecord) Status() RecordStatus {
	switch {
	case len(r.Failures) > 0 && len(r.Failures) == len(r.Pages):
		return StatusFailed
	case len(r.Failures) > 0:
		return StatusIncomplete
	case r.Partial:
		return StatusPartial
	default:
		return StatusOK
	}
}

// MergeOptions configures Merge
type MergeOptions struct {
	PagesPerRecord int
	Collision      CollisionPolicy
	Trailing       TrailingPolicy
}

// DefaultMergeOptions pairs consecutive pages, lets the later page win
// collisions and emits a partial record for a leftover page
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		PagesPerRecord: DefaultPagesPerRecord,
		Collision:      CollisionLast,
		Trailing:       TrailingPartial,
	}
}

// Validate checks that the options name known policies
func (o MergeOptions) Validate() error {
	if o.PagesPerRecord < 1 {
		return fmt.Errorf("%w: pages per record must be at least 1, got %d", ErrInvalidOptions, o.PagesPerRecord)
	}
	switch o.Collision {
	case CollisionLast, CollisionFirst, CollisionNamespace:
	default:
		return fmt.Errorf("%w: unknown collision policy %q", ErrInvalidOptions, o.Collision)
	}
	switch o.Trailing {
	case TrailingPartial, TrailingDrop, TrailingFail:
	default:
		return fmt.Errorf("%w: unknown trailing page policy %q", ErrInvalidOptions, o.Trailing)
	}
	return nil
}

// MergeResult holds the records built by Merge along with any pages that
// were dropped and human-readable warnings
type MergeResult struct {
	Records  []SurveyRecord
	Dropped  []int
	Warnings []string
}
