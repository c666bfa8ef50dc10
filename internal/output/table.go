// Package output renders merged survey records as a table and writes it
// as CSV or XLSX.
package output

import (
	"fmt"
	"slices"
	"strconv"
	"unicode"

	"github.com/a3tai/survey-pdf-processor/internal/survey"
)

// Fixed leading columns
const (
	ColumnResponseID = "response_id"
	ColumnPages      = "pages"
	ColumnStatus     = "status"
)

// Table is a header plus rows of equal width
type Table struct {
	Header []string
	Rows   [][]string
}

// BuildTable lays records out one per row. The header is the fixed
// columns followed by every field label seen in any record, naturally
// sorted. Labels a record does not have are left empty.
func BuildTable(records []survey.SurveyRecord) Table {
	seen := make(map[string]bool)
	var labels []string
	for _, r := range records {
		for _, label := range r.Fields.Keys() {
			if !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
		}
	}
	slices.SortStableFunc(labels, naturalCompare)

	header := append([]string{ColumnResponseID, ColumnPages, ColumnStatus}, labels...)
	table := Table{
		Header: header,
		Rows:   make([][]string, 0, len(records)),
	}

	for _, r := range records {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(r.ID), pageSpan(r.Pages), string(r.Status()))
		for _, label := range labels {
			value, _ := r.Fields.Get(label)
			row = append(row, value)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// pageSpan renders zero-based page indexes as a 1-based range, "1-2"
func pageSpan(pages []int) string {
	switch len(pages) {
	case 0:
		return ""
	case 1:
		return strconv.Itoa(pages[0] + 1)
	}
	return fmt.Sprintf("%d-%d", pages[0]+1, pages[len(pages)-1]+1)
}

// naturalCompare orders strings with embedded numbers by numeric value,
// so "q2" sorts before "q10"
func naturalCompare(a, b string) int {
	ar, br := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ar) && j < len(br) {
		if unicode.IsDigit(ar[i]) && unicode.IsDigit(br[j]) {
			si := i
			for i < len(ar) && unicode.IsDigit(ar[i]) {
				i++
			}
			sj := j
			for j < len(br) && unicode.IsDigit(br[j]) {
				j++
			}
			if c := compareDigits(string(ar[si:i]), string(br[sj:j])); c != 0 {
				return c
			}
			continue
		}
		if ar[i] != br[j] {
			if ar[i] < br[j] {
				return -1
			}
			return 1
		}
		i++
		j++
	}

	switch {
	case len(ar)-i < len(br)-j:
		return -1
	case len(ar)-i > len(br)-j:
		return 1
	}
	// equal by value, e.g. "q01" and "q1": fall back to a byte compare
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareDigits compares two digit runs by numeric value without
// parsing, so arbitrarily long runs cannot overflow
func compareDigits(a, b string) int {
	a = trimLeadingZeros(a)
	b = trimLeadingZeros(b)
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func trimLeadingZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
