package survey

import (
	"fmt"
	"maps"
	"slices"
)

// Merge groups page extractions into survey records.
//
// Record k is built from pages [k*L, k*L+L) where L is
// opts.PagesPerRecord. Pages left over at the end are handled by
// opts.Trailing. The input must be ordered by Index starting at 0.
func Merge(pages []PageExtraction, opts MergeOptions) (*MergeResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	for i, p := range pages {
		if p.Index != i {
			return nil, fmt.Errorf("%w: position %d holds page %d", ErrPageOrder, i, p.Index)
		}
	}

	size := opts.PagesPerRecord
	complete := len(pages) / size
	leftover := len(pages) % size

	if leftover != 0 && opts.Trailing == TrailingFail {
		return nil, fmt.Errorf("%w: %d pages is not a multiple of %d pages per record",
			ErrIncompleteRecord, len(pages), size)
	}

	result := &MergeResult{
		Records:  make([]SurveyRecord, 0, complete+1),
		Dropped:  []int{},
		Warnings: []string{},
	}

	for k := 0; k < complete; k++ {
		record, warnings := mergeGroup(k+1, pages[k*size:(k+1)*size], opts.Collision)
		result.Records = append(result.Records, record)
		result.Warnings = append(result.Warnings, warnings...)
	}

	if leftover == 0 {
		return result, nil
	}

	tail := pages[complete*size:]
	switch opts.Trailing {
	case TrailingPartial:
		record, warnings := mergeGroup(complete+1, tail, opts.Collision)
		record.Partial = true
		result.Records = append(result.Records, record)
		result.Warnings = append(result.Warnings, warnings...)
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"record %d is partial: %d of %d pages (page count %d is not a multiple of %d)",
			record.ID, len(tail), size, len(pages), size))
	case TrailingDrop:
		for _, p := range tail {
			result.Dropped = append(result.Dropped, p.Index)
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"dropped %d trailing page(s) %v: page count %d is not a multiple of %d",
			len(tail), pageNumbers(tail), len(pages), size))
	}

	return result, nil
}

// mergeGroup combines the pages of one record
func mergeGroup(id int, group []PageExtraction, policy CollisionPolicy) (SurveyRecord, []string) {
	record := SurveyRecord{
		ID:     id,
		Pages:  make([]int, 0, len(group)),
		Fields: NewFieldMap(),
	}

	var warnings []string
	for _, p := range group {
		record.Pages = append(record.Pages, p.Index)
		if p.Failed() {
			record.Failures = append(record.Failures, PageFailure{Page: p.Index, Message: p.Err.Error()})
			warnings = append(warnings, fmt.Sprintf("record %d: page %d failed: %v", id, p.Index+1, p.Err))
		}
	}

	var collided map[string]bool
	if policy == CollisionNamespace {
		collided = collidingLabels(group)
	}

	owner := make(map[string]int)
	for _, p := range group {
		if p.Failed() {
			continue
		}
		for _, label := range p.Fields.Keys() {
			value, _ := p.Fields.Get(label)

			if policy == CollisionNamespace {
				target := label
				if collided[label] {
					target = namespacedLabel(p.Index, label)
				}
				if stored := freeLabel(record.Fields, target); stored != target {
					warnings = append(warnings, fmt.Sprintf(
						"record %d: field %q on page %d clashes with an existing field, stored as %q",
						id, target, p.Index+1, stored))
					target = stored
				}
				record.Fields.Set(target, value)
				continue
			}

			prev, exists := owner[label]
			if !exists {
				owner[label] = p.Index
				record.Fields.Set(label, value)
				continue
			}

			switch policy {
			case CollisionFirst:
				warnings = append(warnings, fmt.Sprintf(
					"record %d: field %q on page %d ignored, kept value from page %d",
					id, label, p.Index+1, prev+1))
			default:
				owner[label] = p.Index
				record.Fields.Set(label, value)
				warnings = append(warnings, fmt.Sprintf(
					"record %d: field %q on page %d overwrote value from page %d",
					id, label, p.Index+1, prev+1))
			}
		}
	}

	for _, label := range slices.Sorted(maps.Keys(collided)) {
		warnings = append(warnings, fmt.Sprintf(
			"record %d: field %q appears on several pages, stored per page", id, label))
	}

	return record, warnings
}

// collidingLabels returns labels extracted by more than one page of group
func collidingLabels(group []PageExtraction) map[string]bool {
	seen := make(map[string]int)
	for _, p := range group {
		if p.Failed() {
			continue
		}
		for _, label := range p.Fields.Keys() {
			seen[label]++
		}
	}

	collided := make(map[string]bool)
	for label, count := range seen {
		if count > 1 {
			collided[label] = true
		}
	}
	return collided
}

func namespacedLabel(pageIndex int, label string) string {
	return fmt.Sprintf("p%d.%s", pageIndex+1, label)
}

// freeLabel returns label, or label with the first "#n" suffix not yet
// present in fields
func freeLabel(fields *FieldMap, label string) string {
	if !fields.Has(label) {
		return label
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s#%d", label, n)
		if !fields.Has(candidate) {
			return candidate
		}
	}
}

func pageNumbers(pages []PageExtraction) []int {
	numbers := make([]int, len(pages))
	for i, p := range pages {
		numbers[i] = p.Index + 1
	}
	return numbers
}
