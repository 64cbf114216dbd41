package matching

import (
	"fmt"
	"sort"
	"strings"
)

// FieldResult describes whether a single expectation field matched a record.
type FieldResult struct {
	Field    string `json:"field"`
	Matched  bool   `json:"matched"`
	Score    int    `json:"score"`
	MaxScore int    `json:"maxScore"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
}

// Breakdown accumulates per-field results for one candidate record.
// Build it with Add, then call Finish to compute the percentage and reason.
type Breakdown struct {
	Fields           []FieldResult `json:"fields"`
	Score            int           `json:"score"`
	MaxPossibleScore int           `json:"maxPossibleScore"`
	MatchPercentage  int           `json:"matchPercentage"`
	Reason           string        `json:"reason"`
}

// Add records the outcome of one field comparison.
func (b *Breakdown) Add(field string, matched bool, maxScore int, expected, actual any) {
	score := 0
	if matched {
		score = maxScore
	}
	b.Fields = append(b.Fields, FieldResult{
		Field:    field,
		Matched:  matched,
		Score:    score,
		MaxScore: maxScore,
		Expected: expected,
		Actual:   actual,
	})
	b.Score += score
	b.MaxPossibleScore += maxScore
}

// Finish computes MatchPercentage and Reason from the accumulated fields.
func (b *Breakdown) Finish() {
	if b.MaxPossibleScore > 0 {
		b.MatchPercentage = (b.Score * 100) / b.MaxPossibleScore
	}
	b.Reason = GenerateReason(b.Fields)
}

// Matched reports whether every field matched.
func (b *Breakdown) Matched() bool {
	for _, f := range b.Fields {
		if !f.Matched {
			return false
		}
	}
	return true
}

// TopN sorts candidates by score then percentage (both descending), keeps
// only those with a non-zero score, and truncates to n entries. The sort is
// stable so earlier candidates win ties.
func TopN[T any](candidates []T, n int, breakdown func(T) *Breakdown) []T {
	if n <= 0 {
		n = 3
	}

	kept := candidates[:0:0]
	for _, c := range candidates {
		if breakdown(c).Score > 0 {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		bi, bj := breakdown(kept[i]), breakdown(kept[j])
		if bi.Score != bj.Score {
			return bi.Score > bj.Score
		}
		return bi.MatchPercentage > bj.MatchPercentage
	})

	if len(kept) > n {
		kept = kept[:n]
	}
	return kept
}

// GenerateReason creates a human-readable explanation of why a record
// partially matched but ultimately failed.
func GenerateReason(fields []FieldResult) string {
	if len(fields) == 0 {
		return "no fields to compare"
	}

	var matched []string
	var firstMismatch *FieldResult

	for i := range fields {
		if fields[i].Matched {
			matched = append(matched, fields[i].Field)
		} else if firstMismatch == nil {
			firstMismatch = &fields[i]
		}
	}

	if firstMismatch == nil {
		return "all specified fields matched"
	}

	if len(matched) == 0 {
		return formatMismatch(firstMismatch)
	}

	return joinFields(matched) + " matched, but " + formatMismatch(firstMismatch)
}

// formatMismatch formats a single field mismatch into a human-readable string.
func formatMismatch(f *FieldResult) string {
	switch f.Field {
	case "name":
		return fmt.Sprintf("name expected %v, got %q", f.Expected, f.Actual)
	case "type":
		return fmt.Sprintf("type expected %v, got %v", f.Expected, f.Actual)
	case "tags":
		return fmt.Sprintf("tags missing %v", f.Expected)
	case "value":
		return fmt.Sprintf("value expected %v, got %v", f.Expected, f.Actual)
	case "sampleRate":
		return fmt.Sprintf("sample rate expected %v, got %v", f.Expected, f.Actual)
	default:
		return f.Field + " did not match"
	}
}

// joinFields joins field names with commas and "and".
func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return fields[0]
	case 2:
		return fields[0] + " and " + fields[1]
	default:
		return strings.Join(fields[:len(fields)-1], ", ") + ", and " + fields[len(fields)-1]
	}
}
