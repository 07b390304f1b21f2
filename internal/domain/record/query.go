package record

import (
	"strings"
)

// SeverityAll is the sentinel meaning "do not filter by severity".
const SeverityAll = "All"

// Query holds the dashboard/EMR/global-search predicates. Active
// predicates combine with logical AND.
type Query struct {
	Text     string
	Severity string
	MinAge   *int
	MaxAge   *int
}

// Filter applies q to records: a pure, synchronous full scan, acceptable
// given the vault's size bound. Text matches case-insensitively against
// patient name, RM number and main diagnosis (OR across the three); age
// bounds are inclusive.
func Filter(records []*SavedRecord, q Query) []*SavedRecord {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]*SavedRecord, 0, len(records))
	for _, rec := range records {
		if rec.Patient == nil || rec.Analysis == nil {
			continue
		}
		if text != "" && !matchesText(rec, text) {
			continue
		}
		if q.Severity != "" && q.Severity != SeverityAll && rec.Analysis.Severity != q.Severity {
			continue
		}
		if q.MinAge != nil && rec.Patient.Age < *q.MinAge {
			continue
		}
		if q.MaxAge != nil && rec.Patient.Age > *q.MaxAge {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matchesText(rec *SavedRecord, text string) bool {
	return strings.Contains(strings.ToLower(rec.Patient.Name), text) ||
		strings.Contains(strings.ToLower(rec.Patient.RMNo), text) ||
		strings.Contains(strings.ToLower(rec.Analysis.MainDiagnosis), text)
}
