package dataprocessing

import (
	"time"

	"canceldash/pkg/contracts/domain"
)

// AllSentinel is the value a dimension filter carries to match every
// record, mirroring the "All" entry of the dashboard selects.
const AllSentinel = "All"

// FilterSpec is a conjunctive set of optional predicates over the
// derived dataset. The zero value matches the full dataset.
type FilterSpec struct {
	// From and To are inclusive bounds on the cancel date. A nil bound
	// is open. From > To is defined to produce an empty result.
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	// Equality predicates. Empty or AllSentinel matches everything.
	Reason string `json:"reason,omitempty"`
	Staff  string `json:"staff,omitempty"`
	Period string `json:"period,omitempty"`
}

// IsZero reports whether the spec carries no active predicate.
func (s FilterSpec) IsZero() bool {
	return s.From == nil && s.To == nil &&
		!active(s.Reason) && !active(s.Staff) && !active(s.Period)
}

// Apply returns the subset of records satisfying every active
// predicate, preserving input order. It never mutates its input, always
// returns a non-nil slice, and is idempotent: applying the same spec to
// its own output yields an identical result.
func Apply(records []domain.CancellationRecord, spec FilterSpec) []domain.CancellationRecord {
	out := make([]domain.CancellationRecord, 0, len(records))
	for _, rec := range records {
		if spec.matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (s FilterSpec) matches(rec domain.CancellationRecord) bool {
	date := rec.Features.CancelDate
	if s.From != nil && date.Before(truncateDate(*s.From)) {
		return false
	}
	if s.To != nil && date.After(truncateDate(*s.To)) {
		return false
	}
	if active(s.Reason) && rec.ModifyReason != s.Reason {
		return false
	}
	if active(s.Staff) && rec.OrderEnteredBy != s.Staff {
		return false
	}
	if active(s.Period) && string(rec.Features.TimePeriod) != s.Period {
		return false
	}
	return true
}

func active(value string) bool {
	return value != "" && value != AllSentinel
}

func truncateDate(t time.Time) time.Time {
	return t.Truncate(24 * time.Hour)
}
