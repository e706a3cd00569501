package dataprocessing

import (
	"time"

	"canceldash/pkg/contracts/domain"
)

// Derive computes the analytic fields for a single record. It is a
// pure function of the record's timestamps: no I/O, no shared state,
// safe to apply across records in any order.
func Derive(rec domain.CancellationRecord) domain.DerivedFeatures {
	cancel := rec.CancelTime

	return domain.DerivedFeatures{
		CancelDate:          cancel.Truncate(24 * time.Hour),
		CancelHour:          cancel.Hour(),
		CancelWeekday:       cancel.Weekday().String(),
		TimePeriod:          domain.PeriodForHour(cancel.Hour()),
		TimeToCancelMinutes: cancel.Sub(rec.OrderTime).Minutes(),
	}
}
