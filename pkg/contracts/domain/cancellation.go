package domain

import (
	"time"
)

// TimestampLayout is the fixed layout used by the POS export for both
// order and cancellation timestamps (e.g. "14-May-2025 9:30 PM").
const TimestampLayout = "2-Jan-2006 3:04 PM"

// SentinelItem is the placeholder used by the POS system when a
// cancellation is not attributed to a specific item.
const SentinelItem = "."

// CancellationRecord represents one normalized order-cancellation event.
// Text fields are stored trimmed; (OrderNumber, ModifiedItem) is unique
// after normalization.
type CancellationRecord struct {
	OrderNumber    int       `json:"order_number" csv:"Order Number"`
	ModifiedItem   string    `json:"modified_item" csv:"Modified Item"`
	ModifyReason   string    `json:"modify_reason" csv:"Modify Reason"`
	OrderEnteredBy string    `json:"order_entered_by" csv:"Order Entered By"`
	Who            string    `json:"who" csv:"Who?"`
	OrderTime      time.Time `json:"order_time" csv:"Order Time"`
	CancelTime     time.Time `json:"cancel_time" csv:"When?"`
	ReducedAmount  float64   `json:"reduced_amount" csv:"Reduced Amount"`

	Features DerivedFeatures `json:"features"`
}

// DerivedFeatures holds the analytic fields computed from a record's
// timestamps. They are attached once during loading and never mutated.
type DerivedFeatures struct {
	CancelDate          time.Time  `json:"cancel_date"`
	CancelHour          int        `json:"cancel_hour"`
	CancelWeekday       string     `json:"cancel_weekday"`
	TimePeriod          TimePeriod `json:"time_period"`
	TimeToCancelMinutes float64    `json:"time_to_cancel_minutes"`
}

// HasItem reports whether the record names a specific cancelled item
// rather than the sentinel placeholder.
func (r CancellationRecord) HasItem() bool {
	return r.ModifiedItem != SentinelItem
}

// TimePeriod is one of four fixed half-open hour-of-day buckets used
// for coarse temporal grouping.
type TimePeriod string

const (
	PeriodLateNight TimePeriod = "Late Night (0-6)"
	PeriodMorning   TimePeriod = "Morning (6-12)"
	PeriodAfternoon TimePeriod = "Afternoon (12-18)"
	PeriodEvening   TimePeriod = "Evening (18-24)"
)

// TimePeriods lists the four buckets in day order. All aggregations
// that key on the bucket emit rows in this order.
var TimePeriods = []TimePeriod{
	PeriodLateNight,
	PeriodMorning,
	PeriodAfternoon,
	PeriodEvening,
}

// PeriodForHour buckets an hour of day (0-23) into its time period.
// Buckets are half-open [start, end) evaluated in order Morning,
// Afternoon, Evening, with Late Night as the fallback, so hours 6, 12
// and 18 fall into the bucket they start.
func PeriodForHour(hour int) TimePeriod {
	switch {
	case hour >= 6 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 18:
		return PeriodAfternoon
	case hour >= 18 && hour < 24:
		return PeriodEvening
	default:
		return PeriodLateNight
	}
}

// ValidPeriod reports whether s names one of the four buckets.
func ValidPeriod(s string) bool {
	for _, p := range TimePeriods {
		if string(p) == s {
			return true
		}
	}
	return false
}

// RecordKey is the compound deduplication key for cancellation records.
type RecordKey struct {
	OrderNumber  int
	ModifiedItem string
}

// Key returns the record's deduplication key.
func (r CancellationRecord) Key() RecordKey {
	return RecordKey{OrderNumber: r.OrderNumber, ModifiedItem: r.ModifiedItem}
}
