package dataprocessing

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"time"

	"canceldash/pkg/contracts/domain"
)

// Summarizer computes the aggregate tables behind every dashboard
// chart. All methods accept any record subset (filtered or full) and
// tolerate an empty one: counts and sums are zero, means are NaN and
// group tables are empty, never an error.
type Summarizer struct {
	logger   *slog.Logger
	topItems int
}

// SummarizerConfig holds configuration options for the Summarizer.
type SummarizerConfig struct {
	TopItems int // maximum rows in the top-items table
}

// NewSummarizer creates a new summarizer with the given configuration.
func NewSummarizer(logger *slog.Logger, config SummarizerConfig) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TopItems <= 0 {
		config.TopItems = 10
	}

	return &Summarizer{
		logger:   logger.With(slog.String("component", "summarizer")),
		topItems: config.TopItems,
	}
}

// DefaultSummarizerConfig returns the configuration used by the
// dashboard: a ten-row top-items table.
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{TopItems: 10}
}

// ReasonSummary is one row of the by-reason table.
type ReasonSummary struct {
	Reason      string  `json:"reason"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	AvgAmount   float64 `json:"avg_amount"`
	// Percentage is this reason's share of the total summed amount
	// across all reasons in the subset, rounded to two decimals.
	Percentage float64 `json:"percentage"`
}

// StaffSummary is one row of the by-staff table, keyed by the staff
// member who entered the order.
type StaffSummary struct {
	Staff       string  `json:"staff"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	AvgAmount   float64 `json:"avg_amount"`
}

// CrossTab is the staff-by-reason count matrix. Counts[i][j] is the
// number of records for Staff[i] with Reasons[j], zero where the
// intersection is empty.
type CrossTab struct {
	Staff   []string `json:"staff"`
	Reasons []string `json:"reasons"`
	Counts  [][]int  `json:"counts"`
}

// HourCount is one row of the by-hour table. All 24 hours are always
// present, zero-filled, so charts can plot a continuous axis.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// PeriodSummary is one row of the by-time-period table. All four
// buckets are always present, zero-filled, in day order.
type PeriodSummary struct {
	Period      domain.TimePeriod `json:"period"`
	Count       int               `json:"count"`
	TotalAmount float64           `json:"total_amount"`
}

// DateSummary is one row of the daily trend table.
type DateSummary struct {
	Date        time.Time `json:"date"`
	Count       int       `json:"count"`
	TotalAmount float64   `json:"total_amount"`
}

// ItemSummary is one row of the top-cancelled-items table. The
// sentinel "no specific item" value never appears here.
type ItemSummary struct {
	Item        string  `json:"item"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// Overview carries the headline metrics of the dashboard KPI row.
// Means are NaN when the subset is empty and serialize as null.
type Overview struct {
	TotalCancellations     int     `json:"total_cancellations"`
	TotalAmount            float64 `json:"total_amount"`
	AvgAmount              float64 `json:"avg_amount"`
	UniqueStaff            int     `json:"unique_staff"`
	AvgTimeToCancelMinutes float64 `json:"avg_time_to_cancel_minutes"`
}

// MarshalJSON emits null for undefined (NaN) means so empty subsets
// remain representable in JSON.
func (o Overview) MarshalJSON() ([]byte, error) {
	type row struct {
		TotalCancellations     int      `json:"total_cancellations"`
		TotalAmount            float64  `json:"total_amount"`
		AvgAmount              *float64 `json:"avg_amount"`
		UniqueStaff            int      `json:"unique_staff"`
		AvgTimeToCancelMinutes *float64 `json:"avg_time_to_cancel_minutes"`
	}
	return json.Marshal(row{
		TotalCancellations:     o.TotalCancellations,
		TotalAmount:            o.TotalAmount,
		AvgAmount:              nullable(o.AvgAmount),
		UniqueStaff:            o.UniqueStaff,
		AvgTimeToCancelMinutes: nullable(o.AvgTimeToCancelMinutes),
	})
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// Summary bundles every aggregate table for one filtered subset. This
// is what a single dashboard interaction recomputes.
type Summary struct {
	Overview Overview        `json:"overview"`
	ByReason []ReasonSummary `json:"by_reason"`
	ByStaff  []StaffSummary  `json:"by_staff"`
	CrossTab CrossTab        `json:"crosstab"`
	ByHour   []HourCount     `json:"by_hour"`
	ByPeriod []PeriodSummary `json:"by_period"`
	ByDate   []DateSummary   `json:"by_date"`
	TopItems []ItemSummary   `json:"top_items"`
}

// Summarize computes every aggregate table for the given subset.
func (s *Summarizer) Summarize(ctx context.Context, records []domain.CancellationRecord) Summary {
	s.logger.DebugContext(ctx, "computing summary tables",
		slog.Int("record_count", len(records)))

	return Summary{
		Overview: s.Overview(records),
		ByReason: s.ByReason(records),
		ByStaff:  s.ByStaff(records),
		CrossTab: s.CrossTabStaffReason(records),
		ByHour:   s.ByHour(records),
		ByPeriod: s.ByPeriod(records),
		ByDate:   s.ByDate(records),
		TopItems: s.TopItems(records),
	}
}

// Overview computes the headline metrics for the subset.
func (s *Summarizer) Overview(records []domain.CancellationRecord) Overview {
	o := Overview{
		TotalCancellations:     len(records),
		AvgAmount:              math.NaN(),
		AvgTimeToCancelMinutes: math.NaN(),
	}

	staff := make(map[string]struct{})
	var minutes float64
	for _, rec := range records {
		o.TotalAmount += rec.ReducedAmount
		minutes += rec.Features.TimeToCancelMinutes
		staff[rec.OrderEnteredBy] = struct{}{}
	}
	o.UniqueStaff = len(staff)

	if len(records) > 0 {
		o.AvgAmount = o.TotalAmount / float64(len(records))
		o.AvgTimeToCancelMinutes = minutes / float64(len(records))
	}

	return o
}

// ByReason groups the subset by cancellation reason with count, summed
// and mean amount, and each reason's percentage share of the total
// summed amount. Rows are sorted by summed amount descending; the
// percentages sum to 100 within rounding when the subset is non-empty.
func (s *Summarizer) ByReason(records []domain.CancellationRecord) []ReasonSummary {
	type acc struct {
		count int
		total float64
	}
	groups := make(map[string]*acc)
	var grandTotal float64

	for _, rec := range records {
		g, ok := groups[rec.ModifyReason]
		if !ok {
			g = &acc{}
			groups[rec.ModifyReason] = g
		}
		g.count++
		g.total += rec.ReducedAmount
		grandTotal += rec.ReducedAmount
	}

	out := make([]ReasonSummary, 0, len(groups))
	for reason, g := range groups {
		row := ReasonSummary{
			Reason:      reason,
			Count:       g.count,
			TotalAmount: g.total,
			AvgAmount:   g.total / float64(g.count),
		}
		if grandTotal != 0 {
			row.Percentage = round2(g.total / grandTotal * 100)
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalAmount != out[j].TotalAmount {
			return out[i].TotalAmount > out[j].TotalAmount
		}
		return out[i].Reason < out[j].Reason
	})

	return out
}

// ByStaff groups the subset by the staff member who entered the order,
// sorted by cancellation count descending.
func (s *Summarizer) ByStaff(records []domain.CancellationRecord) []StaffSummary {
	type acc struct {
		count int
		total float64
	}
	groups := make(map[string]*acc)

	for _, rec := range records {
		g, ok := groups[rec.OrderEnteredBy]
		if !ok {
			g = &acc{}
			groups[rec.OrderEnteredBy] = g
		}
		g.count++
		g.total += rec.ReducedAmount
	}

	out := make([]StaffSummary, 0, len(groups))
	for staff, g := range groups {
		out = append(out, StaffSummary{
			Staff:       staff,
			Count:       g.count,
			TotalAmount: g.total,
			AvgAmount:   g.total / float64(g.count),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Staff < out[j].Staff
	})

	return out
}

// CrossTabStaffReason computes the staff-by-reason count matrix with
// alphabetically sorted axes and a dense, zero-filled matrix.
func (s *Summarizer) CrossTabStaffReason(records []domain.CancellationRecord) CrossTab {
	counts := make(map[string]map[string]int)
	reasonSet := make(map[string]struct{})

	for _, rec := range records {
		row, ok := counts[rec.OrderEnteredBy]
		if !ok {
			row = make(map[string]int)
			counts[rec.OrderEnteredBy] = row
		}
		row[rec.ModifyReason]++
		reasonSet[rec.ModifyReason] = struct{}{}
	}

	ct := CrossTab{
		Staff:   sortedKeys(counts),
		Reasons: make([]string, 0, len(reasonSet)),
	}
	for reason := range reasonSet {
		ct.Reasons = append(ct.Reasons, reason)
	}
	sort.Strings(ct.Reasons)

	ct.Counts = make([][]int, len(ct.Staff))
	for i, staff := range ct.Staff {
		ct.Counts[i] = make([]int, len(ct.Reasons))
		for j, reason := range ct.Reasons {
			ct.Counts[i][j] = counts[staff][reason]
		}
	}

	return ct
}

// ByHour counts cancellations per hour of day. The table is dense:
// all 24 hours appear, zero-filled, so the hourly chart never has to
// interpolate missing buckets.
func (s *Summarizer) ByHour(records []domain.CancellationRecord) []HourCount {
	out := make([]HourCount, 24)
	for h := range out {
		out[h].Hour = h
	}
	for _, rec := range records {
		out[rec.Features.CancelHour].Count++
	}
	return out
}

// ByPeriod aggregates count and summed amount per time-period bucket.
// All four buckets are always present, in day order.
func (s *Summarizer) ByPeriod(records []domain.CancellationRecord) []PeriodSummary {
	index := make(map[domain.TimePeriod]int, len(domain.TimePeriods))
	out := make([]PeriodSummary, len(domain.TimePeriods))
	for i, p := range domain.TimePeriods {
		out[i].Period = p
		index[p] = i
	}

	for _, rec := range records {
		i := index[rec.Features.TimePeriod]
		out[i].Count++
		out[i].TotalAmount += rec.ReducedAmount
	}

	return out
}

// ByDate aggregates count and summed amount per calendar date present
// in the subset, in chronological order.
func (s *Summarizer) ByDate(records []domain.CancellationRecord) []DateSummary {
	type acc struct {
		count int
		total float64
	}
	groups := make(map[time.Time]*acc)

	for _, rec := range records {
		date := rec.Features.CancelDate
		g, ok := groups[date]
		if !ok {
			g = &acc{}
			groups[date] = g
		}
		g.count++
		g.total += rec.ReducedAmount
	}

	out := make([]DateSummary, 0, len(groups))
	for date, g := range groups {
		out = append(out, DateSummary{Date: date, Count: g.count, TotalAmount: g.total})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	return out
}

// TopItems ranks specifically named items (the sentinel placeholder is
// excluded) by cancellation count, descending, truncated to the
// configured limit. Ties keep first-seen input order.
func (s *Summarizer) TopItems(records []domain.CancellationRecord) []ItemSummary {
	type acc struct {
		count int
		total float64
		order int
	}
	groups := make(map[string]*acc)
	next := 0

	for _, rec := range records {
		if !rec.HasItem() {
			continue
		}
		g, ok := groups[rec.ModifiedItem]
		if !ok {
			g = &acc{order: next}
			next++
			groups[rec.ModifiedItem] = g
		}
		g.count++
		g.total += rec.ReducedAmount
	}

	type ranked struct {
		item string
		acc  *acc
	}
	all := make([]ranked, 0, len(groups))
	for item, g := range groups {
		all = append(all, ranked{item: item, acc: g})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].acc.count != all[j].acc.count {
			return all[i].acc.count > all[j].acc.count
		}
		return all[i].acc.order < all[j].acc.order
	})

	if len(all) > s.topItems {
		all = all[:s.topItems]
	}

	out := make([]ItemSummary, len(all))
	for i, r := range all {
		out[i] = ItemSummary{Item: r.item, Count: r.acc.count, TotalAmount: r.acc.total}
	}

	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
