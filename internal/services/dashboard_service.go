// Package services holds the application services that sit between the
// HTTP transport and the data pipeline. The dashboard service is the
// single entry point for filtered record access, summary tables and
// CSV export.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"canceldash/internal/dataprocessing"
	"canceldash/internal/dataset"
	apierrors "canceldash/internal/errors"
	"canceldash/internal/exporter"
	"canceldash/pkg/contracts/domain"
)

// Summary table names accepted by TableByName.
const (
	TableByReason = "by_reason"
	TableByStaff  = "by_staff"
	TableCrossTab = "crosstab"
	TableByHour   = "by_hour"
	TableByPeriod = "by_period"
	TableByDate   = "by_date"
	TableTopItems = "top_items"
	TableOverview = "overview"
)

// TableNames lists the valid summary table identifiers.
var TableNames = []string{
	TableOverview, TableByReason, TableByStaff, TableCrossTab,
	TableByHour, TableByPeriod, TableByDate, TableTopItems,
}

// FilterOptions describes the values the frontend can offer in its
// filter controls, derived from the loaded dataset.
type FilterOptions struct {
	Reasons []string            `json:"reasons"`
	Staff   []string            `json:"staff"`
	Periods []domain.TimePeriod `json:"periods"`
	MinDate string              `json:"min_date,omitempty"`
	MaxDate string              `json:"max_date,omitempty"`
}

// DashboardService answers all dashboard queries against the current
// dataset snapshot.
type DashboardService struct {
	store      *dataset.Store
	summarizer *dataprocessing.Summarizer
	logger     *slog.Logger
}

// NewDashboardService creates a dashboard service.
func NewDashboardService(store *dataset.Store, summarizer *dataprocessing.Summarizer, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		store:      store,
		summarizer: summarizer,
		logger:     logger.With(slog.String("service", "dashboard")),
	}
}

// Records returns the records matching the filter, in source order.
func (s *DashboardService) Records(ctx context.Context, spec dataprocessing.FilterSpec) ([]domain.CancellationRecord, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return dataprocessing.Apply(snap.Records(), spec), nil
}

// Summary computes the full set of summary tables over the filtered
// records.
func (s *DashboardService) Summary(ctx context.Context, spec dataprocessing.FilterSpec) (*dataprocessing.Summary, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	summary := s.summarizer.Summarize(ctx, dataprocessing.Apply(snap.Records(), spec))

	s.logger.DebugContext(ctx, "summary computed",
		slog.Int("input_records", snap.Len()),
		slog.Int("filtered_records", summary.Overview.TotalCancellations),
		slog.String("duration", time.Since(start).String()))

	return &summary, nil
}

// TableByName computes a single summary table. Returns ErrNotFound for
// an unknown table name.
func (s *DashboardService) TableByName(ctx context.Context, name string, spec dataprocessing.FilterSpec) (interface{}, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	filtered := dataprocessing.Apply(snap.Records(), spec)

	switch name {
	case TableOverview:
		return s.summarizer.Overview(filtered), nil
	case TableByReason:
		return s.summarizer.ByReason(filtered), nil
	case TableByStaff:
		return s.summarizer.ByStaff(filtered), nil
	case TableCrossTab:
		return s.summarizer.CrossTabStaffReason(filtered), nil
	case TableByHour:
		return s.summarizer.ByHour(filtered), nil
	case TableByPeriod:
		return s.summarizer.ByPeriod(filtered), nil
	case TableByDate:
		return s.summarizer.ByDate(filtered), nil
	case TableTopItems:
		return s.summarizer.TopItems(filtered), nil
	default:
		return nil, apierrors.NotFoundError(fmt.Sprintf("summary table %q", name))
	}
}

// FilterOptions returns the distinct filter values present in the
// loaded dataset, each list sorted ascending.
func (s *DashboardService) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	reasons := make(map[string]struct{})
	staff := make(map[string]struct{})
	var minDate, maxDate time.Time

	for _, rec := range snap.Records() {
		if rec.ModifyReason != "" {
			reasons[rec.ModifyReason] = struct{}{}
		}
		if rec.OrderEnteredBy != "" {
			staff[rec.OrderEnteredBy] = struct{}{}
		}
		d := rec.Features.CancelDate
		if minDate.IsZero() || d.Before(minDate) {
			minDate = d
		}
		if maxDate.IsZero() || d.After(maxDate) {
			maxDate = d
		}
	}

	opts := &FilterOptions{
		Reasons: sortedSet(reasons),
		Staff:   sortedSet(staff),
		Periods: domain.TimePeriods,
	}
	if !minDate.IsZero() {
		opts.MinDate = minDate.Format("2006-01-02")
		opts.MaxDate = maxDate.Format("2006-01-02")
	}
	return opts, nil
}

// ExportRecordsCSV streams the filtered records as CSV. The derived
// feature columns are included and the output carries a UTF-8 BOM so
// spreadsheet tools open it cleanly.
func (s *DashboardService) ExportRecordsCSV(ctx context.Context, spec dataprocessing.FilterSpec, w io.Writer) error {
	records, err := s.Records(ctx, spec)
	if err != nil {
		return err
	}

	opts := exporter.WriteOptions{BOMPrefix: true, IncludeDerived: true}
	if err := exporter.WriteRecords(w, records, opts); err != nil {
		return fmt.Errorf("writing records csv: %w", err)
	}

	s.logger.InfoContext(ctx, "records exported",
		slog.Int("record_count", len(records)))
	return nil
}

// Reload forces a re-read of the source file, swapping the cached
// snapshot when its content changed. It reports whether a swap
// happened. A parse or schema failure keeps the previous snapshot and
// surfaces as an unprocessable-entity error.
func (s *DashboardService) Reload(ctx context.Context) (bool, error) {
	swapped, err := s.store.Reload(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "manual reload failed",
			slog.String("error", err.Error()))
		return false, apierrors.DatasetLoadError(err)
	}
	return swapped, nil
}

func (s *DashboardService) snapshot(ctx context.Context) (*dataset.Snapshot, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "dataset unavailable",
			slog.String("error", err.Error()))
		return nil, apierrors.ErrDatasetNotLoaded
	}
	return snap, nil
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
