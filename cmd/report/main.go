// Command report generates the cancellation summary tables as CSV
// files, for running the analysis without the web server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"canceldash/internal/dataprocessing"
	"canceldash/internal/dataset"
	"canceldash/internal/exporter"
	"canceldash/internal/validation"
	"canceldash/pkg/contracts/domain"
)

func main() {
	sourcePath := flag.String("source", "data/cancellation_report.csv", "cancellation source file (.csv or .xlsx)")
	outputDir := flag.String("out", "reports", "output directory for the summary CSVs")
	from := flag.String("from", "", "include cancellations on or after this date (YYYY-MM-DD)")
	to := flag.String("to", "", "include cancellations on or before this date (YYYY-MM-DD)")
	reason := flag.String("reason", "", "filter by cancellation reason")
	staff := flag.String("staff", "", "filter by the staff member who entered the order")
	period := flag.String("period", "", "filter by time period bucket")
	topItems := flag.Int("top", 10, "number of rows in the top items table")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	spec, err := buildFilterSpec(*from, *to, *reason, *staff, *period)
	if err != nil {
		logger.Error("invalid filter", "error", err)
		os.Exit(1)
	}

	store := dataset.NewStore(*sourcePath, logger)
	snapshot, err := store.Load(ctx)
	if err != nil {
		logger.Error("failed to load cancellation data", "path", *sourcePath, "error", err)
		os.Exit(1)
	}
	logger.Info("dataset loaded", "records", snapshot.Len(), "path", *sourcePath)

	summarizer := dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{TopItems: *topItems})
	records := dataprocessing.Apply(snapshot.Records(), spec)
	summary := summarizer.Summarize(ctx, records)
	logger.Info("summary computed", "filtered_records", len(records))

	if err := validation.NewFileValidator(logger).ValidateOutputDirectory(*outputDir); err != nil {
		logger.Error("output directory not usable", "error", err)
		os.Exit(1)
	}

	if err := writeReports(*outputDir, records, summary); err != nil {
		logger.Error("failed to write reports", "error", err)
		os.Exit(1)
	}
	logger.Info("reports written", "dir", *outputDir)
}

func buildFilterSpec(from, to, reason, staff, period string) (dataprocessing.FilterSpec, error) {
	spec := dataprocessing.FilterSpec{Reason: reason, Staff: staff, Period: period}

	if from != "" {
		d, err := time.Parse("2006-01-02", from)
		if err != nil {
			return spec, fmt.Errorf("parsing -from: %w", err)
		}
		spec.From = &d
	}
	if to != "" {
		d, err := time.Parse("2006-01-02", to)
		if err != nil {
			return spec, fmt.Errorf("parsing -to: %w", err)
		}
		spec.To = &d
	}
	return spec, nil
}

func writeReports(dir string, records []domain.CancellationRecord, summary dataprocessing.Summary) error {
	opts := exporter.WriteOptions{BOMPrefix: true, IncludeDerived: true}
	if err := exporter.WriteRecordsFile(filepath.Join(dir, "records.csv"), records, opts); err != nil {
		return err
	}

	byReason := make([][]string, 0, len(summary.ByReason))
	for _, row := range summary.ByReason {
		byReason = append(byReason, []string{
			row.Reason, strconv.Itoa(row.Count), f2(row.TotalAmount), f2(row.AvgAmount), f2(row.Percentage),
		})
	}
	if err := exporter.WriteTable(filepath.Join(dir, "by_reason.csv"),
		[]string{"Reason", "Count", "Total_Amount", "Avg_Amount", "Percentage"}, byReason); err != nil {
		return err
	}

	byStaff := make([][]string, 0, len(summary.ByStaff))
	for _, row := range summary.ByStaff {
		byStaff = append(byStaff, []string{
			row.Staff, strconv.Itoa(row.Count), f2(row.TotalAmount), f2(row.AvgAmount),
		})
	}
	if err := exporter.WriteTable(filepath.Join(dir, "by_staff.csv"),
		[]string{"Staff", "Count", "Total_Amount", "Avg_Amount"}, byStaff); err != nil {
		return err
	}

	crosstab := make([][]string, 0, len(summary.CrossTab.Staff))
	for i, staff := range summary.CrossTab.Staff {
		row := make([]string, 0, len(summary.CrossTab.Reasons)+1)
		row = append(row, staff)
		for _, count := range summary.CrossTab.Counts[i] {
			row = append(row, strconv.Itoa(count))
		}
		crosstab = append(crosstab, row)
	}
	crosstabHeader := append([]string{"Staff"}, summary.CrossTab.Reasons...)
	if err := exporter.WriteTable(filepath.Join(dir, "crosstab.csv"), crosstabHeader, crosstab); err != nil {
		return err
	}

	byHour := make([][]string, 0, len(summary.ByHour))
	for _, row := range summary.ByHour {
		byHour = append(byHour, []string{strconv.Itoa(row.Hour), strconv.Itoa(row.Count)})
	}
	if err := exporter.WriteTable(filepath.Join(dir, "by_hour.csv"),
		[]string{"Hour", "Count"}, byHour); err != nil {
		return err
	}

	byPeriod := make([][]string, 0, len(summary.ByPeriod))
	for _, row := range summary.ByPeriod {
		byPeriod = append(byPeriod, []string{
			string(row.Period), strconv.Itoa(row.Count), f2(row.TotalAmount),
		})
	}
	if err := exporter.WriteTable(filepath.Join(dir, "by_period.csv"),
		[]string{"Time_Period", "Count", "Total_Amount"}, byPeriod); err != nil {
		return err
	}

	byDate := make([][]string, 0, len(summary.ByDate))
	for _, row := range summary.ByDate {
		byDate = append(byDate, []string{
			row.Date.Format("2006-01-02"), strconv.Itoa(row.Count), f2(row.TotalAmount),
		})
	}
	if err := exporter.WriteTable(filepath.Join(dir, "by_date.csv"),
		[]string{"Date", "Count", "Total_Amount"}, byDate); err != nil {
		return err
	}

	topItems := make([][]string, 0, len(summary.TopItems))
	for _, row := range summary.TopItems {
		topItems = append(topItems, []string{
			row.Item, strconv.Itoa(row.Count), f2(row.TotalAmount),
		})
	}
	return exporter.WriteTable(filepath.Join(dir, "top_items.csv"),
		[]string{"Item", "Count", "Total_Amount"}, topItems)
}

func f2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
