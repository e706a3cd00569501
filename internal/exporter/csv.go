package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"canceldash/internal/dataprocessing"
	"canceldash/pkg/contracts/domain"
)

// Derived column names appended after the original schema on export.
const (
	ColCancelDate   = "Cancel_Date"
	ColCancelHour   = "Cancel_Hour"
	ColCancelDay    = "Cancel_Day"
	ColTimePeriod   = "Time_Period"
	ColTimeToCancel = "Time_to_Cancel_Min"
)

const dateLayout = "2006-01-02"

// WriteOptions configures CSV export behavior.
type WriteOptions struct {
	// BOMPrefix prepends a UTF-8 BOM so Excel opens the download with
	// the right encoding.
	BOMPrefix bool
	// IncludeDerived appends the derived feature columns after the
	// original schema. Either way the original columns round-trip
	// losslessly through the normalizer.
	IncludeDerived bool
}

// RecordHeader returns the export header: the original source columns,
// optionally followed by the derived ones.
func RecordHeader(opts WriteOptions) []string {
	header := make([]string, 0, len(dataprocessing.RequiredColumns)+5)
	header = append(header, dataprocessing.RequiredColumns...)
	if opts.IncludeDerived {
		header = append(header, ColCancelDate, ColCancelHour, ColCancelDay, ColTimePeriod, ColTimeToCancel)
	}
	return header
}

// RecordRow serializes one record for export. Timestamps use the same
// fixed layout the normalizer parses, so exported data re-parses into
// identical records.
func RecordRow(rec domain.CancellationRecord, opts WriteOptions) []string {
	row := []string{
		strconv.Itoa(rec.OrderNumber),
		rec.ModifiedItem,
		rec.ModifyReason,
		rec.OrderEnteredBy,
		rec.Who,
		rec.OrderTime.Format(domain.TimestampLayout),
		rec.CancelTime.Format(domain.TimestampLayout),
		strconv.FormatFloat(rec.ReducedAmount, 'f', -1, 64),
	}

	if opts.IncludeDerived {
		f := rec.Features
		row = append(row,
			f.CancelDate.Format(dateLayout),
			strconv.Itoa(f.CancelHour),
			f.CancelWeekday,
			string(f.TimePeriod),
			strconv.FormatFloat(f.TimeToCancelMinutes, 'f', -1, 64),
		)
	}

	return row
}

// WriteRecords writes a record subset as delimited text to w.
func WriteRecords(w io.Writer, records []domain.CancellationRecord, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if err := writer.Write(RecordHeader(opts)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		if err := writer.Write(RecordRow(rec, opts)); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteRecordsFile writes a record subset to a CSV file, creating the
// parent directory when necessary.
func WriteRecordsFile(path string, records []domain.CancellationRecord, opts WriteOptions) error {
	slog.Info("writing records CSV",
		slog.String("path", path),
		slog.Int("record_count", len(records)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	return WriteRecords(file, records, opts)
}

// WriteTable writes an arbitrary header/rows table to a CSV file. The
// report command uses it for the aggregate tables.
func WriteTable(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
