package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"canceldash/pkg/contracts/domain"
)

// Column names of the POS cancellation export, in file order.
const (
	ColOrderNumber    = "Order Number"
	ColModifiedItem   = "Modified Item"
	ColModifyReason   = "Modify Reason"
	ColOrderEnteredBy = "Order Entered By"
	ColWho            = "Who?"
	ColOrderTime      = "Order Time"
	ColCancelTime     = "When?"
	ColReducedAmount  = "Reduced Amount"
)

// RequiredColumns lists every column a source file must carry.
var RequiredColumns = []string{
	ColOrderNumber,
	ColModifiedItem,
	ColModifyReason,
	ColOrderEnteredBy,
	ColWho,
	ColOrderTime,
	ColCancelTime,
	ColReducedAmount,
}

// ParseError reports a malformed value in a raw row. A single parse
// error is fatal to loading the whole dataset.
type ParseError struct {
	Row   int    // 1-based data row index (header excluded)
	Field string // column name
	Value string // offending raw value
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: invalid %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports a missing expected column in the raw input.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("source file is missing required column %q", e.Column)
}

// ParseCSV reads a delimited cancellation export and returns the
// normalized records: text fields trimmed, timestamps parsed under the
// fixed layout, duplicates on (OrderNumber, ModifiedItem) collapsed to
// the first-seen row. Input order of retained records is preserved.
func ParseCSV(r io.Reader) ([]domain.CancellationRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &SchemaError{Column: ColOrderNumber}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	return ParseRows(header, rows)
}

// ParseRows normalizes raw string rows under the given header. It is
// the shared entry point for the CSV and workbook loaders and for
// re-parsing exported data. Normalization is idempotent: a second pass
// over already-deduplicated output is a no-op.
func ParseRows(header []string, rows [][]string) ([]domain.CancellationRecord, error) {
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	records := make([]domain.CancellationRecord, 0, len(rows))
	seen := make(map[domain.RecordKey]struct{}, len(rows))
	dropped := 0

	for i, row := range rows {
		if emptyRow(row) {
			continue
		}

		rec, err := parseRow(columns, i+1, row)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[rec.Key()]; dup {
			dropped++
			continue
		}
		seen[rec.Key()] = struct{}{}

		rec.Features = Derive(rec)
		records = append(records, rec)
	}

	if dropped > 0 {
		slog.Debug("dropped duplicate cancellation rows",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(records)))
	}

	return records, nil
}

// mapColumns maps required column names to their positions in the
// header, trimming header cells the way data cells are trimmed. BOM
// pollution on the first cell is tolerated.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		columns[name] = i
	}

	for _, required := range RequiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, &SchemaError{Column: required}
		}
	}

	return columns, nil
}

func parseRow(columns map[string]int, rowNum int, row []string) (domain.CancellationRecord, error) {
	cell := func(col string) string {
		idx := columns[col]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var rec domain.CancellationRecord
	var err error

	orderNumber := cell(ColOrderNumber)
	rec.OrderNumber, err = strconv.Atoi(strings.ReplaceAll(orderNumber, ",", ""))
	if err != nil {
		return rec, &ParseError{Row: rowNum, Field: ColOrderNumber, Value: orderNumber, Err: err}
	}

	rec.ModifiedItem = cell(ColModifiedItem)
	rec.ModifyReason = cell(ColModifyReason)
	rec.OrderEnteredBy = cell(ColOrderEnteredBy)
	rec.Who = cell(ColWho)

	rec.OrderTime, err = parseTimestamp(cell(ColOrderTime))
	if err != nil {
		return rec, &ParseError{Row: rowNum, Field: ColOrderTime, Value: cell(ColOrderTime), Err: err}
	}

	rec.CancelTime, err = parseTimestamp(cell(ColCancelTime))
	if err != nil {
		return rec, &ParseError{Row: rowNum, Field: ColCancelTime, Value: cell(ColCancelTime), Err: err}
	}

	amount := cell(ColReducedAmount)
	rec.ReducedAmount, err = strconv.ParseFloat(strings.ReplaceAll(amount, ",", ""), 64)
	if err != nil {
		return rec, &ParseError{Row: rowNum, Field: ColReducedAmount, Value: amount, Err: err}
	}

	return rec, nil
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(domain.TimestampLayout, value)
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
