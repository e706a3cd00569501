package dataprocessing

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"canceldash/pkg/contracts/domain"
)

// ParseWorkbook reads a cancellation export saved as an Excel workbook.
// The POS system exports the same fixed schema to both CSV and XLSX;
// the sheet carrying the data is located by its header row rather than
// by name, since exports arrive with inconsistent sheet naming.
func ParseWorkbook(path string) ([]domain.CancellationRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		headerRow := findHeaderRow(rows)
		if headerRow < 0 {
			continue
		}

		slog.Debug("found cancellation data sheet",
			slog.String("sheet", sheet),
			slog.Int("header_row", headerRow),
			slog.Int("total_rows", len(rows)))

		return ParseRows(rows[headerRow], rows[headerRow+1:])
	}

	return nil, &SchemaError{Column: ColOrderNumber}
}

// findHeaderRow scans the leading rows for one containing the key
// cancellation columns. Exports sometimes carry title or summary rows
// above the header.
func findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}

	for i := 0; i < limit; i++ {
		rowText := strings.ToLower(strings.Join(rows[i], " "))
		if strings.Contains(rowText, "order number") &&
			strings.Contains(rowText, "modify reason") &&
			strings.Contains(rowText, "reduced amount") {
			return i
		}
	}

	return -1
}
