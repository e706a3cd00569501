package services

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canceldash/internal/dataprocessing"
	"canceldash/internal/dataset"
	apierrors "canceldash/internal/errors"
)

const serviceTestCSV = `Order Number,Modified Item,Modify Reason,Order Entered By,Who?,Order Time,When?,Reduced Amount
100,Burger,Out of Stock,Ali,Sara,14-May-2025 8:10 PM,14-May-2025 8:25 PM,25.50
101,Pizza,Wrong Order,Nora,Omar,15-May-2025 11:45 AM,15-May-2025 12:00 PM,12.75
102,Pasta,Out of Stock,Ali,Sara,15-May-2025 7:00 PM,15-May-2025 7:30 PM,18.00
103,.,Customer Request,Zain,Lina,16-May-2025 2:05 AM,16-May-2025 2:20 AM,40.00
`

func newTestService(t *testing.T) *DashboardService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cancellations.csv")
	require.NoError(t, os.WriteFile(path, []byte(serviceTestCSV), 0644))

	logger := slog.Default()
	store := dataset.NewStore(path, logger)
	_, err := store.Load(context.Background())
	require.NoError(t, err)

	summarizer := dataprocessing.NewSummarizer(logger, dataprocessing.DefaultSummarizerConfig())
	return NewDashboardService(store, summarizer, logger)
}

func TestDashboardService_Records(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	all, err := svc.Records(ctx, dataprocessing.FilterSpec{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	filtered, err := svc.Records(ctx, dataprocessing.FilterSpec{Staff: "Ali"})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, 100, filtered[0].OrderNumber)
	assert.Equal(t, 102, filtered[1].OrderNumber)
}

func TestDashboardService_Summary(t *testing.T) {
	svc := newTestService(t)

	summary, err := svc.Summary(context.Background(), dataprocessing.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Overview.TotalCancellations)
	assert.InDelta(t, 96.25, summary.Overview.TotalAmount, 0.001)
	assert.Len(t, summary.ByPeriod, 4)
	assert.Len(t, summary.ByHour, 24)
}

func TestDashboardService_TableByName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, name := range TableNames {
		table, err := svc.TableByName(ctx, name, dataprocessing.FilterSpec{})
		require.NoError(t, err, "table %s", name)
		assert.NotNil(t, table, "table %s", name)
	}

	_, err := svc.TableByName(ctx, "no_such_table", dataprocessing.FilterSpec{})
	require.Error(t, err)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestDashboardService_FilterOptions(t *testing.T) {
	svc := newTestService(t)

	opts, err := svc.FilterOptions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Customer Request", "Out of Stock", "Wrong Order"}, opts.Reasons)
	assert.Equal(t, []string{"Ali", "Nora", "Zain"}, opts.Staff)
	assert.Len(t, opts.Periods, 4)
	assert.Equal(t, "2025-05-14", opts.MinDate)
	assert.Equal(t, "2025-05-16", opts.MaxDate)
}

func TestDashboardService_ExportRecordsCSV(t *testing.T) {
	svc := newTestService(t)

	var buf bytes.Buffer
	err := svc.ExportRecordsCSV(context.Background(), dataprocessing.FilterSpec{Staff: "Ali"}, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\xef\xbb\xbf"), "csv carries a UTF-8 BOM")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3, "header plus two Ali rows")
	assert.Contains(t, lines[0], "Time_Period")
}

func TestDashboardService_DatasetNotLoaded(t *testing.T) {
	store := dataset.NewStore(filepath.Join(t.TempDir(), "absent.csv"), slog.Default())
	summarizer := dataprocessing.NewSummarizer(slog.Default(), dataprocessing.DefaultSummarizerConfig())
	svc := NewDashboardService(store, summarizer, slog.Default())

	_, err := svc.Summary(context.Background(), dataprocessing.FilterSpec{})
	assert.ErrorIs(t, err, apierrors.ErrDatasetNotLoaded)
}

func TestDashboardService_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cancellations.csv")
	require.NoError(t, os.WriteFile(path, []byte(serviceTestCSV), 0644))

	logger := slog.Default()
	store := dataset.NewStore(path, logger)
	_, err := store.Load(context.Background())
	require.NoError(t, err)
	svc := NewDashboardService(store, dataprocessing.NewSummarizer(logger, dataprocessing.DefaultSummarizerConfig()), logger)
	ctx := context.Background()

	swapped, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, swapped, "unchanged source keeps the snapshot")

	extra := serviceTestCSV + "104,Salad,Wrong Order,Ali,Sara,16-May-2025 1:00 PM,16-May-2025 1:10 PM,9.00\n"
	require.NoError(t, os.WriteFile(path, []byte(extra), 0644))

	swapped, err = svc.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, swapped)

	records, err := svc.Records(ctx, dataprocessing.FilterSpec{})
	require.NoError(t, err)
	assert.Len(t, records, 5)

	// A broken rewrite keeps the old snapshot and surfaces a 422.
	require.NoError(t, os.WriteFile(path, []byte("not,a,real,header\n1,2,3,4\n"), 0644))
	_, err = svc.Reload(ctx)
	require.Error(t, err)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.StatusCode)

	records, err = svc.Records(ctx, dataprocessing.FilterSpec{})
	require.NoError(t, err)
	assert.Len(t, records, 5, "previous snapshot survives a bad reload")
}

func TestHealthService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cancellations.csv")
	require.NoError(t, os.WriteFile(path, []byte(serviceTestCSV), 0644))

	store := dataset.NewStore(path, slog.Default())
	health := NewHealthService(store, "1.2.3", slog.Default())
	ctx := context.Background()

	status := health.Check(ctx)
	assert.Equal(t, "degraded", status.Status)
	assert.False(t, status.DatasetLoaded)
	assert.False(t, health.Ready(ctx))

	_, err := store.Load(ctx)
	require.NoError(t, err)

	status = health.Check(ctx)
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.DatasetLoaded)
	assert.Equal(t, 4, status.RecordCount)
	assert.Equal(t, "1.2.3", status.Version)
	assert.WithinDuration(t, time.Now(), status.CheckedAt, time.Minute)
	assert.True(t, health.Ready(ctx))
}
