package dataset

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storeTestCSV = `Order Number,Modified Item,Modify Reason,Order Entered By,Who?,Order Time,When?,Reduced Amount
100,Burger,Out of Stock,Ali,Sara,14-May-2025 8:10 PM,14-May-2025 8:25 PM,25.50
101,Pizza,Wrong Order,Nora,Omar,15-May-2025 11:45 AM,15-May-2025 12:00 PM,12.75
`

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cancellations.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStoreLoad(t *testing.T) {
	ctx := context.Background()
	store := NewStore(writeSource(t, storeTestCSV), slog.Default())

	snapshot, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Len())
	assert.NotEmpty(t, snapshot.Hash())
	assert.False(t, snapshot.LoadedAt().IsZero())

	cached, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, snapshot, cached, "snapshot is cached, not rebuilt")
}

func TestStoreSnapshotBeforeLoad(t *testing.T) {
	store := NewStore(writeSource(t, storeTestCSV), slog.Default())

	_, err := store.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestStoreReloadUnchangedKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewStore(writeSource(t, storeTestCSV), slog.Default())

	first, err := store.Load(ctx)
	require.NoError(t, err)

	swapped, err := store.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, swapped)

	cached, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, first, cached)
}

func TestStoreReloadSwapsOnContentChange(t *testing.T) {
	ctx := context.Background()
	path := writeSource(t, storeTestCSV)
	store := NewStore(path, slog.Default())

	first, err := store.Load(ctx)
	require.NoError(t, err)

	extended := storeTestCSV + "102,Pasta,Out of Stock,Omar,Ali,16-May-2025 2:00 AM,16-May-2025 2:10 AM,18.00\n"
	require.NoError(t, os.WriteFile(path, []byte(extended), 0644))

	swapped, err := store.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, swapped)

	cached, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash(), cached.Hash())
	assert.Equal(t, 3, cached.Len())
}

func TestStoreReloadParseFailureKeepsOldSnapshot(t *testing.T) {
	ctx := context.Background()
	path := writeSource(t, storeTestCSV)
	store := NewStore(path, slog.Default())

	first, err := store.Load(ctx)
	require.NoError(t, err)

	broken := storeTestCSV + "103,Pasta,Out of Stock,Omar,Ali,garbage,16-May-2025 2:10 AM,18.00\n"
	require.NoError(t, os.WriteFile(path, []byte(broken), 0644))

	_, err = store.Reload(ctx)
	require.Error(t, err, "partial loads are rejected wholesale")

	cached, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, first, cached)
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.csv"), slog.Default())

	_, err := store.Load(context.Background())
	assert.Error(t, err)
}
