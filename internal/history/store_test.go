package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runcell/pkg/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "runcell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := NewStore(database)
	require.NoError(t, store.Migrate())
	return store
}

func TestStoreRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, run := range []Run{
		{ID: "run-1", SessionID: "s1", Language: "shell", Code: "echo one", Status: StatusOK, Duration: 120 * time.Millisecond},
		{ID: "run-2", SessionID: "s1", Language: "python", Code: "print(2)", Status: StatusError, Duration: 40 * time.Millisecond},
		{ID: "run-3", SessionID: "s2", Language: "shell", Code: "echo three", Status: StatusOK, Duration: 5 * time.Millisecond},
	} {
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Record(ctx, run))
	}

	runs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
	assert.Equal(t, 40*time.Millisecond, runs[1].Duration)
	assert.Equal(t, StatusError, runs[1].Status)
}

func TestStoreBySession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		session := "s1"
		if id == "b" {
			session = "s2"
		}
		require.NoError(t, store.Record(ctx, Run{
			ID:        id,
			SessionID: session,
			Language:  "shell",
			Code:      "true",
			Status:    StatusOK,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	runs, err := store.BySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)
	assert.Equal(t, "c", runs[1].ID)
}

func TestStorePurge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Minute)
	require.NoError(t, store.Record(ctx, Run{ID: "old", SessionID: "s", Language: "shell", Code: "true", Status: StatusOK, StartedAt: old}))
	require.NoError(t, store.Record(ctx, Run{ID: "new", SessionID: "s", Language: "shell", Code: "true", Status: StatusOK, StartedAt: recent}))

	removed, err := store.Purge(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}

func TestStoreMigrateIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate())
	require.NoError(t, store.Migrate())
}
