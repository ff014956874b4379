package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
	}
	return store, cleanup
}

func issueRecord(key, title string, labels ...string) domain.ObjectRecord {
	rec := domain.ObjectRecord{
		ID:      domain.ObjectID{Entity: "Issue", Key: key},
		Values:  map[string]any{"title": title, "number": int64(42), "score": 1.5},
		Related: map[string][]domain.ObjectID{},
	}
	for _, l := range labels {
		rec.Related["labels"] = append(rec.Related["labels"], domain.ObjectID{Entity: "Label", Key: l})
	}
	return rec
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "objects.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.db.Ping())
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "nested", "path", "to", "db")
	store, err := NewStore(nestedDir)
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, nestedDir)
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	for _, table := range []string{"objects", "relationships", "fetch_log"} {
		var tableExists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&tableExists)
		require.NoError(t, err)
		assert.Equal(t, 1, tableExists, "table %s should exist", table)
	}
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestPending(t *testing.T) {
	fsys := fstest.MapFS{
		"002_labels.up.sql":    {Data: []byte("SELECT 2;")},
		"001_initial.up.sql":   {Data: []byte("SELECT 1;")},
		"001_initial.down.sql": {Data: []byte("SELECT 0;")},
		"010_later.up.sql":     {Data: []byte("SELECT 10;")},
	}

	todo, err := pending(fsys, 1)
	require.NoError(t, err)
	assert.Equal(t, []migration{{2, "002_labels.up.sql"}, {10, "010_later.up.sql"}}, todo)

	_, err = pending(fstest.MapFS{"initial.up.sql": {}}, 0)
	assert.Error(t, err)
}

func TestStore_Close(t *testing.T) {
	store, _ := setupTestStore(t)

	assert.NoError(t, store.Close())
	assert.Error(t, store.db.Ping())
}

// ==================== RecordStore Tests ====================

func TestRecordStore_ApplyAndLoad(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	records := store.Records("gh")

	label := domain.ObjectRecord{
		ID:     domain.ObjectID{Entity: "Label", Key: "l1"},
		Values: map[string]any{"name": "bug"},
	}
	issue := issueRecord("i1", "crash", "l1")
	require.NoError(t, records.Apply(ctx, []domain.ObjectRecord{issue, label}, nil))

	loaded, err := records.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	got := loaded[0]
	assert.Equal(t, issue.ID, got.ID)
	assert.Equal(t, "crash", got.Values["title"])
	assert.Equal(t, int64(42), got.Values["number"])
	assert.Equal(t, 1.5, got.Values["score"])
	assert.Equal(t, issue.Related["labels"], got.Related["labels"])
	assert.Equal(t, label.ID, loaded[1].ID)
}

func TestRecordStore_PreservesRelationshipOrder(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	records := store.Records("gh")

	issue := issueRecord("i1", "crash", "c", "a", "b")
	require.NoError(t, records.Apply(ctx, []domain.ObjectRecord{issue}, nil))

	loaded, err := records.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, issue.Related["labels"], loaded[0].Related["labels"])
}

func TestRecordStore_UpsertReplacesRelationships(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	records := store.Records("gh")

	require.NoError(t, records.Apply(ctx, []domain.ObjectRecord{issueRecord("i1", "old", "a", "b")}, nil))
	require.NoError(t, records.Apply(ctx, []domain.ObjectRecord{issueRecord("i1", "new", "c")}, nil))

	loaded, err := records.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "new", loaded[0].Values["title"])
	assert.Equal(t, []domain.ObjectID{{Entity: "Label", Key: "c"}}, loaded[0].Related["labels"])
}

func TestRecordStore_DeleteCascadesRelationships(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	records := store.Records("gh")

	issue := issueRecord("i1", "crash", "a")
	require.NoError(t, records.Apply(ctx, []domain.ObjectRecord{issue}, nil))
	require.NoError(t, records.Apply(ctx, nil, []domain.ObjectID{issue.ID}))

	loaded, err := records.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM relationships").Scan(&n))
	assert.Zero(t, n)
}

func TestRecordStore_SourcesAreIsolated(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Records("a").Apply(ctx, []domain.ObjectRecord{issueRecord("i1", "x")}, nil))

	loaded, err := store.Records("b").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRecordStore_RejectsTemporaryIDs(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	rec := issueRecord("t1", "x")
	rec.ID.Temporary = true
	err := store.Records("gh").Apply(context.Background(), []domain.ObjectRecord{rec}, nil)
	assert.ErrorContains(t, err, "temporary")
}

func TestDecodeValues_Nested(t *testing.T) {
	values, err := decodeValues(`{"a": 1, "b": [2, 2.5], "c": {"d": 3}}`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), values["a"])
	assert.Equal(t, []any{int64(2), 2.5}, values["b"])
	assert.Equal(t, map[string]any{"d": int64(3)}, values["c"])
}

// ==================== FetchLogStore Tests ====================

func TestFetchLogStore_RecordAndList(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	log := store.FetchLog()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, log.Record(ctx, &domain.FetchRecord{
			Source:    "gh",
			Entity:    "Issue",
			Policy:    "always",
			StartedAt: start,
			EndedAt:   start.Add(time.Second),
			Success:   i != 1,
			Objects:   i,
			Error:     map[bool]string{true: "boom"}[i == 1],
		}))
	}

	recs, err := log.List(ctx, "gh", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].Objects)
	assert.True(t, recs[0].Success)
	assert.Equal(t, "boom", recs[1].Error)
	assert.False(t, recs[1].Success)
	assert.Equal(t, time.Second, recs[0].Duration())

	all, err := log.List(ctx, "gh", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFetchLogStore_Prune(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	log := store.FetchLog()

	for _, source := range []string{"a", "a", "a", "b"} {
		require.NoError(t, log.Record(ctx, &domain.FetchRecord{Source: source, Entity: "Issue"}))
	}
	require.NoError(t, log.Prune(ctx, 2))

	a, err := log.List(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, a, 2)
	b, err := log.List(ctx, "b", 0)
	require.NoError(t, err)
	assert.Len(t, b, 1)
}
