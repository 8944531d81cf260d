package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-planner/internal/planner/geometry"
	"safety-planner/internal/planner/models"
	"safety-planner/internal/planner/snapshot"
	"safety-planner/internal/planner/versioning"
)

func sampleSnapshot(t *testing.T) *snapshot.Flat {
	t.Helper()
	ws := models.NewWorkspace()
	plan, err := models.NewPlan("Warehouse", "", 0.01)
	require.NoError(t, err)
	require.NoError(t, ws.AddPlan(plan))

	layer, err := models.NewLayer("ground", models.LayerArchitectural, 0)
	require.NoError(t, err)
	zone, err := models.NewZone(layer.ID, geometry.Polygon{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}, "storage")
	require.NoError(t, err)
	finding, err := models.NewFinding(plan.ID, models.FindingFireRisk, 4, 2, "open flame near racks")
	require.NoError(t, err)
	finding.ZoneID = zone.ID

	v := versioning.New()
	_, err = v.Commit(ws, plan.ID, versioning.CommitOptions{Message: "layout"}, func(s *models.PlanState) error {
		if err := s.AddLayer(layer); err != nil {
			return err
		}
		return s.AddElement(zone)
	})
	require.NoError(t, err)
	_, err = v.Commit(ws, plan.ID, versioning.CommitOptions{Message: "inspection"}, func(s *models.PlanState) error {
		return s.AddFinding(finding)
	})
	require.NoError(t, err)

	return snapshot.Serialize(ws)
}

// sameSnapshot сравнивает снимки по каноническому CBOR.
func sameSnapshot(t *testing.T, want, got *snapshot.Flat) {
	t.Helper()
	a, err := snapshot.EncodeCBOR(want)
	require.NoError(t, err)
	b, err := snapshot.EncodeCBOR(got)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func openSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "planner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSQLiteStore(db)
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty database", func(t *testing.T) {
		store := openSQLiteStore(t)
		f, ok, err := store.Load(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, f)
	})

	t.Run("save and load", func(t *testing.T) {
		store := openSQLiteStore(t)
		flat := sampleSnapshot(t)
		require.NoError(t, store.Save(ctx, flat))

		loaded, ok, err := store.Load(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		sameSnapshot(t, flat, loaded)

		ws, err := snapshot.Deserialize(loaded)
		require.NoError(t, err)
		assert.Len(t, ws.Commits, 2)
	})

	t.Run("save replaces previous snapshot", func(t *testing.T) {
		store := openSQLiteStore(t)
		require.NoError(t, store.Save(ctx, sampleSnapshot(t)))

		second := sampleSnapshot(t)
		require.NoError(t, store.Save(ctx, second))

		loaded, ok, err := store.Load(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, loaded.Plans, 1)
		sameSnapshot(t, second, loaded)
	})

	t.Run("init is repeatable", func(t *testing.T) {
		store := openSQLiteStore(t)
		assert.NoError(t, store.Init(ctx))
		assert.NoError(t, store.Ping(ctx))
	})

	t.Run("nil snapshot", func(t *testing.T) {
		store := openSQLiteStore(t)
		assert.Error(t, store.Save(ctx, nil))
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"workspace.json", "workspace.cbor"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state", name)
			store, err := NewFileStore(path)
			require.NoError(t, err)

			_, ok, err := store.Load(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			flat := sampleSnapshot(t)
			require.NoError(t, store.Save(ctx, flat))

			loaded, ok, err := store.Load(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			sameSnapshot(t, flat, loaded)

			// Временные файлы не остаются рядом со снимком.
			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		store, err := NewFileStore(path)
		require.NoError(t, err)
		_, _, err = store.Load(ctx)
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := NewFileStore("  ")
		assert.Error(t, err)
	})
}

func TestOpenPicksAdapterByExtension(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, closeFn, err := Open(ctx, filepath.Join(dir, "planner.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, a)
	require.NoError(t, closeFn())

	a, closeFn, err = Open(ctx, filepath.Join(dir, "planner.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, a)
	require.NoError(t, closeFn())
}
