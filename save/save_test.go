package save

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

func buildGraph(t *testing.T, name string) *motion.Graph {
	t.Helper()
	g := motion.NewGraph(name, []motion.ParamDef{
		{ID: 1, Name: "open", Type: motion.ParamBool},
		{ID: 2, Name: "aim", Type: motion.ParamVector},
	})
	g.MustState("closed")
	g.MustState("opened")
	open := motion.ConditionFunc(func(ctx *motion.EvalContext) bool { return ctx.Params.Bool(1) })
	require.NoError(t, g.Connect("closed", "opened", motion.NewGroup("", open)))
	require.NoError(t, g.Validate())
	return g
}

func running(t *testing.T) *motion.Instance {
	t.Helper()
	in, err := motion.NewInstance(buildGraph(t, "door"), motion.Services{}, motion.Options{})
	require.NoError(t, err)
	in.Params().SetBool(1, true)
	in.Params().SetVector(2, common.V3(1, 2, 3))
	in.Tick(1.0 / 60)
	in.Tick(1.0 / 60)
	require.Equal(t, motion.StateID("opened"), in.Active())
	return in
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	files, err := NewFileStore(filepath.Join(t.TempDir(), "saves"))
	require.NoError(t, err)
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "saves.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]Store{"file": files, "sqlite": db}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			in := running(t)
			rec, err := Capture(in, "slot_1")
			require.NoError(t, err)
			require.NoError(t, store.Save(ctx, rec))

			loaded, err := store.Load(ctx, "slot_1")
			require.NoError(t, err)
			assert.Equal(t, rec.ID, loaded.ID)
			assert.True(t, rec.SavedAt.Equal(loaded.SavedAt))
			if diff := cmp.Diff(rec.Snapshot, loaded.Snapshot); diff != "" {
				t.Fatalf("snapshot mismatch (-saved +loaded):\n%s", diff)
			}

			fresh, err := motion.NewInstance(buildGraph(t, "door"), motion.Services{}, motion.Options{})
			require.NoError(t, err)
			require.NoError(t, Apply(fresh, loaded))
			assert.Equal(t, in.ActivePath(), fresh.ActivePath())
			assert.Equal(t, common.V3(1, 2, 3), fresh.Params().Vector(2))
			assert.Equal(t, in.TickCount(), fresh.TickCount())

			second, err := Capture(in, "slot_1")
			require.NoError(t, err)
			require.NoError(t, store.Save(ctx, second), "saving over a slot replaces it")
			loaded, err = store.Load(ctx, "slot_1")
			require.NoError(t, err)
			assert.Equal(t, second.ID, loaded.ID)

			other, err := Capture(in, "auto")
			require.NoError(t, err)
			require.NoError(t, store.Save(ctx, other))
			slots, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"auto", "slot_1"}, slots)

			require.NoError(t, store.Delete(ctx, "auto"))
			_, err = store.Load(ctx, "auto")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, "auto"), ErrNotFound)
		})
	}
}

func TestInvalidSlots(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := Capture(running(t), "../escape")
			require.NoError(t, err)
			assert.ErrorIs(t, store.Save(ctx, rec), ErrInvalidSlot)
			_, err = store.Load(ctx, "")
			assert.ErrorIs(t, err, ErrInvalidSlot)
		})
	}
}

func TestSummaries(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	rec, err := Capture(running(t), "quick")
	require.NoError(t, err)
	require.NoError(t, db.Save(ctx, rec))

	sums, err := db.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "quick", sums[0].Slot)
	assert.Equal(t, rec.ID, sums[0].ID)
	assert.Equal(t, "door", sums[0].Graph)
	assert.True(t, rec.SavedAt.Equal(sums[0].SavedAt))
}

func TestApplyRejectsOtherGraph(t *testing.T) {
	rec, err := Capture(running(t), "x")
	require.NoError(t, err)
	in, err := motion.NewInstance(buildGraph(t, "gate"), motion.Services{}, motion.Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, Apply(in, rec), ErrGraphMismatch)
}

func TestDecode(t *testing.T) {
	_, err := Decode([]byte(`{"version": 9, "snapshot": {}}`))
	assert.ErrorIs(t, err, ErrVersion)

	_, err = Decode([]byte(`{"version": 1}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "file", filepath.Join(t.TempDir(), "saves"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &SQLiteStore{}, store)

	_, err = Open(ctx, "tape", "")
	assert.Error(t, err)
}
