package sortorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/store"
	"github.com/roach88/loadorder/internal/testutil"
)

func TestReconcile_CreatesOrderFromMembership(t *testing.T) {
	s := testutil.OpenStore(t)
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B", "C")
	testutil.SeedMembers(t, s, "L1", "archive", "A.bsa")
	m, _ := newTestManager(t, s)

	id := reconciled(t, pluginsOf(t, m), "L1")
	assert.Equal(t, []string{"A", "B", "C"}, testutil.SortKeys(t, s, id))
}

func TestReconcile_Idempotent(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B", "C")
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)

	id := reconciled(t, v, "L1")
	first, err := s.LoadSortOrder(ctx, id)
	require.NoError(t, err)

	changed, err := v.ReconcileSortOrder(ctx, id, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	second, err := s.LoadSortOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReconcile_PreservesRetainedOrder(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B", "C", "D")
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	require.NoError(t, v.SetSortOrder(ctx, id, []string{"D", "B", "C", "A"}, nil))
	require.NoError(t, s.RemoveMod(ctx, "L1", "B"))
	testutil.SeedMembers(t, s, "L1", "plugin", "E")

	changed, err := v.ReconcileSortOrder(ctx, id, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"D", "C", "A", "E"}, testutil.SortKeys(t, s, id))
}

func TestReconcile_SnapshotMembership(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A")
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)
	id, err := v.GetOrCreateSortOrderFor(ctx, ir.LoadoutParent("L1"))
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Close()
	testutil.SeedMembers(t, s, "L1", "plugin", "B")

	_, err = v.ReconcileSortOrder(ctx, id, snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, testutil.SortKeys(t, s, id), "membership comes from the snapshot")

	_, err = v.ReconcileSortOrder(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, testutil.SortKeys(t, s, id))
}

func TestReconcile_DeletedSortOrder(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")
	require.NoError(t, v.DeleteSortOrder(ctx, id))

	changed, err := v.ReconcileSortOrder(ctx, id, nil)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestReconcile_RejectsPolicyThatReorders(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B")

	reverse := PolicyFunc(func(retained []string, newcomers []ir.LoadoutItem) []string {
		keys := []string{}
		for i := len(newcomers) - 1; i >= 0; i-- {
			keys = append(keys, newcomers[i].Key)
		}
		for i := len(retained) - 1; i >= 0; i-- {
			keys = append(keys, retained[i])
		}
		return keys
	})
	m := NewManager(s, WithoutPipeline())
	require.NoError(t, m.RegisterVarieties(ctx, testGame, []Definition{{
		Descriptor: ir.VarietyDescriptor{ID: pluginVariety, Name: "Plugins", Kind: "plugin"},
		Policy:     reverse,
	}}))
	v := pluginsOf(t, m)
	id, err := v.GetOrCreateSortOrderFor(ctx, ir.LoadoutParent("L1"))
	require.NoError(t, err)

	// Newcomers alone can be placed in any order.
	_, err = v.ReconcileSortOrder(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, testutil.SortKeys(t, s, id))

	// Reversing retained keys is refused and nothing is written.
	testutil.SeedMembers(t, s, "L1", "plugin", "C")
	_, err = v.ReconcileSortOrder(ctx, id, nil)
	assert.ErrorContains(t, err, "reordered retained key")
	assert.Equal(t, []string{"B", "A"}, testutil.SortKeys(t, s, id))
}

func TestGetSortableItems_JoinsMembership(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B")
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	_, err := s.SetModEnabled(ctx, "L1", "B", false)
	require.NoError(t, err)
	require.NoError(t, s.RemoveMod(ctx, "L1", "A"))

	items, err := v.GetSortableItems(ctx, id, nil)
	require.NoError(t, err)
	require.Len(t, items, 1, "keys without members are omitted")
	assert.Equal(t, ir.SortableItem{Key: "B", SortIndex: 1, IsEnabled: false, ModName: "B", ModGroupID: "B"}, items[0])
}

func TestSetSortOrder(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B", "C", "D")
	m, logs := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	require.NoError(t, v.SetSortOrder(ctx, id, []string{"C", "ghost", "A", "C"}, nil))
	assert.Equal(t, []string{"C", "A", "B", "D"}, testutil.SortKeys(t, s, id))
	assert.True(t, logs.Contains("dropped keys without live members"))
}

func TestSetSortOrder_Cancelled(t *testing.T) {
	s := testutil.OpenStore(t)
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B")
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := v.SetSortOrder(ctx, id, []string{"B", "A"}, nil)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, []string{"A", "B"}, testutil.SortKeys(t, s, id))
}

// cancelAfterLoad returns a plugin variety over storage that cancels ctx
// once the sort order has been loaded under the lock.
func cancelAfterLoad(t *testing.T, failLoad bool) (*Variety, *store.Store, ir.SortOrderID, context.Context) {
	t.Helper()
	s := testutil.OpenStore(t)
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B", "C")
	cs := &testutil.CancellingStorage{Store: s}
	m, _ := newTestManager(t, cs)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cs.Cancel, cs.FailLoad = cancel, failLoad
	return v, s, id, ctx
}

func TestMutations_CancelledAfterLoad(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, v *Variety, id ir.SortOrderID) error
	}{
		{"move items", func(ctx context.Context, v *Variety, id ir.SortOrderID) error {
			_, err := v.MoveItems(ctx, id, []string{"C"}, "A", ir.Before)
			return err
		}},
		{"move item delta", func(ctx context.Context, v *Variety, id ir.SortOrderID) error {
			_, err := v.MoveItemDelta(ctx, id, "A", 2)
			return err
		}},
		{"set sort order", func(ctx context.Context, v *Variety, id ir.SortOrderID) error {
			return v.SetSortOrder(ctx, id, []string{"C", "B", "A"}, nil)
		}},
		{"reconcile", func(ctx context.Context, v *Variety, id ir.SortOrderID) error {
			_, err := v.ReconcileSortOrder(ctx, id, nil)
			return err
		}},
	}

	for _, tt := range tests {
		for _, failLoad := range []bool{false, true} {
			name := tt.name
			if failLoad {
				name += " during load"
			}
			t.Run(name, func(t *testing.T) {
				v, s, id, ctx := cancelAfterLoad(t, failLoad)
				before := testutil.SortKeys(t, s, id)

				err := tt.run(ctx, v, id)
				require.Error(t, err)
				assert.True(t, IsCancelled(err), "got %v", err)
				assert.ErrorIs(t, err, context.Canceled)
				assert.Equal(t, before, testutil.SortKeys(t, s, id))
			})
		}
	}
}

func TestMoveItems_RelativeOrder(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B", "C", "D", "E")
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	res, err := v.MoveItems(ctx, id, []string{"D", "B"}, "A", ir.Before)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"B", "D"}, res.Applied)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"B", "D", "A", "C", "E"}, testutil.SortKeys(t, s, id))
}

func TestMoveItems_MissingKeysSkipped(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B", "C")
	m, logs := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	res, err := v.MoveItems(ctx, id, []string{"nope", "C"}, "A", ir.Before)
	require.NoError(t, err)
	assert.Equal(t, []string{"nope"}, res.Skipped)
	require.Len(t, res.Warnings, 1)
	assert.True(t, IsItemNotFound(res.Warnings[0]))
	assert.Equal(t, []string{"C", "A", "B"}, testutil.SortKeys(t, s, id))
	assert.True(t, logs.Contains("move item not found"))
}

func TestMoveItems_MissingDropTarget(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B", "C")
	m, logs := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")
	before, err := s.LoadSortOrder(ctx, id)
	require.NoError(t, err)

	res, err := v.MoveItems(ctx, id, []string{"B"}, "missing", ir.After)
	require.NoError(t, err, "a missing drop target is not an error")
	assert.True(t, res.Aborted)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Applied)

	after, err := s.LoadSortOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.True(t, logs.Contains("drop target not found"))
}

func TestMoveItemDelta(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "Native", "SandboxCore", "Foo", "Bar")
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	res, err := v.MoveItemDelta(ctx, id, "Foo", -2)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"Foo", "Native", "SandboxCore", "Bar"}, testutil.SortKeys(t, s, id))

	res, err = v.MoveItemDelta(ctx, id, "Foo", -5)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = v.MoveItemDelta(ctx, id, "Bar", 5)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = v.MoveItemDelta(ctx, id, "ghost", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, res.Skipped)
	assert.Equal(t, []string{"Foo", "Native", "SandboxCore", "Bar"}, testutil.SortKeys(t, s, id))
}

func TestMoveItems_SerializedByLock(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B", "C", "D")
	slow := testutil.NewDelayedStorage(s, 50*time.Millisecond)
	m, _ := newTestManager(t, slow)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, key := range []string{"A", "B"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = v.MoveItems(ctx, id, []string{key}, "D", ir.After)
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	assert.False(t, slow.Overlapped(), "writes never overlap")

	// The second move always sees the first one's result.
	final := testutil.SortKeys(t, s, id)
	assert.Contains(t, [][]string{
		{"C", "D", "B", "A"}, // A first, then B
		{"C", "D", "A", "B"}, // B first, then A
	}, final)

	writes := slow.Writes()
	require.Len(t, writes, 3, "reconcile plus two moves")
	assert.Equal(t, final, writes[2])
}

func TestMoveItems_LockTimeout(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B")
	m, _ := newTestManager(t, s, WithLockTimeout(30*time.Millisecond))
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	release, err := m.Lock(ctx)
	require.NoError(t, err)
	defer release()

	_, err = v.MoveItems(ctx, id, []string{"B"}, "A", ir.Before)
	require.Error(t, err)
	assert.True(t, IsLockTimeout(err))
}
