package sortorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/store"
	"github.com/roach88/loadorder/internal/testutil"
)

func TestDiffItems(t *testing.T) {
	a := ir.SortableItem{Key: "A", SortIndex: 0, IsEnabled: true}
	b := ir.SortableItem{Key: "B", SortIndex: 1, IsEnabled: true}
	c := ir.SortableItem{Key: "C", SortIndex: 2, IsEnabled: true}
	bMoved := ir.SortableItem{Key: "B", SortIndex: 0, IsEnabled: true}

	cs := diffItems([]ir.SortableItem{a, b}, []ir.SortableItem{bMoved, c})
	assert.Equal(t, []ir.SortableItem{c}, cs.Added)
	assert.Equal(t, []ir.SortableItem{bMoved}, cs.Updated)
	assert.Equal(t, []string{"A"}, cs.Removed)
	assert.False(t, cs.Empty())

	assert.True(t, diffItems([]ir.SortableItem{a}, []ir.SortableItem{a}).Empty())
}

func TestAffects(t *testing.T) {
	loadoutOrder := ir.SortOrder{ID: "so-1", LoadoutID: "L1", Parent: ir.LoadoutParent("L1")}
	collectionOrder := ir.SortOrder{ID: "so-2", LoadoutID: "L1", Parent: ir.CollectionParent("L1", "C1")}

	tests := []struct {
		name string
		e    store.Event
		so   ir.SortOrder
		want bool
	}{
		{"own order changed", store.Event{Kind: store.SortOrderChanged, SortOrderID: "so-1"}, loadoutOrder, true},
		{"other order changed", store.Event{Kind: store.SortOrderChanged, SortOrderID: "so-9"}, loadoutOrder, false},
		{"loadout members", store.Event{Kind: store.MembersChanged, LoadoutID: "L1"}, loadoutOrder, true},
		{"collection members seen by loadout", store.Event{Kind: store.MembersChanged, LoadoutID: "L1", CollectionGroupID: "C2"}, loadoutOrder, true},
		{"other collection members", store.Event{Kind: store.MembersChanged, LoadoutID: "L1", CollectionGroupID: "C2"}, collectionOrder, false},
		{"own collection members", store.Event{Kind: store.MembersChanged, LoadoutID: "L1", CollectionGroupID: "C1"}, collectionOrder, true},
		{"other loadout", store.Event{Kind: store.MembersChanged, LoadoutID: "L2"}, loadoutOrder, false},
		{"loadout added", store.Event{Kind: store.LoadoutAdded, LoadoutID: "L1"}, loadoutOrder, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, affects(tt.e, tt.so))
		})
	}
}

func receive(t *testing.T, ch <-chan ChangeSet) ChangeSet {
	t.Helper()
	select {
	case cs, ok := <-ch:
		require.True(t, ok, "change set channel closed")
		return cs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change set")
		return ChangeSet{}
	}
}

func TestGetSortableItemsChangeSet(t *testing.T) {
	s := testutil.OpenStore(t)
	testutil.SeedLoadout(t, s, "L1", testGame)
	testutil.SeedMembers(t, s, "L1", "plugin", "A", "B")
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := v.GetSortableItemsChangeSet(ctx, id)
	require.NoError(t, err)

	initial := receive(t, ch)
	assert.Len(t, initial.Added, 2)
	assert.Equal(t, initial.Added, initial.Items)

	_, err = v.MoveItemDelta(ctx, id, "B", -1)
	require.NoError(t, err)
	moved := receive(t, ch)
	assert.Empty(t, moved.Added)
	assert.Len(t, moved.Updated, 2)
	assert.Equal(t, "B", moved.Items[0].Key)

	_, err = s.SetModEnabled(ctx, "L1", "A", false)
	require.NoError(t, err)
	toggled := receive(t, ch)
	require.Len(t, toggled.Updated, 1)
	assert.Equal(t, "A", toggled.Updated[0].Key)
	assert.False(t, toggled.Updated[0].IsEnabled)

	require.NoError(t, v.DeleteSortOrder(ctx, id))
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel closes when the sort order is deleted")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after delete")
	}
}

func TestGetSortableItemsChangeSet_ContextDone(t *testing.T) {
	s := testutil.OpenStore(t)
	testutil.SeedLoadout(t, s, "L1", testGame)
	m, _ := newTestManager(t, s)
	v := pluginsOf(t, m)
	id := reconciled(t, v, "L1")

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := v.GetSortableItemsChangeSet(ctx, id)
	require.NoError(t, err)
	receive(t, ch)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestGetSortableItemsChangeSet_Missing(t *testing.T) {
	s := testutil.OpenStore(t)
	m, _ := newTestManager(t, s)
	_, err := pluginsOf(t, m).GetSortableItemsChangeSet(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
