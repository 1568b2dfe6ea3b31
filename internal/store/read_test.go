package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadorder/internal/ir"
)

func TestListLoadouts_FiltersByGame(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedLoadout(t, s, "L2")
	seedLoadout(t, s, "L1")
	_, err := s.CreateLoadout(ctx, ir.Loadout{ID: "CP", GameID: "cyberpunk2077"})
	require.NoError(t, err)

	skyrim, err := s.ListLoadouts(ctx, "skyrimse")
	require.NoError(t, err)
	require.Len(t, skyrim, 2)
	assert.Equal(t, ir.LoadoutID("L1"), skyrim[0].ID, "ordered by id")

	all, err := s.ListLoadouts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.ListLoadouts(ctx, "doom")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListMembers_ParentScoping(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedLoadout(t, s, "L1")
	_, err := s.CreateCollectionGroup(ctx, ir.CollectionGroup{ID: "C1", LoadoutID: "L1"})
	require.NoError(t, err)

	inCollection := testMember("L1", "modA", "a.esp")
	inCollection.CollectionGroupID = "C1"
	_, err = s.AddMember(ctx, inCollection)
	require.NoError(t, err)
	_, err = s.AddMember(ctx, testMember("L1", "modB", "b.esp"))
	require.NoError(t, err)
	archive := testMember("L1", "modB", "b.bsa")
	archive.Kind = "archive"
	_, err = s.AddMember(ctx, archive)
	require.NoError(t, err)

	loadoutPlugins, err := s.ListMembers(ctx, ir.LoadoutParent("L1"), "plugin")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.esp", "b.esp"}, memberKeys(loadoutPlugins))

	collection, err := s.ListMembers(ctx, ir.CollectionParent("L1", "C1"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.esp"}, memberKeys(collection))
	assert.Equal(t, ir.CollectionGroupID("C1"), collection[0].CollectionGroupID)

	everything, err := s.ListMembers(ctx, ir.LoadoutParent("L1"), "")
	require.NoError(t, err)
	assert.Len(t, everything, 3)
	for i := 1; i < len(everything); i++ {
		assert.Less(t, everything[i-1].Seq, everything[i].Seq)
	}
}

func TestListSortOrders(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedLoadout(t, s, "L1")
	parent := ir.LoadoutParent("L1")

	_, _, err := s.CreateSortOrder(ctx, parent, "variety-b")
	require.NoError(t, err)
	_, _, err = s.CreateSortOrder(ctx, parent, "variety-a")
	require.NoError(t, err)
	_, _, err = s.CreateSortOrder(ctx, ir.CollectionParent("L1", "C1"), "variety-a")
	require.NoError(t, err)

	orders, err := s.ListSortOrders(ctx, parent)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, ir.VarietyID("variety-a"), orders[0].VarietyID)
	assert.Equal(t, parent, orders[0].Parent)

	collection, err := s.ListSortOrders(ctx, ir.CollectionParent("L1", "C1"))
	require.NoError(t, err)
	require.Len(t, collection, 1)
	cid, ok := collection[0].Parent.CollectionGroupID()
	require.True(t, ok)
	assert.Equal(t, ir.CollectionGroupID("C1"), cid)
}

func TestLoadSortOrder_EmptyItems(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedLoadout(t, s, "L1")
	id, _, err := s.CreateSortOrder(ctx, ir.LoadoutParent("L1"), "variety-a")
	require.NoError(t, err)

	so, err := s.LoadSortOrder(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, so.Items)
	assert.Empty(t, so.Items)

	_, err = s.LoadSortOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func memberKeys(members []ir.Member) []string {
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.Key
	}
	return keys
}
