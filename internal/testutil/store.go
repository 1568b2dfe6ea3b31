package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/store"
)

// OpenStore opens a store in a temp directory with sequential ids
// ("id-1", "id-2", ...). It is closed when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "loadorder.db"),
		store.WithIDGenerator(store.NewSequentialGenerator("id")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedLoadout creates a loadout with a fixed id.
func SeedLoadout(t testing.TB, s *store.Store, id ir.LoadoutID, gameID string) {
	t.Helper()
	_, err := s.CreateLoadout(context.Background(), ir.Loadout{ID: id, GameID: gameID, Name: string(id)})
	require.NoError(t, err)
}

// SeedCollection creates a collection group with a fixed id.
func SeedCollection(t testing.TB, s *store.Store, loadout ir.LoadoutID, id ir.CollectionGroupID) {
	t.Helper()
	_, err := s.CreateCollectionGroup(context.Background(), ir.CollectionGroup{ID: id, LoadoutID: loadout, Name: string(id)})
	require.NoError(t, err)
}

// SeedMembers adds one enabled member of kind per key. Each key gets its
// own mod group named after the key.
func SeedMembers(t testing.TB, s *store.Store, loadout ir.LoadoutID, kind string, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, err := s.AddMember(context.Background(), Member(loadout, k, kind, k))
		require.NoError(t, err)
	}
}

// Member builds an enabled member whose mod name equals its mod group.
func Member(loadout ir.LoadoutID, mod, kind, key string) ir.Member {
	return ir.Member{
		LoadoutID:  loadout,
		ModGroupID: mod,
		ModName:    mod,
		Kind:       kind,
		Key:        key,
		Enabled:    true,
	}
}

// SortKeys loads a sort order and returns its keys in index order.
func SortKeys(t testing.TB, s store.Reader, id ir.SortOrderID) []string {
	t.Helper()
	so, err := s.LoadSortOrder(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, ir.CheckDense(so.Items))
	return ir.Keys(so.Items)
}

// SetOrder creates the sort order of (parent, variety) and writes keys
// directly, bypassing reconciliation.
func SetOrder(t testing.TB, s *store.Store, parent ir.ParentEntity, variety ir.VarietyID, keys ...string) ir.SortOrderID {
	t.Helper()
	ctx := context.Background()
	id, _, err := s.CreateSortOrder(ctx, parent, variety)
	require.NoError(t, err)
	_, err = s.ReplaceSortItems(ctx, id, ir.FromKeys(keys))
	require.NoError(t, err)
	return id
}
