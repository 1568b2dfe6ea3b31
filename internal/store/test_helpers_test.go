package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/loadorder/internal/ir"
)

// createTestStore creates a new store in a temp directory with
// deterministic ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(NewSequentialGenerator("id")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedLoadout creates a loadout with the given id for game "skyrimse".
func seedLoadout(t *testing.T, s *Store, id ir.LoadoutID) ir.Loadout {
	t.Helper()
	l, err := s.CreateLoadout(context.Background(), ir.Loadout{ID: id, GameID: "skyrimse", Name: string(id)})
	if err != nil {
		t.Fatalf("CreateLoadout() failed: %v", err)
	}
	return l
}

// testMember builds an enabled plugin member.
func testMember(loadout ir.LoadoutID, mod, key string) ir.Member {
	return ir.Member{
		LoadoutID:  loadout,
		ModGroupID: mod,
		ModName:    mod,
		Kind:       "plugin",
		Key:        key,
		Enabled:    true,
	}
}
