package sortorder

import (
	"fmt"
	"slices"

	"github.com/roach88/loadorder/internal/ir"
)

// Policy decides where keys that are new to a sort order are placed.
//
// retained holds the keys that stay, in their current order; newcomers
// holds live items not yet ordered, in membership order. Place returns the
// full new key sequence. It must contain exactly retained plus newcomers
// and must not reorder retained keys; the engine rejects anything else.
type Policy interface {
	Place(retained []string, newcomers []ir.LoadoutItem) []string
}

// Selector is implemented by policies that narrow which members of the
// variety's kind are orderable. Without it every member of the kind is.
type Selector interface {
	Select(members []ir.Member) []ir.Member
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(retained []string, newcomers []ir.LoadoutItem) []string

// Place calls f.
func (f PolicyFunc) Place(retained []string, newcomers []ir.LoadoutItem) []string {
	return f(retained, newcomers)
}

// AppendPolicy places newcomers after every retained key.
var AppendPolicy Policy = PolicyFunc(func(retained []string, newcomers []ir.LoadoutItem) []string {
	keys := slices.Clone(retained)
	for _, item := range newcomers {
		keys = append(keys, item.Key)
	}
	return keys
})

// LiveItems reduces members to one LoadoutItem per key, ordered by the
// sequence of the winning member.
//
// When several members contribute the same key, an enabled member wins
// over a disabled one, then the most recently added wins.
func LiveItems(members []ir.Member) []ir.LoadoutItem {
	best := make(map[string]ir.Member, len(members))
	for _, m := range members {
		cur, ok := best[m.Key]
		if !ok || prefer(m, cur) {
			best[m.Key] = m
		}
	}

	items := make([]ir.LoadoutItem, 0, len(best))
	for _, m := range best {
		items = append(items, ir.LoadoutItem{
			Key:        m.Key,
			IsEnabled:  m.Enabled,
			ModName:    m.ModName,
			ModGroupID: m.ModGroupID,
			Seq:        m.Seq,
		})
	}
	slices.SortFunc(items, func(a, b ir.LoadoutItem) int {
		if a.Seq != b.Seq {
			if a.Seq < b.Seq {
				return -1
			}
			return 1
		}
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
	return items
}

func prefer(a, b ir.Member) bool {
	if a.Enabled != b.Enabled {
		return a.Enabled
	}
	return a.Seq > b.Seq
}

// checkPlacement verifies a policy result: every retained and new key
// exactly once, nothing else, retained keys in their original order.
func checkPlacement(result, retained []string, newcomers []ir.LoadoutItem) error {
	want := make(map[string]bool, len(retained)+len(newcomers))
	for _, k := range retained {
		want[k] = true
	}
	for _, item := range newcomers {
		want[item.Key] = false
	}
	if len(result) != len(want) {
		return fmt.Errorf("policy returned %d keys, want %d", len(result), len(want))
	}

	seen := make(map[string]struct{}, len(result))
	next := 0
	for _, k := range result {
		isRetained, ok := want[k]
		if !ok {
			return fmt.Errorf("policy returned unknown key %q", k)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("policy returned key %q twice", k)
		}
		seen[k] = struct{}{}
		if isRetained {
			if retained[next] != k {
				return fmt.Errorf("policy reordered retained key %q", k)
			}
			next++
		}
	}
	return nil
}
