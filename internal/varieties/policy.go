package varieties

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/loadorder/internal/compiler"
	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/sortorder"
)

// InsertPolicy places newcomers according to a catalog variety.
//
// Newcomers are ordered by Seq, or with GroupByMod by the first Seq of
// their mod and then by case-folded key. Anchors that are newcomers are
// merged into the leading run of anchors already in the order. The
// remaining newcomers go right after that run (InsertStart) or after every
// retained key (InsertEnd).
type InsertPolicy struct {
	Insert     ir.InsertPosition
	Anchors    []string
	Extensions []string
	GroupByMod bool
}

var (
	_ sortorder.Policy   = InsertPolicy{}
	_ sortorder.Selector = InsertPolicy{}
)

// NewPolicy builds the policy for a catalog variety.
func NewPolicy(def ir.VarietyDef) InsertPolicy {
	return InsertPolicy{
		Insert:     def.Insert,
		Anchors:    slices.Clone(def.Anchors),
		Extensions: slices.Clone(def.Extensions),
		GroupByMod: def.GroupByMod,
	}
}

// Select keeps members whose key has one of the configured extensions.
// With no extensions every member is kept.
func (p InsertPolicy) Select(members []ir.Member) []ir.Member {
	if len(p.Extensions) == 0 {
		return members
	}
	out := make([]ir.Member, 0, len(members))
	for _, m := range members {
		if compiler.HasExtension(m.Key, p.Extensions) {
			out = append(out, m)
		}
	}
	return out
}

// Place implements sortorder.Policy.
func (p InsertPolicy) Place(retained []string, newcomers []ir.LoadoutItem) []string {
	rank := make(map[string]int, len(p.Anchors))
	for i, a := range p.Anchors {
		if _, dup := rank[a]; !dup {
			rank[a] = i
		}
	}

	var newAnchors []string
	var others []ir.LoadoutItem
	for _, item := range newcomers {
		if _, ok := rank[item.Key]; ok {
			newAnchors = append(newAnchors, item.Key)
		} else {
			others = append(others, item)
		}
	}
	slices.SortFunc(newAnchors, func(a, b string) int { return rank[a] - rank[b] })
	p.sortNewcomers(others)

	// Leading run of retained anchors.
	lead := 0
	for lead < len(retained) {
		if _, ok := rank[retained[lead]]; !ok {
			break
		}
		lead++
	}

	keys := make([]string, 0, len(retained)+len(newcomers))
	keys = append(keys, mergeAnchors(retained[:lead], newAnchors, rank)...)
	rest := make([]string, len(others))
	for i, item := range others {
		rest[i] = item.Key
	}
	if p.Insert == ir.InsertStart {
		keys = append(keys, rest...)
		keys = append(keys, retained[lead:]...)
	} else {
		keys = append(keys, retained[lead:]...)
		keys = append(keys, rest...)
	}
	return keys
}

// mergeAnchors inserts each new anchor before the first retained anchor
// with a higher rank. Retained anchors keep their relative order.
func mergeAnchors(retained, added []string, rank map[string]int) []string {
	out := make([]string, 0, len(retained)+len(added))
	i := 0
	for _, r := range retained {
		for i < len(added) && rank[added[i]] < rank[r] {
			out = append(out, added[i])
			i++
		}
		out = append(out, r)
	}
	return append(out, added[i:]...)
}

func (p InsertPolicy) sortNewcomers(items []ir.LoadoutItem) {
	if !p.GroupByMod {
		slices.SortStableFunc(items, func(a, b ir.LoadoutItem) int { return compareSeq(a.Seq, b.Seq) })
		return
	}

	fold := cases.Fold()

	// A mod's position is the first Seq any of its newcomers has.
	first := make(map[string]int64, len(items))
	for _, item := range items {
		if s, ok := first[item.ModGroupID]; !ok || item.Seq < s {
			first[item.ModGroupID] = item.Seq
		}
	}
	slices.SortStableFunc(items, func(a, b ir.LoadoutItem) int {
		if c := compareSeq(first[a.ModGroupID], first[b.ModGroupID]); c != 0 {
			return c
		}
		if c := strings.Compare(fold.String(a.Key), fold.String(b.Key)); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
}

func compareSeq(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
