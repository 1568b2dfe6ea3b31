package varieties

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/loadorder/internal/ir"
)

func items(keys ...string) []ir.LoadoutItem {
	out := make([]ir.LoadoutItem, len(keys))
	for i, k := range keys {
		out[i] = ir.LoadoutItem{Key: k, ModGroupID: k, Seq: int64(10 + i)}
	}
	return out
}

func TestInsertPolicy_Place(t *testing.T) {
	anchors := []string{"Skyrim.esm", "Update.esm", "Dawnguard.esm"}

	tests := []struct {
		name      string
		policy    InsertPolicy
		retained  []string
		newcomers []ir.LoadoutItem
		want      []string
	}{
		{
			name:      "start",
			policy:    InsertPolicy{Insert: ir.InsertStart},
			retained:  []string{"A", "B"},
			newcomers: items("C", "D"),
			want:      []string{"C", "D", "A", "B"},
		},
		{
			name:      "end",
			policy:    InsertPolicy{Insert: ir.InsertEnd},
			retained:  []string{"A", "B"},
			newcomers: items("C", "D"),
			want:      []string{"A", "B", "C", "D"},
		},
		{
			name:   "newcomers by seq",
			policy: InsertPolicy{Insert: ir.InsertEnd},
			newcomers: []ir.LoadoutItem{
				{Key: "late", Seq: 9},
				{Key: "early", Seq: 2},
			},
			want: []string{"early", "late"},
		},
		{
			name:      "anchors first on a fresh order",
			policy:    InsertPolicy{Insert: ir.InsertStart, Anchors: anchors},
			newcomers: items("Foo.esp", "Update.esm", "Skyrim.esm"),
			want:      []string{"Skyrim.esm", "Update.esm", "Foo.esp"},
		},
		{
			name:      "new anchor merged into leading run",
			policy:    InsertPolicy{Insert: ir.InsertStart, Anchors: anchors},
			retained:  []string{"Skyrim.esm", "Dawnguard.esm", "Foo.esp"},
			newcomers: items("Bar.esp", "Update.esm"),
			want:      []string{"Skyrim.esm", "Update.esm", "Dawnguard.esm", "Bar.esp", "Foo.esp"},
		},
		{
			name:      "start inserts after anchors",
			policy:    InsertPolicy{Insert: ir.InsertStart, Anchors: anchors},
			retained:  []string{"Skyrim.esm", "Foo.esp"},
			newcomers: items("Bar.esp"),
			want:      []string{"Skyrim.esm", "Bar.esp", "Foo.esp"},
		},
		{
			name:      "end with anchors",
			policy:    InsertPolicy{Insert: ir.InsertEnd, Anchors: anchors},
			retained:  []string{"Skyrim.esm", "Foo.esp"},
			newcomers: items("Bar.esp", "Update.esm"),
			want:      []string{"Skyrim.esm", "Update.esm", "Foo.esp", "Bar.esp"},
		},
		{
			name:      "moved anchor stays where the user put it",
			policy:    InsertPolicy{Insert: ir.InsertStart, Anchors: anchors},
			retained:  []string{"Foo.esp", "Skyrim.esm"},
			newcomers: items("Update.esm"),
			want:      []string{"Update.esm", "Foo.esp", "Skyrim.esm"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Place(tt.retained, tt.newcomers))
		})
	}
}

func TestInsertPolicy_GroupByMod(t *testing.T) {
	p := InsertPolicy{Insert: ir.InsertStart, GroupByMod: true}
	newcomers := []ir.LoadoutItem{
		{Key: "b.esp", ModGroupID: "m2", Seq: 4},
		{Key: "Beta.esp", ModGroupID: "m1", Seq: 5},
		{Key: "c.ESP", ModGroupID: "m2", Seq: 6},
		{Key: "alpha.esp", ModGroupID: "m1", Seq: 7},
	}

	got := p.Place(nil, newcomers)
	// m2 was added first; inside a mod keys sort case-insensitively.
	assert.Equal(t, []string{"b.esp", "c.ESP", "alpha.esp", "Beta.esp"}, got)
}

func TestInsertPolicy_Select(t *testing.T) {
	members := []ir.Member{{Key: "Foo.ESP"}, {Key: "readme.txt"}, {Key: "Skyrim.esm"}}

	p := InsertPolicy{Extensions: []string{".esp", ".esm"}}
	got := p.Select(members)
	assert.Equal(t, []ir.Member{{Key: "Foo.ESP"}, {Key: "Skyrim.esm"}}, got)

	assert.Equal(t, members, InsertPolicy{}.Select(members))
}

func TestNewPolicy(t *testing.T) {
	def := ir.VarietyDef{Insert: ir.InsertStart, Anchors: []string{"a"}, Extensions: []string{".x"}, GroupByMod: true}
	p := NewPolicy(def)
	assert.Equal(t, InsertPolicy{Insert: ir.InsertStart, Anchors: []string{"a"}, Extensions: []string{".x"}, GroupByMod: true}, p)

	def.Anchors[0] = "changed"
	assert.Equal(t, "a", p.Anchors[0])
}
