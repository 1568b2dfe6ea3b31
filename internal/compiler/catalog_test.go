package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadorder/internal/ir"
)

func TestCompileFiles(t *testing.T) {
	cat, err := CompileFiles("testdata/games.cue")
	require.NoError(t, err)
	require.Len(t, cat.Games, 2)

	assert.Equal(t, "cyberpunk2077", cat.Games[0].ID, "games are sorted by id")
	sky, ok := cat.Game("skyrimse")
	require.True(t, ok)
	assert.Equal(t, "Skyrim Special Edition", sky.Name)
	require.Len(t, sky.Varieties, 2)

	archives, plugins := sky.Varieties[0], sky.Varieties[1]
	assert.Equal(t, "archives", archives.Descriptor.Name, "name defaults to the label")
	assert.Equal(t, ir.InsertEnd, archives.Insert)
	assert.Equal(t, ir.GreaterIndexWins, archives.Descriptor.IndexOverrideBehavior)
	assert.Equal(t, ir.SortAscending, archives.Descriptor.SortDirectionDefault)
	assert.Empty(t, archives.Anchors)
	assert.False(t, archives.GroupByMod)

	assert.Equal(t, ir.VarietyID("949fc50a-c4ba-49eb-9a82-b3f2be5849e2"), plugins.Descriptor.ID)
	assert.Equal(t, "plugin", plugins.Descriptor.Kind)
	assert.Equal(t, ir.InsertStart, plugins.Insert)
	assert.True(t, plugins.GroupByMod)
	assert.Equal(t, []string{"Skyrim.esm", "Update.esm", "Dawnguard.esm"}, plugins.Anchors)
	assert.Equal(t, []string{".esm", ".esp", ".esl"}, plugins.Extensions)
	assert.Equal(t, "Plugin File Name", plugins.Descriptor.UI.DisplayNameColumnHeader)
	assert.Equal(t, "LOAD ORDER", plugins.Descriptor.UI.IndexColumnHeader, "unset UI text gets defaults")

	cp, ok := cat.Game("cyberpunk2077")
	require.True(t, ok)
	require.Len(t, cp.Varieties, 1)
	assert.Equal(t, ir.LowerIndexWins, cp.Varieties[0].Descriptor.IndexOverrideBehavior)

	assert.Empty(t, Validate(cat))
}

func TestCompileFiles_Errors(t *testing.T) {
	_, err := CompileFiles()
	assert.Error(t, err)

	_, err = CompileFiles("testdata/missing.cue")
	assert.ErrorContains(t, err, "read catalog")

	_, err = CompileFiles("testdata/bad_uuid.cue")
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "id", cerr.Field)
	assert.Contains(t, cerr.Message, "not a UUID")
	assert.True(t, cerr.Pos.IsValid())
	assert.Contains(t, err.Error(), "bad_uuid.cue")

	_, err = CompileFiles("testdata/unknown_field.cue")
	assert.Error(t, err, "closed schema rejects unknown fields")
}

func TestCompileSource_MissingFields(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"game id", `game: g: varieties: v: { id: "949fc50a-c4ba-49eb-9a82-b3f2be5849e2", kind: "plugin" }`, "id"},
		{"variety id", `game: g: { id: "g", varieties: v: kind: "plugin" }`, "id"},
		{"variety kind", `game: g: { id: "g", varieties: v: id: "949fc50a-c4ba-49eb-9a82-b3f2be5849e2" }`, "kind"},
		{"no varieties", `game: g: { id: "g" }`, "game.g.varieties"},
		{"empty kind", `game: g: { id: "g", varieties: v: { id: "949fc50a-c4ba-49eb-9a82-b3f2be5849e2", kind: "" } }`, "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource("inline.cue", []byte(tt.src))
			var cerr *CompileError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestCompileSource_BadEnums(t *testing.T) {
	tests := []struct {
		field string
		value string
	}{
		{"direction", "sideways"},
		{"override", "last_wins"},
		{"insert", "middle"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			src := `game: g: { id: "g", varieties: v: { id: "949fc50a-c4ba-49eb-9a82-b3f2be5849e2", kind: "plugin", ` +
				tt.field + `: "` + tt.value + `" } }`
			_, err := CompileSource("inline.cue", []byte(src))
			var cerr *CompileError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
			assert.Contains(t, cerr.Message, tt.value)
		})
	}
}

func TestCompileSource_Syntax(t *testing.T) {
	_, err := CompileSource("broken.cue", []byte(`game: {`))
	require.Error(t, err)
}

func TestCompileSource_Empty(t *testing.T) {
	cat, err := CompileSource("empty.cue", []byte(``))
	require.NoError(t, err)
	assert.Empty(t, cat.Games)
	assert.NotNil(t, cat.Games)
}

func TestCompileVariety_Direct(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		variety: archives: {
			id:   "5B1E7F3C-52C4-4F0E-9D59-8F3BD2CF8A11"
			kind: "archive"
			direction: "descending"
		}
	`)
	require.NoError(t, v.Err())

	def, err := CompileVariety(v.LookupPath(cue.ParsePath("variety.archives")))
	require.NoError(t, err)
	assert.Equal(t, ir.VarietyID("5b1e7f3c-52c4-4f0e-9d59-8f3bd2cf8a11"), def.Descriptor.ID)
	assert.Equal(t, "archives", def.Descriptor.Name)
	assert.Equal(t, ir.SortDescending, def.Descriptor.SortDirectionDefault)
	// Without the schema there are no defaults in CUE; Go applies them.
	assert.Equal(t, ir.InsertEnd, def.Insert)
}
