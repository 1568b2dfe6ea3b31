package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadorder/internal/ir"
)

func variety(id, kind string) ir.VarietyDef {
	return ir.VarietyDef{Descriptor: ir.VarietyDescriptor{ID: ir.VarietyID(id), Name: kind, Kind: kind}}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	plugins := variety("a", "plugin")
	plugins.Extensions = []string{".esm", ".esp"}
	plugins.Anchors = []string{"Skyrim.esm"}

	cat := ir.Catalog{Games: []ir.GameDef{
		{ID: "skyrimse", Varieties: []ir.VarietyDef{plugins, variety("b", "archive")}},
		{ID: "fallout4", Varieties: []ir.VarietyDef{variety("c", "plugin")}},
	}}
	assert.Empty(t, Validate(cat))
}

func TestValidateDuplicates(t *testing.T) {
	cat := ir.Catalog{Games: []ir.GameDef{
		{ID: "skyrimse", Varieties: []ir.VarietyDef{variety("a", "plugin"), variety("b", "plugin")}},
		{ID: "skyrimse", Varieties: []ir.VarietyDef{variety("a", "archive")}},
	}}

	errs := Validate(cat)
	assert.Equal(t, []string{ErrDuplicateKind, ErrDuplicateGame, ErrDuplicateVariety}, codes(errs))
	assert.Equal(t, "games[1].varieties[0].id", errs[2].Field)
	assert.Contains(t, errs[2].Error(), "already used by skyrimse/plugin")
}

func TestValidateAnchorsAndExtensions(t *testing.T) {
	v := variety("a", "plugin")
	v.Extensions = []string{".esp", "esm"}
	v.Anchors = []string{"Skyrim.esm", "Update.ESP", "Update.ESP"}

	errs := Validate(ir.Catalog{Games: []ir.GameDef{{ID: "g", Varieties: []ir.VarietyDef{v}}}})
	require.Len(t, errs, 3)
	assert.Equal(t, []string{ErrBadExtension, ErrAnchorExtension, ErrDuplicateAnchor}, codes(errs))
	assert.Equal(t, "games[0].varieties[0].anchors[0]", errs[1].Field)
}

func TestHasExtension(t *testing.T) {
	exts := []string{".esp", ".ESM"}
	assert.True(t, HasExtension("Foo.ESP", exts))
	assert.True(t, HasExtension("Skyrim.esm", exts))
	assert.False(t, HasExtension("Foo.bsa", exts))
	assert.False(t, HasExtension("esp", exts))
}
