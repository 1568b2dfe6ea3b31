package varieties

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/roach88/loadorder/internal/compiler"
	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/sortorder"
)

//go:embed builtin.cue
var builtinSource []byte

// Builtin compiles the catalog shipped with the binary.
func Builtin() (ir.Catalog, error) {
	return compiler.CompileSource("builtin.cue", builtinSource)
}

// Load compiles the catalog files at paths, or the builtin catalog when
// paths is empty, and checks it with compiler.Validate.
func Load(paths ...string) (ir.Catalog, error) {
	var (
		cat ir.Catalog
		err error
	)
	if len(paths) == 0 {
		cat, err = Builtin()
	} else {
		cat, err = compiler.CompileFiles(paths...)
	}
	if err != nil {
		return ir.Catalog{}, err
	}
	if verrs := compiler.Validate(cat); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return ir.Catalog{}, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return cat, nil
}

// Definitions builds one sortorder.Definition per variety of g, in catalog order.
func Definitions(g ir.GameDef) []sortorder.Definition {
	defs := make([]sortorder.Definition, len(g.Varieties))
	for i, v := range g.Varieties {
		defs[i] = sortorder.Definition{
			Descriptor: v.Descriptor,
			Policy:     NewPolicy(v),
		}
	}
	return defs
}

// ForGame looks up gameID in cat and returns its definitions.
func ForGame(cat ir.Catalog, gameID string) ([]sortorder.Definition, error) {
	g, ok := cat.Game(gameID)
	if !ok {
		return nil, fmt.Errorf("game %q is not in the catalog", gameID)
	}
	return Definitions(g), nil
}
