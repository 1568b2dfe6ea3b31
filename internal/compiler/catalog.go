package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"

	"github.com/roach88/loadorder/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// CompileFiles reads CUE files and compiles them as one catalog.
// Files are unified, so a game may be split across several of them.
func CompileFiles(paths ...string) (ir.Catalog, error) {
	if len(paths) == 0 {
		return ir.Catalog{}, fmt.Errorf("no catalog files given")
	}
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return ir.Catalog{}, fmt.Errorf("read catalog: %w", err)
		}
		f := ctx.CompileBytes(src, cue.Filename(path))
		if err := f.Err(); err != nil {
			return ir.Catalog{}, formatCUEError(err)
		}
		v = v.Unify(f)
	}
	return CompileCatalog(v)
}

// CompileSource compiles a single CUE document against the catalog schema.
func CompileSource(filename string, src []byte) (ir.Catalog, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	f := ctx.CompileBytes(src, cue.Filename(filename))
	if err := f.Err(); err != nil {
		return ir.Catalog{}, formatCUEError(err)
	}
	return CompileCatalog(schema.Unify(f))
}

// CompileCatalog parses the top-level `game` struct of a CUE value.
// Games are returned sorted by id.
func CompileCatalog(v cue.Value) (ir.Catalog, error) {
	if err := v.Validate(); err != nil {
		return ir.Catalog{}, formatCUEError(err)
	}

	cat := ir.Catalog{Games: []ir.GameDef{}}
	gamesVal := v.LookupPath(cue.ParsePath("game"))
	if !gamesVal.Exists() {
		return cat, nil
	}

	iter, err := gamesVal.Fields()
	if err != nil {
		return ir.Catalog{}, formatCUEError(err)
	}
	for iter.Next() {
		g, err := CompileGame(iter.Value())
		if err != nil {
			return ir.Catalog{}, err
		}
		cat.Games = append(cat.Games, g)
	}
	slices.SortFunc(cat.Games, func(a, b ir.GameDef) int { return strings.Compare(a.ID, b.ID) })
	return cat, nil
}

// CompileGame parses one game struct. Varieties are sorted by label.
func CompileGame(v cue.Value) (ir.GameDef, error) {
	label := lastLabel(v)
	id, err := requiredString(v, "id")
	if err != nil {
		return ir.GameDef{}, err
	}
	name, err := optionalString(v, "name", label)
	if err != nil {
		return ir.GameDef{}, err
	}

	g := ir.GameDef{ID: id, Name: name, Varieties: []ir.VarietyDef{}}
	varietiesVal := v.LookupPath(cue.ParsePath("varieties"))
	if !varietiesVal.Exists() {
		return ir.GameDef{}, &CompileError{
			Field:   "game." + label + ".varieties",
			Message: "at least one variety is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := varietiesVal.Fields()
	if err != nil {
		return ir.GameDef{}, formatCUEError(err)
	}
	var labels []string
	byLabel := make(map[string]ir.VarietyDef)
	for iter.Next() {
		def, err := CompileVariety(iter.Value())
		if err != nil {
			return ir.GameDef{}, err
		}
		labels = append(labels, iter.Selector().String())
		byLabel[iter.Selector().String()] = def
	}
	if len(labels) == 0 {
		return ir.GameDef{}, &CompileError{
			Field:   "game." + label + ".varieties",
			Message: "at least one variety is required",
			Pos:     varietiesVal.Pos(),
		}
	}
	slices.Sort(labels)
	for _, l := range labels {
		g.Varieties = append(g.Varieties, byLabel[l])
	}
	return g, nil
}

// CompileVariety parses one variety struct. The id must be a UUID and is
// returned in canonical lower-case form.
func CompileVariety(v cue.Value) (ir.VarietyDef, error) {
	label := lastLabel(v)

	rawID, err := requiredString(v, "id")
	if err != nil {
		return ir.VarietyDef{}, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return ir.VarietyDef{}, &CompileError{
			Field:   "id",
			Message: fmt.Sprintf("variety id %q is not a UUID", rawID),
			Pos:     v.LookupPath(cue.ParsePath("id")).Pos(),
		}
	}

	kind, err := requiredString(v, "kind")
	if err != nil {
		return ir.VarietyDef{}, err
	}
	name, err := optionalString(v, "name", label)
	if err != nil {
		return ir.VarietyDef{}, err
	}

	def := ir.VarietyDef{
		Descriptor: ir.VarietyDescriptor{
			ID:   ir.VarietyID(id.String()),
			Name: name,
			Kind: kind,
		},
	}

	direction, err := enumString(v, "direction", ir.SortAscending, ir.ParseSortDirection)
	if err != nil {
		return ir.VarietyDef{}, err
	}
	override, err := enumString(v, "override", ir.GreaterIndexWins, ir.ParseIndexOverrideBehavior)
	if err != nil {
		return ir.VarietyDef{}, err
	}
	insert, err := enumString(v, "insert", ir.InsertEnd, ir.ParseInsertPosition)
	if err != nil {
		return ir.VarietyDef{}, err
	}
	def.Descriptor.SortDirectionDefault = direction
	def.Descriptor.IndexOverrideBehavior = override
	def.Insert = insert

	if def.Anchors, err = stringList(v, "anchors"); err != nil {
		return ir.VarietyDef{}, err
	}
	if def.Extensions, err = stringList(v, "extensions"); err != nil {
		return ir.VarietyDef{}, err
	}
	if gb := v.LookupPath(cue.ParsePath("group_by_mod")); gb.Exists() {
		if def.GroupByMod, err = gb.Bool(); err != nil {
			return ir.VarietyDef{}, formatCUEError(err)
		}
	}

	ui, err := parseUI(v.LookupPath(cue.ParsePath("ui")))
	if err != nil {
		return ir.VarietyDef{}, err
	}
	def.Descriptor.UI = ui.WithDefaults()
	return def, nil
}

// parseUI reads the optional display text block.
func parseUI(v cue.Value) (ir.UIMetadata, error) {
	var ui ir.UIMetadata
	if !v.Exists() {
		return ui, nil
	}
	fields := map[string]*string{
		"override_info_title":        &ui.OverrideInfoTitle,
		"override_info_message":      &ui.OverrideInfoMessage,
		"winner_index_tooltip":       &ui.WinnerIndexToolTip,
		"index_column_header":        &ui.IndexColumnHeader,
		"display_name_column_header": &ui.DisplayNameColumnHeader,
		"empty_state_title":          &ui.EmptyStateTitle,
		"empty_state_message":        &ui.EmptyStateMessage,
		"load_order_heading_title":   &ui.LoadOrderHeadingTitle,
		"load_order_heading_text":    &ui.LoadOrderHeadingText,
	}
	for field, dst := range fields {
		s, err := optionalString(v, field, "")
		if err != nil {
			return ir.UIMetadata{}, err
		}
		*dst = s
	}
	return ui, nil
}

func lastLabel(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return sels[len(sels)-1].String()
}

// requiredString returns a concrete string field or a CompileError.
func requiredString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() || !f.IsConcrete() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if strings.TrimSpace(s) == "" {
		return "", &CompileError{
			Field:   field,
			Message: field + " must be non-empty",
			Pos:     f.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, field, def string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return def, nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// enumString reads a string field, applies its default when absent and
// checks it with parse.
func enumString[T ~string](v cue.Value, field string, def T, parse func(string) (T, error)) (T, error) {
	s, err := optionalString(v, field, string(def))
	if err != nil {
		return "", err
	}
	out, err := parse(s)
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: err.Error(),
			Pos:     v.LookupPath(cue.ParsePath(field)).Pos(),
		}
	}
	return out, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Report the first error that carries a position.
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
