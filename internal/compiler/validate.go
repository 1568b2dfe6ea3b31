package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/loadorder/internal/ir"
)

// Catalog validation codes (E100-E119)
const (
	ErrDuplicateGame    = "E101" // two games share an id
	ErrDuplicateVariety = "E102" // variety id used twice in the catalog
	ErrDuplicateKind    = "E103" // two varieties of one game order the same kind
	ErrDuplicateAnchor  = "E104" // anchor listed twice
	ErrAnchorExtension  = "E105" // anchor key excluded by the variety's extensions
	ErrBadExtension     = "E106" // extension without a leading dot
)

// ValidationError represents a catalog rule violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks cross-field rules CUE cannot express on its own.
// Returns all errors found (does not fail-fast).
func Validate(cat ir.Catalog) []ValidationError {
	var errs []ValidationError
	games := make(map[string]bool)
	varietyIDs := make(map[ir.VarietyID]string)

	for i, g := range cat.Games {
		gamePath := fmt.Sprintf("games[%d]", i)

		// E101: game ids are unique
		if games[g.ID] {
			errs = append(errs, ValidationError{
				Field:   gamePath + ".id",
				Message: fmt.Sprintf("duplicate game id %q", g.ID),
				Code:    ErrDuplicateGame,
			})
		}
		games[g.ID] = true

		kinds := make(map[string]bool)
		for j, v := range g.Varieties {
			path := fmt.Sprintf("%s.varieties[%d]", gamePath, j)
			d := v.Descriptor

			// E102: variety ids are unique across games
			if other, dup := varietyIDs[d.ID]; dup {
				errs = append(errs, ValidationError{
					Field:   path + ".id",
					Message: fmt.Sprintf("variety id %s already used by %s", d.ID, other),
					Code:    ErrDuplicateVariety,
				})
			} else {
				varietyIDs[d.ID] = g.ID + "/" + d.Name
			}

			// E103: one variety per kind and game
			if kinds[d.Kind] {
				errs = append(errs, ValidationError{
					Field:   path + ".kind",
					Message: fmt.Sprintf("kind %q is ordered by another variety of %s", d.Kind, g.ID),
					Code:    ErrDuplicateKind,
				})
			}
			kinds[d.Kind] = true

			errs = append(errs, validateExtensions(path, v.Extensions)...)
			errs = append(errs, validateAnchors(path, v)...)
		}
	}
	return errs
}

func validateExtensions(path string, exts []string) []ValidationError {
	var errs []ValidationError
	for k, ext := range exts {
		// E106: extensions start with a dot
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.extensions[%d]", path, k),
				Message: fmt.Sprintf("extension %q must start with a dot", ext),
				Code:    ErrBadExtension,
			})
		}
	}
	return errs
}

func validateAnchors(path string, v ir.VarietyDef) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for k, anchor := range v.Anchors {
		field := fmt.Sprintf("%s.anchors[%d]", path, k)

		// E104: anchors are unique
		if seen[anchor] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate anchor %q", anchor),
				Code:    ErrDuplicateAnchor,
			})
		}
		seen[anchor] = true

		// E105: anchors must be orderable by the variety
		if len(v.Extensions) > 0 && !HasExtension(anchor, v.Extensions) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("anchor %q does not match extensions %v", anchor, v.Extensions),
				Code:    ErrAnchorExtension,
			})
		}
	}
	return errs
}

// HasExtension reports whether key ends in one of exts, ignoring case.
func HasExtension(key string, exts []string) bool {
	lower := strings.ToLower(key)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
