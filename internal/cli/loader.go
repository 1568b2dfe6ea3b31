package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue/token"

	"github.com/roach88/loadorder/internal/compiler"
	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/sortorder"
	"github.com/roach88/loadorder/internal/store"
	"github.com/roach88/loadorder/internal/varieties"
)

// LoadResult contains a compiled catalog and where it came from.
type LoadResult struct {
	Catalog ir.Catalog
	Files   []string // empty for the builtin catalog
}

// LoadError represents an error that occurred during catalog loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadCatalog compiles the catalog at paths, or the builtin one when paths
// is empty. Directories are searched for .cue files. Validation errors are
// all collected; other failures stop at the first.
func LoadCatalog(paths []string) (*LoadResult, []error) {
	files, err := expandCatalogPaths(paths)
	if err != nil {
		return nil, []error{err}
	}

	var cat ir.Catalog
	if len(files) == 0 {
		cat, err = varieties.Builtin()
	} else {
		cat, err = compiler.CompileFiles(files...)
	}
	if err != nil {
		return nil, []error{convertCompileError(err)}
	}

	var errs []error
	for _, verr := range compiler.Validate(cat) {
		errs = append(errs, verr)
	}
	return &LoadResult{Catalog: cat, Files: files}, errs
}

func expandCatalogPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog path not found: %s", p)}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog path: %v", err)}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := FindCUEFiles(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(found) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", p)}
		}
		files = append(files, found...)
	}
	return files, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // Catalog could not be read
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeCompileFailed = "E006" // CUE compile or schema error
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeConfig        = "E008" // Invalid configuration
	ErrCodeUsage         = "E009" // Invalid arguments
	ErrCodeTestFailed    = "E010" // One or more scenarios failed

	// Catalog validation errors (E101-E106) come from compiler.Validate.

	// Sort order errors
	ErrCodeLockTimeout    = "E201" // sortorder LOCK_TIMEOUT
	ErrCodeCancelled      = "E202" // sortorder OPERATION_CANCELLED
	ErrCodeUnknownVariety = "E203" // sortorder UNKNOWN_VARIETY
	ErrCodeItemNotFound   = "E204" // sortorder ITEM_NOT_FOUND
	ErrCodeMissingRow     = "E205" // loadout, collection or sort order not found
)

// errorCode maps an error to its CLI error code.
func errorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return ErrCodeCompileFailed
	}

	switch {
	case sortorder.IsLockTimeout(err):
		return ErrCodeLockTimeout
	case sortorder.IsCancelled(err):
		return ErrCodeCancelled
	case sortorder.IsUnknownVariety(err):
		return ErrCodeUnknownVariety
	case sortorder.IsItemNotFound(err):
		return ErrCodeItemNotFound
	case errors.Is(err, store.ErrNotFound):
		return ErrCodeMissingRow
	default:
		return ErrCodeGeneric
	}
}
