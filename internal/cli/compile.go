package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/loadorder/internal/compiler"
	"github.com/roach88/loadorder/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled catalog.
type CompilationResult struct {
	Games []ir.GameDef `json:"games"`
	Files []string     `json:"files,omitempty"` // empty for the builtin catalog
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	GameCount    int
	VarietyCount int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [catalog-path]...",
		Short: "Compile and validate a variety catalog",
		Long: `Compile CUE catalog files (or directories of them) describing games and
their sort order varieties, validate them, and print the result.
Without arguments the builtin catalog is compiled.

Examples:
  loadorder compile
  loadorder compile ./catalog --format json
  loadorder compile games.cue -o catalog.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	loaded, errs := LoadCatalog(paths)
	if loaded == nil {
		return compileFailed(f, errs)
	}
	if len(loaded.Files) == 0 {
		f.VerboseLog("Compiling builtin catalog")
	}
	for _, file := range loaded.Files {
		f.VerboseLog("Compiling %s", file)
	}
	if len(errs) > 0 {
		return compileFailed(f, errs)
	}

	result := &CompilationResult{Games: loaded.Catalog.Games, Files: loaded.Files}
	if opts.Output != "" {
		if err := writeCatalogToFile(result, opts.Output); err != nil {
			return f.Fail(ExitCommandError, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error()})
		}
	}
	if f.isJSON() {
		return f.Success(result)
	}
	printCatalog(f, result, opts.Output)
	return nil
}

// calculateStats counts games and varieties.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{GameCount: len(result.Games)}
	for _, g := range result.Games {
		stats.VarietyCount += len(g.Varieties)
	}
	return stats
}

func printCatalog(f *OutputFormatter, result *CompilationResult, outputFile string) {
	w := f.Writer
	stats := calculateStats(result)
	fmt.Fprintf(w, "✓ Compiled %d game(s), %d variet(ies)\n\n", stats.GameCount, stats.VarietyCount)

	for _, g := range result.Games {
		fmt.Fprintf(w, "%s (%s):\n", g.ID, g.Name)
		for _, v := range g.Varieties {
			d := v.Descriptor
			fmt.Fprintf(w, "  %s  %s: kind=%s insert=%s override=%s",
				d.ID, d.Name, d.Kind, v.Insert, d.IndexOverrideBehavior)
			if len(v.Anchors) > 0 {
				fmt.Fprintf(w, " anchors=%d", len(v.Anchors))
			}
			if len(v.Extensions) > 0 {
				fmt.Fprintf(w, " extensions=%s", strings.Join(v.Extensions, ","))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote catalog to %s\n", outputFile)
	}
}

// compileFailed reports every catalog error. JSON output carries the first
// one as the error and all of them as data.
func compileFailed(f *OutputFormatter, errs []error) error {
	reported := make([]CLIError, len(errs))
	for i, err := range errs {
		reported[i] = describeCompileError(err)
	}
	exit := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if f.isJSON() {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(CLIResponse{Status: "error", Error: &reported[0], Data: reported}); err != nil {
			return err
		}
		return exit
	}

	fmt.Fprintln(f.Writer, "✗ Compilation failed")
	fmt.Fprintln(f.Writer)
	for _, e := range reported {
		fmt.Fprintf(f.Writer, "  %s: %s\n", e.Code, e.Message)
	}
	fmt.Fprintln(f.Writer)
	return exit
}

// describeCompileError extracts the code and a positioned message.
func describeCompileError(err error) CLIError {
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return CLIError{Code: verr.Code, Message: verr.Field + ": " + verr.Message}
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		msg := loadErr.Message
		if loadErr.Pos.IsValid() {
			msg = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), msg)
		}
		return CLIError{Code: loadErr.Code, Message: msg}
	}
	return CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// writeCatalogToFile writes the compilation result as indented JSON.
func writeCatalogToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}
