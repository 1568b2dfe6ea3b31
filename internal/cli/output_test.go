package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/sortorder"
	"github.com/roach88/loadorder/internal/store"
)

func TestOutputFormatter_Success(t *testing.T) {
	change := OrderChange{Op: "move", Parent: "loadout:main", Variety: "REDmods", Changed: true, Order: []string{"B", "A"}}

	var js bytes.Buffer
	require.NoError(t, (&OutputFormatter{Format: "json", Writer: &js}).Success(change))
	var resp response[OrderChange]
	require.NoError(t, json.Unmarshal(js.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, change.Order, resp.Data.Order)

	var text bytes.Buffer
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: &text}).Success(change))
	assert.Equal(t, "✓ move loadout:main REDmods\n    0  B\n    1  A\n", text.String())

	text.Reset()
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: &text}).Success("plain value"))
	assert.Equal(t, "plain value\n", text.String())
}

func TestOutputFormatter_Error(t *testing.T) {
	var js bytes.Buffer
	require.NoError(t, (&OutputFormatter{Format: "json", Writer: &js}).Error(ErrCodeUsage, "bad delta", map[string]string{"arg": "two"}))
	var resp response[any]
	require.NoError(t, json.Unmarshal(js.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeUsage, resp.Error.Code)
	assert.Equal(t, "bad delta", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)

	var quiet, verbose bytes.Buffer
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: &quiet}).Error(ErrCodeUsage, "bad delta", "arg=two"))
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: &verbose, Verbose: true}).Error(ErrCodeUsage, "bad delta", "arg=two"))
	assert.Equal(t, "Error [E009]: bad delta\n", quiet.String())
	assert.Equal(t, "Error [E009]: bad delta\nDetails: arg=two\n", verbose.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, diag bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &diag, Verbose: true}
	f.VerboseLog("Compiling %s", "games.cue")
	assert.Empty(t, out.String(), "diagnostics never mix into JSON output")
	assert.Equal(t, "Compiling games.cue\n", diag.String())

	diag.Reset()
	f.Verbose = false
	f.VerboseLog("Compiling %s", "games.cue")
	assert.Empty(t, diag.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	var buf bytes.Buffer
	formatter := &OutputFormatter{Format: "json", Writer: &buf}

	err := formatter.Fail(ExitFailure, sortorder.NewUnknownVarietyError("Textures"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, sortorder.IsUnknownVariety(err), "cause stays reachable")

	var resp response[any]
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, ErrCodeUnknownVariety, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Textures")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"load error", &LoadError{Code: ErrCodeNoFiles, Message: "empty"}, ErrCodeNoFiles},
		{"joined load errors", errors.Join(&LoadError{Code: ErrCodeNotFound}), ErrCodeNotFound},
		{"lock timeout", sortorder.NewLockTimeoutError(0), ErrCodeLockTimeout},
		{"cancelled", sortorder.NewCancelledError(errors.New("stop")), ErrCodeCancelled},
		{"unknown variety", sortorder.NewUnknownVarietyError("x"), ErrCodeUnknownVariety},
		{"item not found", sortorder.NewItemNotFoundError(ir.SortOrderID("so"), "k"), ErrCodeItemNotFound},
		{"missing row", store.ErrNotFound, ErrCodeMissingRow},
		{"anything else", errors.New("disk full"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "x")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "x", errors.New("y"))))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("unknown flag")))
}
