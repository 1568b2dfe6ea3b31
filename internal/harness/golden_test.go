package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_Scenarios(t *testing.T) {
	for _, s := range loadScenarios(t) {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalSnapshot_OmitsZeroFields(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{Step: 0, Op: OpFlush},
		{Step: 1, Op: OpMove, Applied: []string{"b"}, Skipped: []string{"x"}, Changed: true},
		{Step: 2, Op: OpReconcile, Error: "boom"},
	}
	result.Orders["loadout:L1 Plugins"] = []string{"b", "a"}

	data, err := MarshalSnapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"orders":{"loadout:L1 Plugins":["b","a"]},"scenario_name":"snap","trace":[`+
			`{"op":"flush","step":0},`+
			`{"applied":["b"],"changed":true,"op":"move","skipped":["x"],"step":1},`+
			`{"error":"boom","op":"reconcile","step":2}]}`,
		string(data))
}

func TestMarshalSnapshot_Deterministic(t *testing.T) {
	result := NewResult()
	result.Orders["loadout:L2 Mods"] = []string{"a"}
	result.Orders["loadout:L1 Mods"] = []string{}

	first, err := MarshalSnapshot("x", result)
	require.NoError(t, err)
	for range 10 {
		again, err := MarshalSnapshot("x", result)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Contains(t, string(first), `"orders":{"loadout:L1 Mods":[],"loadout:L2 Mods":["a"]}`)
}
