package sortorder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadorder/internal/ir"
)

func TestPlanMove(t *testing.T) {
	abcde := []string{"A", "B", "C", "D", "E"}

	tests := []struct {
		name   string
		keys   []string
		target string
		pos    ir.RelativePosition
		want   []string
	}{
		{"block before first", []string{"B", "D"}, "A", ir.Before, []string{"B", "D", "A", "C", "E"}},
		{"input order ignored", []string{"D", "B"}, "A", ir.Before, []string{"B", "D", "A", "C", "E"}},
		{"block after later target", []string{"A", "B"}, "D", ir.After, []string{"C", "D", "A", "B", "E"}},
		{"block before later target", []string{"A", "B"}, "D", ir.Before, []string{"C", "A", "B", "D", "E"}},
		{"after last", []string{"A"}, "E", ir.After, []string{"B", "C", "D", "E", "A"}},
		{"straddling target", []string{"A", "E"}, "C", ir.After, []string{"B", "C", "A", "E", "D"}},
		{"onto itself", []string{"C"}, "C", ir.Before, abcde},
		{"duplicates collapse", []string{"E", "E"}, "A", ir.Before, []string{"E", "A", "B", "C", "D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := planMove(ir.FromKeys(abcde), tt.keys, tt.target, tt.pos)
			require.False(t, plan.aborted)
			assert.Equal(t, tt.want, ir.Keys(plan.items))
			assert.NoError(t, ir.CheckDense(plan.items))
		})
	}
}

func TestPlanMove_PartialAndAbort(t *testing.T) {
	current := ir.FromKeys([]string{"A", "B", "C"})

	plan := planMove(current, []string{"X", "C"}, "A", ir.Before)
	require.False(t, plan.aborted)
	assert.Equal(t, []string{"X"}, plan.skipped)
	assert.Equal(t, []string{"C"}, plan.applied)
	assert.Equal(t, []string{"C", "A", "B"}, ir.Keys(plan.items))

	plan = planMove(current, []string{"B"}, "missing", ir.After)
	assert.True(t, plan.aborted)
	assert.Nil(t, plan.items)

	assert.Equal(t, []string{"A", "B", "C"}, ir.Keys(current), "input is not modified")
}

func TestPlanMove_UnsortedInput(t *testing.T) {
	current := []ir.SortItemData{
		{Key: "C", SortIndex: 2},
		{Key: "A", SortIndex: 0},
		{Key: "B", SortIndex: 1},
	}
	plan := planMove(current, []string{"C"}, "A", ir.Before)
	assert.Equal(t, []string{"C", "A", "B"}, ir.Keys(plan.items))
}

func TestPlanDelta(t *testing.T) {
	abc := ir.FromKeys([]string{"A", "B", "C"})

	_, found, changed := planDelta(abc, "A", -5)
	assert.True(t, found)
	assert.False(t, changed, "clamped at the start")

	_, found, changed = planDelta(abc, "C", 5)
	assert.True(t, found)
	assert.False(t, changed, "clamped at the end")

	items, _, changed := planDelta(abc, "A", 5)
	require.True(t, changed)
	assert.Equal(t, []string{"B", "C", "A"}, ir.Keys(items))

	items, _, changed = planDelta(abc, "B", -1)
	require.True(t, changed)
	assert.Equal(t, []string{"B", "A", "C"}, ir.Keys(items))

	_, found, _ = planDelta(abc, "Z", 1)
	assert.False(t, found)

	items, _, changed = planDelta(abc, "B", math.MaxInt)
	require.True(t, changed)
	assert.Equal(t, []string{"A", "C", "B"}, ir.Keys(items))

	items, _, changed = planDelta(abc, "B", math.MinInt)
	require.True(t, changed)
	assert.Equal(t, []string{"B", "A", "C"}, ir.Keys(items))

	_, _, changed = planDelta(abc, "C", math.MaxInt)
	assert.False(t, changed)
	_, _, changed = planDelta(abc, "A", math.MinInt)
	assert.False(t, changed)
}

func TestPlanDelta_Scenario(t *testing.T) {
	current := ir.FromKeys([]string{"Native", "SandboxCore", "Foo", "Bar"})

	items, found, changed := planDelta(current, "Foo", -2)
	require.True(t, found)
	require.True(t, changed)
	assert.Equal(t, []string{"Foo", "Native", "SandboxCore", "Bar"}, ir.Keys(items))
	assert.NoError(t, ir.CheckDense(items))
}
