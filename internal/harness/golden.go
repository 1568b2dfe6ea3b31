package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/loadorder/internal/ir"
)

// Snapshot is the golden form of a scenario run: its trace and final orders.
type Snapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Orders       map[string][]string
}

// toCanonicalMap converts the snapshot to the value types ir.MarshalCanonical accepts.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step": ev.Step,
			"op":   ev.Op,
		}
		if len(ev.Applied) > 0 {
			m["applied"] = ev.Applied
		}
		if len(ev.Skipped) > 0 {
			m["skipped"] = ev.Skipped
		}
		if ev.Aborted {
			m["aborted"] = true
		}
		if ev.Changed {
			m["changed"] = true
		}
		if ev.Ran != 0 {
			m["ran"] = ev.Ran
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		trace[i] = m
	}

	orders := make(map[string]any, len(s.Orders))
	for k, keys := range s.Orders {
		orders[k] = keys
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"orders":        orders,
	}
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snap := Snapshot{ScenarioName: name, Trace: result.Trace, Orders: result.Orders}
	return ir.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, WithDir(t.TempDir()))
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
