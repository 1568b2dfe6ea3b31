package sortorder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/testutil"
)

const (
	testGame       = "skyrimse"
	pluginVariety  = ir.VarietyID("11111111-1111-4111-8111-111111111111")
	archiveVariety = ir.VarietyID("22222222-2222-4222-8222-222222222222")
)

func testDefinitions() []Definition {
	return []Definition{
		{
			Descriptor: ir.VarietyDescriptor{ID: pluginVariety, Name: "Plugins", Kind: "plugin"},
			Policy:     AppendPolicy,
		},
		{
			Descriptor: ir.VarietyDescriptor{ID: archiveVariety, Name: "Archives", Kind: "archive"},
			Policy:     AppendPolicy,
		},
	}
}

// newTestManager registers the test definitions without a background
// pipeline and returns the manager with a log buffer.
func newTestManager(t *testing.T, storage Storage, opts ...Option) (*Manager, *testutil.LogBuffer) {
	t.Helper()
	logger, logs := testutil.NewLogger()
	opts = append([]Option{WithLogger(logger), WithoutPipeline()}, opts...)
	m := NewManager(storage, opts...)
	require.NoError(t, m.RegisterVarieties(context.Background(), testGame, testDefinitions()))
	t.Cleanup(func() { m.Close() })
	return m, logs
}

func pluginsOf(t *testing.T, m *Manager) *Variety {
	t.Helper()
	v, err := m.Variety(pluginVariety)
	require.NoError(t, err)
	return v
}

// reconciled creates and reconciles the loadout's plugin order.
func reconciled(t *testing.T, v *Variety, loadout ir.LoadoutID) ir.SortOrderID {
	t.Helper()
	ctx := context.Background()
	id, err := v.GetOrCreateSortOrderFor(ctx, ir.LoadoutParent(loadout))
	require.NoError(t, err)
	_, err = v.ReconcileSortOrder(ctx, id, nil)
	require.NoError(t, err)
	return id
}
