package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/sortorder"
	"github.com/roach88/loadorder/internal/store"
	"github.com/roach88/loadorder/internal/varieties"
)

// Harness holds the live objects of one scenario run.
type Harness struct {
	store    *store.Store
	manager  *sortorder.Manager
	pipeline *sortorder.Pipeline
	logger   *slog.Logger
	game     string
}

type runConfig struct {
	dir    string
	logger *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

// WithDir keeps the scenario database in dir instead of a temp directory
// that is removed afterwards.
func WithDir(dir string) Option {
	return func(c *runConfig) { c.dir = dir }
}

// WithLogger routes engine logs to l. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open a fresh store with sequential ids
//  2. Register the varieties of the scenario's game
//  3. Apply setup and flush the pipeline once
//  4. Execute steps, checking expect clauses
//  5. Record final orders and evaluate assertions
//
// A returned error means the scenario could not run; failed expectations
// and assertions are reported through Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dir == "" {
		dir, err := os.MkdirTemp("", "loadorder-scenario-*")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
		cfg.dir = dir
	}

	st, err := store.Open(filepath.Join(cfg.dir, scenario.Name+".db"),
		store.WithIDGenerator(store.NewSequentialGenerator("id")))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	cat, err := varieties.Load(scenario.Catalog...)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	defs, err := varieties.ForGame(cat, scenario.Game)
	if err != nil {
		return nil, err
	}

	m := sortorder.NewManager(st, sortorder.WithLogger(cfg.logger), sortorder.WithoutPipeline())
	if err := m.RegisterVarieties(ctx, scenario.Game, defs); err != nil {
		return nil, err
	}
	defer m.Close()
	p := sortorder.NewPipeline(m)
	defer p.Close()

	h := &Harness{store: st, manager: m, pipeline: p, logger: cfg.logger, game: scenario.Game}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	p.Flush(ctx)

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.executeStep(ctx, i, step)
		if err != nil {
			ev.Error = err.Error()
		}
		result.Trace = append(result.Trace, ev)
		for _, msg := range checkExpect(step, ev) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Op, msg))
		}
		h.logger.Debug("scenario step completed", "step", i, "op", step.Op, "error", ev.Error)
	}

	if err := h.collectOrders(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to collect orders: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Manager: m}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSetup creates loadouts, collections and members in order.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	for i, l := range setup.Loadouts {
		name := l.Name
		if name == "" {
			name = l.ID
		}
		if _, err := h.store.CreateLoadout(ctx, ir.Loadout{ID: ir.LoadoutID(l.ID), GameID: h.game, Name: name}); err != nil {
			return fmt.Errorf("loadouts[%d]: %w", i, err)
		}
	}
	for i, c := range setup.Collections {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		g := ir.CollectionGroup{ID: ir.CollectionGroupID(c.ID), LoadoutID: ir.LoadoutID(c.Loadout), Name: name}
		if _, err := h.store.CreateCollectionGroup(ctx, g); err != nil {
			return fmt.Errorf("collections[%d]: %w", i, err)
		}
	}
	for i, spec := range setup.Members {
		for _, m := range spec.members() {
			if _, err := h.store.AddMember(ctx, m); err != nil {
				return fmt.Errorf("members[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// target resolves the variety and existing sort order a step operates on.
func (h *Harness) target(ctx context.Context, s Step) (*sortorder.Variety, ir.SortOrderID, error) {
	v, err := h.manager.FindVariety(s.Variety)
	if err != nil {
		return nil, "", err
	}
	p := parent(s.Loadout, s.Collection)
	id, ok, err := v.GetSortOrderIDFor(ctx, p)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", fmt.Errorf("no %s sort order for %s", v.Descriptor().Name, p)
	}
	return v, id, nil
}

func (h *Harness) executeStep(ctx context.Context, i int, s Step) (TraceEvent, error) {
	ev := TraceEvent{Step: i, Op: s.Op}
	var collection *ir.CollectionGroupID
	if s.Collection != "" {
		c := ir.CollectionGroupID(s.Collection)
		collection = &c
	}

	switch s.Op {
	case OpFlush:
		ev.Ran = h.pipeline.Flush(ctx)
		return ev, nil

	case OpUpdate:
		return ev, h.manager.UpdateLoadOrders(ctx, ir.LoadoutID(s.Loadout), collection)

	case OpDelete:
		return ev, h.manager.DeleteSortOrders(ctx, ir.LoadoutID(s.Loadout), collection)

	case OpReconcile:
		v, id, err := h.target(ctx, s)
		if err != nil {
			return ev, err
		}
		ev.Changed, err = v.ReconcileSortOrder(ctx, id, nil)
		return ev, err

	case OpMove:
		v, id, err := h.target(ctx, s)
		if err != nil {
			return ev, err
		}
		pos, err := ir.ParseRelativePosition(s.Position)
		if err != nil {
			return ev, err
		}
		res, err := v.MoveItems(ctx, id, s.Keys, s.Target, pos)
		fillMove(&ev, res)
		return ev, err

	case OpDelta:
		v, id, err := h.target(ctx, s)
		if err != nil {
			return ev, err
		}
		res, err := v.MoveItemDelta(ctx, id, s.Key, s.Delta)
		fillMove(&ev, res)
		return ev, err

	case OpSet:
		v, id, err := h.target(ctx, s)
		if err != nil {
			return ev, err
		}
		return ev, v.SetSortOrder(ctx, id, s.Keys, nil)

	case OpAddMember:
		for _, m := range s.Member.members() {
			if _, err := h.store.AddMember(ctx, m); err != nil {
				return ev, err
			}
		}
		return ev, nil

	case OpRemoveMember:
		for _, m := range s.Member.members() {
			if err := h.store.RemoveMember(ctx, m.LoadoutID, m.ModGroupID, m.Kind, m.Key); err != nil {
				return ev, err
			}
		}
		return ev, nil

	case OpRemoveMod:
		return ev, h.store.RemoveMod(ctx, ir.LoadoutID(s.Loadout), s.Mod)

	case OpEnable, OpDisable:
		changed, err := h.store.SetModEnabled(ctx, ir.LoadoutID(s.Loadout), s.Mod, s.Op == OpEnable)
		ev.Changed = changed
		return ev, err

	case OpRemoveLoad:
		return ev, h.store.RemoveLoadout(ctx, ir.LoadoutID(s.Loadout))

	case OpRemoveColl:
		return ev, h.store.RemoveCollectionGroup(ctx, ir.CollectionGroupID(s.Collection))

	default:
		return ev, fmt.Errorf("unknown op %q", s.Op)
	}
}

func fillMove(ev *TraceEvent, res sortorder.MoveResult) {
	ev.Applied = res.Applied
	ev.Skipped = res.Skipped
	ev.Aborted = res.Aborted
	ev.Changed = res.Changed
}

// checkExpect compares a step's trace event with its expect clause.
func checkExpect(s Step, ev TraceEvent) []string {
	exp := s.Expect
	if exp == nil {
		if ev.Error != "" {
			return []string{"unexpected error: " + ev.Error}
		}
		return nil
	}

	var msgs []string
	switch {
	case exp.Error == "" && ev.Error != "":
		msgs = append(msgs, "unexpected error: "+ev.Error)
	case exp.Error != "" && !strings.Contains(ev.Error, exp.Error):
		msgs = append(msgs, fmt.Sprintf("expected error containing %q, got %q", exp.Error, ev.Error))
	}
	if exp.Applied != nil && !slices.Equal(exp.Applied, ev.Applied) {
		msgs = append(msgs, fmt.Sprintf("applied: expected %v, got %v", exp.Applied, ev.Applied))
	}
	if exp.Skipped != nil && !slices.Equal(exp.Skipped, ev.Skipped) {
		msgs = append(msgs, fmt.Sprintf("skipped: expected %v, got %v", exp.Skipped, ev.Skipped))
	}
	if exp.Aborted != nil && *exp.Aborted != ev.Aborted {
		msgs = append(msgs, fmt.Sprintf("aborted: expected %t, got %t", *exp.Aborted, ev.Aborted))
	}
	if exp.Changed != nil && *exp.Changed != ev.Changed {
		msgs = append(msgs, fmt.Sprintf("changed: expected %t, got %t", *exp.Changed, ev.Changed))
	}
	if exp.Ran != nil && *exp.Ran != ev.Ran {
		msgs = append(msgs, fmt.Sprintf("ran: expected %d, got %d", *exp.Ran, ev.Ran))
	}
	return msgs
}

// collectOrders records the persisted keys of every sort order owned by
// the game's loadouts and their collections.
func (h *Harness) collectOrders(ctx context.Context, result *Result) error {
	loadouts, err := h.store.ListLoadouts(ctx, h.game)
	if err != nil {
		return err
	}
	for _, l := range loadouts {
		parents := []ir.ParentEntity{ir.LoadoutParent(l.ID)}
		groups, err := h.store.ListCollectionGroups(ctx, l.ID)
		if err != nil {
			return err
		}
		for _, g := range groups {
			parents = append(parents, ir.CollectionParent(l.ID, g.ID))
		}

		for _, p := range parents {
			orders, err := h.store.ListSortOrders(ctx, p)
			if err != nil {
				return err
			}
			for _, header := range orders {
				so, err := h.store.LoadSortOrder(ctx, header.ID)
				if err != nil {
					return err
				}
				name := string(so.VarietyID)
				if v, err := h.manager.Variety(so.VarietyID); err == nil {
					name = v.Descriptor().Name
				}
				result.Orders[OrderKey(p, name)] = ir.Keys(so.Items)
			}
		}
	}
	return nil
}

// OrderKey names a sort order in Result.Orders and golden files.
func OrderKey(p ir.ParentEntity, varietyName string) string {
	return p.String() + " " + varietyName
}
