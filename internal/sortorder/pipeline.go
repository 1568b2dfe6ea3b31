package sortorder

import (
	"context"
	"log/slog"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/store"
)

type workOp uint8

const (
	opUpdate workOp = iota + 1
	opDelete
)

func (op workOp) String() string {
	if op == opDelete {
		return "delete"
	}
	return "update"
}

// workItem is one Manager call derived from store events.
type workItem struct {
	op     workOp
	parent ir.ParentEntity
}

// Pipeline keeps sort orders in step with store changes.
//
// Events are consumed in batches: everything queued when the pipeline
// wakes up is processed together against one snapshot, with repeated work
// items collapsed. Membership updates whose fingerprint matches the last
// successful update of the same parent are skipped.
//
// Thread-safety: Run must be called from exactly one goroutine, and Flush
// must not be called while Run is active.
type Pipeline struct {
	m      *Manager
	sub    *store.Subscription
	logger *slog.Logger

	// fingerprints holds the membership fingerprint of the last successful
	// update per parent.
	fingerprints map[ir.ParentEntity]string
}

// NewPipeline subscribes to the Manager's game. Events published from
// now on are processed by Run or Flush.
func NewPipeline(m *Manager) *Pipeline {
	return newPipeline(m, m.GameID())
}

func newPipeline(m *Manager, gameID string) *Pipeline {
	return &Pipeline{
		m:            m,
		sub:          m.storage.Subscribe(gameID),
		logger:       m.logger.With("component", "pipeline", "game", gameID),
		fingerprints: make(map[ir.ParentEntity]string),
	}
}

// Run processes batches until ctx is done or the subscription closes.
//
// ERROR HANDLING: failures are logged with the work item and processing
// continues. Reconciliation is idempotent, so the next event touching the
// same parent repairs it.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Info("pipeline starting")
	defer p.logger.Info("pipeline stopped")

	for {
		first, err := p.sub.Next(ctx)
		if err != nil {
			return
		}
		batch := append([]store.Event{first}, p.sub.Drain()...)
		p.processBatch(ctx, batch)
	}
}

// Flush processes every queued event as one batch and returns the number
// of work items that ran.
func (p *Pipeline) Flush(ctx context.Context) int {
	batch := p.sub.Drain()
	if len(batch) == 0 {
		return 0
	}
	return p.processBatch(ctx, batch)
}

// Close ends the subscription.
func (p *Pipeline) Close() {
	p.sub.Close()
}

// plan turns events into work items in event order, keeping only the first
// occurrence of each item.
func plan(events []store.Event) []workItem {
	var items []workItem
	seen := make(map[workItem]struct{})
	add := func(w workItem) {
		if _, dup := seen[w]; dup {
			return
		}
		seen[w] = struct{}{}
		items = append(items, w)
	}

	for _, e := range events {
		loadout := ir.LoadoutParent(e.LoadoutID)
		switch e.Kind {
		case store.LoadoutAdded:
			add(workItem{opUpdate, loadout})
		case store.LoadoutRemoved:
			add(workItem{opDelete, loadout})
		case store.CollectionAdded:
			add(workItem{opUpdate, ir.CollectionParent(e.LoadoutID, e.CollectionGroupID)})
		case store.CollectionRemoved:
			add(workItem{opDelete, ir.CollectionParent(e.LoadoutID, e.CollectionGroupID)})
		case store.MembersChanged:
			if e.CollectionGroupID != "" {
				add(workItem{opUpdate, ir.CollectionParent(e.LoadoutID, e.CollectionGroupID)})
			}
			add(workItem{opUpdate, loadout})
		}
	}
	return items
}

func (p *Pipeline) processBatch(ctx context.Context, events []store.Event) int {
	work := plan(events)
	if len(work) == 0 {
		return 0
	}

	snap, err := p.m.storage.Snapshot(ctx)
	if err != nil {
		p.logger.Error("batch snapshot failed", "events", len(events), "first_event", events[0].ID, "error", err)
		return 0
	}
	defer snap.Close()

	ran := 0
	for _, w := range work {
		if ctx.Err() != nil {
			return ran
		}
		switch w.op {
		case opDelete:
			delete(p.fingerprints, w.parent)
			err = p.m.deleteSortOrders(ctx, w.parent)
		case opUpdate:
			var skip bool
			skip, err = p.update(ctx, snap, w.parent)
			if skip {
				continue
			}
		}
		ran++
		if err != nil {
			p.logger.Error("load order update failed",
				"op", w.op.String(), "parent", w.parent.String(), "error", err)
		}
	}
	p.logger.Debug("batch processed", "events", len(events), "work", len(work), "ran", ran,
		"first_event", events[0].ID, "last_event", events[len(events)-1].ID)
	return ran
}

// update reconciles parent unless its membership is unchanged since the
// last successful update.
func (p *Pipeline) update(ctx context.Context, snap *store.Snapshot, parent ir.ParentEntity) (skipped bool, err error) {
	members, err := snap.ListMembers(ctx, parent, "")
	if err != nil {
		return false, err
	}
	items := make([]ir.LoadoutItem, len(members))
	for i, m := range members {
		items[i] = ir.LoadoutItem{Key: m.Key, IsEnabled: m.Enabled, ModGroupID: m.ModGroupID, Seq: m.Seq}
	}
	fp, err := ir.MembershipFingerprint(items)
	if err != nil {
		return false, err
	}
	if prev, ok := p.fingerprints[parent]; ok && prev == fp {
		return true, nil
	}

	if err := p.m.updateLoadOrders(ctx, parent, snap); err != nil {
		return false, err
	}
	p.fingerprints[parent] = fp
	return false, nil
}
