package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/store"
)

// DelayedStorage wraps a store and sleeps inside every ReplaceSortItems
// before writing. It records the order of completed writes so tests can
// check that concurrent mutations never interleave.
type DelayedStorage struct {
	*store.Store
	Delay time.Duration

	mu       sync.Mutex
	inFlight int
	overlap  bool
	writes   [][]string
}

// NewDelayedStorage wraps s with the given write delay.
func NewDelayedStorage(s *store.Store, delay time.Duration) *DelayedStorage {
	return &DelayedStorage{Store: s, Delay: delay}
}

// ReplaceSortItems sleeps for Delay, then writes.
func (d *DelayedStorage) ReplaceSortItems(ctx context.Context, id ir.SortOrderID, items []ir.SortItemData) (bool, error) {
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > 1 {
		d.overlap = true
	}
	d.mu.Unlock()

	time.Sleep(d.Delay)
	changed, err := d.Store.ReplaceSortItems(ctx, id, items)

	d.mu.Lock()
	d.inFlight--
	d.writes = append(d.writes, ir.Keys(items))
	d.mu.Unlock()
	return changed, err
}

// Overlapped reports whether two writes were ever in flight at once.
func (d *DelayedStorage) Overlapped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overlap
}

// Writes returns the key sequences written, in completion order.
func (d *DelayedStorage) Writes() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]string, len(d.writes))
	copy(out, d.writes)
	return out
}

// CancellingStorage wraps a store and cancels the caller's context from
// inside LoadSortOrder, after the lock is held. With FailLoad the load then
// fails with the context error, as a query interrupted mid-flight would.
type CancellingStorage struct {
	*store.Store
	Cancel   context.CancelFunc
	FailLoad bool
}

// LoadSortOrder loads the order, then cancels.
func (c *CancellingStorage) LoadSortOrder(ctx context.Context, id ir.SortOrderID) (ir.SortOrder, error) {
	so, err := c.Store.LoadSortOrder(ctx, id)
	if c.Cancel != nil {
		c.Cancel()
	}
	if c.FailLoad {
		return ir.SortOrder{}, fmt.Errorf("load sort order %s: %w", id, ctx.Err())
	}
	return so, err
}
