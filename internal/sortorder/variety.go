package sortorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/store"
)

// Storage is what the engine needs from the store. *store.Store satisfies
// it; tests wrap it to observe or slow down writes.
type Storage interface {
	store.Reader
	Snapshot(ctx context.Context) (*store.Snapshot, error)
	CreateSortOrder(ctx context.Context, parent ir.ParentEntity, variety ir.VarietyID) (ir.SortOrderID, bool, error)
	ReplaceSortItems(ctx context.Context, id ir.SortOrderID, items []ir.SortItemData) (bool, error)
	DeleteSortOrder(ctx context.Context, id ir.SortOrderID) (bool, error)
	Subscribe(gameID string) *store.Subscription
}

// Definition registers one variety: its descriptor and placement policy.
type Definition struct {
	Descriptor ir.VarietyDescriptor
	Policy     Policy
}

// MoveResult reports what a move did.
//
// Moves degrade instead of failing: missing keys are skipped and a
// missing drop target aborts without writing. Each such case is also
// recorded in Warnings as an ITEM_NOT_FOUND error.
type MoveResult struct {
	Applied  []string
	Skipped  []string
	Aborted  bool
	Changed  bool
	Warnings []error
}

// Variety is the sort order engine for one kind of load order.
//
// Thread-safety: all methods are safe for concurrent use. Mutations
// serialize on the Manager's lock; reads are lock-free.
type Variety struct {
	desc    ir.VarietyDescriptor
	policy  Policy
	storage Storage
	lock    *Lock
	logger  *slog.Logger
}

func newVariety(def Definition, storage Storage, lock *Lock, logger *slog.Logger) *Variety {
	return &Variety{
		desc:    def.Descriptor,
		policy:  def.Policy,
		storage: storage,
		lock:    lock,
		logger:  logger.With("variety", def.Descriptor.Name, "variety_id", string(def.Descriptor.ID)),
	}
}

// ID returns the variety id.
func (v *Variety) ID() ir.VarietyID { return v.desc.ID }

// Descriptor returns the registry metadata.
func (v *Variety) Descriptor() ir.VarietyDescriptor { return v.desc }

// reader returns snap when given, the live store otherwise.
func (v *Variety) reader(snap store.Reader) store.Reader {
	if snap != nil {
		return snap
	}
	return v.storage
}

// GetSortOrderIDFor returns the sort order of parent for this variety, if any.
func (v *Variety) GetSortOrderIDFor(ctx context.Context, parent ir.ParentEntity) (ir.SortOrderID, bool, error) {
	return v.storage.FindSortOrder(ctx, parent, v.desc.ID)
}

// GetOrCreateSortOrderFor returns the sort order of parent, creating an
// empty one on first use.
func (v *Variety) GetOrCreateSortOrderFor(ctx context.Context, parent ir.ParentEntity) (ir.SortOrderID, error) {
	id, ok, err := v.storage.FindSortOrder(ctx, parent, v.desc.ID)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}

	id, created, err := v.storage.CreateSortOrder(ctx, parent, v.desc.ID)
	if err != nil {
		return "", err
	}
	if created {
		v.logger.Debug("sort order created", "sort_order", string(id), "parent", parent.String())
	}
	return id, nil
}

// liveItems reads the orderable membership of parent for this variety.
func (v *Variety) liveItems(ctx context.Context, r store.Reader, parent ir.ParentEntity) ([]ir.LoadoutItem, error) {
	members, err := r.ListMembers(ctx, parent, v.desc.Kind)
	if err != nil {
		return nil, err
	}
	if sel, ok := v.policy.(Selector); ok {
		members = sel.Select(members)
	}
	return LiveItems(members), nil
}

// GetSortableItems joins the persisted order with live membership.
//
// Keys without a live member are omitted; the rest keep their persisted
// SortIndex. With a snapshot, both the order and membership come from it.
// Never takes the lock.
func (v *Variety) GetSortableItems(ctx context.Context, id ir.SortOrderID, snap store.Reader) ([]ir.SortableItem, error) {
	r := v.reader(snap)
	so, err := r.LoadSortOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	live, err := v.liveItems(ctx, r, so.Parent)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]ir.LoadoutItem, len(live))
	for _, item := range live {
		byKey[item.Key] = item
	}

	items := make([]ir.SortableItem, 0, len(so.Items))
	for _, entry := range so.Items {
		m, ok := byKey[entry.Key]
		if !ok {
			continue
		}
		items = append(items, ir.SortableItem{
			Key:        entry.Key,
			SortIndex:  entry.SortIndex,
			IsEnabled:  m.IsEnabled,
			ModName:    m.ModName,
			ModGroupID: m.ModGroupID,
		})
	}
	return items, nil
}

// persist writes items with a context detached from cancellation, so a
// write that has started always finishes.
func (v *Variety) persist(ctx context.Context, id ir.SortOrderID, items []ir.SortItemData) (bool, error) {
	changed, err := v.storage.ReplaceSortItems(context.WithoutCancel(ctx), id, items)
	if err != nil {
		return false, fmt.Errorf("persist sort order %s: %w", id, err)
	}
	return changed, nil
}

// SetSortOrder replaces the order with keys, under the lock.
//
// Keys without a live member are dropped, as are repeats. Live keys
// missing from keys are appended after them, in their previous relative
// order, followed by live keys that were never ordered.
func (v *Variety) SetSortOrder(ctx context.Context, id ir.SortOrderID, keys []string, snap store.Reader) error {
	return v.lock.Do(ctx, func(ctx context.Context) error {
		so, err := v.storage.LoadSortOrder(ctx, id)
		if err != nil {
			return err
		}
		live, err := v.liveItems(ctx, v.reader(snap), so.Parent)
		if err != nil {
			return err
		}

		isLive := make(map[string]struct{}, len(live))
		for _, item := range live {
			isLive[item.Key] = struct{}{}
		}

		result := make([]string, 0, len(live))
		placed := make(map[string]struct{}, len(live))
		add := func(k string) {
			if _, ok := isLive[k]; !ok {
				return
			}
			if _, dup := placed[k]; dup {
				return
			}
			placed[k] = struct{}{}
			result = append(result, k)
		}
		dropped := 0
		for _, k := range keys {
			if _, ok := isLive[k]; !ok {
				dropped++
			}
			add(k)
		}
		for _, entry := range so.Items {
			add(entry.Key)
		}
		for _, item := range live {
			add(item.Key)
		}
		if dropped > 0 {
			v.logger.Warn("set sort order dropped keys without live members", "sort_order", string(id), "dropped", dropped)
		}

		if err := ctx.Err(); err != nil {
			return NewCancelledError(err)
		}
		_, err = v.persist(ctx, id, ir.FromKeys(result))
		return err
	})
}

// MoveItems moves the items named by keys before or after dropTarget.
func (v *Variety) MoveItems(ctx context.Context, id ir.SortOrderID, keys []string, dropTarget string, pos ir.RelativePosition) (MoveResult, error) {
	var res MoveResult
	err := v.lock.Do(ctx, func(ctx context.Context) error {
		so, err := v.storage.LoadSortOrder(ctx, id)
		if err != nil {
			return err
		}

		plan := planMove(so.Items, keys, dropTarget, pos)
		res.Applied, res.Skipped, res.Aborted = plan.applied, plan.skipped, plan.aborted
		for _, k := range plan.skipped {
			v.logger.Warn("move item not found, skipping", "sort_order", string(id), "key", k)
			res.Warnings = append(res.Warnings, NewItemNotFoundError(id, k))
		}
		if plan.aborted {
			v.logger.Warn("move drop target not found, nothing moved", "sort_order", string(id), "drop_target", dropTarget)
			res.Warnings = append(res.Warnings, NewItemNotFoundError(id, dropTarget))
			res.Applied = nil
			return nil
		}

		if err := ctx.Err(); err != nil {
			return NewCancelledError(err)
		}
		res.Changed, err = v.persist(ctx, id, plan.items)
		return err
	})
	if err != nil {
		return MoveResult{}, err
	}
	return res, nil
}

// MoveItemDelta moves one item by delta positions, clamped to the bounds
// of the order. A move that lands where it started writes nothing.
func (v *Variety) MoveItemDelta(ctx context.Context, id ir.SortOrderID, key string, delta int) (MoveResult, error) {
	var res MoveResult
	err := v.lock.Do(ctx, func(ctx context.Context) error {
		so, err := v.storage.LoadSortOrder(ctx, id)
		if err != nil {
			return err
		}

		items, found, changed := planDelta(so.Items, key, delta)
		if !found {
			v.logger.Warn("move item not found", "sort_order", string(id), "key", key)
			res.Skipped = []string{key}
			res.Warnings = []error{NewItemNotFoundError(id, key)}
			return nil
		}
		res.Applied = []string{key}
		if !changed {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return NewCancelledError(err)
		}
		res.Changed, err = v.persist(ctx, id, items)
		return err
	})
	if err != nil {
		return MoveResult{}, err
	}
	return res, nil
}

// ReconcileSortOrder brings the order in line with live membership.
//
// Keys whose members vanished are removed, retained keys keep their
// relative order and the Policy places newcomers. Membership is read from
// snap when given; the current order always comes from the latest state.
// If the sort order no longer exists, it returns (false, nil). Returns
// whether anything was written.
func (v *Variety) ReconcileSortOrder(ctx context.Context, id ir.SortOrderID, snap store.Reader) (bool, error) {
	var changed bool
	err := v.lock.Do(ctx, func(ctx context.Context) error {
		so, err := v.storage.LoadSortOrder(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			v.logger.Debug("sort order gone, skipping reconcile", "sort_order", string(id))
			return nil
		}
		if err != nil {
			return err
		}

		live, err := v.liveItems(ctx, v.reader(snap), so.Parent)
		if err != nil {
			return err
		}

		isLive := make(map[string]struct{}, len(live))
		for _, item := range live {
			isLive[item.Key] = struct{}{}
		}
		ordered := make(map[string]struct{}, len(so.Items))
		retained := make([]string, 0, len(so.Items))
		for _, entry := range so.Items {
			ordered[entry.Key] = struct{}{}
			if _, ok := isLive[entry.Key]; ok {
				retained = append(retained, entry.Key)
			}
		}
		var newcomers []ir.LoadoutItem
		for _, item := range live {
			if _, ok := ordered[item.Key]; !ok {
				newcomers = append(newcomers, item)
			}
		}

		keys := retained
		if len(newcomers) > 0 {
			keys = v.policy.Place(slices.Clone(retained), slices.Clone(newcomers))
			if err := checkPlacement(keys, retained, newcomers); err != nil {
				return fmt.Errorf("reconcile %s: %w", id, err)
			}
		}

		if err := ctx.Err(); err != nil {
			return NewCancelledError(err)
		}
		changed, err = v.persist(ctx, id, ir.FromKeys(keys))
		if changed {
			v.logger.Debug("sort order reconciled", "sort_order", string(id),
				"removed", len(so.Items)-len(retained), "added", len(newcomers))
		}
		return err
	})
	return changed, err
}

// DeleteSortOrder removes the sort order under the lock. Deleting a
// missing sort order is a no-op.
func (v *Variety) DeleteSortOrder(ctx context.Context, id ir.SortOrderID) error {
	return v.lock.Do(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return NewCancelledError(err)
		}
		deleted, err := v.storage.DeleteSortOrder(context.WithoutCancel(ctx), id)
		if err != nil {
			return fmt.Errorf("delete sort order %s: %w", id, err)
		}
		if deleted {
			v.logger.Debug("sort order deleted", "sort_order", string(id))
		}
		return nil
	})
}
