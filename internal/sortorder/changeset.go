package sortorder

import (
	"context"
	"errors"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/store"
)

// ChangeSet describes how the sortable items of one sort order changed.
// Items is the full list after the change.
type ChangeSet struct {
	Added   []ir.SortableItem
	Updated []ir.SortableItem
	Removed []string
	Items   []ir.SortableItem
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// diffItems compares two item lists by key.
func diffItems(prev, next []ir.SortableItem) ChangeSet {
	before := make(map[string]ir.SortableItem, len(prev))
	for _, item := range prev {
		before[item.Key] = item
	}

	cs := ChangeSet{Items: next}
	after := make(map[string]struct{}, len(next))
	for _, item := range next {
		after[item.Key] = struct{}{}
		old, ok := before[item.Key]
		switch {
		case !ok:
			cs.Added = append(cs.Added, item)
		case old != item:
			cs.Updated = append(cs.Updated, item)
		}
	}
	for _, item := range prev {
		if _, ok := after[item.Key]; !ok {
			cs.Removed = append(cs.Removed, item.Key)
		}
	}
	return cs
}

// GetSortableItemsChangeSet streams change sets for one sort order.
//
// The first value lists every current item as Added. After that a change
// set is sent whenever the order or the membership of its loadout changes
// in a way visible through GetSortableItems. The channel closes when ctx
// is done, when the sort order is deleted, or when the store closes.
func (v *Variety) GetSortableItemsChangeSet(ctx context.Context, id ir.SortOrderID) (<-chan ChangeSet, error) {
	so, err := v.storage.LoadSortOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	gameID := ""
	if l, err := v.storage.GetLoadout(ctx, so.LoadoutID); err == nil {
		gameID = l.GameID
	}

	// Subscribe before the first read so no change between them is lost.
	sub := v.storage.Subscribe(gameID)
	current, err := v.GetSortableItems(ctx, id, nil)
	if err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan ChangeSet)
	go func() {
		defer close(out)
		defer sub.Close()

		send := func(cs ChangeSet) bool {
			select {
			case out <- cs:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send(diffItems(nil, current)) {
			return
		}

		for {
			e, err := sub.Next(ctx)
			if err != nil {
				return
			}
			if !affects(e, so) {
				continue
			}
			if e.Kind == store.SortOrderDeleted {
				return
			}

			// Coalesce a burst into one recomputation.
			sub.Drain()
			next, err := v.GetSortableItems(ctx, id, nil)
			if errors.Is(err, store.ErrNotFound) {
				return
			}
			if err != nil {
				v.logger.Warn("change set refresh failed", "sort_order", string(id), "event", e.ID, "error", err)
				continue
			}
			cs := diffItems(current, next)
			current = next
			if cs.Empty() {
				continue
			}
			if !send(cs) {
				return
			}
		}
	}()
	return out, nil
}

// affects reports whether e can change the sortable items of so.
func affects(e store.Event, so ir.SortOrder) bool {
	switch e.Kind {
	case store.SortOrderChanged, store.SortOrderDeleted:
		return e.SortOrderID == so.ID
	case store.MembersChanged, store.CollectionRemoved:
		if e.LoadoutID != so.LoadoutID {
			return false
		}
		cid, ok := so.Parent.CollectionGroupID()
		return !ok || e.CollectionGroupID == "" || e.CollectionGroupID == cid
	case store.LoadoutRemoved:
		return e.LoadoutID == so.LoadoutID
	default:
		return false
	}
}
