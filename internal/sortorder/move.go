package sortorder

import (
	"slices"

	"github.com/roach88/loadorder/internal/ir"
)

// movePlan is the outcome of planning a block move on an in-memory order.
type movePlan struct {
	items   []ir.SortItemData // renumbered result; nil when aborted
	applied []string          // moved keys in block order
	skipped []string          // requested keys absent from the order
	aborted bool              // drop target absent
}

// planMove moves the items named by keys next to dropTarget.
//
// The moved block keeps the order the items had before the move, whatever
// order keys were given in. Every moved item that sat before the raw target
// shifts the insertion point left by one, so the drop target's neighbor on
// the insertion side stays put.
func planMove(current []ir.SortItemData, keys []string, dropTarget string, pos ir.RelativePosition) movePlan {
	staging := slices.Clone(current)
	ir.SortByIndex(staging)

	index := make(map[string]int, len(staging))
	for i, item := range staging {
		index[item.Key] = i
	}

	var plan movePlan
	moving := make(map[string]struct{}, len(keys))
	var block []int
	for _, k := range keys {
		i, ok := index[k]
		if !ok {
			plan.skipped = append(plan.skipped, k)
			continue
		}
		if _, dup := moving[k]; dup {
			continue
		}
		moving[k] = struct{}{}
		block = append(block, i)
	}
	slices.Sort(block)

	targetIndex, ok := index[dropTarget]
	if !ok {
		plan.aborted = true
		return plan
	}

	insertAt := targetIndex
	if pos == ir.After {
		insertAt++
	}
	raw := insertAt
	for _, i := range block {
		if i < raw {
			insertAt--
		}
	}

	moved := make([]ir.SortItemData, len(block))
	for n, i := range block {
		moved[n] = staging[i]
		plan.applied = append(plan.applied, staging[i].Key)
	}
	rest := slices.DeleteFunc(staging, func(item ir.SortItemData) bool {
		_, ok := moving[item.Key]
		return ok
	})
	insertAt = min(max(insertAt, 0), len(rest))

	plan.items = slices.Insert(rest, insertAt, moved...)
	ir.Renumber(plan.items)
	return plan
}

// planDelta moves one item by delta positions, clamped to the order's
// bounds. found is false when key is absent; changed is false when the
// clamped position equals the current one.
func planDelta(current []ir.SortItemData, key string, delta int) (items []ir.SortItemData, found, changed bool) {
	staging := slices.Clone(current)
	ir.SortByIndex(staging)

	from := slices.IndexFunc(staging, func(item ir.SortItemData) bool { return item.Key == key })
	if from < 0 {
		return nil, false, false
	}
	// from+delta overflows for extreme deltas, so clamp before adding.
	last := len(staging) - 1
	var to int
	switch {
	case delta >= last-from:
		to = last
	case delta <= -from:
		to = 0
	default:
		to = from + delta
	}
	if to == from {
		return nil, true, false
	}

	item := staging[from]
	staging = slices.Delete(staging, from, from+1)
	staging = slices.Insert(staging, to, item)
	ir.Renumber(staging)
	return staging, true, true
}
