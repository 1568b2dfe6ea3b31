package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/sortorder"
	"github.com/roach88/loadorder/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // assertion type
	Subject  string // "<parent> <variety>"
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed for %s: expected %s, got %s", e.Type, e.Subject, e.Expected, e.Actual)
}

// AssertionContext is what assertions read the final state from.
type AssertionContext struct {
	Ctx     context.Context
	Store   store.Reader
	Manager *sortorder.Manager
}

// EvaluateAssertions checks every assertion and returns one message per
// failure, prefixed with the assertion index.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var msgs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	v, err := actx.Manager.FindVariety(a.Variety)
	if err != nil {
		return err
	}
	p := parent(a.Loadout, a.Collection)
	subject := OrderKey(p, v.Descriptor().Name)

	id, ok, err := actx.Store.FindSortOrder(actx.Ctx, p, v.ID())
	if err != nil {
		return err
	}

	switch a.Type {
	case AssertAbsent:
		if ok {
			return &AssertionError{Type: a.Type, Subject: subject, Expected: "no sort order", Actual: string(id)}
		}
		return nil
	case AssertOrder:
		if !ok {
			return &AssertionError{Type: a.Type, Subject: subject, Expected: formatKeys(a.Keys), Actual: "no sort order"}
		}
		so, err := actx.Store.LoadSortOrder(actx.Ctx, id)
		if err != nil {
			return err
		}
		got := ir.Keys(so.Items)
		if !slices.Equal(got, a.Keys) {
			return &AssertionError{Type: a.Type, Subject: subject, Expected: formatKeys(a.Keys), Actual: formatKeys(got)}
		}
		return nil
	case AssertItem:
		if !ok {
			return &AssertionError{Type: a.Type, Subject: subject, Expected: "item " + a.Key, Actual: "no sort order"}
		}
		return assertItem(a, v, id, subject, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertItem checks one sortable item, joined with live membership.
func assertItem(a Assertion, v *sortorder.Variety, id ir.SortOrderID, subject string, actx *AssertionContext) error {
	items, err := v.GetSortableItems(actx.Ctx, id, actx.Store)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(items, func(it ir.SortableItem) bool { return it.Key == a.Key })
	if i < 0 {
		return &AssertionError{Type: a.Type, Subject: subject, Expected: "item " + a.Key, Actual: "not found"}
	}
	item := items[i]
	if a.Index != nil && item.SortIndex != *a.Index {
		return &AssertionError{
			Type:     a.Type,
			Subject:  subject,
			Expected: fmt.Sprintf("%s at index %d", a.Key, *a.Index),
			Actual:   fmt.Sprintf("index %d", item.SortIndex),
		}
	}
	if a.Enabled != nil && item.IsEnabled != *a.Enabled {
		return &AssertionError{
			Type:     a.Type,
			Subject:  subject,
			Expected: fmt.Sprintf("%s enabled=%t", a.Key, *a.Enabled),
			Actual:   fmt.Sprintf("enabled=%t", item.IsEnabled),
		}
	}
	return nil
}

func formatKeys(keys []string) string {
	return "[" + strings.Join(keys, ", ") + "]"
}
