package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/sortorder"
)

// OrderView is the joined view of one sort order.
type OrderView struct {
	Parent    string            `json:"parent"`
	Variety   ir.VarietyID      `json:"variety"`
	Name      string            `json:"name"`
	Direction string            `json:"direction"`
	SortOrder ir.SortOrderID    `json:"sort_order,omitempty"`
	Items     []ir.SortableItem `json:"items"`
	ui        ir.UIMetadata
}

// OrderViews is the output of show.
type OrderViews []OrderView

func (vs OrderViews) Text() string {
	var b strings.Builder
	for i, v := range vs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", v.Parent, v.Name, v.Direction)
		if v.SortOrder == "" || len(v.Items) == 0 {
			fmt.Fprintf(&b, "  %s\n", v.ui.EmptyStateTitle)
			continue
		}
		fmt.Fprintf(&b, "  %-10s %s\n", v.ui.IndexColumnHeader, v.ui.DisplayNameColumnHeader)
		for _, item := range v.Items {
			state := ""
			if !item.IsEnabled {
				state = "  (disabled)"
			}
			fmt.Fprintf(&b, "  %-10d %s  [%s]%s\n", item.SortIndex, item.Key, item.ModName, state)
		}
	}
	return b.String()
}

// OrderChange is the output of move, delta, set and reconcile.
type OrderChange struct {
	Op        string         `json:"op"`
	Parent    string         `json:"parent"`
	Variety   string         `json:"variety,omitempty"`
	SortOrder ir.SortOrderID `json:"sort_order,omitempty"`
	Applied   []string       `json:"applied,omitempty"`
	Skipped   []string       `json:"skipped,omitempty"`
	Aborted   bool           `json:"aborted,omitempty"`
	Changed   bool           `json:"changed"`
	Warnings  []string       `json:"warnings,omitempty"`
	Order     []string       `json:"order,omitempty"`
}

func (c OrderChange) Text() string {
	var b strings.Builder
	switch {
	case c.Aborted:
		fmt.Fprintf(&b, "✗ %s aborted: drop target not found\n", c.Op)
	case c.Changed:
		fmt.Fprintf(&b, "✓ %s %s %s\n", c.Op, c.Parent, c.Variety)
	default:
		fmt.Fprintf(&b, "%s %s %s: no change\n", c.Op, c.Parent, c.Variety)
	}
	for _, w := range c.Warnings {
		fmt.Fprintf(&b, "  warning: %s\n", w)
	}
	for i, k := range c.Order {
		fmt.Fprintf(&b, "  %3d  %s\n", i, k)
	}
	return b.String()
}

func newOrderChange(op string, parent ir.ParentEntity, v *sortorder.Variety, id ir.SortOrderID, res sortorder.MoveResult) OrderChange {
	c := OrderChange{
		Op:        op,
		Parent:    parent.String(),
		Variety:   v.Descriptor().Name,
		SortOrder: id,
		Applied:   res.Applied,
		Skipped:   res.Skipped,
		Aborted:   res.Aborted,
		Changed:   res.Changed,
	}
	for _, w := range res.Warnings {
		c.Warnings = append(c.Warnings, w.Error())
	}
	return c
}

// withOrder attaches the persisted keys of id to c.
func (s *session) withOrder(ctx context.Context, c OrderChange, id ir.SortOrderID) (OrderChange, error) {
	so, err := s.store.LoadSortOrder(ctx, id)
	if err != nil {
		return c, err
	}
	c.Order = ir.Keys(so.Items)
	return c, nil
}

// views builds the joined view of each variety's sort order for parent.
// A variety without a sort order yields an empty view.
func (s *session) views(ctx context.Context, parent ir.ParentEntity, vs []*sortorder.Variety) (OrderViews, error) {
	views := make(OrderViews, 0, len(vs))
	for _, v := range vs {
		d := v.Descriptor()
		view := OrderView{
			Parent:    parent.String(),
			Variety:   d.ID,
			Name:      d.Name,
			Direction: string(d.SortDirectionDefault),
			Items:     []ir.SortableItem{},
			ui:        d.UI.WithDefaults(),
		}
		id, ok, err := v.GetSortOrderIDFor(ctx, parent)
		if err != nil {
			return nil, err
		}
		if ok {
			view.SortOrder = id
			if view.Items, err = v.GetSortableItems(ctx, id, nil); err != nil {
				return nil, err
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var collection, variety string
	cmd := &cobra.Command{
		Use:   "show <loadout>",
		Short: "Show the sort orders of a loadout or collection",
		Long: `Show every sort order of a loadout, joined with live membership.

Examples:
  loadorder show main
  loadorder show main --collection overhaul --variety Plugins --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				parent := parentFlag(args[0], collection)
				if err := s.checkParent(ctx, parent); err != nil {
					return err
				}
				vs := s.manager.GetSortOrderVarieties()
				if variety != "" {
					v, err := s.manager.FindVariety(variety)
					if err != nil {
						return err
					}
					vs = []*sortorder.Variety{v}
				}
				views, err := s.views(ctx, parent, vs)
				if err != nil {
					return err
				}
				return f.Success(views)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group instead of the whole loadout")
	cmd.Flags().StringVar(&variety, "variety", "", "only this variety (id or name)")
	return cmd
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	var collection, variety string
	cmd := &cobra.Command{
		Use:   "reconcile <loadout>",
		Short: "Bring sort orders in line with current membership",
		Long: `Create missing sort orders and reconcile them with the members of the
loadout or collection. With --variety only that sort order is reconciled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				parent := parentFlag(args[0], collection)
				if variety == "" {
					if err := s.checkParent(ctx, parent); err != nil {
						return err
					}
					var cid *ir.CollectionGroupID
					if id, ok := parent.CollectionGroupID(); ok {
						cid = &id
					}
					if err := s.manager.UpdateLoadOrders(ctx, parent.LoadoutID(), cid); err != nil {
						return err
					}
					views, err := s.views(ctx, parent, s.manager.GetSortOrderVarieties())
					if err != nil {
						return err
					}
					return f.Success(views)
				}

				v, id, err := s.sortOrder(ctx, variety, parent)
				if err != nil {
					return err
				}
				changed, err := v.ReconcileSortOrder(ctx, id, nil)
				if err != nil {
					return err
				}
				c := newOrderChange("reconcile", parent, v, id, sortorder.MoveResult{Changed: changed})
				c, err = s.withOrder(ctx, c, id)
				if err != nil {
					return err
				}
				return f.Success(c)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group instead of the whole loadout")
	cmd.Flags().StringVar(&variety, "variety", "", "only this variety (id or name)")
	return cmd
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	var collection, position string
	cmd := &cobra.Command{
		Use:   "move <loadout> <variety> <target> <key>...",
		Short: "Move keys before or after a drop target",
		Long: `Move keys as one block next to the drop target. The block keeps the
relative order the keys had. Keys not in the order are skipped; a missing
drop target moves nothing.

Example:
  loadorder move main Plugins Skyrim.esm Foo.esp Bar.esp --position after`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				pos, err := ir.ParseRelativePosition(position)
				if err != nil {
					return &LoadError{Code: ErrCodeUsage, Message: err.Error()}
				}
				parent := parentFlag(args[0], collection)
				v, id, err := s.sortOrder(ctx, args[1], parent)
				if err != nil {
					return err
				}
				res, err := v.MoveItems(ctx, id, args[3:], args[2], pos)
				if err != nil {
					return err
				}
				c, err := s.withOrder(ctx, newOrderChange("move", parent, v, id, res), id)
				if err != nil {
					return err
				}
				return f.Success(c)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group instead of the whole loadout")
	cmd.Flags().StringVar(&position, "position", "before", "before or after the target")
	return cmd
}

// NewDeltaCommand creates the delta command.
func NewDeltaCommand(rootOpts *RootOptions) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "delta <loadout> <variety> <key> <delta>",
		Short: "Move one key by a number of positions",
		Long: `Move one key by delta positions, clamped to the bounds of the order.
Separate a negative delta with --.

Example:
  loadorder delta main Plugins Foo.esp -- -2`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				delta, err := strconv.Atoi(args[3])
				if err != nil {
					return &LoadError{Code: ErrCodeUsage, Message: fmt.Sprintf("delta must be an integer, got %q", args[3])}
				}
				parent := parentFlag(args[0], collection)
				v, id, err := s.sortOrder(ctx, args[1], parent)
				if err != nil {
					return err
				}
				res, err := v.MoveItemDelta(ctx, id, args[2], delta)
				if err != nil {
					return err
				}
				c, err := s.withOrder(ctx, newOrderChange("delta", parent, v, id, res), id)
				if err != nil {
					return err
				}
				return f.Success(c)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group instead of the whole loadout")
	return cmd
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "set <loadout> <variety> <key>...",
		Short: "Replace a sort order",
		Long: `Replace the order with the given keys. Keys without a live member are
dropped; live keys left out keep their relative order after the given ones.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				parent := parentFlag(args[0], collection)
				v, id, err := s.sortOrder(ctx, args[1], parent)
				if err != nil {
					return err
				}
				before, err := s.store.LoadSortOrder(ctx, id)
				if err != nil {
					return err
				}
				if err := v.SetSortOrder(ctx, id, args[2:], nil); err != nil {
					return err
				}
				c, err := s.withOrder(ctx, newOrderChange("set", parent, v, id, sortorder.MoveResult{}), id)
				if err != nil {
					return err
				}
				c.Changed = !slices.Equal(ir.Keys(before.Items), c.Order)
				return f.Success(c)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group instead of the whole loadout")
	return cmd
}
