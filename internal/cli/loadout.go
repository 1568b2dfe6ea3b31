package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/loadorder/internal/ir"
)

// EntityResult reports a created or removed loadout or collection group.
type EntityResult struct {
	Action string `json:"action"` // "created" or "removed"
	Kind   string `json:"kind"`   // "loadout" or "collection"
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	// Ran is the number of load order updates the change triggered.
	Ran int `json:"ran"`
}

func (r EntityResult) Text() string {
	return fmt.Sprintf("✓ %s %s %s (%d load order update(s))\n", r.Kind, r.ID, r.Action, r.Ran)
}

// LoadoutList is the output of loadout list.
type LoadoutList struct {
	Game     string       `json:"game"`
	Loadouts []ir.Loadout `json:"loadouts"`
}

func (l LoadoutList) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Loadouts of %s:\n", l.Game)
	for _, lo := range l.Loadouts {
		fmt.Fprintf(&b, "  %s  %s\n", lo.ID, lo.Name)
	}
	return b.String()
}

// NewLoadoutCommand creates the loadout command group.
func NewLoadoutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loadout",
		Short: "Create, remove and list loadouts",
	}

	var name string
	create := &cobra.Command{
		Use:   "create [id]",
		Short: "Create a loadout of the configured game",
		Long: `Create a loadout and its sort orders. Without an id one is generated.

Example:
  loadorder loadout create main --name "Main Profile"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				l := ir.Loadout{GameID: s.cfg.Game, Name: name}
				if len(args) == 1 {
					l.ID = ir.LoadoutID(args[0])
				}
				created, err := s.store.CreateLoadout(ctx, l)
				if err != nil {
					return err
				}
				ran := s.flush(ctx)
				return f.Success(EntityResult{Action: "created", Kind: "loadout", ID: string(created.ID), Name: created.Name, Ran: ran})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a loadout with its collections, members and sort orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				if err := s.store.RemoveLoadout(ctx, ir.LoadoutID(args[0])); err != nil {
					return err
				}
				ran := s.flush(ctx)
				return f.Success(EntityResult{Action: "removed", Kind: "loadout", ID: args[0], Ran: ran})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List loadouts of the configured game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				loadouts, err := s.store.ListLoadouts(ctx, s.cfg.Game)
				if err != nil {
					return err
				}
				return f.Success(LoadoutList{Game: s.cfg.Game, Loadouts: loadouts})
			})
		},
	}

	cmd.AddCommand(create, remove, list)
	return cmd
}

// NewCollectionCommand creates the collection command group.
func NewCollectionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Create and remove collection groups",
	}

	var name string
	create := &cobra.Command{
		Use:   "create <loadout> [id]",
		Short: "Create a collection group inside a loadout",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				g := ir.CollectionGroup{LoadoutID: ir.LoadoutID(args[0]), Name: name}
				if len(args) == 2 {
					g.ID = ir.CollectionGroupID(args[1])
				}
				created, err := s.store.CreateCollectionGroup(ctx, g)
				if err != nil {
					return err
				}
				ran := s.flush(ctx)
				return f.Success(EntityResult{Action: "created", Kind: "collection", ID: string(created.ID), Name: created.Name, Ran: ran})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a collection group, its members and its sort orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				if err := s.store.RemoveCollectionGroup(ctx, ir.CollectionGroupID(args[0])); err != nil {
					return err
				}
				ran := s.flush(ctx)
				return f.Success(EntityResult{Action: "removed", Kind: "collection", ID: args[0], Ran: ran})
			})
		},
	}

	cmd.AddCommand(create, remove)
	return cmd
}
