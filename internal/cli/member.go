package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/loadorder/internal/ir"
)

// MemberResult reports a membership change.
type MemberResult struct {
	Action  string   `json:"action"`
	Loadout string   `json:"loadout"`
	Mod     string   `json:"mod"`
	Keys    []string `json:"keys,omitempty"`
	Changed bool     `json:"changed"`
	Ran     int      `json:"ran"`
}

func (r MemberResult) Text() string {
	if !r.Changed {
		return fmt.Sprintf("mod %s: nothing to %s\n", r.Mod, r.Action)
	}
	return fmt.Sprintf("✓ mod %s: %s %d key(s) (%d load order update(s))\n", r.Mod, r.Action, len(r.Keys), r.Ran)
}

// NewMemberCommand creates the member command group.
func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Add, remove, enable and disable mod members of a loadout",
		Long: `Members are the orderable keys a mod contributes to a loadout. Each
change is followed by reconciliation of the affected sort orders.`,
	}

	var (
		collection string
		modName    string
		disabled   bool
	)
	add := &cobra.Command{
		Use:   "add <loadout> <mod> <kind> <key>...",
		Short: "Add keys contributed by a mod",
		Long: `Add keys contributed by a mod. Adding an existing key updates its mod
name, enabled flag and collection.

Example:
  loadorder member add main ussep plugin "Unofficial Skyrim Special Edition Patch.esp"`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				name := modName
				if name == "" {
					name = args[1]
				}
				for _, key := range args[3:] {
					if _, err := s.store.AddMember(ctx, ir.Member{
						LoadoutID:         ir.LoadoutID(args[0]),
						CollectionGroupID: ir.CollectionGroupID(collection),
						ModGroupID:        args[1],
						ModName:           name,
						Kind:              args[2],
						Key:               key,
						Enabled:           !disabled,
					}); err != nil {
						return err
					}
				}
				ran := s.flush(ctx)
				return f.Success(MemberResult{Action: "add", Loadout: args[0], Mod: args[1], Keys: args[3:], Changed: ran > 0, Ran: ran})
			})
		},
	}
	add.Flags().StringVar(&collection, "collection", "", "collection group the mod belongs to")
	add.Flags().StringVar(&modName, "mod-name", "", "display name of the mod (default: mod id)")
	add.Flags().BoolVar(&disabled, "disabled", false, "add the keys disabled")

	remove := &cobra.Command{
		Use:   "remove <loadout> <mod> [<kind> <key>...]",
		Short: "Remove keys of a mod, or the whole mod",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 || len(args) >= 4 {
				return nil
			}
			return fmt.Errorf("accepts <loadout> <mod>, or <loadout> <mod> <kind> <key>...")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				loadout := ir.LoadoutID(args[0])
				if len(args) == 2 {
					if err := s.store.RemoveMod(ctx, loadout, args[1]); err != nil {
						return err
					}
				}
				for i := 3; i < len(args); i++ {
					if err := s.store.RemoveMember(ctx, loadout, args[1], args[2], args[i]); err != nil {
						return err
					}
				}
				ran := s.flush(ctx)
				var keys []string
				if len(args) > 3 {
					keys = args[3:]
				}
				return f.Success(MemberResult{Action: "remove", Loadout: args[0], Mod: args[1], Keys: keys, Changed: ran > 0, Ran: ran})
			})
		},
	}

	toggle := func(use string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <loadout> <mod>",
			Short: "Set the enabled flag of every key of a mod",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
					changed, err := s.store.SetModEnabled(ctx, ir.LoadoutID(args[0]), args[1], enabled)
					if err != nil {
						return err
					}
					ran := s.flush(ctx)
					return f.Success(MemberResult{Action: use, Loadout: args[0], Mod: args[1], Changed: changed, Ran: ran})
				})
			},
		}
	}

	cmd.AddCommand(add, remove, toggle("enable", true), toggle("disable", false))
	return cmd
}
