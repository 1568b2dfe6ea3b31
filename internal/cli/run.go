package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/loadorder/internal/ir"
)

// RunResult reports one reconcile pass over a game.
type RunResult struct {
	Game        string `json:"game"`
	Loadouts    int    `json:"loadouts"`
	Collections int    `json:"collections"`
	Failed      int    `json:"failed"`
}

func (r RunResult) Text() string {
	return fmt.Sprintf("✓ reconciled %d loadout(s) and %d collection(s) of %s (%d failed)\n",
		r.Loadouts, r.Collections, r.Game, r.Failed)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile every sort order of the configured game",
		Long: `Create missing sort orders and reconcile every loadout and collection
group of the configured game. Other processes may have changed membership,
so with --interval the pass repeats until SIGINT or SIGTERM.

Examples:
  loadorder run --game skyrimse
  loadorder run --interval 30s --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < 0 {
				return rootOpts.formatter(cmd).Fail(ExitCommandError, &LoadError{Code: ErrCodeUsage, Message: "interval must not be negative"})
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, f *OutputFormatter) error {
				return runPasses(ctx, s, f, interval)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the pass at this interval until interrupted (0 runs once)")
	return cmd
}

func runPasses(ctx context.Context, s *session, f *OutputFormatter, interval time.Duration) error {
	if interval == 0 {
		res, err := reconcileAll(ctx, s)
		if err != nil {
			return err
		}
		return f.Success(res)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("reconciling periodically", "game", s.cfg.Game, "interval", interval)
	for {
		res, err := reconcileAll(ctx, s)
		switch {
		case ctx.Err() != nil:
			s.logger.Info("stopped")
			return nil
		case err != nil:
			s.logger.Error("reconcile pass failed", "error", err)
		default:
			s.logger.Info("reconcile pass done", "loadouts", res.Loadouts, "collections", res.Collections, "failed", res.Failed)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// reconcileAll updates every loadout of the game and its collection groups.
// A failing parent is logged and counted; listing failures end the pass.
func reconcileAll(ctx context.Context, s *session) (RunResult, error) {
	res := RunResult{Game: s.cfg.Game}
	loadouts, err := s.store.ListLoadouts(ctx, s.cfg.Game)
	if err != nil {
		return res, err
	}

	update := func(l ir.LoadoutID, c *ir.CollectionGroupID) {
		err := s.manager.UpdateLoadOrders(ctx, l, c)
		if err == nil {
			return
		}
		res.Failed++
		s.logger.Error("load order update failed", "parent", ir.ResolveParent(l, c).String(), "error", err)
	}

	for _, l := range loadouts {
		groups, err := s.store.ListCollectionGroups(ctx, l.ID)
		if err != nil {
			return res, err
		}
		for _, g := range groups {
			update(l.ID, &g.ID)
			res.Collections++
		}
		update(l.ID, nil)
		res.Loadouts++
	}
	return res, nil
}
