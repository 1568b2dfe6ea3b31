package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/loadorder/internal/config"
	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/sortorder"
	"github.com/roach88/loadorder/internal/store"
	"github.com/roach88/loadorder/internal/varieties"
)

// session is one command's view of the engine: config, store, Manager and
// a pipeline driven by flush.
type session struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	manager  *sortorder.Manager
	pipeline *sortorder.Pipeline
}

// openSession loads config and catalog, opens the database and registers
// the configured game's varieties. The Manager runs without a background
// pipeline; changes are applied by flush.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := opts.config(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfig, Message: err.Error()}
	}

	loaded, errs := LoadCatalog(cfg.Catalog)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	defs, err := varieties.ForGame(loaded.Catalog, cfg.Game)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfig, Message: err.Error()}
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	m := sortorder.NewManager(st,
		sortorder.WithLogger(logger),
		sortorder.WithLockTimeout(cfg.LockTimeout),
		sortorder.WithoutPipeline(),
	)
	if err := m.RegisterVarieties(ctx, cfg.Game, defs); err != nil {
		st.Close()
		return nil, err
	}

	return &session{cfg: cfg, logger: logger, store: st, manager: m, pipeline: sortorder.NewPipeline(m)}, nil
}

// flush applies the changes queued since the session opened.
func (s *session) flush(ctx context.Context) int {
	return s.pipeline.Flush(ctx)
}

func (s *session) Close() {
	s.pipeline.Close()
	if err := s.manager.Close(); err != nil {
		s.logger.Error("error stopping manager", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// sortOrder resolves the variety named by ref and the sort order it keeps
// for the parent, creating the order when it does not exist yet.
func (s *session) sortOrder(ctx context.Context, ref string, parent ir.ParentEntity) (*sortorder.Variety, ir.SortOrderID, error) {
	v, err := s.manager.FindVariety(ref)
	if err != nil {
		return nil, "", err
	}
	if err := s.checkParent(ctx, parent); err != nil {
		return nil, "", err
	}
	id, err := v.GetOrCreateSortOrderFor(ctx, parent)
	if err != nil {
		return nil, "", err
	}
	return v, id, nil
}

// checkParent returns an ErrNotFound-wrapping error for a missing parent.
func (s *session) checkParent(ctx context.Context, parent ir.ParentEntity) error {
	if cid, ok := parent.CollectionGroupID(); ok {
		g, err := s.store.GetCollectionGroup(ctx, cid)
		if err != nil {
			return err
		}
		if g.LoadoutID != parent.LoadoutID() {
			return fmt.Errorf("collection group %s of loadout %s: %w", cid, parent.LoadoutID(), store.ErrNotFound)
		}
		return nil
	}
	_, err := s.store.GetLoadout(ctx, parent.LoadoutID())
	return err
}

// withSession opens a session for the duration of fn. Errors are written
// by f and returned as ExitErrors.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session, f *OutputFormatter) error) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, err)
	}
	defer s.Close()

	if err := fn(ctx, s, f); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return f.Fail(ExitFailure, err)
	}
	return nil
}

// parentFlag resolves a loadout id and the optional --collection flag.
func parentFlag(loadout, collection string) ir.ParentEntity {
	c := ir.CollectionGroupID(collection)
	return ir.ResolveParent(ir.LoadoutID(loadout), &c)
}
