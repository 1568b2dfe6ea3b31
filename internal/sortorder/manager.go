package sortorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/loadorder/internal/ir"
	"github.com/roach88/loadorder/internal/store"
)

// Manager is the single entry point for one game instance. It owns the
// mutation lock and the variety registry.
//
// Thread-safety: all methods are safe for concurrent use. The lock is not
// reentrant: code holding it through Lock or WithLock must not call
// mutating Variety or Manager methods.
type Manager struct {
	storage Storage
	lock    *Lock
	logger  *slog.Logger

	startPipeline bool

	mu        sync.RWMutex
	gameID    string
	varieties []*Variety // registration order
	byID      map[ir.VarietyID]*Variety

	pipeline *Pipeline
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLockTimeout sets the lock wait bound. Default: DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) { m.lock = NewLock(d) }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithoutPipeline stops RegisterVarieties from starting the change
// pipeline. Callers can drive one themselves with NewPipeline.
func WithoutPipeline() Option {
	return func(m *Manager) { m.startPipeline = false }
}

// NewManager creates a Manager with no varieties registered.
func NewManager(storage Storage, opts ...Option) *Manager {
	m := &Manager{
		storage:       storage,
		lock:          NewLock(DefaultLockTimeout),
		logger:        slog.Default(),
		startPipeline: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterVarieties binds defs to this Manager and starts the change
// pipeline for gameID. It may be called once; the registry is immutable
// afterwards. The pipeline stops when ctx is done or on Close.
func (m *Manager) RegisterVarieties(ctx context.Context, gameID string, defs []Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byID != nil {
		return fmt.Errorf("register varieties: already registered for game %q", m.gameID)
	}
	if gameID == "" {
		return fmt.Errorf("register varieties: game id is required")
	}

	byID := make(map[ir.VarietyID]*Variety, len(defs))
	varieties := make([]*Variety, 0, len(defs))
	for _, def := range defs {
		switch {
		case def.Descriptor.ID == "":
			return fmt.Errorf("register varieties: variety %q has no id", def.Descriptor.Name)
		case def.Descriptor.Kind == "":
			return fmt.Errorf("register varieties: variety %s has no kind", def.Descriptor.ID)
		case def.Policy == nil:
			return fmt.Errorf("register varieties: variety %s has no policy", def.Descriptor.ID)
		}
		if _, dup := byID[def.Descriptor.ID]; dup {
			return fmt.Errorf("register varieties: duplicate variety id %s", def.Descriptor.ID)
		}
		v := newVariety(def, m.storage, m.lock, m.logger)
		byID[v.ID()] = v
		varieties = append(varieties, v)
	}

	m.gameID = gameID
	m.byID = byID
	m.varieties = varieties
	m.logger.Info("varieties registered", "game", gameID, "count", len(varieties))

	if m.startPipeline {
		runCtx, cancel := context.WithCancel(ctx)
		m.pipeline = newPipeline(m, gameID)
		m.cancel = cancel
		m.done = make(chan struct{})
		go func() {
			defer close(m.done)
			m.pipeline.Run(runCtx)
		}()
	}
	return nil
}

// GameID returns the registered game id, or "" before registration.
func (m *Manager) GameID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gameID
}

// GetSortOrderVarieties returns the registered varieties in registration order.
func (m *Manager) GetSortOrderVarieties() []*Variety {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Variety, len(m.varieties))
	copy(out, m.varieties)
	return out
}

// Variety returns a registered variety or an UNKNOWN_VARIETY error.
func (m *Manager) Variety(id ir.VarietyID) (*Variety, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.byID[id]
	if !ok {
		return nil, NewUnknownVarietyError(id)
	}
	return v, nil
}

// FindVariety resolves ref as a variety id, or failing that as a
// case-insensitive variety name.
func (m *Manager) FindVariety(ref string) (*Variety, error) {
	if v, err := m.Variety(ir.VarietyID(ref)); err == nil {
		return v, nil
	}
	for _, v := range m.GetSortOrderVarieties() {
		if strings.EqualFold(v.desc.Name, ref) {
			return v, nil
		}
	}
	return nil, NewUnknownVarietyError(ir.VarietyID(ref))
}

// Lock acquires the Manager's mutation lock. Callers must call release.
func (m *Manager) Lock(ctx context.Context) (release func(), err error) {
	return m.lock.Acquire(ctx)
}

// WithLock runs fn while holding the mutation lock.
func (m *Manager) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.lock.Do(ctx, fn)
}

// UpdateLoadOrders creates (if needed) and reconciles the sort order of
// every variety for the parent resolved from loadoutID and collection.
// A parent that no longer exists is skipped.
func (m *Manager) UpdateLoadOrders(ctx context.Context, loadoutID ir.LoadoutID, collection *ir.CollectionGroupID) error {
	return m.updateLoadOrders(ctx, ir.ResolveParent(loadoutID, collection), nil)
}

func (m *Manager) updateLoadOrders(ctx context.Context, parent ir.ParentEntity, snap store.Reader) error {
	exists, err := m.parentExists(ctx, parent)
	if err != nil {
		return fmt.Errorf("update load orders %s: %w", parent, err)
	}
	if !exists {
		m.logger.Debug("parent gone, skipping update", "parent", parent.String())
		return nil
	}

	var errs []error
	for _, v := range m.GetSortOrderVarieties() {
		id, err := v.GetOrCreateSortOrderFor(ctx, parent)
		if err != nil {
			errs = append(errs, fmt.Errorf("variety %s: %w", v.ID(), err))
			continue
		}
		if _, err := v.ReconcileSortOrder(ctx, id, snap); err != nil {
			if IsCancelled(err) || IsLockTimeout(err) {
				return err
			}
			errs = append(errs, fmt.Errorf("variety %s: %w", v.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) parentExists(ctx context.Context, parent ir.ParentEntity) (bool, error) {
	var err error
	if cid, ok := parent.CollectionGroupID(); ok {
		_, err = m.storage.GetCollectionGroup(ctx, cid)
	} else {
		_, err = m.storage.GetLoadout(ctx, parent.LoadoutID())
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// DeleteSortOrders deletes every stored sort order of the parent.
// Rows whose variety is not registered are logged and skipped.
func (m *Manager) DeleteSortOrders(ctx context.Context, loadoutID ir.LoadoutID, collection *ir.CollectionGroupID) error {
	return m.deleteSortOrders(ctx, ir.ResolveParent(loadoutID, collection))
}

func (m *Manager) deleteSortOrders(ctx context.Context, parent ir.ParentEntity) error {
	orders, err := m.storage.ListSortOrders(ctx, parent)
	if err != nil {
		return fmt.Errorf("delete sort orders %s: %w", parent, err)
	}

	var errs []error
	for _, so := range orders {
		v, err := m.Variety(so.VarietyID)
		if err != nil {
			m.logger.Warn("skipping sort order of unknown variety",
				"sort_order", string(so.ID), "parent", parent.String(), "error", err)
			continue
		}
		if err := v.DeleteSortOrder(ctx, so.ID); err != nil {
			if IsCancelled(err) || IsLockTimeout(err) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops the pipeline, if running, and waits for it to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	cancel, done, p := m.cancel, m.done, m.pipeline
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	p.Close()
	return nil
}
