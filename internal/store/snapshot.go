package store

import (
	"context"
	"fmt"
)

// Snapshot is a point-in-time read view. Every read through it observes
// the database as of the moment Snapshot returned, regardless of later
// commits. Close releases the underlying read transaction.
type Snapshot struct {
	reader
	tx interface{ Rollback() error }
}

var _ Reader = (*Snapshot)(nil)

// Snapshot opens a read transaction and pins it with an initial read.
// The snapshot stays valid until Close or until ctx is done.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.ro.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: begin tx: %w", err)
	}

	// WAL read transactions start at the first read, not at BEGIN.
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sort_orders`).Scan(&n); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("snapshot: pin: %w", err)
	}
	return &Snapshot{reader: reader{q: tx}, tx: tx}, nil
}

// Close ends the read transaction. Safe to call more than once.
func (s *Snapshot) Close() error {
	if s == nil || s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}
