package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/loadorder/internal/ir"
)

// CreateLoadout inserts a loadout. An empty ID is generated.
// Publishes LoadoutAdded.
func (s *Store) CreateLoadout(ctx context.Context, l ir.Loadout) (ir.Loadout, error) {
	if l.GameID == "" {
		return ir.Loadout{}, fmt.Errorf("create loadout: game id is required")
	}
	if l.ID == "" {
		l.ID = ir.LoadoutID(s.ids.Generate())
	}

	err := s.withTx(ctx, "create loadout", func(tx *sql.Tx) ([]Event, error) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO loadouts (id, game_id, name) VALUES (?, ?, ?)
		`, string(l.ID), l.GameID, l.Name); err != nil {
			return nil, err
		}
		return []Event{{Kind: LoadoutAdded, GameID: l.GameID, LoadoutID: l.ID}}, nil
	})
	if err != nil {
		return ir.Loadout{}, err
	}
	return l, nil
}

// RemoveLoadout deletes a loadout with its collection groups and members.
// Publishes CollectionRemoved for every group, then LoadoutRemoved.
// Sort orders are left for the consumer of those events to delete.
func (s *Store) RemoveLoadout(ctx context.Context, id ir.LoadoutID) error {
	return s.withTx(ctx, "remove loadout", func(tx *sql.Tx) ([]Event, error) {
		r := reader{q: tx}
		l, err := r.GetLoadout(ctx, id)
		if err != nil {
			return nil, err
		}
		groups, err := r.ListCollectionGroups(ctx, id)
		if err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM loadouts WHERE id = ?`, string(id)); err != nil {
			return nil, err
		}

		events := make([]Event, 0, len(groups)+1)
		for _, g := range groups {
			events = append(events, Event{Kind: CollectionRemoved, GameID: l.GameID, LoadoutID: id, CollectionGroupID: g.ID})
		}
		return append(events, Event{Kind: LoadoutRemoved, GameID: l.GameID, LoadoutID: id}), nil
	})
}

// CreateCollectionGroup inserts a collection group. An empty ID is generated.
// Publishes CollectionAdded.
func (s *Store) CreateCollectionGroup(ctx context.Context, c ir.CollectionGroup) (ir.CollectionGroup, error) {
	if c.ID == "" {
		c.ID = ir.CollectionGroupID(s.ids.Generate())
	}

	err := s.withTx(ctx, "create collection group", func(tx *sql.Tx) ([]Event, error) {
		l, err := reader{q: tx}.GetLoadout(ctx, c.LoadoutID)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collection_groups (id, loadout_id, name) VALUES (?, ?, ?)
		`, string(c.ID), string(c.LoadoutID), c.Name); err != nil {
			return nil, err
		}
		return []Event{{Kind: CollectionAdded, GameID: l.GameID, LoadoutID: c.LoadoutID, CollectionGroupID: c.ID}}, nil
	})
	if err != nil {
		return ir.CollectionGroup{}, err
	}
	return c, nil
}

// RemoveCollectionGroup deletes a group and the members it contributed.
// Publishes CollectionRemoved, and MembersChanged for the loadout when
// members were removed with it.
func (s *Store) RemoveCollectionGroup(ctx context.Context, id ir.CollectionGroupID) error {
	return s.withTx(ctx, "remove collection group", func(tx *sql.Tx) ([]Event, error) {
		r := reader{q: tx}
		c, err := r.GetCollectionGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		l, err := r.GetLoadout(ctx, c.LoadoutID)
		if err != nil {
			return nil, err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE collection_group_id = ?`, string(id))
		if err != nil {
			return nil, err
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM collection_groups WHERE id = ?`, string(id)); err != nil {
			return nil, err
		}

		events := []Event{{Kind: CollectionRemoved, GameID: l.GameID, LoadoutID: c.LoadoutID, CollectionGroupID: id}}
		if removed > 0 {
			events = append(events, Event{Kind: MembersChanged, GameID: l.GameID, LoadoutID: c.LoadoutID})
		}
		return events, nil
	})
}

// AddMember inserts or updates a member identified by
// (loadout, mod group, kind, key). Publishes MembersChanged only when a row
// was inserted or its name, enabled flag or collection changed.
func (s *Store) AddMember(ctx context.Context, m ir.Member) (ir.Member, error) {
	switch {
	case m.LoadoutID == "":
		return ir.Member{}, fmt.Errorf("add member: loadout id is required")
	case m.Kind == "" || m.Key == "":
		return ir.Member{}, fmt.Errorf("add member: kind and key are required")
	case m.ModGroupID == "":
		return ir.Member{}, fmt.Errorf("add member: mod group id is required")
	}

	var saved ir.Member
	err := s.withTx(ctx, "add member", func(tx *sql.Tx) ([]Event, error) {
		l, err := reader{q: tx}.GetLoadout(ctx, m.LoadoutID)
		if err != nil {
			return nil, err
		}

		var collection any
		if m.CollectionGroupID != "" {
			collection = string(m.CollectionGroupID)
		}

		var previous ir.CollectionGroupID
		moved := false
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(collection_group_id, '') FROM members
			WHERE loadout_id = ? AND mod_group_id = ? AND kind = ? AND item_key = ?
		`, string(m.LoadoutID), m.ModGroupID, m.Kind, m.Key).Scan(&previous)
		switch {
		case err == nil:
			moved = previous != m.CollectionGroupID
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("select previous member: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO members (loadout_id, collection_group_id, mod_group_id, mod_name, kind, item_key, enabled)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (loadout_id, mod_group_id, kind, item_key) DO UPDATE SET
				mod_name = excluded.mod_name,
				enabled = excluded.enabled,
				collection_group_id = excluded.collection_group_id
			WHERE members.mod_name IS NOT excluded.mod_name
				OR members.enabled IS NOT excluded.enabled
				OR members.collection_group_id IS NOT excluded.collection_group_id
		`, string(m.LoadoutID), collection, m.ModGroupID, m.ModName, m.Kind, m.Key, m.Enabled)
		if err != nil {
			return nil, err
		}
		changed, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}

		err = tx.QueryRowContext(ctx, `
			SELECT id, loadout_id, COALESCE(collection_group_id, ''), mod_group_id, mod_name, kind, item_key, enabled
			FROM members
			WHERE loadout_id = ? AND mod_group_id = ? AND kind = ? AND item_key = ?
		`, string(m.LoadoutID), m.ModGroupID, m.Kind, m.Key).Scan(
			&saved.ID, &saved.LoadoutID, &saved.CollectionGroupID, &saved.ModGroupID,
			&saved.ModName, &saved.Kind, &saved.Key, &saved.Enabled)
		if err != nil {
			return nil, fmt.Errorf("select member: %w", err)
		}
		saved.Seq = saved.ID

		if changed == 0 {
			return nil, nil
		}
		events := []Event{{Kind: MembersChanged, GameID: l.GameID, LoadoutID: m.LoadoutID, CollectionGroupID: m.CollectionGroupID}}
		if moved {
			events = append(events, Event{Kind: MembersChanged, GameID: l.GameID, LoadoutID: m.LoadoutID, CollectionGroupID: previous})
		}
		return events, nil
	})
	if err != nil {
		return ir.Member{}, err
	}
	return saved, nil
}

// RemoveMember deletes one member. Returns ErrNotFound if it does not exist.
func (s *Store) RemoveMember(ctx context.Context, loadoutID ir.LoadoutID, modGroupID, kind, key string) error {
	return s.withTx(ctx, "remove member", func(tx *sql.Tx) ([]Event, error) {
		l, err := reader{q: tx}.GetLoadout(ctx, loadoutID)
		if err != nil {
			return nil, err
		}

		var collection ir.CollectionGroupID
		err = tx.QueryRowContext(ctx, `
			DELETE FROM members
			WHERE loadout_id = ? AND mod_group_id = ? AND kind = ? AND item_key = ?
			RETURNING COALESCE(collection_group_id, '')
		`, string(loadoutID), modGroupID, kind, key).Scan(&collection)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %s/%s: %w", modGroupID, key, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		return []Event{{Kind: MembersChanged, GameID: l.GameID, LoadoutID: loadoutID, CollectionGroupID: collection}}, nil
	})
}

// RemoveMod deletes every member contributed by a mod group.
// Returns ErrNotFound if the mod group has no members.
func (s *Store) RemoveMod(ctx context.Context, loadoutID ir.LoadoutID, modGroupID string) error {
	return s.withTx(ctx, "remove mod", func(tx *sql.Tx) ([]Event, error) {
		l, err := reader{q: tx}.GetLoadout(ctx, loadoutID)
		if err != nil {
			return nil, err
		}
		collections, err := modCollections(ctx, tx, loadoutID, modGroupID)
		if err != nil {
			return nil, err
		}
		if len(collections) == 0 {
			return nil, fmt.Errorf("mod %s: %w", modGroupID, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM members WHERE loadout_id = ? AND mod_group_id = ?
		`, string(loadoutID), modGroupID); err != nil {
			return nil, err
		}
		return membersChanged(l, collections), nil
	})
}

// SetModEnabled toggles every member of a mod group. Returns whether any
// row changed; unchanged toggles publish nothing.
func (s *Store) SetModEnabled(ctx context.Context, loadoutID ir.LoadoutID, modGroupID string, enabled bool) (bool, error) {
	var changed bool
	err := s.withTx(ctx, "set mod enabled", func(tx *sql.Tx) ([]Event, error) {
		l, err := reader{q: tx}.GetLoadout(ctx, loadoutID)
		if err != nil {
			return nil, err
		}
		collections, err := modCollections(ctx, tx, loadoutID, modGroupID)
		if err != nil {
			return nil, err
		}
		if len(collections) == 0 {
			return nil, fmt.Errorf("mod %s: %w", modGroupID, ErrNotFound)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE members SET enabled = ?
			WHERE loadout_id = ? AND mod_group_id = ? AND enabled <> ?
		`, enabled, string(loadoutID), modGroupID, enabled)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		changed = true
		return membersChanged(l, collections), nil
	})
	return changed, err
}

// modCollections returns the distinct collection ids ("" for none) that a
// mod group's members belong to.
func modCollections(ctx context.Context, tx *sql.Tx, loadoutID ir.LoadoutID, modGroupID string) ([]ir.CollectionGroupID, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT COALESCE(collection_group_id, '') FROM members
		WHERE loadout_id = ? AND mod_group_id = ?
		ORDER BY 1
	`, string(loadoutID), modGroupID)
	if err != nil {
		return nil, fmt.Errorf("query mod collections: %w", err)
	}
	defer rows.Close()

	var ids []ir.CollectionGroupID
	for rows.Next() {
		var id ir.CollectionGroupID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan mod collection: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func membersChanged(l ir.Loadout, collections []ir.CollectionGroupID) []Event {
	events := make([]Event, len(collections))
	for i, c := range collections {
		events[i] = Event{Kind: MembersChanged, GameID: l.GameID, LoadoutID: l.ID, CollectionGroupID: c}
	}
	return events
}

// CreateSortOrder returns the sort order of (parent, variety), creating an
// empty one when none exists. created reports whether a row was inserted.
//
// Uses ON CONFLICT DO NOTHING so concurrent creators converge on one row.
func (s *Store) CreateSortOrder(ctx context.Context, parent ir.ParentEntity, variety ir.VarietyID) (id ir.SortOrderID, created bool, err error) {
	if !parent.IsValid() {
		return "", false, fmt.Errorf("create sort order: invalid parent %s", parent)
	}
	newID := ir.SortOrderID(s.ids.Generate())

	err = s.withTx(ctx, "create sort order", func(tx *sql.Tx) ([]Event, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sort_orders (id, loadout_id, parent_kind, parent_id, variety_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (parent_kind, parent_id, variety_id) DO NOTHING
		`, string(newID), string(parent.LoadoutID()), parent.Kind().String(), parent.EntityID(), string(variety))
		if err != nil {
			return nil, fmt.Errorf("insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			id, created = newID, true
			return nil, nil
		}

		// Conflict - row already exists, fetch the existing ID
		existing, ok, err := reader{q: tx}.FindSortOrder(ctx, parent, variety)
		if err != nil {
			return nil, fmt.Errorf("select existing: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("select existing: %w", ErrNotFound)
		}
		id = existing
		return nil, nil
	})
	if err != nil {
		return "", false, err
	}
	return id, created, nil
}

// ReplaceSortItems rewrites the whole item list of a sort order in one
// transaction. Items must be dense (0..N-1 in slice order). Returns whether
// anything was written; an identical list commits nothing and publishes
// nothing. Returns ErrNotFound if the sort order does not exist.
func (s *Store) ReplaceSortItems(ctx context.Context, id ir.SortOrderID, items []ir.SortItemData) (bool, error) {
	if err := ir.CheckDense(items); err != nil {
		return false, fmt.Errorf("replace sort items: %w", err)
	}

	var changed bool
	err := s.withTx(ctx, "replace sort items", func(tx *sql.Tx) ([]Event, error) {
		gameID, loadoutID, err := sortOrderOwner(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		current, err := readSortItems(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if slices.Equal(current, items) {
			return nil, nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sort_order_items WHERE sort_order_id = ?`, string(id)); err != nil {
			return nil, fmt.Errorf("clear items: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sort_order_items (sort_order_id, item_key, sort_index) VALUES (?, ?, ?)
		`)
		if err != nil {
			return nil, fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, string(id), item.Key, item.SortIndex); err != nil {
				return nil, fmt.Errorf("insert item %q: %w", item.Key, err)
			}
		}

		changed = true
		return []Event{{Kind: SortOrderChanged, GameID: gameID, LoadoutID: loadoutID, SortOrderID: id}}, nil
	})
	return changed, err
}

// DeleteSortOrder removes a sort order and its items. Returns whether a row
// existed; deleting a missing sort order is not an error.
func (s *Store) DeleteSortOrder(ctx context.Context, id ir.SortOrderID) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, "delete sort order", func(tx *sql.Tx) ([]Event, error) {
		gameID, loadoutID, err := sortOrderOwner(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sort_orders WHERE id = ?`, string(id)); err != nil {
			return nil, err
		}
		deleted = true
		return []Event{{Kind: SortOrderDeleted, GameID: gameID, LoadoutID: loadoutID, SortOrderID: id}}, nil
	})
	return deleted, err
}

// sortOrderOwner returns the game and loadout of a sort order. The game id
// is empty when the loadout has already been removed.
func sortOrderOwner(ctx context.Context, tx *sql.Tx, id ir.SortOrderID) (string, ir.LoadoutID, error) {
	var (
		gameID    string
		loadoutID ir.LoadoutID
	)
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(l.game_id, ''), so.loadout_id
		FROM sort_orders so
		LEFT JOIN loadouts l ON l.id = so.loadout_id
		WHERE so.id = ?
	`, string(id)).Scan(&gameID, &loadoutID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("sort order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("sort order owner: %w", err)
	}
	return gameID, loadoutID, nil
}
