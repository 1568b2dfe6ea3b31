package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/loadorder/internal/ir"
)

// Reader is the read contract shared by the live store and snapshots.
//
// All list methods return empty slices (not nil) when nothing matches.
type Reader interface {
	GetLoadout(ctx context.Context, id ir.LoadoutID) (ir.Loadout, error)
	ListLoadouts(ctx context.Context, gameID string) ([]ir.Loadout, error)
	GetCollectionGroup(ctx context.Context, id ir.CollectionGroupID) (ir.CollectionGroup, error)
	ListCollectionGroups(ctx context.Context, loadoutID ir.LoadoutID) ([]ir.CollectionGroup, error)
	ListMembers(ctx context.Context, parent ir.ParentEntity, kind string) ([]ir.Member, error)
	LoadSortOrder(ctx context.Context, id ir.SortOrderID) (ir.SortOrder, error)
	FindSortOrder(ctx context.Context, parent ir.ParentEntity, variety ir.VarietyID) (ir.SortOrderID, bool, error)
	ListSortOrders(ctx context.Context, parent ir.ParentEntity) ([]ir.SortOrder, error)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader implements Reader over any querier.
type reader struct {
	q querier
}

var _ Reader = reader{}

// GetLoadout returns ErrNotFound if the loadout does not exist.
func (r reader) GetLoadout(ctx context.Context, id ir.LoadoutID) (ir.Loadout, error) {
	var l ir.Loadout
	err := r.q.QueryRowContext(ctx, `
		SELECT id, game_id, name FROM loadouts WHERE id = ?
	`, string(id)).Scan(&l.ID, &l.GameID, &l.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Loadout{}, fmt.Errorf("loadout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Loadout{}, fmt.Errorf("get loadout: %w", err)
	}
	return l, nil
}

// ListLoadouts returns the loadouts of a game ordered by id.
// An empty gameID lists every loadout.
func (r reader) ListLoadouts(ctx context.Context, gameID string) ([]ir.Loadout, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, game_id, name FROM loadouts
		WHERE ? = '' OR game_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, gameID, gameID)
	if err != nil {
		return nil, fmt.Errorf("query loadouts: %w", err)
	}
	defer rows.Close()

	loadouts := []ir.Loadout{}
	for rows.Next() {
		var l ir.Loadout
		if err := rows.Scan(&l.ID, &l.GameID, &l.Name); err != nil {
			return nil, fmt.Errorf("scan loadout: %w", err)
		}
		loadouts = append(loadouts, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loadouts: %w", err)
	}
	return loadouts, nil
}

// GetCollectionGroup returns ErrNotFound if the group does not exist.
func (r reader) GetCollectionGroup(ctx context.Context, id ir.CollectionGroupID) (ir.CollectionGroup, error) {
	var c ir.CollectionGroup
	err := r.q.QueryRowContext(ctx, `
		SELECT id, loadout_id, name FROM collection_groups WHERE id = ?
	`, string(id)).Scan(&c.ID, &c.LoadoutID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.CollectionGroup{}, fmt.Errorf("collection group %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.CollectionGroup{}, fmt.Errorf("get collection group: %w", err)
	}
	return c, nil
}

// ListCollectionGroups returns the groups of a loadout ordered by id.
func (r reader) ListCollectionGroups(ctx context.Context, loadoutID ir.LoadoutID) ([]ir.CollectionGroup, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, loadout_id, name FROM collection_groups
		WHERE loadout_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, string(loadoutID))
	if err != nil {
		return nil, fmt.Errorf("query collection groups: %w", err)
	}
	defer rows.Close()

	groups := []ir.CollectionGroup{}
	for rows.Next() {
		var c ir.CollectionGroup
		if err := rows.Scan(&c.ID, &c.LoadoutID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan collection group: %w", err)
		}
		groups = append(groups, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection groups: %w", err)
	}
	return groups, nil
}

// ListMembers returns the members visible to parent, ordered by insertion.
// A loadout parent sees every member of the loadout; a collection parent
// sees only members of that group. An empty kind matches every kind.
func (r reader) ListMembers(ctx context.Context, parent ir.ParentEntity, kind string) ([]ir.Member, error) {
	query := `
		SELECT id, loadout_id, COALESCE(collection_group_id, ''), mod_group_id, mod_name, kind, item_key, enabled
		FROM members
		WHERE loadout_id = ? AND (? = '' OR kind = ?)`
	args := []any{string(parent.LoadoutID()), kind, kind}
	if cid, ok := parent.CollectionGroupID(); ok {
		query += ` AND collection_group_id = ?`
		args = append(args, string(cid))
	}
	query += ` ORDER BY id ASC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := []ir.Member{}
	for rows.Next() {
		var m ir.Member
		if err := rows.Scan(&m.ID, &m.LoadoutID, &m.CollectionGroupID, &m.ModGroupID, &m.ModName, &m.Kind, &m.Key, &m.Enabled); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Seq = m.ID
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// LoadSortOrder returns a sort order with its items ordered by index.
// Returns ErrNotFound if the row does not exist.
func (r reader) LoadSortOrder(ctx context.Context, id ir.SortOrderID) (ir.SortOrder, error) {
	var (
		so         ir.SortOrder
		parentKind string
		parentID   string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, loadout_id, parent_kind, parent_id, variety_id
		FROM sort_orders WHERE id = ?
	`, string(id)).Scan(&so.ID, &so.LoadoutID, &parentKind, &parentID, &so.VarietyID)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.SortOrder{}, fmt.Errorf("sort order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.SortOrder{}, fmt.Errorf("load sort order: %w", err)
	}
	if so.Parent, err = decodeParent(so.LoadoutID, parentKind, parentID); err != nil {
		return ir.SortOrder{}, fmt.Errorf("load sort order %s: %w", id, err)
	}

	so.Items, err = readSortItems(ctx, r.q, id)
	if err != nil {
		return ir.SortOrder{}, err
	}
	return so, nil
}

// FindSortOrder looks up the sort order of a parent for one variety.
func (r reader) FindSortOrder(ctx context.Context, parent ir.ParentEntity, variety ir.VarietyID) (ir.SortOrderID, bool, error) {
	var id ir.SortOrderID
	err := r.q.QueryRowContext(ctx, `
		SELECT id FROM sort_orders
		WHERE parent_kind = ? AND parent_id = ? AND variety_id = ?
	`, parent.Kind().String(), parent.EntityID(), string(variety)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find sort order: %w", err)
	}
	return id, true, nil
}

// ListSortOrders returns every sort order header of a parent, without items,
// ordered by variety id.
func (r reader) ListSortOrders(ctx context.Context, parent ir.ParentEntity) ([]ir.SortOrder, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, loadout_id, parent_kind, parent_id, variety_id
		FROM sort_orders
		WHERE parent_kind = ? AND parent_id = ?
		ORDER BY variety_id COLLATE BINARY ASC
	`, parent.Kind().String(), parent.EntityID())
	if err != nil {
		return nil, fmt.Errorf("query sort orders: %w", err)
	}
	defer rows.Close()

	orders := []ir.SortOrder{}
	for rows.Next() {
		var (
			so                   ir.SortOrder
			parentKind, parentID string
		)
		if err := rows.Scan(&so.ID, &so.LoadoutID, &parentKind, &parentID, &so.VarietyID); err != nil {
			return nil, fmt.Errorf("scan sort order: %w", err)
		}
		if so.Parent, err = decodeParent(so.LoadoutID, parentKind, parentID); err != nil {
			return nil, fmt.Errorf("sort order %s: %w", so.ID, err)
		}
		orders = append(orders, so)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sort orders: %w", err)
	}
	return orders, nil
}

func readSortItems(ctx context.Context, q querier, id ir.SortOrderID) ([]ir.SortItemData, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT item_key, sort_index FROM sort_order_items
		WHERE sort_order_id = ?
		ORDER BY sort_index ASC
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query sort items: %w", err)
	}
	defer rows.Close()

	items := []ir.SortItemData{}
	for rows.Next() {
		var item ir.SortItemData
		if err := rows.Scan(&item.Key, &item.SortIndex); err != nil {
			return nil, fmt.Errorf("scan sort item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sort items: %w", err)
	}
	return items, nil
}

func decodeParent(loadout ir.LoadoutID, kind, id string) (ir.ParentEntity, error) {
	k, err := ir.ParseParentKind(kind)
	if err != nil {
		return ir.ParentEntity{}, err
	}
	if k == ir.ParentCollectionGroup {
		return ir.CollectionParent(loadout, ir.CollectionGroupID(id)), nil
	}
	return ir.LoadoutParent(loadout), nil
}
