package ir

import (
	"fmt"
	"slices"
)

// LoadoutID identifies a loadout (one game profile).
type LoadoutID string

// CollectionGroupID identifies a collection group inside a loadout.
type CollectionGroupID string

// SortOrderID identifies a persisted sort order row.
type SortOrderID string

// VarietyID is the stable identifier of a sort order variety.
// Catalog entries use UUID literals; see compiler.CompileVariety.
type VarietyID string

// ParentKind tags the ParentEntity union.
type ParentKind uint8

const (
	// ParentLoadout marks a sort order owned by a whole loadout.
	ParentLoadout ParentKind = iota + 1
	// ParentCollectionGroup marks a sort order owned by one collection group.
	ParentCollectionGroup
)

// String returns the persisted name of the kind.
func (k ParentKind) String() string {
	switch k {
	case ParentLoadout:
		return "loadout"
	case ParentCollectionGroup:
		return "collection"
	default:
		return fmt.Sprintf("ParentKind(%d)", uint8(k))
	}
}

// ParseParentKind is the inverse of ParentKind.String.
func ParseParentKind(s string) (ParentKind, error) {
	switch s {
	case "loadout":
		return ParentLoadout, nil
	case "collection":
		return ParentCollectionGroup, nil
	default:
		return 0, fmt.Errorf("unknown parent kind %q", s)
	}
}

// ParentEntity owns a sort order: either a loadout or a collection group.
//
// The zero value is invalid. Construct with LoadoutParent or CollectionParent.
// The loadout is always recorded so a collection parent knows its owner.
type ParentEntity struct {
	kind       ParentKind
	loadout    LoadoutID
	collection CollectionGroupID
}

// LoadoutParent returns the parent entity for a whole loadout.
func LoadoutParent(id LoadoutID) ParentEntity {
	return ParentEntity{kind: ParentLoadout, loadout: id}
}

// CollectionParent returns the parent entity for a collection group of a loadout.
func CollectionParent(loadout LoadoutID, id CollectionGroupID) ParentEntity {
	return ParentEntity{kind: ParentCollectionGroup, loadout: loadout, collection: id}
}

// ResolveParent builds the parent for an optional collection group.
// A nil or empty collection resolves to the loadout itself.
func ResolveParent(loadout LoadoutID, collection *CollectionGroupID) ParentEntity {
	if collection == nil || *collection == "" {
		return LoadoutParent(loadout)
	}
	return CollectionParent(loadout, *collection)
}

// Kind reports which case of the union is set.
func (p ParentEntity) Kind() ParentKind { return p.kind }

// IsValid reports whether p was built by one of the constructors.
func (p ParentEntity) IsValid() bool {
	switch p.kind {
	case ParentLoadout:
		return p.loadout != ""
	case ParentCollectionGroup:
		return p.loadout != "" && p.collection != ""
	default:
		return false
	}
}

// LoadoutID returns the owning loadout for both cases.
func (p ParentEntity) LoadoutID() LoadoutID { return p.loadout }

// CollectionGroupID returns the collection group and true for collection parents.
func (p ParentEntity) CollectionGroupID() (CollectionGroupID, bool) {
	if p.kind != ParentCollectionGroup {
		return "", false
	}
	return p.collection, true
}

// EntityID returns the id of the entity that owns the sort order.
func (p ParentEntity) EntityID() string {
	if p.kind == ParentCollectionGroup {
		return string(p.collection)
	}
	return string(p.loadout)
}

// Match calls exactly one of the handlers depending on the case.
func (p ParentEntity) Match(onLoadout func(LoadoutID), onCollection func(LoadoutID, CollectionGroupID)) {
	switch p.kind {
	case ParentLoadout:
		onLoadout(p.loadout)
	case ParentCollectionGroup:
		onCollection(p.loadout, p.collection)
	}
}

func (p ParentEntity) String() string {
	if p.kind == ParentCollectionGroup {
		return fmt.Sprintf("collection:%s/%s", p.loadout, p.collection)
	}
	return fmt.Sprintf("loadout:%s", p.loadout)
}

// SortItemData is the persisted part of one ordered entry.
type SortItemData struct {
	Key       string `json:"key"`
	SortIndex int    `json:"sort_index"`
}

// SortOrder is the persisted aggregate for one parent and variety.
type SortOrder struct {
	ID        SortOrderID    `json:"id"`
	LoadoutID LoadoutID      `json:"loadout_id"`
	Parent    ParentEntity   `json:"-"`
	VarietyID VarietyID      `json:"variety_id"`
	Items     []SortItemData `json:"items"`
}

// SortableItem joins a persisted entry with live loadout data.
// It is recomputed on every read and never cached.
type SortableItem struct {
	Key        string `json:"key"`
	SortIndex  int    `json:"sort_index"`
	IsEnabled  bool   `json:"is_enabled"`
	ModName    string `json:"mod_name"`
	ModGroupID string `json:"mod_group_id,omitempty"`
}

// Loadout is one game profile.
type Loadout struct {
	ID     LoadoutID `json:"id"`
	GameID string    `json:"game_id"`
	Name   string    `json:"name"`
}

// CollectionGroup is a named sub-grouping of mods inside a loadout.
type CollectionGroup struct {
	ID        CollectionGroupID `json:"id"`
	LoadoutID LoadoutID         `json:"loadout_id"`
	Name      string            `json:"name"`
}

// Member is one orderable key contributed by a mod to a loadout.
//
// CollectionGroupID is empty when the mod is not part of a collection.
// Kind selects the variety that orders the key (e.g. "plugin", "redmod").
// Seq is assigned by the store and increases with insertion order.
type Member struct {
	ID                int64             `json:"id"`
	LoadoutID         LoadoutID         `json:"loadout_id"`
	CollectionGroupID CollectionGroupID `json:"collection_group_id,omitempty"`
	ModGroupID        string            `json:"mod_group_id"`
	ModName           string            `json:"mod_name"`
	Kind              string            `json:"kind"`
	Key               string            `json:"key"`
	Enabled           bool              `json:"enabled"`
	Seq               int64             `json:"seq"`
}

// LoadoutItem is the membership view of one key for one variety,
// without any ordering information.
type LoadoutItem struct {
	Key        string
	IsEnabled  bool
	ModName    string
	ModGroupID string
	Seq        int64
}

// Keys returns the keys of items in slice order.
func Keys(items []SortItemData) []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return keys
}

// Renumber assigns SortIndex = position to every item, in place.
func Renumber(items []SortItemData) {
	for i := range items {
		items[i].SortIndex = i
	}
}

// FromKeys builds a dense order from keys in the given sequence.
func FromKeys(keys []string) []SortItemData {
	items := make([]SortItemData, len(keys))
	for i, k := range keys {
		items[i] = SortItemData{Key: k, SortIndex: i}
	}
	return items
}

// CheckDense reports an error unless indices are exactly 0..N-1 in slice
// order and keys are unique.
func CheckDense(items []SortItemData) error {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.SortIndex != i {
			return fmt.Errorf("item %q at position %d has sort index %d", item.Key, i, item.SortIndex)
		}
		if _, dup := seen[item.Key]; dup {
			return fmt.Errorf("duplicate key %q", item.Key)
		}
		seen[item.Key] = struct{}{}
	}
	return nil
}

// SortByIndex orders items by SortIndex ascending, key as tie-break.
func SortByIndex(items []SortItemData) {
	slices.SortStableFunc(items, func(a, b SortItemData) int {
		if a.SortIndex != b.SortIndex {
			return a.SortIndex - b.SortIndex
		}
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
}
