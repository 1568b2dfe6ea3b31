package ir

import "fmt"

// SortDirection is the default display direction of a variety.
type SortDirection string

const (
	SortAscending  SortDirection = "ascending"
	SortDescending SortDirection = "descending"
)

// ParseSortDirection validates a catalog value.
func ParseSortDirection(s string) (SortDirection, error) {
	switch SortDirection(s) {
	case SortAscending, SortDescending:
		return SortDirection(s), nil
	default:
		return "", fmt.Errorf("invalid sort direction %q (want ascending or descending)", s)
	}
}

// IndexOverrideBehavior tells which item wins an in-game conflict.
type IndexOverrideBehavior string

const (
	LowerIndexWins   IndexOverrideBehavior = "lower_index_wins"
	GreaterIndexWins IndexOverrideBehavior = "greater_index_wins"
)

// ParseIndexOverrideBehavior validates a catalog value.
func ParseIndexOverrideBehavior(s string) (IndexOverrideBehavior, error) {
	switch IndexOverrideBehavior(s) {
	case LowerIndexWins, GreaterIndexWins:
		return IndexOverrideBehavior(s), nil
	default:
		return "", fmt.Errorf("invalid index override %q (want lower_index_wins or greater_index_wins)", s)
	}
}

// RelativePosition places a moved block relative to its drop target.
type RelativePosition uint8

const (
	Before RelativePosition = iota
	After
)

func (p RelativePosition) String() string {
	if p == After {
		return "after"
	}
	return "before"
}

// ParseRelativePosition accepts "before" or "after".
func ParseRelativePosition(s string) (RelativePosition, error) {
	switch s {
	case "before":
		return Before, nil
	case "after":
		return After, nil
	default:
		return 0, fmt.Errorf("invalid relative position %q (want before or after)", s)
	}
}

// InsertPosition selects where a policy places newcomers.
type InsertPosition string

const (
	InsertStart InsertPosition = "start"
	InsertEnd   InsertPosition = "end"
)

// ParseInsertPosition accepts "start" or "end".
func ParseInsertPosition(s string) (InsertPosition, error) {
	switch InsertPosition(s) {
	case InsertStart, InsertEnd:
		return InsertPosition(s), nil
	default:
		return "", fmt.Errorf("invalid insert position %q (want start or end)", s)
	}
}

// UIMetadata is display text for a variety. The engine never reads it.
type UIMetadata struct {
	OverrideInfoTitle       string `json:"override_info_title"`
	OverrideInfoMessage     string `json:"override_info_message"`
	WinnerIndexToolTip      string `json:"winner_index_tooltip"`
	IndexColumnHeader       string `json:"index_column_header"`
	DisplayNameColumnHeader string `json:"display_name_column_header"`
	EmptyStateTitle         string `json:"empty_state_title"`
	EmptyStateMessage       string `json:"empty_state_message"`
	LoadOrderHeadingTitle   string `json:"load_order_heading_title"`
	LoadOrderHeadingText    string `json:"load_order_heading_text"`
}

// DefaultUIMetadata returns the generic display text used when a catalog
// entry leaves a field empty.
func DefaultUIMetadata() UIMetadata {
	return UIMetadata{
		OverrideInfoTitle:       "Load Order",
		OverrideInfoMessage:     "Items loaded later override items loaded earlier.",
		WinnerIndexToolTip:      "Last Loaded Item Wins",
		IndexColumnHeader:       "LOAD ORDER",
		DisplayNameColumnHeader: "NAME",
		EmptyStateTitle:         "No Sortable Mods detected",
		EmptyStateMessage:       "Some mods may contain items that can be sorted, but none were detected.",
		LoadOrderHeadingTitle:   "Sort Order",
		LoadOrderHeadingText:    "Drag and drop items to change their load order.",
	}
}

// WithDefaults fills empty fields from DefaultUIMetadata.
func (m UIMetadata) WithDefaults() UIMetadata {
	d := DefaultUIMetadata()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.OverrideInfoTitle, d.OverrideInfoTitle)
	fill(&m.OverrideInfoMessage, d.OverrideInfoMessage)
	fill(&m.WinnerIndexToolTip, d.WinnerIndexToolTip)
	fill(&m.IndexColumnHeader, d.IndexColumnHeader)
	fill(&m.DisplayNameColumnHeader, d.DisplayNameColumnHeader)
	fill(&m.EmptyStateTitle, d.EmptyStateTitle)
	fill(&m.EmptyStateMessage, d.EmptyStateMessage)
	fill(&m.LoadOrderHeadingTitle, d.LoadOrderHeadingTitle)
	fill(&m.LoadOrderHeadingText, d.LoadOrderHeadingText)
	return m
}

// VarietyDescriptor is registry metadata for one variety. Not persisted.
type VarietyDescriptor struct {
	ID                    VarietyID             `json:"id"`
	Name                  string                `json:"name"`
	Kind                  string                `json:"kind"`
	SortDirectionDefault  SortDirection         `json:"sort_direction"`
	IndexOverrideBehavior IndexOverrideBehavior `json:"index_override"`
	UI                    UIMetadata            `json:"ui"`
}

// Catalog is the compiled set of games and their varieties.
type Catalog struct {
	Games []GameDef `json:"games"`
}

// Game returns the game with the given id.
func (c Catalog) Game(id string) (GameDef, bool) {
	for _, g := range c.Games {
		if g.ID == id {
			return g, true
		}
	}
	return GameDef{}, false
}

// GameDef lists the varieties registered for one game.
type GameDef struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Varieties []VarietyDef `json:"varieties"`
}

// VarietyDef is a catalog variety: its descriptor plus the insertion
// policy parameters a generic policy is built from.
//
// Extensions, when set, limits the variety to member keys ending in one of
// them (compared case-insensitively). GroupByMod keeps newcomers from the
// same mod together, in the order their mods were first added.
type VarietyDef struct {
	Descriptor VarietyDescriptor `json:"descriptor"`
	Insert     InsertPosition    `json:"insert"`
	Anchors    []string          `json:"anchors,omitempty"`
	Extensions []string          `json:"extensions,omitempty"`
	GroupByMod bool              `json:"group_by_mod,omitempty"`
}
