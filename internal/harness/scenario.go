package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/loadorder/internal/ir"
)

// Scenario defines a load order test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Game selects the catalog game whose varieties are registered.
	Game string `yaml:"game"`

	// Catalog lists CUE catalog files, relative to the scenario file.
	// Empty means the builtin catalog.
	Catalog []string `yaml:"catalog,omitempty"`

	// Setup establishes loadouts, collections and members before the steps.
	Setup Setup `yaml:"setup"`

	// Steps run in order after setup.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final sort orders.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup is the initial state of a scenario.
type Setup struct {
	Loadouts    []LoadoutSpec    `yaml:"loadouts"`
	Collections []CollectionSpec `yaml:"collections,omitempty"`
	Members     []MemberSpec     `yaml:"members,omitempty"`
}

// LoadoutSpec creates a loadout of the scenario's game.
type LoadoutSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
}

// CollectionSpec creates a collection group.
type CollectionSpec struct {
	ID      string `yaml:"id"`
	Loadout string `yaml:"loadout"`
	Name    string `yaml:"name,omitempty"`
}

// MemberSpec adds one member per key, all from the same mod.
type MemberSpec struct {
	Loadout    string   `yaml:"loadout"`
	Collection string   `yaml:"collection,omitempty"`
	Mod        string   `yaml:"mod"`
	ModName    string   `yaml:"mod_name,omitempty"`
	Kind       string   `yaml:"kind"`
	Keys       []string `yaml:"keys"`
	Disabled   bool     `yaml:"disabled,omitempty"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// Target parent and variety (move, delta, set, reconcile, update, delete).
	Loadout    string `yaml:"loadout,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	Variety    string `yaml:"variety,omitempty"`

	Keys     []string `yaml:"keys,omitempty"`     // move, set
	Target   string   `yaml:"target,omitempty"`   // move
	Position string   `yaml:"position,omitempty"` // move: before or after
	Key      string   `yaml:"key,omitempty"`      // delta
	Delta    int      `yaml:"delta,omitempty"`    // delta

	Mod    string      `yaml:"mod,omitempty"`    // remove_mod, enable, disable
	Member *MemberSpec `yaml:"member,omitempty"` // add_member, remove_member

	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect checks the outcome of a step. Nil fields are not checked.
type StepExpect struct {
	Applied []string `yaml:"applied,omitempty"`
	Skipped []string `yaml:"skipped,omitempty"`
	Aborted *bool    `yaml:"aborted,omitempty"`
	Changed *bool    `yaml:"changed,omitempty"`
	Ran     *int     `yaml:"ran,omitempty"`

	// Error is a substring of the expected error. Empty means success.
	Error string `yaml:"error,omitempty"`
}

// Step operations.
const (
	OpFlush        = "flush"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpReconcile    = "reconcile"
	OpMove         = "move"
	OpDelta        = "delta"
	OpSet          = "set"
	OpAddMember    = "add_member"
	OpRemoveMember = "remove_member"
	OpRemoveMod    = "remove_mod"
	OpEnable       = "enable"
	OpDisable      = "disable"
	OpRemoveLoad   = "remove_loadout"
	OpRemoveColl   = "remove_collection"
)

// Assertion validates the final state.
type Assertion struct {
	// Type is one of "order", "absent" or "item".
	Type string `yaml:"type"`

	Loadout    string `yaml:"loadout"`
	Collection string `yaml:"collection,omitempty"`
	Variety    string `yaml:"variety"`

	// Keys is the exact expected order (order).
	Keys []string `yaml:"keys,omitempty"`

	// Key, Index and Enabled describe one sortable item (item).
	Key     string `yaml:"key,omitempty"`
	Index   *int   `yaml:"index,omitempty"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// Assertion type constants.
const (
	AssertOrder  = "order"
	AssertAbsent = "absent"
	AssertItem   = "item"
)

// LoadScenario reads and parses a scenario YAML file. Catalog paths are
// resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i, p := range s.Catalog {
		if !filepath.IsAbs(p) {
			s.Catalog[i] = filepath.Join(base, p)
		}
	}
	for _, p := range s.Catalog {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("invalid scenario: catalog file not found: %s", p)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Game == "" {
		return fmt.Errorf("game is required")
	}
	if len(s.Setup.Loadouts) == 0 {
		return fmt.Errorf("setup.loadouts is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, l := range s.Setup.Loadouts {
		if l.ID == "" {
			return fmt.Errorf("setup.loadouts[%d]: id is required", i)
		}
	}
	for i, c := range s.Setup.Collections {
		if c.ID == "" || c.Loadout == "" {
			return fmt.Errorf("setup.collections[%d]: id and loadout are required", i)
		}
	}
	for i, m := range s.Setup.Members {
		if err := validateMember(m); err != nil {
			return fmt.Errorf("setup.members[%d]: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateMember(m MemberSpec) error {
	switch {
	case m.Loadout == "":
		return fmt.Errorf("loadout is required")
	case m.Mod == "":
		return fmt.Errorf("mod is required")
	case m.Kind == "":
		return fmt.Errorf("kind is required")
	case len(m.Keys) == 0:
		return fmt.Errorf("keys must be non-empty")
	}
	return nil
}

// validateStep checks the fields each op needs.
func validateStep(s Step) error {
	needsVariety := func() error {
		if s.Loadout == "" || s.Variety == "" {
			return fmt.Errorf("%s needs loadout and variety", s.Op)
		}
		return nil
	}

	switch s.Op {
	case OpFlush:
		return nil
	case OpUpdate, OpDelete, OpRemoveLoad:
		if s.Loadout == "" {
			return fmt.Errorf("%s needs loadout", s.Op)
		}
	case OpRemoveColl:
		if s.Collection == "" {
			return fmt.Errorf("%s needs collection", s.Op)
		}
	case OpReconcile:
		return needsVariety()
	case OpMove:
		if err := needsVariety(); err != nil {
			return err
		}
		if len(s.Keys) == 0 || s.Target == "" {
			return fmt.Errorf("move needs keys and target")
		}
		if _, err := ir.ParseRelativePosition(s.Position); err != nil {
			return err
		}
	case OpDelta:
		if err := needsVariety(); err != nil {
			return err
		}
		if s.Key == "" {
			return fmt.Errorf("delta needs key")
		}
	case OpSet:
		return needsVariety()
	case OpAddMember, OpRemoveMember:
		if s.Member == nil {
			return fmt.Errorf("%s needs member", s.Op)
		}
		return validateMember(*s.Member)
	case OpRemoveMod, OpEnable, OpDisable:
		if s.Loadout == "" || s.Mod == "" {
			return fmt.Errorf("%s needs loadout and mod", s.Op)
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	if a.Loadout == "" || a.Variety == "" {
		return fmt.Errorf("loadout and variety are required")
	}
	switch a.Type {
	case AssertOrder, AssertAbsent:
	case AssertItem:
		if a.Key == "" {
			return fmt.Errorf("key is required for item")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// parent resolves the loadout and optional collection of a step or assertion.
func parent(loadout, collection string) ir.ParentEntity {
	if collection == "" {
		return ir.LoadoutParent(ir.LoadoutID(loadout))
	}
	return ir.CollectionParent(ir.LoadoutID(loadout), ir.CollectionGroupID(collection))
}

// members expands a MemberSpec into one ir.Member per key.
func (m MemberSpec) members() []ir.Member {
	name := m.ModName
	if name == "" {
		name = m.Mod
	}
	out := make([]ir.Member, 0, len(m.Keys))
	for _, k := range m.Keys {
		out = append(out, ir.Member{
			LoadoutID:         ir.LoadoutID(m.Loadout),
			CollectionGroupID: ir.CollectionGroupID(m.Collection),
			ModGroupID:        m.Mod,
			ModName:           name,
			Kind:              m.Kind,
			Key:               k,
			Enabled:           !m.Disabled,
		})
	}
	return out
}
