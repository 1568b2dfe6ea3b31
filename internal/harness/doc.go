// Package harness runs load order scenarios against a real store, Manager
// and change pipeline.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	game: skyrimse
//	catalog:            # optional, defaults to the builtin catalog
//	  - ../catalog/games.cue
//	setup:
//	  loadouts:
//	    - id: L1
//	  collections:
//	    - id: C1
//	      loadout: L1
//	  members:
//	    - loadout: L1
//	      mod: unofficial-patch
//	      kind: plugin
//	      keys: [Skyrim.esm, Update.esm]
//	steps:
//	  - op: move
//	    loadout: L1
//	    variety: Plugins
//	    keys: [Update.esm]
//	    target: Skyrim.esm
//	    position: before
//	    expect: { applied: [Update.esm] }
//	  - op: add_member
//	    member: { loadout: L1, mod: m2, kind: plugin, keys: [Foo.esp] }
//	  - op: flush
//	assertions:
//	  - type: order
//	    loadout: L1
//	    variety: Plugins
//	    keys: [Update.esm, Skyrim.esm, Foo.esp]
//
// # Determinism
//
// Every scenario runs in a fresh SQLite file with sequential ids. The
// pipeline is not started; membership steps only queue events and the
// "flush" step processes them as one batch. Setup is followed by an
// implicit flush.
package harness
