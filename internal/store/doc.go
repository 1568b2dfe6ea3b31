// Package store provides SQLite-backed durable storage for load orders and
// the loadout membership they are reconciled against.
//
// The store holds:
//   - Loadouts: one profile per game installation
//   - Collection groups: named sub-groupings of a loadout
//   - Members: orderable keys contributed by mods, with enabled state
//   - Sort orders: one row per (parent, variety) plus its ordered items
//
// # Invariants
//
//   - sort_order_items indices are dense (0..N-1) after every commit;
//     ReplaceSortItems rejects anything else
//   - A whole-list replace happens in one transaction, so readers never
//     observe a partially written order
//   - Writes that change nothing commit nothing and publish nothing
//
// # Change notifications
//
// Every committed change publishes an Event to the in-process Broker, in
// commit order. Subscriptions filter by game id and are unbounded, so a
// slow consumer never blocks a writer.
//
// # Database Configuration
//
//   - WAL mode: snapshot readers never block the writer
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Writes go through a single connection; reads and snapshots use a
// separate pool. Open therefore needs a file path, not ":memory:".
package store
