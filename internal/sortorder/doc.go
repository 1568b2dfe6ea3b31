// Package sortorder maintains persisted load orders and keeps them
// consistent with loadout membership.
//
// A Manager owns one Lock and a registry of Variety values, one per kind of
// in-game load order. Every mutation (set, move, reconcile, delete) runs
// under the Manager's lock, so mutations across all varieties of a Manager
// are totally ordered. Reads never take the lock; they rely on the store's
// snapshot isolation.
//
// Per-game behavior is supplied by composition: a Variety is the generic
// engine bound to a Policy that decides where newcomers go. The engine
// itself guarantees that indices are renumbered 0..N-1 and that items which
// stay in the order keep their relative order.
//
// The Pipeline turns store change events into UpdateLoadOrders and
// DeleteSortOrders calls.
package sortorder
