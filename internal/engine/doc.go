// Package engine holds the modeling engine state the bridge operates on:
// documents containing named objects whose attributes carry declared kinds.
//
// # Threading
//
// Engine state has a single writer. The mutation pump is the only caller of
// Store.Exclusive; transport handlers use Store.Read, which hands out a
// read-only View. Readers never observe a task half-applied, but they may
// observe the state between two tasks drained by the same pump tick.
//
// # Handles
//
// Documents and objects are addressed by name. A name is resolved against live
// state each time it is used and is never cached, because deleting or renaming
// objects invalidates earlier lookups.
//
// # Attribute kinds
//
// Every attribute has a Kind fixed by its object's type in the catalog. The
// coercion engine dispatches on that Kind; nothing inspects Go types at runtime
// to guess what an attribute is.
package engine
