// Package lstore implements a local, in-memory sequence table based on the store.IStore
// interface. Rows are kept in a concurrent map (xsync.MapOf); Reserve and SetSpan use
// the map's Compute operation, which runs the read-modify-write of a single row under the
// bucket lock, so concurrent reservations never overlap.
//
// Implementation Details:
//
//   - Write Index: The store counts every applied write with an atomic counter. The counter
//     is part of the snapshot and reported by GetInfo.
//
//   - Snapshots: Save writes all rows as a single json document, Load replaces the
//     table with the content of a snapshot. Snapshots are fuzzy, which is what the raft
//     state machine in dstore expects.
//
// Usage Example:
//
//	table := lstore.NewLocalStore()
//	_ = table.Define("GLOBAL", 1000, 100)
//
//	base, span, found, err := table.Reserve("GLOBAL") // 1000, 100, true, nil
//
// Data is not persisted between process restarts. Use pstore for a table on disk or dstore
// for a replicated one.
package lstore
