// Package pstore implements a persistent sequence table on top of a pebble database.
//
// Every sequence is stored under the key "seq/<name>" as a 16 byte value: the next value
// followed by the span, both big endian. The number of defined sequences is kept under
// "meta/sequences" and updated in the same batch as the row.
//
// All read-modify-write operations are serialized by a mutex and every batch is committed
// with pebble.Sync, so a range returned by Reserve is on disk before the caller sees it and
// is never handed out again after a restart.
//
// Snapshots (Save, Load) are not supported, which means a pstore table cannot be used as the
// engine of the raft state machine in dstore.
package pstore
