// Package store provides the sequence table: the backing storage that hands out segments to
// the sequence allocator. Every row maps a sequence name to the next free value and the span
// reserved by one call of Reserve. Reserve is atomic, so two callers never get overlapping
// ranges, no matter which implementation is used.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations on a sequence table
//     (Define, SetSpan, Drop, Reserve, Get, GetInfo). All implementations share this
//     interface, so a table can be used in-process, persisted on disk or replicated with
//     raft without changes to the code using it.
//
//   - ISnapshotStore Interface: An IStore that can be saved to and loaded from a stream.
//     The raft state machine requires it to create and recover snapshots. StoreFactory
//     creates instances for the state machine.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     (RetCode) and descriptive messages. Errors can be classified with errors.Is and
//     the sentinels ErrInternal, ErrUnsupported, ErrInvalid and ErrNotFound.
//
// Implementations:
//
//   - Local Store (lstore): An in-memory table based on a concurrent map. Suitable for
//     single-node deployments, tests and as the engine of the raft state machine.
//
//   - Pebble Store (pstore): A table persisted in a pebble database. Every write is synced
//     to disk, so reserved ranges survive restarts.
//
//   - Distributed Store (dstore): A table replicated with the Dragonboat RAFT library.
//     Reservations are linearizable across all replicas.
package store
