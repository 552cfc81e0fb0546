// Package dstore implements a replicated sequence table using the Dragonboat RAFT
// consensus library. It provides a strongly consistent implementation of the store.IStore
// interface: a range returned by Reserve is committed on a majority of replicas before the
// caller sees it, so no two callers on any node ever receive overlapping ranges.
//
// Architecture:
//
//   - Store Client: Implements store.IStore. It serializes operations into commands,
//     proposes them to the RAFT shard and decodes the entry results.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine that applies commands to a
//     table created by a store.StoreFactory (usually lstore) on every replica.
//
//   - Communication Protocol: Defined in the internal package (Command and Query).
//
// Write Operations:
//
//	Define, SetSpan, Drop and Reserve follow this flow:
//
//	1. The operation is serialized into a Command
//	2. The Command is proposed to the RAFT shard via SyncPropose
//	3. Once committed, the command is applied to the table on each replica (Update)
//	4. The entry result (return code and data) is returned to the client
//
//	Reserve is a write because it advances the row. Its result (base and span) travels
//	back in the Data field of the entry result.
//
// Read Operations:
//
//   - Get uses SyncRead (linearizable).
//   - GetInfo uses StaleRead, which may return slightly outdated information.
//
// Error Handling and Retries:
//
//	When Dragonboat returns ErrSystemBusy, the operation is retried after a short delay,
//	up to five times. All operations have a configurable timeout. Return codes produced by
//	the table on the replicas are returned as *store.Error with the same code.
//
// Snapshotting and Recovery:
//
//	The state machine creates fuzzy snapshots with the table's Save method and recovers with
//	Load, followed by the log entries committed after the snapshot. The table must therefore
//	implement store.ISnapshotStore with working snapshots (pstore does not qualify).
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	err = nh.StartConcurrentReplica(
//	    clusterMembers,
//	    false,
//	    dstore.CreateStateMachineFactory(lstore.NewLocalStore),
//	    shardConfig)
//	if err != nil { ... }
//
//	table := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//
// Deploy with an odd number of replicas (typically 3 or 5) so a majority is always possible.
package dstore
