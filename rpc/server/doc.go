// Package server implements the RPC server of dseq. A server hosts any number of shards,
// each identified by a shard ID, behind a single transport.
//
// Shard types:
//
//   - table(lstore): in-memory sequence table
//
//   - table(pstore): sequence table persisted with pebble under <data-dir>/shard-<id>
//
//   - table(dstore): sequence table replicated with raft. The RAFT configuration
//     (RTTMillisecond, SnapshotEntries, CompactionOverhead, DataDir, ReplicaID and
//     ClusterMembers) must be set when this type is used.
//
//   - allocator: the segment cache that hands out ids. All allocator shards of a server
//     share one allocator.
//
// The allocator reaches its data nodes through backend targets. The url of a target
// selects the executor:
//
//	local:<shard>                   a table shard of this server
//	postgres://...                  postgres, see lib/backend/pgexec
//	redis://...                     redis, see lib/backend/redisexec
//	mongodb://.../<database>        mongodb, see lib/backend/mongoexec
//	dseq://host:port/<shard>        a table shard of another dseq server
//
// The mapping of sequence names to targets comes from a properties file (reloaded on
// change) or from Nacos.
//
// Key Components:
//
//   - IRPCServerAdapter: handles the requests of one shard. NewTableServerAdapter serves a
//     store.IStore, NewAllocatorServerAdapter serves a sequence.IAllocator. Typed errors
//     travel as return code plus message, so clients can rebuild them.
//
//   - NewRPCServer: creates a server for a config, transport and serializer.
//
//   - Admin API: with an admin endpoint the server also exposes /healthz, /metrics,
//     /sequences, /errors, /next/:name and POST /reload over HTTP (gin).
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalTable},
//	    {ShardID: 1, Type: common.ShardTypeAllocator},
//	  },
//	  Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	  Sequence: common.SequenceConfig{
//	    Targets:    []common.BackendTarget{{Name: "dn1", URL: "local:100"}},
//	    ConfigFile: "sequence_db_conf.properties",
//	  },
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	if err := server.ServeUntilSignal(s); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
package server
