// Package common provides the data structures shared by the RPC client, the RPC server and
// the command line tools.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Which fields are used
//     depends on the MessageType. Factory functions create the request and response
//     messages of every operation.
//
//   - MessageType: Enumeration of all operations, grouped into sequence table
//     operations (Define, SetSpan, Drop, Reserve, Get, Info) and allocator operations
//     (Next, LastErrors, Reload, List). Typed errors travel as Code plus Err, the
//     client rebuilds a store.Error or sequence.Error from the message type group.
//
//   - ServerConfig: Configuration of a server node: served shards, RAFT parameters,
//     transport settings, the admin endpoint and the allocator settings (backend targets,
//     sequence mapping source, timeouts). Provides the conversion to Dragonboat configs.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: A logger.ILogger implementation installed as the Dragonboat logger
//     factory, so Dragonboat and all packages of this module log in the same format.
package common
