// Package rpc is the network layer of dseq. It carries sequence table and allocator
// operations between clients and servers.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, server and client configuration and the logger setup.
//
//   - transport: network abstractions with a framed TCP and an HTTP implementation.
//
//   - serializer: Message encoding (Binary, JSON, GOB).
//
//   - client: remote store.IStore and sequence.IAllocator implementations.
//
//   - server: the shard registry with table and allocator adapters and the admin API.
package rpc
