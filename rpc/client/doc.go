// Package client implements the RPC clients of dseq: a remote sequence table and a
// remote allocator. Both talk to a single shard of a server through any transport and
// serializer pair.
//
// Key Components:
//
//   - NewRPCStore: returns an IRPCStore, a store.IStore backed by a table shard. The
//     allocator uses it for dseq:// backend targets, the CLI for the table commands.
//
//   - NewRPCAllocator: returns an IRPCAllocator, a sequence.IAllocator backed by an
//     allocator shard, with error returning variants of Reload, Sequences and LastErrors.
//
// Error Handling:
//
//	Errors of the server keep their type. Table operations return *store.Error and
//	allocator operations *sequence.Error with the code the server reported, so
//	errors.Is(err, sequence.ErrUnknownSequence) works across the network. Transport
//	failures are returned as they are.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:  []string{"localhost:8080"},
//	    RetryCount: 3,
//	  },
//	}
//
//	alloc, err := client.NewRPCAllocator(1, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer alloc.Close()
//
//	id, err := alloc.NextID("orders")
package client
