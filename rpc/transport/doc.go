// Package transport defines the contract between the RPC layer and the network. A
// transport moves opaque byte slices tagged with a shard ID, it knows nothing about
// messages or serializers.
//
// Key Components:
//
//   - IRPCClientTransport: connects to one or more endpoints and sends requests
//
//   - IRPCServerTransport: receives requests and passes them to a ServerHandleFunc
//
//   - ServerHandleFunc: the callback the RPC server registers
//
// Implementations live in the tcp and http sub packages.
package transport
