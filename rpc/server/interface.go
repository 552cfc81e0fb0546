package server

import (
	"github.com/yanqingluo/dble/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses of a single shard
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// If an error occurs, it is set in the response
	Handle(req *common.Message) (resp *common.Message)
}

// IRPCServer serves all shards of a node over one transport
type IRPCServer interface {
	// Serve builds the shards and blocks until the transport stops
	Serve() error
	// Close stops the transport and releases all shards
	Close() error
}
