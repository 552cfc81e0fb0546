package client

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/yanqingluo/dble/lib/sequence"
	"github.com/yanqingluo/dble/lib/store"
	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/serializer"
	"github.com/yanqingluo/dble/rpc/transport"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPCStore and RPCAllocator with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends a request to the shard of the adapter
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(a.shardId, req, a.transport, a.serializer)
}

// Close closes the underlying transport
func (a *rpcClientAdapter) Close() error {
	return a.transport.Close()
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs.
// Typed errors of the server are returned as *store.Error (table operations) or
// *sequence.Error (allocator operations).
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		return nil, err
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC client - failed to deserialize response: %w", err)
	}

	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, decodeError(req, resp)
	}

	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC client - unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}
	return resp, nil
}

// decodeError rebuilds the error of a response
func decodeError(req, resp *common.Message) error {
	switch {
	case resp.Code == 0 || resp.MsgType == common.MsgTError:
		return fmt.Errorf("RPC client - error: %s", resp.Err)
	case req.MsgType.IsTableOp():
		return store.NewError(store.RetCode(resp.Code), resp.Err)
	case req.MsgType.IsAllocatorOp():
		return sequence.NewError(sequence.RetCode(resp.Code), req.Key, resp.Err, nil)
	default:
		return fmt.Errorf("RPC client - error (code %d): %s", resp.Code, resp.Err)
	}
}
