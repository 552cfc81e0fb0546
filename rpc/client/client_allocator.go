package client

import (
	"encoding/json"
	"fmt"

	"github.com/yanqingluo/dble/lib/sequence"
	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/serializer"
	"github.com/yanqingluo/dble/rpc/transport"
)

// IRPCAllocator is an allocator served by a remote shard.
// The methods of sequence.IAllocator that cannot return an error log transport failures and
// return empty results, the additional methods report them.
type IRPCAllocator interface {
	sequence.IAllocator
	// ReloadMapping is Reload with the error of the server
	ReloadMapping(mapping map[string]string) error
	// ListSequences is Sequences with the error of the server
	ListSequences() (map[string]string, error)
	// ListErrors is LastErrors with the error of the server
	ListErrors() (map[string]string, error)
}

// NewRPCAllocator creates a client for the allocator shard with the given ID
func NewRPCAllocator(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IRPCAllocator, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcAllocator{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcAllocator struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the sequence package in interface.go)
// --------------------------------------------------------------------------

func (a *rpcAllocator) NextID(name string) (int64, error) {
	resp, err := a.invoke(common.NewNextRequest(name))
	if err != nil {
		return 0, err
	}
	return resp.Next, nil
}

func (a *rpcAllocator) Reload(mapping map[string]string) {
	if err := a.ReloadMapping(mapping); err != nil {
		Logger.Errorf("failed to reload remote allocator: %v", err)
	}
}

func (a *rpcAllocator) LastError(name string) (string, bool) {
	errs := a.LastErrors()
	msg, ok := errs[name]
	return msg, ok
}

func (a *rpcAllocator) LastErrors() map[string]string {
	errs, err := a.ListErrors()
	if err != nil {
		Logger.Errorf("failed to read remote errors: %v", err)
		return map[string]string{}
	}
	return errs
}

func (a *rpcAllocator) Sequences() map[string]string {
	mapping, err := a.ListSequences()
	if err != nil {
		Logger.Errorf("failed to read remote sequences: %v", err)
		return map[string]string{}
	}
	return mapping
}

// --------------------------------------------------------------------------
// Extended Methods (docu see IRPCAllocator)
// --------------------------------------------------------------------------

func (a *rpcAllocator) ReloadMapping(mapping map[string]string) error {
	payload, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	_, err = a.invoke(common.NewReloadRequest(payload))
	return err
}

func (a *rpcAllocator) ListSequences() (map[string]string, error) {
	resp, err := a.invoke(common.NewListRequest())
	if err != nil {
		return nil, err
	}
	return decodeMapping(resp.Value)
}

func (a *rpcAllocator) ListErrors() (map[string]string, error) {
	resp, err := a.invoke(common.NewLastErrorsRequest())
	if err != nil {
		return nil, err
	}
	return decodeMapping(resp.Value)
}

func decodeMapping(data []byte) (map[string]string, error) {
	mapping := map[string]string{}
	if len(data) == 0 {
		return mapping, nil
	}
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("RPC client - invalid mapping: %w", err)
	}
	return mapping, nil
}
