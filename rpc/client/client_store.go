package client

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/yanqingluo/dble/lib/store"
	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/serializer"
	"github.com/yanqingluo/dble/rpc/transport"
)

// IRPCStore is a sequence table served by a remote shard. Close closes the transport.
type IRPCStore interface {
	store.IStore
	io.Closer
}

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It connects the transport and returns the store
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IRPCStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *rpcStore) Define(name string, start, span int64) error {
	_, err := s.invoke(common.NewDefineRequest(name, start, span))
	return err
}

func (s *rpcStore) SetSpan(name string, span int64) error {
	_, err := s.invoke(common.NewSetSpanRequest(name, span))
	return err
}

func (s *rpcStore) Drop(name string) error {
	_, err := s.invoke(common.NewDropRequest(name))
	return err
}

func (s *rpcStore) Reserve(name string) (int64, int64, bool, error) {
	resp, err := s.invoke(common.NewReserveRequest(name))
	if err != nil {
		return 0, 0, false, err
	}
	return resp.Next, resp.Span, resp.Ok, nil
}

func (s *rpcStore) Get(name string) (store.Row, bool, error) {
	resp, err := s.invoke(common.NewGetRequest(name))
	if err != nil {
		return store.Row{}, false, err
	}
	return store.Row{Next: resp.Next, Span: resp.Span}, resp.Ok, nil
}

func (s *rpcStore) GetInfo() (store.Info, error) {
	resp, err := s.invoke(common.NewInfoRequest())
	if err != nil {
		return store.Info{}, err
	}
	var info store.Info
	if err := json.Unmarshal(resp.Value, &info); err != nil {
		return store.Info{}, fmt.Errorf("RPC client - invalid table info: %w", err)
	}
	return info, nil
}
