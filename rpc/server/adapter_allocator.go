package server

import (
	"encoding/json"
	"fmt"

	"github.com/yanqingluo/dble/lib/sequence"
	"github.com/yanqingluo/dble/rpc/common"
)

// NewAllocatorServerAdapter creates an adapter that serves an allocator.
// onReload is called with every mapping received by a reload request, it defaults to
// allocator.Reload.
func NewAllocatorServerAdapter(allocator sequence.IAllocator, onReload func(map[string]string)) IRPCServerAdapter {
	if onReload == nil {
		onReload = allocator.Reload
	}
	return &allocatorServerAdapterImpl{allocator: allocator, onReload: onReload}
}

type allocatorServerAdapterImpl struct {
	allocator sequence.IAllocator
	onReload  func(map[string]string)
}

func (a *allocatorServerAdapterImpl) Handle(req *common.Message) *common.Message {
	if a.allocator == nil {
		return common.NewErrorResponse("handler: allocator is nil")
	}

	switch req.MsgType {
	case common.MsgTSEQNext:
		id, err := a.allocator.NextID(req.Key)
		return withCode(common.NewNextResponse(id, err), err)
	case common.MsgTSEQLastErrors:
		data, err := json.Marshal(a.allocator.LastErrors())
		return common.NewLastErrorsResponse(data, err)
	case common.MsgTSEQList:
		data, err := json.Marshal(a.allocator.Sequences())
		return common.NewListResponse(data, err)
	case common.MsgTSEQReload:
		mapping := map[string]string{}
		if err := json.Unmarshal(req.Value, &mapping); err != nil {
			return common.NewReloadResponse(fmt.Errorf("invalid mapping: %w", err))
		}
		for name, target := range mapping {
			if name == "" || target == "" {
				return common.NewReloadResponse(fmt.Errorf("invalid mapping entry %q=%q", name, target))
			}
		}
		a.onReload(mapping)
		return common.NewReloadResponse(nil)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC AllocatorAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
