package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yanqingluo/dble/lib/sequence"
	"github.com/yanqingluo/dble/lib/store"
	"github.com/yanqingluo/dble/rpc/common"
)

// NewTableServerAdapter creates an adapter that serves a sequence table
func NewTableServerAdapter(table store.IStore) IRPCServerAdapter {
	return &tableServerAdapterImpl{table: table}
}

type tableServerAdapterImpl struct {
	table store.IStore
}

func (a *tableServerAdapterImpl) Handle(req *common.Message) *common.Message {
	if a.table == nil {
		return common.NewErrorResponse("handler: table is nil")
	}

	switch req.MsgType {
	case common.MsgTTBLDefine:
		err := a.table.Define(req.Key, req.Next, req.Span)
		return withCode(common.NewDefineResponse(err), err)
	case common.MsgTTBLSetSpan:
		err := a.table.SetSpan(req.Key, req.Span)
		return withCode(common.NewSetSpanResponse(err), err)
	case common.MsgTTBLDrop:
		err := a.table.Drop(req.Key)
		return withCode(common.NewDropResponse(err), err)
	case common.MsgTTBLReserve:
		base, span, found, err := a.table.Reserve(req.Key)
		return withCode(common.NewReserveResponse(base, span, found, err), err)
	case common.MsgTTBLGet:
		row, found, err := a.table.Get(req.Key)
		return withCode(common.NewGetResponse(row.Next, row.Span, found, err), err)
	case common.MsgTTBLInfo:
		info, err := a.table.GetInfo()
		if err != nil {
			return withCode(common.NewInfoResponse(nil, err), err)
		}
		data, err := json.Marshal(info)
		return common.NewInfoResponse(data, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC TableAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// withCode moves the return code of a typed error into the response, the message
// then carries only the text of the error so the client can rebuild it
func withCode(resp *common.Message, err error) *common.Message {
	if err == nil {
		return resp
	}
	var seqErr *sequence.Error
	var tblErr *store.Error
	switch {
	case errors.As(err, &seqErr):
		resp.Code = uint64(seqErr.Code)
		resp.Err = seqErr.Msg
		if seqErr.Cause != nil {
			resp.Err += ": " + seqErr.Cause.Error()
		}
	case errors.As(err, &tblErr):
		resp.Code = uint64(tblErr.Code)
		resp.Err = tblErr.Msg
	default:
		resp.Err = err.Error()
	}
	return resp
}
