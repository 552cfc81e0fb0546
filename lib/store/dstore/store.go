package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/yanqingluo/dble/lib/store"
	"github.com/yanqingluo/dble/lib/store/dstore/internal"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the distributed sequence table.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the result data of the entry and a *store.Error if an error occurs.
func (s *storeImpl) write(cmd internal.Command) ([]byte, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function that queries the state machine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// If the read operation fails due to a system busy error, the function retries up to 5 times.
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			var storeErr *store.Error
			if errors.As(err, &storeErr) {
				return zero, storeErr
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Define(name string, start, span int64) error {
	// validate before proposing, invalid commands should not end up in the log
	if err := store.ValidateDefine(name, start, span); err != nil {
		return err
	}
	_, err := s.write(internal.Command{
		Type: internal.CommandTDefine,
		Key:  name,
		Next: start,
		Span: span,
	})
	return err
}

func (s *storeImpl) SetSpan(name string, span int64) error {
	if err := store.ValidateSpan(span); err != nil {
		return err
	}
	_, err := s.write(internal.Command{
		Type: internal.CommandTSetSpan,
		Key:  name,
		Span: span,
	})
	return err
}

func (s *storeImpl) Drop(name string) error {
	_, err := s.write(internal.Command{
		Type: internal.CommandTDrop,
		Key:  name,
	})
	return err
}

func (s *storeImpl) Reserve(name string) (int64, int64, bool, error) {
	data, err := s.write(internal.Command{
		Type: internal.CommandTReserve,
		Key:  name,
	})
	if errors.Is(err, store.ErrNotFound) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, true, err
	}
	base, span, err := internal.DecodeReservation(data)
	if err != nil {
		return 0, 0, true, store.NewError(store.RetCInternalError, err.Error())
	}
	return base, span, true, nil
}

func (s *storeImpl) Get(name string) (store.Row, bool, error) {
	res, err := read[internal.QueryResult](s, internal.Query{
		Type: internal.QueryTGet,
		Key:  name,
	}, false)
	if err != nil {
		return store.Row{}, false, err
	}
	return res.Row, res.Ok, nil
}

func (s *storeImpl) GetInfo() (store.Info, error) {
	return read[store.Info](
		s,
		internal.Query{
			Type: internal.QueryTGetInfo,
		},
		true, // Note: allow for stale reads
	)
}
