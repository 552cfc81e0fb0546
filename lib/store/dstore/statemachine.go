package dstore

import (
	"errors"
	"fmt"
	"io"
	"time"

	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/yanqingluo/dble/lib/store"
	"github.com/yanqingluo/dble/lib/store/dstore/internal"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// SequenceStateMachine is a state machine implementation for Dragonboat RAFT
type SequenceStateMachine struct {
	replicaID uint64
	shardID   uint64
	table     store.ISnapshotStore // the actual table
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host.
// The factory pattern is used to enable the caller to pass an interchangeable table implementation.
func CreateStateMachineFactory(factory store.StoreFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &SequenceStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			table:     factory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding IStore method.
func (fsm *SequenceStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTGet:
		row, found, err := fsm.table.Get(q.Key)
		if err != nil {
			return nil, err
		}
		return internal.QueryResult{Row: row, Ok: found}, nil
	case internal.QueryTGetInfo:
		info, err := fsm.table.GetInfo()
		if err != nil {
			return nil, err
		}
		info.Engine = "dstore(" + info.Engine + ")"
		return info, nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// result converts the error of a table operation into an entry result
func result(err error, data []byte) sm.Result {
	if err == nil {
		return sm.Result{Value: uint64(store.RetCSuccess), Data: data}
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return sm.Result{Value: uint64(storeErr.Code), Data: []byte(storeErr.Msg)}
	}
	return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(err.Error())}
}

// Update applies write commands to the table.
// All write operations are serialized into []byte and are accessible via the entries struct
func (fsm *SequenceStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
			continue
		}

		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCInternalError),
				Data:  []byte(fmt.Sprintf("failed to deserialize command: %v", err)),
			}
			continue
		}

		switch cmd.Type {
		case internal.CommandTDefine:
			entries[idx].Result = result(fsm.table.Define(cmd.Key, cmd.Next, cmd.Span), nil)
		case internal.CommandTSetSpan:
			entries[idx].Result = result(fsm.table.SetSpan(cmd.Key, cmd.Span), nil)
		case internal.CommandTDrop:
			entries[idx].Result = result(fsm.table.Drop(cmd.Key), nil)
		case internal.CommandTReserve:
			base, span, found, err := fsm.table.Reserve(cmd.Key)
			switch {
			case err != nil:
				entries[idx].Result = result(err, nil)
			case !found:
				entries[idx].Result = sm.Result{Value: uint64(store.RetCNotFound), Data: []byte("sequence " + cmd.Key + " does not exist")}
			default:
				entries[idx].Result = result(nil, internal.EncodeReservation(base, span))
			}
		default:
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCInvalidOperation),
				Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
			}
		}
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *SequenceStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy table snapshot to the writer
func (fsm *SequenceStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	return fsm.table.Save(writer)
}

// RecoverFromSnapshot replaces the table with the snapshot.
func (fsm *SequenceStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	return fsm.table.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *SequenceStateMachine) Close() error {
	return fsm.table.Close()
}
