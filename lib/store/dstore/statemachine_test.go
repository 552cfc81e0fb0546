package dstore

import (
	"bytes"
	"testing"

	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/yanqingluo/dble/lib/store"
	"github.com/yanqingluo/dble/lib/store/dstore/internal"
	"github.com/yanqingluo/dble/lib/store/lstore"
)

func newTestStateMachine(t *testing.T) sm.IConcurrentStateMachine {
	t.Helper()
	fsm := CreateStateMachineFactory(lstore.NewLocalStore)(1, 1)
	t.Cleanup(func() { _ = fsm.Close() })
	return fsm
}

func apply(t *testing.T, fsm sm.IConcurrentStateMachine, cmds ...internal.Command) []sm.Result {
	t.Helper()
	entries := make([]sm.Entry, len(cmds))
	for i := range cmds {
		entries[i] = sm.Entry{Index: uint64(i + 1), Cmd: cmds[i].Serialize()}
	}
	applied, err := fsm.Update(entries)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	results := make([]sm.Result, len(applied))
	for i, e := range applied {
		results[i] = e.Result
	}
	return results
}

func TestStateMachineReserve(t *testing.T) {
	fsm := newTestStateMachine(t)

	results := apply(t, fsm,
		internal.Command{Type: internal.CommandTDefine, Key: "GLOBAL", Next: 1000, Span: 10},
		internal.Command{Type: internal.CommandTReserve, Key: "GLOBAL"},
		internal.Command{Type: internal.CommandTReserve, Key: "GLOBAL"},
		internal.Command{Type: internal.CommandTReserve, Key: "MISSING"},
	)

	if results[0].Value != uint64(store.RetCSuccess) {
		t.Fatalf("Define failed: %d %s", results[0].Value, results[0].Data)
	}
	for i, want := range []int64{1000, 1010} {
		res := results[1+i]
		if res.Value != uint64(store.RetCSuccess) {
			t.Fatalf("Reserve failed: %d %s", res.Value, res.Data)
		}
		base, span, err := internal.DecodeReservation(res.Data)
		if err != nil {
			t.Fatal(err)
		}
		if base != want || span != 10 {
			t.Errorf("Expected (%d, 10), got (%d, %d)", want, base, span)
		}
	}
	if results[3].Value != uint64(store.RetCNotFound) {
		t.Errorf("Expected RetCNotFound for a missing sequence, got %d", results[3].Value)
	}
}

func TestStateMachineErrors(t *testing.T) {
	fsm := newTestStateMachine(t)

	entries, err := fsm.Update([]sm.Entry{
		{Index: 1, Cmd: nil},
		{Index: 2, Cmd: []byte{1, 2, 3}},
		{Index: 3, Cmd: (&internal.Command{Type: 99, Key: "A"}).Serialize()},
		{Index: 4, Cmd: (&internal.Command{Type: internal.CommandTSetSpan, Key: "MISSING", Span: 1}).Serialize()},
		{Index: 5, Cmd: (&internal.Command{Type: internal.CommandTDefine, Key: "A", Next: 0, Span: 0}).Serialize()},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []store.RetCode{
		store.RetCInvalidOperation,
		store.RetCInternalError,
		store.RetCInvalidOperation,
		store.RetCNotFound,
		store.RetCInvalidOperation,
	}
	for i, e := range entries {
		if e.Result.Value != uint64(want[i]) {
			t.Errorf("Entry %d: expected %s, got %s (%s)", i, want[i], store.RetCode(e.Result.Value), e.Result.Data)
		}
	}
}

func TestStateMachineLookup(t *testing.T) {
	fsm := newTestStateMachine(t)
	apply(t, fsm, internal.Command{Type: internal.CommandTDefine, Key: "GLOBAL", Next: 5, Span: 2})

	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTGet, Key: "GLOBAL"})
	if err != nil {
		t.Fatal(err)
	}
	qr, ok := res.(internal.QueryResult)
	if !ok || !qr.Ok || qr.Row != (store.Row{Next: 5, Span: 2}) {
		t.Errorf("Unexpected lookup result %+v", res)
	}

	res, err = fsm.Lookup(internal.Query{Type: internal.QueryTGetInfo})
	if err != nil {
		t.Fatal(err)
	}
	if info, ok := res.(store.Info); !ok || info.Sequences != 1 || info.Engine != "dstore(lstore)" {
		t.Errorf("Unexpected info %+v", res)
	}

	if _, err := fsm.Lookup("not a query"); err == nil {
		t.Errorf("Expected an error for an invalid query type")
	}
}

func TestStateMachineSnapshot(t *testing.T) {
	fsm := newTestStateMachine(t)
	apply(t, fsm,
		internal.Command{Type: internal.CommandTDefine, Key: "GLOBAL", Next: 100, Span: 10},
		internal.Command{Type: internal.CommandTReserve, Key: "GLOBAL"},
	)

	var buf bytes.Buffer
	if err := fsm.SaveSnapshot(nil, &buf, nil, nil); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	restored := newTestStateMachine(t)
	if err := restored.RecoverFromSnapshot(&buf, nil, nil); err != nil {
		t.Fatalf("RecoverFromSnapshot failed: %v", err)
	}
	results := apply(t, restored, internal.Command{Type: internal.CommandTReserve, Key: "GLOBAL"})
	base, _, err := internal.DecodeReservation(results[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	if base != 110 {
		t.Errorf("Expected the restored table to continue at 110, got %d", base)
	}
}
