package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/yanqingluo/dble/lib/sequence"
	"github.com/yanqingluo/dble/lib/store"
	"github.com/yanqingluo/dble/lib/store/lstore"
	"github.com/yanqingluo/dble/rpc/common"
)

// --------------------------------------------------------------------------
// Fake Allocator
// --------------------------------------------------------------------------

type fakeAllocator struct {
	mu       sync.Mutex
	next     map[string]int64
	mapping  map[string]string
	errors   map[string]string
	reloaded []map[string]string
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{
		next:    map[string]int64{"orders": 100},
		mapping: map[string]string{"orders": "dn1"},
		errors:  map[string]string{"users": "backend down"},
	}
}

func (f *fakeAllocator) NextID(name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mapping[name]; !ok {
		return 0, sequence.NewError(sequence.RetCUnknownSequence, name, "no such sequence", nil)
	}
	f.next[name]++
	return f.next[name], nil
}

func (f *fakeAllocator) Reload(mapping map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mapping = mapping
	f.reloaded = append(f.reloaded, mapping)
}

func (f *fakeAllocator) LastError(name string) (string, bool) {
	msg, ok := f.errors[name]
	return msg, ok
}

func (f *fakeAllocator) LastErrors() map[string]string { return f.errors }

func (f *fakeAllocator) Sequences() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mapping
}

func (f *fakeAllocator) Close() error { return nil }

// --------------------------------------------------------------------------
// Table Adapter
// --------------------------------------------------------------------------

func TestTableAdapter(t *testing.T) {
	adapter := NewTableServerAdapter(lstore.NewLocalStore())

	resp := adapter.Handle(common.NewDefineRequest("orders", 1000, 50))
	if resp.Err != "" || resp.MsgType != common.MsgTTBLDefine {
		t.Fatalf("Define failed: %+v", resp)
	}

	resp = adapter.Handle(common.NewReserveRequest("orders"))
	if resp.Err != "" || !resp.Ok || resp.Next != 1000 || resp.Span != 50 {
		t.Fatalf("Unexpected reserve response: %+v", resp)
	}

	resp = adapter.Handle(common.NewGetRequest("orders"))
	if !resp.Ok || resp.Next != 1050 || resp.Span != 50 {
		t.Fatalf("Unexpected get response: %+v", resp)
	}

	resp = adapter.Handle(common.NewReserveRequest("missing"))
	if resp.Err != "" || resp.Ok {
		t.Fatalf("Expected not found without error, got %+v", resp)
	}

	resp = adapter.Handle(common.NewInfoRequest())
	var info store.Info
	if err := json.Unmarshal(resp.Value, &info); err != nil {
		t.Fatalf("Invalid info payload: %v", err)
	}
	if info.Sequences != 1 || info.Reservations != 1 {
		t.Errorf("Unexpected info: %s", info)
	}

	resp = adapter.Handle(common.NewDropRequest("orders"))
	if resp.Err != "" {
		t.Fatalf("Drop failed: %s", resp.Err)
	}
	resp = adapter.Handle(common.NewGetRequest("orders"))
	if resp.Ok {
		t.Error("Sequence still exists after drop")
	}
}

func TestTableAdapterErrors(t *testing.T) {
	adapter := NewTableServerAdapter(lstore.NewLocalStore())

	tests := []struct {
		name string
		req  *common.Message
		code store.RetCode
	}{
		{"SetSpanMissing", common.NewSetSpanRequest("missing", 10), store.RetCNotFound},
		{"DefineInvalidSpan", common.NewDefineRequest("orders", 1, 0), store.RetCInvalidOperation},
		{"DefineEmptyName", common.NewDefineRequest("", 1, 10), store.RetCInvalidOperation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := adapter.Handle(tc.req)
			if resp.Err == "" {
				t.Fatal("Expected error")
			}
			if store.RetCode(resp.Code) != tc.code {
				t.Errorf("Expected code %s, got %s", tc.code, store.RetCode(resp.Code))
			}
		})
	}

	resp := adapter.Handle(common.NewNextRequest("orders"))
	if resp.MsgType != common.MsgTError {
		t.Errorf("Expected error response for allocator message, got %s", resp.MsgType)
	}
}

// --------------------------------------------------------------------------
// Allocator Adapter
// --------------------------------------------------------------------------

func TestAllocatorAdapter(t *testing.T) {
	alloc := newFakeAllocator()
	adapter := NewAllocatorServerAdapter(alloc, nil)

	resp := adapter.Handle(common.NewNextRequest("orders"))
	if resp.Err != "" || resp.Next != 101 {
		t.Fatalf("Unexpected next response: %+v", resp)
	}

	resp = adapter.Handle(common.NewNextRequest("missing"))
	if sequence.RetCode(resp.Code) != sequence.RetCUnknownSequence {
		t.Errorf("Expected UnknownSequence, got code %d (%s)", resp.Code, resp.Err)
	}
	if resp.Err != "no such sequence" {
		t.Errorf("Expected the bare message, got %q", resp.Err)
	}

	resp = adapter.Handle(common.NewListRequest())
	var mapping map[string]string
	if err := json.Unmarshal(resp.Value, &mapping); err != nil || mapping["orders"] != "dn1" {
		t.Errorf("Unexpected list response: %s (%v)", resp.Value, err)
	}

	resp = adapter.Handle(common.NewLastErrorsRequest())
	var errs map[string]string
	if err := json.Unmarshal(resp.Value, &errs); err != nil || errs["users"] != "backend down" {
		t.Errorf("Unexpected errors response: %s (%v)", resp.Value, err)
	}

	resp = adapter.Handle(common.NewReloadRequest([]byte(`{"users":"dn2"}`)))
	if resp.Err != "" {
		t.Fatalf("Reload failed: %s", resp.Err)
	}
	if got := alloc.Sequences(); len(got) != 1 || got["users"] != "dn2" {
		t.Errorf("Reload not applied: %v", got)
	}
}

func TestAllocatorAdapterInvalidReload(t *testing.T) {
	alloc := newFakeAllocator()
	adapter := NewAllocatorServerAdapter(alloc, nil)

	tests := []struct {
		name    string
		payload string
	}{
		{"NotJSON", "orders=dn1"},
		{"EmptyTarget", `{"orders":""}`},
		{"EmptyName", `{"":"dn1"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := adapter.Handle(common.NewReloadRequest([]byte(tc.payload)))
			if resp.Err == "" {
				t.Error("Expected error")
			}
		})
	}
	if len(alloc.reloaded) != 0 {
		t.Errorf("Invalid reloads were applied: %v", alloc.reloaded)
	}
}

func TestWithCode(t *testing.T) {
	cause := sequence.NewError(sequence.RetCMalformedResponse, "orders", "bad row", nil)

	tests := []struct {
		name string
		err  error
		code uint64
		msg  string
	}{
		{"Nil", nil, 0, ""},
		{"Table", store.NewError(store.RetCNotFound, "gone"), uint64(store.RetCNotFound), "gone"},
		{"Sequence", sequence.NewError(sequence.RetCTimeout, "orders", "timed out", nil), uint64(sequence.RetCTimeout), "timed out"},
		{"SequenceWithCause", sequence.NewError(sequence.RetCBackendUnavailable, "orders", "refill failed", cause),
			uint64(sequence.RetCBackendUnavailable), "refill failed: " + cause.Error()},
		{"Wrapped", fmt.Errorf("wrapped: %w", store.NewError(store.RetCInternalError, "disk")), uint64(store.RetCInternalError), "disk"},
		{"Plain", errors.New("boom"), 0, "boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := withCode(&common.Message{}, tc.err)
			if resp.Code != tc.code || resp.Err != tc.msg {
				t.Errorf("Got (%d, %q), want (%d, %q)", resp.Code, resp.Err, tc.code, tc.msg)
			}
		})
	}
}
