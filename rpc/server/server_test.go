package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yanqingluo/dble/lib/sequence"
	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/serializer"
	"github.com/yanqingluo/dble/rpc/transport"
)

// fakeTransport captures the handler, Listen blocks until Close
type fakeTransport struct {
	handler transport.ServerHandleFunc
	closed  chan struct{}
	once    sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{closed: make(chan struct{})}
}

func (t *fakeTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *fakeTransport) Listen(common.ServerTransportConfig) error {
	<-t.closed
	return nil
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// newTestServer creates a server with table shard 100 and allocator shard 1, the
// sequence orders is served from the table of shard 100
func newTestServer(t *testing.T) (*rpcServer, *fakeTransport) {
	t.Helper()
	dir := t.TempDir()
	confFile := filepath.Join(dir, "sequence_db_conf.properties")
	if err := os.WriteFile(confFile, []byte("orders=dn1\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	ft := newFakeTransport()
	s := NewRPCServer(common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: 100, Type: common.ShardTypeLocalTable},
			{ShardID: 1, Type: common.ShardTypeAllocator},
		},
		TimeoutSecond: 5,
		LogLevel:      "error",
		Sequence: common.SequenceConfig{
			Targets:       []common.BackendTarget{{Name: "dn1", URL: "local:100"}},
			ConfigFile:    confFile,
			WaitTimeout:   2 * time.Second,
			RefillTimeout: 2 * time.Second,
		},
	}, ft, serializer.NewBinarySerializer()).(*rpcServer)

	if err := s.init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.tables[100].Define("orders", 1, 10); err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	return s, ft
}

// call sends a request through the registered transport handler
func call(t *testing.T, ft *fakeTransport, shardId uint64, req *common.Message) *common.Message {
	t.Helper()
	ser := serializer.NewBinarySerializer()
	data, err := ser.Serialize(*req)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	var resp common.Message
	if err := ser.Deserialize(ft.handler(shardId, data), &resp); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	return &resp
}

func TestServerAllocatorShard(t *testing.T) {
	_, ft := newTestServer(t)

	var last int64
	for i := 0; i < 25; i++ {
		resp := call(t, ft, 1, common.NewNextRequest("orders"))
		if resp.Err != "" {
			t.Fatalf("Next failed: %s", resp.Err)
		}
		if resp.Next <= last {
			t.Fatalf("Ids not increasing: %d after %d", resp.Next, last)
		}
		last = resp.Next
	}
	if last != 25 {
		t.Errorf("Expected the 25th id to be 25, got %d", last)
	}

	resp := call(t, ft, 1, common.NewNextRequest("missing"))
	if sequence.RetCode(resp.Code) != sequence.RetCUnknownSequence {
		t.Errorf("Expected UnknownSequence, got code %d (%s)", resp.Code, resp.Err)
	}
}

func TestServerTableShard(t *testing.T) {
	_, ft := newTestServer(t)

	resp := call(t, ft, 100, common.NewGetRequest("orders"))
	if !resp.Ok || resp.Next != 1 || resp.Span != 10 {
		t.Fatalf("Unexpected row: %+v", resp)
	}

	resp = call(t, ft, 100, common.NewReserveRequest("orders"))
	if !resp.Ok || resp.Next != 1 {
		t.Fatalf("Unexpected reserve: %+v", resp)
	}
}

func TestServersInOneProcess(t *testing.T) {
	// both servers install loggers, the second one must not fail
	_, ft1 := newTestServer(t)
	_, ft2 := newTestServer(t)

	var wg sync.WaitGroup
	for _, ft := range []*fakeTransport{ft1, ft2} {
		wg.Add(1)
		go func(ft *fakeTransport) {
			defer wg.Done()
			ser := serializer.NewBinarySerializer()
			req, _ := ser.Serialize(*common.NewNextRequest("orders"))
			for i := 0; i < 20; i++ {
				var resp common.Message
				if err := ser.Deserialize(ft.handler(1, req), &resp); err != nil || resp.Err != "" {
					t.Errorf("Next failed: %v %s", err, resp.Err)
					return
				}
			}
		}(ft)
	}
	// a third init changes the log level while the others serve requests
	_, _ = newTestServer(t)
	wg.Wait()
}

func TestServerUnknownShard(t *testing.T) {
	_, ft := newTestServer(t)

	resp := call(t, ft, 42, common.NewGetRequest("orders"))
	if resp.MsgType != common.MsgTError || !strings.Contains(resp.Err, "not found") {
		t.Errorf("Expected shard not found error, got %+v", resp)
	}
}

func TestServerInvalidRequest(t *testing.T) {
	_, ft := newTestServer(t)

	var resp common.Message
	if err := serializer.NewBinarySerializer().Deserialize(ft.handler(100, []byte{1}), &resp); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if resp.MsgType != common.MsgTError {
		t.Errorf("Expected error response, got %s", resp.MsgType)
	}
}

func TestServerConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config common.ServerConfig
	}{
		{"DuplicateShard", common.ServerConfig{Shards: []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypeLocalTable},
			{ShardID: 1, Type: common.ShardTypeLocalTable},
		}}},
		{"PebbleWithoutDataDir", common.ServerConfig{Shards: []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypePebbleTable},
		}}},
		{"UnknownLocalShard", common.ServerConfig{
			Shards:   []common.ServerShard{{ShardID: 1, Type: common.ShardTypeAllocator}},
			Sequence: common.SequenceConfig{Targets: []common.BackendTarget{{Name: "dn1", URL: "local:100"}}},
		}},
		{"UnsupportedScheme", common.ServerConfig{
			Shards:   []common.ServerShard{{ShardID: 1, Type: common.ShardTypeAllocator}},
			Sequence: common.SequenceConfig{Targets: []common.BackendTarget{{Name: "dn1", URL: "mysql://localhost"}}},
		}},
		{"MissingConfigFile", common.ServerConfig{
			Shards: []common.ServerShard{{ShardID: 1, Type: common.ShardTypeAllocator}},
			Sequence: common.SequenceConfig{
				ConfigFile: filepath.Join(t.TempDir(), "missing.properties"),
			},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.config.LogLevel = "error"
			s := NewRPCServer(tc.config, newFakeTransport(), serializer.NewBinarySerializer()).(*rpcServer)
			defer s.Close()
			if err := s.init(); err == nil {
				t.Error("Expected init to fail")
			}
		})
	}
}

func TestServerPebbleShard(t *testing.T) {
	ft := newFakeTransport()
	s := NewRPCServer(common.ServerConfig{
		Shards:   []common.ServerShard{{ShardID: 7, Type: common.ShardTypePebbleTable}},
		DataDir:  t.TempDir(),
		LogLevel: "error",
	}, ft, serializer.NewJSONSerializer()).(*rpcServer)
	if err := s.init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	defer s.Close()

	ser := serializer.NewJSONSerializer()
	send := func(req *common.Message) common.Message {
		data, _ := ser.Serialize(*req)
		var resp common.Message
		if err := ser.Deserialize(ft.handler(7, data), &resp); err != nil {
			t.Fatalf("Deserialize failed: %v", err)
		}
		return resp
	}

	if resp := send(common.NewDefineRequest("orders", 5, 5)); resp.Err != "" {
		t.Fatalf("Define failed: %s", resp.Err)
	}
	if resp := send(common.NewReserveRequest("orders")); !resp.Ok || resp.Next != 5 || resp.Span != 5 {
		t.Fatalf("Unexpected reserve: %+v", resp)
	}
}

func TestServeStopsOnClose(t *testing.T) {
	s, _ := newTestServer(t)

	done := make(chan error, 1)
	go func() {
		done <- s.transport.Listen(s.config.Transport)
	}()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Listen returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Close")
	}

	if _, err := s.allocator.NextID("orders"); err == nil {
		t.Error("Expected the allocator to be closed")
	}
}

// --------------------------------------------------------------------------
// Admin API
// --------------------------------------------------------------------------

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminAPI(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.adminRouter()

	if rec := doRequest(t, router, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/next/orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("next: %d %s", rec.Code, rec.Body)
	}
	var next struct {
		Sequence string `json:"sequence"`
		ID       int64  `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &next); err != nil || next.ID != 1 || next.Sequence != "orders" {
		t.Errorf("Unexpected next body %s (%v)", rec.Body, err)
	}

	if rec := doRequest(t, router, http.MethodGet, "/next/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown sequence, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/sequences", "")
	var mapping map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &mapping); err != nil || mapping["orders"] != "dn1" {
		t.Errorf("Unexpected sequences %s (%v)", rec.Body, err)
	}

	if rec := doRequest(t, router, http.MethodGet, "/errors", ""); rec.Code != http.StatusOK {
		t.Errorf("errors: %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dseq_next_total") {
		t.Errorf("metrics: %d, missing dseq_next_total", rec.Code)
	}
}

func TestAdminReload(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.adminRouter()

	rec := doRequest(t, router, http.MethodPost, "/reload", "users=dn1\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: %d %s", rec.Code, rec.Body)
	}
	mapping := s.allocator.Sequences()
	if len(mapping) != 1 || mapping["users"] != "dn1" {
		t.Errorf("Unexpected mapping after reload: %v", mapping)
	}

	if rec := doRequest(t, router, http.MethodPost, "/reload", "users=\n"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid properties, got %d", rec.Code)
	}

	// an empty body reloads the configured file
	if rec := doRequest(t, router, http.MethodPost, "/reload", ""); rec.Code != http.StatusOK {
		t.Fatalf("reload from source: %d %s", rec.Code, rec.Body)
	}
	if mapping := s.allocator.Sequences(); mapping["orders"] != "dn1" {
		t.Errorf("Expected the file mapping, got %v", mapping)
	}
}
