package base

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/transport"
)

// --------------------------------------------------------------------------
// Test Connectors (plain TCP on the loopback interface)
// --------------------------------------------------------------------------

type testServerConnector struct{}

func (c *testServerConnector) GetName() string { return "test" }

func (c *testServerConnector) Listen(config common.ServerTransportConfig) (net.Listener, error) {
	return net.Listen("tcp", config.Endpoint)
}

func (c *testServerConnector) UpgradeConnection(net.Conn, common.ServerTransportConfig) error {
	return nil
}

type testClientConnector struct{}

func (c *testClientConnector) GetName() string { return "test" }

func (c *testClientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, time.Second)
}

func (c *testClientConnector) UpgradeConnection(net.Conn, common.ClientTransportConfig) error {
	return nil
}

// freeEndpoint returns a loopback address that was free a moment ago
func freeEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// startServer starts a server transport on endpoint and waits until it accepts connections
func startServer(t *testing.T, endpoint string, handler transport.ServerHandleFunc) transport.IRPCServerTransport {
	t.Helper()
	server := NewBaseServerTransport(&testServerConnector{}, 1024, 8)
	server.RegisterHandler(handler)

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerTransportConfig{Endpoint: endpoint})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", endpoint)
		if err == nil {
			_ = conn.Close()
			return server
		}
		select {
		case err := <-done:
			t.Fatalf("Server stopped: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatalf("Server did not start on %s", endpoint)
	return nil
}

func connectClient(t *testing.T, endpoint string, timeoutSecond int) transport.IRPCClientTransport {
	t.Helper()
	client := NewBaseClientTransport(&testClientConnector{})
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: timeoutSecond,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{endpoint},
			RetryCount:             3,
			ConnectionsPerEndpoint: 2,
		},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return client
}

// echoHandler prefixes the request with the shard ID
func echoHandler(shardId uint64, req []byte) []byte {
	return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		shardID uint64
		reqID   uint64
		data    []byte
		buf     []byte
	}{
		{"Empty", 1, 2, []byte{}, nil},
		{"SmallBuffer", 100, 7, []byte("hello world"), make([]byte, 4)},
		{"LargeBuffer", ^uint64(0), 1 << 40, bytes.Repeat([]byte{0xAB}, 300), make([]byte, 1024)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			go func() {
				_ = writeFrame(client, tc.shardID, tc.reqID, tc.data)
			}()

			shardID, reqID, data, err := readFrame(server, tc.buf)
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if shardID != tc.shardID || reqID != tc.reqID {
				t.Errorf("Header mismatch: got (%d, %d), want (%d, %d)", shardID, reqID, tc.shardID, tc.reqID)
			}
			if !bytes.Equal(data, tc.data) {
				t.Errorf("Payload mismatch: got %d bytes, want %d bytes", len(data), len(tc.data))
			}
		})
	}
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	header[16], header[17], header[18], header[19] = 0xFF, 0xFF, 0xFF, 0xFF

	if _, _, _, err := readFrame(bytes.NewReader(header), nil); err == nil {
		t.Error("Expected error for oversized frame")
	}
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	client, server := net.Pipe()
	go func() {
		_ = writeFrame(client, 1, 1, []byte("payload"))
		_ = client.Close()
	}()
	_, _ = buf.ReadFrom(server)
	_ = server.Close()

	truncated := buf.Bytes()[:buf.Len()-2]
	if _, _, _, err := readFrame(bytes.NewReader(truncated), nil); err == nil {
		t.Error("Expected error for truncated frame")
	}
}

func TestTransportRoundTrip(t *testing.T) {
	endpoint := freeEndpoint(t)
	server := startServer(t, endpoint, echoHandler)
	defer server.Close()

	client := connectClient(t, endpoint, 5)
	defer client.Close()

	resp, err := client.Send(42, []byte("ping"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "42:ping" {
		t.Errorf("Expected 42:ping, got %q", resp)
	}
}

func TestTransportConcurrentRequests(t *testing.T) {
	endpoint := freeEndpoint(t)
	// slow handler, so that many requests are in flight on the same connection
	server := startServer(t, endpoint, func(shardId uint64, req []byte) []byte {
		time.Sleep(time.Millisecond)
		return echoHandler(shardId, req)
	})
	defer server.Close()

	client := connectClient(t, endpoint, 5)
	defer client.Close()

	const workers = 16
	const requests = 50

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < requests; i++ {
				payload := fmt.Sprintf("w%d-r%d", w, i)
				resp, err := client.Send(uint64(w), []byte(payload))
				if err != nil {
					errCh <- err
					return
				}
				if want := fmt.Sprintf("%d:%s", w, payload); string(resp) != want {
					errCh <- fmt.Errorf("got %q, want %q", resp, want)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Error(err)
	}
}

func TestTransportTimeout(t *testing.T) {
	endpoint := freeEndpoint(t)
	release := make(chan struct{})
	server := startServer(t, endpoint, func(shardId uint64, req []byte) []byte {
		<-release
		return req
	})
	defer server.Close()
	defer close(release)

	client := NewBaseClientTransport(&testClientConnector{})
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 1,
		Transport:     common.ClientTransportConfig{Endpoints: []string{endpoint}, RetryCount: 1},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	start := time.Now()
	if _, err := client.Send(1, []byte("never answered")); err == nil {
		t.Fatal("Expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Timeout took too long: %s", elapsed)
	}
}

func TestTransportReconnect(t *testing.T) {
	endpoint := freeEndpoint(t)
	server := startServer(t, endpoint, echoHandler)

	client := connectClient(t, endpoint, 2)
	defer client.Close()

	if _, err := client.Send(1, []byte("before")); err != nil {
		t.Fatalf("Send before restart failed: %v", err)
	}

	if err := server.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	server = startServer(t, endpoint, echoHandler)
	defer server.Close()

	// the readers reconnect in the background
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := client.Send(1, []byte("after"))
		if err == nil {
			if string(resp) != "1:after" {
				t.Fatalf("Unexpected response %q", resp)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Client did not reconnect: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestConnectWithoutEndpoints(t *testing.T) {
	client := NewBaseClientTransport(&testClientConnector{})
	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Error("Expected error without endpoints")
	}
}

func TestListenWithoutHandler(t *testing.T) {
	server := NewBaseServerTransport(&testServerConnector{}, 1024, 1)
	if err := server.Listen(common.ServerTransportConfig{Endpoint: "127.0.0.1:0"}); err == nil {
		t.Error("Expected error without handler")
	}
}

func TestCloseStopsListen(t *testing.T) {
	endpoint := freeEndpoint(t)
	server := NewBaseServerTransport(&testServerConnector{}, 1024, 1)
	server.RegisterHandler(echoHandler)

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerTransportConfig{Endpoint: endpoint})
	}()

	// give Listen a moment to bind, Close before bind is also fine
	time.Sleep(50 * time.Millisecond)
	if err := server.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Listen returned %v after Close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Close")
	}
}
