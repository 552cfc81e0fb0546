package sequence

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yanqingluo/dble/lib/backend"
)

// --------------------------------------------------------------------------
// Scripted pool: the test decides when and what the backend answers
// --------------------------------------------------------------------------

type acquisition struct {
	target  string
	handler backend.IResponseHandler
}

type fakePool struct {
	acquired chan acquisition
	mu       sync.Mutex
	count    int
	err      error
}

func newFakePool() *fakePool {
	return &fakePool{acquired: make(chan acquisition, 64)}
}

func (p *fakePool) Acquire(target string, writable bool, handler backend.IResponseHandler) error {
	if !writable {
		return errors.New("sequence refills need writable connections")
	}
	p.mu.Lock()
	err := p.err
	if err == nil {
		p.count++
	}
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.acquired <- acquisition{target: target, handler: handler}
	return nil
}

func (p *fakePool) Close() error { return nil }

func (p *fakePool) acquisitions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *fakePool) next(t *testing.T) acquisition {
	t.Helper()
	select {
	case a := <-p.acquired:
		return a
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a connection request")
		return acquisition{}
	}
}

func (p *fakePool) expectIdle(t *testing.T) {
	t.Helper()
	select {
	case a := <-p.acquired:
		t.Fatalf("unexpected connection request for %s", a.target)
	case <-time.After(30 * time.Millisecond):
	}
}

type fakeConn struct {
	target string

	mu       sync.Mutex
	queries  []string
	released int
	closed   int
}

func newFakeConn(target string) *fakeConn {
	return &fakeConn{target: target}
}

func (c *fakeConn) Target() string { return c.target }

func (c *fakeConn) Query(query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released > 0 || c.closed > 0 {
		return backend.ErrConnClosed
	}
	c.queries = append(c.queries, query)
	return nil
}

func (c *fakeConn) Release() {
	c.mu.Lock()
	c.released++
	c.mu.Unlock()
}

func (c *fakeConn) Close(string) {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

// state returns how often the connection was released and closed.
func (c *fakeConn) state() (released, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released, c.closed
}

func (c *fakeConn) expectReleased(t *testing.T) {
	t.Helper()
	if released, closed := c.state(); released != 1 || closed != 0 {
		t.Errorf("expected connection to be released once, got released=%d closed=%d", released, closed)
	}
}

func (c *fakeConn) expectClosed(t *testing.T) {
	t.Helper()
	if released, closed := c.state(); released != 0 || closed != 1 {
		t.Errorf("expected connection to be closed once, got released=%d closed=%d", released, closed)
	}
}

// connect hands a fresh connection to the handler and checks the query written to it.
func (a acquisition) connect(t *testing.T, seq string) *fakeConn {
	t.Helper()
	conn := newFakeConn(a.target)
	a.handler.OnConnected(conn)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.queries) != 1 || conn.queries[0] != backend.NextvalQuery(seq) {
		t.Fatalf("unexpected queries %v", conn.queries)
	}
	return conn
}

// deliver connects and answers with the given rows followed by rows complete.
func (a acquisition) deliver(t *testing.T, seq string, rows ...string) *fakeConn {
	t.Helper()
	conn := a.connect(t, seq)
	for _, row := range rows {
		a.handler.OnRowReceived(conn, []byte(row))
	}
	a.handler.OnRowsComplete(conn)
	return conn
}

// --------------------------------------------------------------------------
// Async helpers
// --------------------------------------------------------------------------

type nextResult struct {
	value int64
	err   error
}

func nextAsync(alloc IAllocator, name string) <-chan nextResult {
	ch := make(chan nextResult, 1)
	go func() {
		v, err := alloc.NextID(name)
		ch <- nextResult{value: v, err: err}
	}()
	return ch
}

func awaitResult(t *testing.T, ch <-chan nextResult) nextResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for NextID")
		return nextResult{}
	}
}

func expectValue(t *testing.T, ch <-chan nextResult, want int64) {
	t.Helper()
	r := awaitResult(t, ch)
	if r.err != nil {
		t.Fatalf("NextID failed: %v", r.err)
	}
	if r.value != want {
		t.Fatalf("expected %d, got %d", want, r.value)
	}
}

func newTestAllocator(t *testing.T, pool backend.IPool, config Config, mapping map[string]string) IAllocator {
	t.Helper()
	alloc := NewAllocator(pool, config)
	alloc.Reload(mapping)
	t.Cleanup(func() { _ = alloc.Close() })
	return alloc
}
