package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("backend")

const (
	defaultMaxConnsPerTarget = 8
	defaultQueryTimeout      = 30 * time.Second
)

// PoolConfig configures a Pool. Zero values are replaced by defaults.
type PoolConfig struct {
	// MaxConnsPerTarget bounds the number of connections handed out per target at the same time.
	MaxConnsPerTarget int
	// QueryTimeout bounds a single executor call.
	QueryTimeout time.Duration
}

// Target is a named backend (a data node) served by an executor.
type Target struct {
	Name     string
	Executor IExecutor
	// ReadOnly targets refuse writable acquisitions.
	ReadOnly bool
}

type poolTarget struct {
	Target
	slots chan struct{} // counting semaphore
}

// Pool is an IPool that runs queries on per-target executors.
// Acquisition and query results are reported asynchronously from pool goroutines.
type Pool struct {
	config    PoolConfig
	targets   *xsync.MapOf[string, *poolTarget]
	closed    chan struct{}
	closeOnce sync.Once
}

// NewPool creates a pool serving the given targets.
func NewPool(config PoolConfig, targets ...Target) (*Pool, error) {
	if config.MaxConnsPerTarget <= 0 {
		config.MaxConnsPerTarget = defaultMaxConnsPerTarget
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = defaultQueryTimeout
	}
	p := &Pool{
		config:  config,
		targets: xsync.NewMapOf[string, *poolTarget](),
		closed:  make(chan struct{}),
	}
	for _, t := range targets {
		if err := p.Register(t); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Register adds a target to the pool. Target names must be unique.
func (p *Pool) Register(t Target) error {
	if t.Name == "" || t.Executor == nil {
		return fmt.Errorf("target needs a name and an executor")
	}
	_, loaded := p.targets.LoadOrStore(t.Name, &poolTarget{
		Target: t,
		slots:  make(chan struct{}, p.config.MaxConnsPerTarget),
	})
	if loaded {
		return fmt.Errorf("target %s is already registered", t.Name)
	}
	Logger.Infof("registered backend target %s (read-only=%t)", t.Name, t.ReadOnly)
	return nil
}

// Targets returns the sorted names of all registered targets.
func (p *Pool) Targets() []string {
	names := make([]string, 0, p.targets.Size())
	p.targets.Range(func(name string, _ *poolTarget) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Interface Methods (docu see backend.IPool)
// --------------------------------------------------------------------------

func (p *Pool) Acquire(target string, writable bool, handler IResponseHandler) error {
	select {
	case <-p.closed:
		return ErrPoolClosed
	default:
	}

	t, ok := p.targets.Load(target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	if writable && t.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnlyTarget, target)
	}

	go func() {
		select {
		case t.slots <- struct{}{}:
		case <-p.closed:
			handler.OnConnectionError(nil, ErrPoolClosed)
			return
		}
		handler.OnConnected(&pooledConn{pool: p, target: t, handler: handler})
	}()
	return nil
}

func (p *Pool) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		close(p.closed)
		p.targets.Range(func(name string, t *poolTarget) bool {
			if err := t.Executor.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing target %s: %w", name, err))
			}
			return true
		})
	})
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

const (
	connIdle int32 = iota
	connBusy
	connReleased
	connClosed
)

type pooledConn struct {
	pool    *Pool
	target  *poolTarget
	handler IResponseHandler
	state   atomic.Int32
}

func (c *pooledConn) Target() string {
	return c.target.Name
}

func (c *pooledConn) Query(query string) error {
	if !c.state.CompareAndSwap(connIdle, connBusy) {
		return ErrConnClosed
	}
	go c.run(query)
	return nil
}

func (c *pooledConn) Release() {
	c.finish(connReleased)
}

func (c *pooledConn) Close(reason string) {
	if c.finish(connClosed) {
		Logger.Debugf("closed connection to %s: %s", c.target.Name, reason)
		go c.handler.OnConnectionClosed(c, reason)
	}
}

// finish moves the connection into a final state and frees its slot exactly once.
func (c *pooledConn) finish(to int32) bool {
	for {
		st := c.state.Load()
		if st == connReleased || st == connClosed {
			return false
		}
		if c.state.CompareAndSwap(st, to) {
			<-c.target.slots
			return true
		}
	}
}

func (c *pooledConn) finished() bool {
	st := c.state.Load()
	return st == connReleased || st == connClosed
}

// run executes the query and translates the outcome into handler callbacks.
func (c *pooledConn) run(query string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.pool.config.QueryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := c.target.Executor.Exec(ctx, query)
	c.state.CompareAndSwap(connBusy, connIdle)

	// the owner gave the connection up while the query was running
	if c.finished() {
		return
	}

	var resp *ErrorResponse
	switch {
	case err == nil:
		queryCounter(c.target.Name, "ok").Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`dseq_backend_query_duration_seconds{target=%q}`, c.target.Name)).UpdateDuration(start)
		for _, row := range rows {
			c.handler.OnRowReceived(c, row)
		}
		c.handler.OnRowsComplete(c)
	case errors.As(err, &resp):
		queryCounter(c.target.Name, "error").Inc()
		c.handler.OnError(c, ErrorPacket{Code: resp.Code, Message: resp.Message}.Bytes())
	default:
		queryCounter(c.target.Name, "conn_error").Inc()
		c.handler.OnConnectionError(c, err)
	}
}

func queryCounter(target, result string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`dseq_backend_queries_total{target=%q,result=%q}`, target, result))
}
