package backend

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IResponseHandler receives the asynchronous outcome of an acquisition and of a query.
// All callbacks are invoked on goroutines owned by the pool, never on the goroutine that
// called Acquire or Query. conn may be nil for OnConnectionError when no connection
// was ever handed out.
type IResponseHandler interface {
	// OnConnected is called once a connection to the requested target is available.
	// The handler owns the connection until it calls Release or Close.
	OnConnected(conn IConnection)
	// OnRowReceived is called for every row of a result set.
	OnRowReceived(conn IConnection, row []byte)
	// OnRowsComplete is called after the last row of a result set.
	OnRowsComplete(conn IConnection)
	// OnError is called when the backend answered with an error response.
	// The payload is an encoded ErrorPacket.
	OnError(conn IConnection, payload []byte)
	// OnConnectionError is called when the connection could not be acquired or broke.
	OnConnectionError(conn IConnection, cause error)
	// OnConnectionClosed is called after a connection was closed.
	OnConnectionClosed(conn IConnection, reason string)
}

// IConnection is a single exclusively owned backend connection.
type IConnection interface {
	// Target returns the name of the backend target the connection belongs to.
	Target() string
	// Query sends a query. The result is delivered through the handler that acquired the connection.
	Query(query string) error
	// Release returns the connection to its pool.
	Release()
	// Close discards the connection.
	Close(reason string)
}

// IPool hands out connections to named backend targets.
type IPool interface {
	// Acquire requests a connection to target. Errors known at call time are returned directly,
	// everything else is reported through handler.
	// Sequence advancement is a write, so callers of this package always pass writable=true.
	Acquire(target string, writable bool, handler IResponseHandler) error
	// Close stops the pool and closes all executors.
	Close() error
}

// IExecutor executes a single query against a concrete backend and returns all rows.
// A returned *ErrorResponse means the backend rejected the query; every other error
// is treated as a broken connection.
type IExecutor interface {
	Exec(ctx context.Context, query string) (rows [][]byte, err error)
	Close() error
}

// ExecutorFunc adapts a function to the IExecutor interface.
type ExecutorFunc func(ctx context.Context, query string) ([][]byte, error)

func (f ExecutorFunc) Exec(ctx context.Context, query string) ([][]byte, error) {
	return f(ctx, query)
}

func (f ExecutorFunc) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrPoolClosed     = errors.New("backend pool is closed")
	ErrUnknownTarget  = errors.New("unknown backend target")
	ErrReadOnlyTarget = errors.New("backend target is read-only")
	ErrConnClosed     = errors.New("connection is not usable anymore")
)

// ErrorResponse is the error an executor returns when the backend answered the query
// with an error (as opposed to a transport failure).
type ErrorResponse struct {
	Code    string
	Message string
}

func (e *ErrorResponse) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
