// Package sequence implements a segmented, cache-ahead id allocator. Each named sequence keeps a
// locally cached range [cur, max) of reserved values. Values are handed out from that range
// without any I/O; when it is exhausted exactly one caller refills it from the backend while
// all concurrent callers wait for the same result.
//
// Key Components:
//
//   - IAllocator: The public api (NextID, Reload, LastError, LastErrors, Sequences, Close).
//     NewAllocator returns an implementation that talks to a backend.IPool.
//
//   - Segment State: Per sequence record holding the current segment and the current refill
//     cycle. A segment is published through an atomic pointer and never changes its bound, so
//     every value is checked against the bound of the segment it was taken from.
//
//   - Refill Cycle: The single-assignment result slot of one refill. Waiters block on a channel
//     that is closed exactly once by the driver. The first waiter to consume the result applies
//     the new segment and receives its base value; all other waiters continue from base+1.
//
//   - Refill Driver: A small state machine (Idle, ConnectionRequested, QuerySent, RowReceived,
//     Completed, Failed) that implements backend.IResponseHandler. Every callback becomes an
//     event handled under a lock; events in a terminal state are ignored, a connection that
//     arrives too late is released. Each attempt has a deadline so a lost response can never
//     block the sequence forever.
//
// Guarantees:
//
//	Within one sequence no value is returned twice and values never regress, also across
//	refills and concurrent callers. At most one refill per sequence is in flight. A refill
//	failure is never swallowed: it is logged, stored as the last error of the sequence and
//	returned to every waiting caller.
//
// Errors:
//
//	All operations return *Error carrying a RetCode. Use errors.Is with ErrUnknownSequence,
//	ErrBackendUnavailable, ErrTimeout, ErrMalformedResponse, ErrNotFetched or ErrClosed to
//	classify them. A malformed backend row is reported as ErrBackendUnavailable wrapping
//	ErrMalformedResponse.
//
// Usage Example:
//
//	pool, _ := backend.NewPool(backend.PoolConfig{}, backend.Target{Name: "dn1", Executor: exec})
//	alloc := sequence.NewAllocator(pool, sequence.DefaultConfig())
//	alloc.Reload(map[string]string{"GLOBAL": "dn1"})
//
//	id, err := alloc.NextID("GLOBAL")
package sequence
