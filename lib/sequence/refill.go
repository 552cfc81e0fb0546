package sequence

import (
	"fmt"
	"sync"
	"time"

	"github.com/yanqingluo/dble/lib/backend"
)

// --------------------------------------------------------------------------
// States and events
// --------------------------------------------------------------------------

type refillState uint8

const (
	stateIdle refillState = iota
	stateConnectionRequested
	stateQuerySent
	stateRowReceived
	stateCompleted // terminal
	stateFailed    // terminal
)

func (s refillState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateConnectionRequested:
		return "ConnectionRequested"
	case stateQuerySent:
		return "QuerySent"
	case stateRowReceived:
		return "RowReceived"
	case stateCompleted:
		return "Completed"
	case stateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

func (s refillState) terminal() bool {
	return s == stateCompleted || s == stateFailed
}

type eventKind uint8

const (
	evConnected eventKind = iota
	evRow
	evRowsComplete
	evError
	evConnectionError
	evConnectionClosed
	evDeadline
)

func (k eventKind) String() string {
	switch k {
	case evConnected:
		return "Connected"
	case evRow:
		return "Row"
	case evRowsComplete:
		return "RowsComplete"
	case evError:
		return "Error"
	case evConnectionError:
		return "ConnectionError"
	case evConnectionClosed:
		return "ConnectionClosed"
	case evDeadline:
		return "Deadline"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

type refillEvent struct {
	kind    eventKind
	conn    backend.IConnection
	row     []byte
	payload []byte
	cause   error
	reason  string
}

// --------------------------------------------------------------------------
// Refill request (one per attempt)
// --------------------------------------------------------------------------

// failureRecorder stores the diagnostic text of a failed refill.
type failureRecorder func(seq string, detail string)

// refillRequest drives one refill attempt. Every callback of the backend is turned into an
// event and fed into handle, which is the only place the state changes. Side effects on the
// connection and the result slot run after the lock is released.
type refillRequest struct {
	seq      *segmentState
	cycle    *refillCycle
	target   string
	query    string
	pool     backend.IPool
	timeout  time.Duration
	recorder failureRecorder

	mu      sync.Mutex
	state   refillState
	conn    backend.IConnection
	base    int64
	span    int64
	timer   *time.Timer
	started time.Time
}

func newRefillRequest(seq *segmentState, cycle *refillCycle, pool backend.IPool, timeout time.Duration, recorder failureRecorder) *refillRequest {
	return &refillRequest{
		seq:      seq,
		cycle:    cycle,
		target:   cycle.target,
		query:    seq.query,
		pool:     pool,
		timeout:  timeout,
		recorder: recorder,
		state:    stateIdle,
	}
}

// start requests a writable connection and arms the deadline.
func (r *refillRequest) start() {
	r.mu.Lock()
	if r.state != stateIdle {
		r.mu.Unlock()
		return
	}
	r.state = stateConnectionRequested
	r.started = time.Now()
	if r.timeout > 0 {
		r.timer = time.AfterFunc(r.timeout, func() {
			r.handle(refillEvent{kind: evDeadline})
		})
	}
	r.mu.Unlock()

	Logger.Debugf("fetching next segment of sequence %s from %s: %s", r.seq.name, r.target, r.query)
	if err := r.pool.Acquire(r.target, true, r); err != nil {
		r.handle(refillEvent{kind: evConnectionError, cause: err})
	}
}

// handle applies one event.
func (r *refillRequest) handle(ev refillEvent) {
	r.mu.Lock()
	from := r.state
	actions := r.transition(ev)
	to := r.state
	r.mu.Unlock()

	if from != to {
		Logger.Debugf("refill of %s: %s -> %s (%s)", r.seq.name, from, to, ev.kind)
	}
	for _, action := range actions {
		if action != nil {
			action()
		}
	}
}

// transition is the state table. It must be called with r.mu held and returns the
// follow-up actions.
func (r *refillRequest) transition(ev refillEvent) []func() {
	if r.state.terminal() {
		// a connection handed out after the attempt gave up goes straight back
		if ev.kind == evConnected && ev.conn != nil {
			return []func(){ev.conn.Release}
		}
		return nil
	}

	switch ev.kind {
	case evConnected:
		if r.state != stateConnectionRequested {
			Logger.Warningf("refill of %s: unexpected connection in state %s", r.seq.name, r.state)
			return []func(){ev.conn.Release}
		}
		r.conn = ev.conn
		r.state = stateQuerySent
		return []func(){r.sendQuery}

	case evRow:
		switch r.state {
		case stateQuerySent:
			return r.acceptRow(ev.row)
		case stateRowReceived:
			return r.fail(RetCBackendUnavailable, "backend returned more than one row",
				NewError(RetCMalformedResponse, r.seq.name, "more than one row", nil), r.releaseConn())
		}

	case evRowsComplete:
		switch r.state {
		case stateRowReceived:
			return r.complete()
		case stateQuerySent:
			return r.fail(RetCBackendUnavailable, "backend returned no row",
				NewError(RetCMalformedResponse, r.seq.name, "no row", nil), r.releaseConn())
		}

	case evError:
		packet := backend.ParseErrorPacket(ev.payload)
		return r.fail(RetCBackendUnavailable, "backend error response: "+packet.String(), nil, r.releaseConn())

	case evConnectionError:
		conn := ev.conn
		if conn == nil {
			conn = r.conn
		}
		var dispose func()
		if conn != nil {
			reason := fmt.Sprintf("connection error: %v", ev.cause)
			dispose = func() { conn.Close(reason) }
		}
		return r.fail(RetCBackendUnavailable, fmt.Sprintf("connection error on %s", r.target), ev.cause, dispose)

	case evConnectionClosed:
		// the connection is gone already, nothing to give back
		return r.fail(RetCBackendUnavailable, fmt.Sprintf("connection to %s closed: %s", r.target, ev.reason), nil, nil)

	case evDeadline:
		return r.fail(RetCTimeout, fmt.Sprintf("no response from %s within %s", r.target, r.timeout), nil,
			r.closeConn("refill deadline exceeded"))
	}

	Logger.Warningf("refill of %s: ignoring event %s in state %s", r.seq.name, ev.kind, r.state)
	return nil
}

// acceptRow parses the single row of the response.
func (r *refillRequest) acceptRow(row []byte) []func() {
	if string(row) == backend.NotFoundRow {
		return r.fail(RetCBackendUnavailable, "sequence not found in backend table (sentinel row)", nil, r.releaseConn())
	}
	base, span, err := backend.ParseSegmentRow(row)
	if err != nil {
		return r.fail(RetCBackendUnavailable, "malformed row",
			NewError(RetCMalformedResponse, r.seq.name, err.Error(), nil), r.releaseConn())
	}
	// a new segment below the current one would hand out values a second time
	if bound, ok := r.seq.upperBound(); ok && base < bound {
		msg := fmt.Sprintf("segment [%d, %d) starts below the current bound %d", base, base+span, bound)
		return r.fail(RetCBackendUnavailable, "segment regressed",
			NewError(RetCMalformedResponse, r.seq.name, msg, nil), r.releaseConn())
	}
	r.base, r.span = base, span
	r.state = stateRowReceived
	return nil
}

func (r *refillRequest) complete() []func() {
	r.state = stateCompleted
	r.stopTimer()
	base, span := r.base, r.span
	refillCounter(r.seq.name, "ok").Inc()
	refillDuration(r.seq.name).UpdateDuration(r.started)
	return []func(){
		r.releaseConn(),
		func() {
			Logger.Debugf("sequence %s fetched segment [%d, %d) from %s", r.seq.name, base, base+span, r.target)
			r.cycle.complete(base, span)
		},
	}
}

// fail moves into the failed state. The connection is disposed first, then the error is
// recorded and finally the waiters are woken up.
func (r *refillRequest) fail(code RetCode, detail string, cause error, dispose func()) []func() {
	r.state = stateFailed
	r.stopTimer()
	refillCounter(r.seq.name, "failed").Inc()

	if cause != nil {
		detail = fmt.Sprintf("%s: %v", detail, cause)
	}
	err := NewError(code, r.seq.name, "can't fetch sequence from backend "+r.target+": "+detail, cause)

	actions := make([]func(), 0, 2)
	if dispose != nil {
		actions = append(actions, dispose)
	}
	return append(actions, func() {
		Logger.Warningf("refill of sequence %s failed: %s", r.seq.name, detail)
		if r.recorder != nil {
			r.recorder(r.seq.name, detail)
		}
		r.cycle.fail(err)
	})
}

func (r *refillRequest) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

// releaseConn returns an action that gives the held connection back to the pool.
func (r *refillRequest) releaseConn() func() {
	conn := r.conn
	if conn == nil {
		return nil
	}
	return conn.Release
}

// closeConn returns an action that discards the held connection.
func (r *refillRequest) closeConn(reason string) func() {
	conn := r.conn
	if conn == nil {
		return nil
	}
	return func() { conn.Close(reason) }
}

func (r *refillRequest) sendQuery() {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if err := conn.Query(r.query); err != nil {
		r.handle(refillEvent{kind: evConnectionError, conn: conn, cause: err})
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see backend.IResponseHandler)
// --------------------------------------------------------------------------

func (r *refillRequest) OnConnected(conn backend.IConnection) {
	r.handle(refillEvent{kind: evConnected, conn: conn})
}

func (r *refillRequest) OnRowReceived(conn backend.IConnection, row []byte) {
	r.handle(refillEvent{kind: evRow, conn: conn, row: row})
}

func (r *refillRequest) OnRowsComplete(conn backend.IConnection) {
	r.handle(refillEvent{kind: evRowsComplete, conn: conn})
}

func (r *refillRequest) OnError(conn backend.IConnection, payload []byte) {
	r.handle(refillEvent{kind: evError, conn: conn, payload: payload})
}

func (r *refillRequest) OnConnectionError(conn backend.IConnection, cause error) {
	r.handle(refillEvent{kind: evConnectionError, conn: conn, cause: cause})
}

func (r *refillRequest) OnConnectionClosed(conn backend.IConnection, reason string) {
	r.handle(refillEvent{kind: evConnectionClosed, conn: conn, reason: reason})
}
