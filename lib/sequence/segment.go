package sequence

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/yanqingluo/dble/lib/backend"
)

// segment is one reserved range [cur, max). cur holds the last value handed out.
// A segment is never modified after it was published except for cur, so a value
// is always checked against the bound of the segment it was taken from.
type segment struct {
	cur atomic.Int64
	max int64 // exclusive upper bound
}

func (g *segment) isWithinBound(value int64) bool {
	return value < g.max
}

// --------------------------------------------------------------------------
// Refill cycle (result slot)
// --------------------------------------------------------------------------

// refillCycle is the single-assignment result slot of one refill attempt.
// done is closed exactly once when the driver reaches a terminal state. The waiter that
// wins consumed installs the segment and closes applied. A cycle is settled once it can
// no longer be joined: after a failure, or after its applied segment ran out.
type refillCycle struct {
	target   string
	done     chan struct{}
	applied  chan struct{}
	consumed atomic.Bool
	settled  atomic.Bool

	// written before done is closed
	base int64
	span int64
	err  *Error

	// written before applied is closed
	seg *segment
}

func newRefillCycle(target string) *refillCycle {
	return &refillCycle{
		target:  target,
		done:    make(chan struct{}),
		applied: make(chan struct{}),
	}
}

func (c *refillCycle) complete(base, span int64) {
	c.base, c.span = base, span
	close(c.done)
}

func (c *refillCycle) fail(err *Error) {
	c.err = err
	c.settled.Store(true)
	close(c.done)
}

// apply installs the delivered range into s. Only the first consumer may call it.
func (c *refillCycle) apply(s *segmentState) int64 {
	base := s.applyNewSegment(c.base, c.span)
	c.seg = s.seg.Load()
	close(c.applied)
	return base
}

func (c *refillCycle) isApplied() bool {
	select {
	case <-c.applied:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Segment State
// --------------------------------------------------------------------------

// segmentState is the per-sequence record: the cached segment and the current refill cycle.
// It performs no I/O.
type segmentState struct {
	name   string
	query  string
	target atomic.Pointer[string]
	seg    atomic.Pointer[segment] // nil until the first successful fetch
	cycle  atomic.Pointer[refillCycle]

	nextCount *metrics.Counter
}

func newSegmentState(name, target string) *segmentState {
	s := &segmentState{
		name:      name,
		query:     backend.NextvalQuery(name),
		nextCount: nextCounter(name),
	}
	s.target.Store(&target)
	return s
}

func (s *segmentState) backendTarget() string {
	return *s.target.Load()
}

// setBackendTarget replaces the target for future refills. A refill in flight keeps
// the target it captured when it was claimed.
func (s *segmentState) setBackendTarget(target string) {
	s.target.Store(&target)
}

// fetched reports whether a segment was ever applied. Without one no value may be issued.
func (s *segmentState) fetched() bool {
	return s.seg.Load() != nil
}

// fetchInFlight reports whether a refill was claimed and has not settled yet.
func (s *segmentState) fetchInFlight() bool {
	c := s.cycle.Load()
	return c != nil && !c.settled.Load()
}

// upperBound returns the exclusive bound of the current segment, or false if there is none.
func (s *segmentState) upperBound() (int64, bool) {
	if g := s.seg.Load(); g != nil {
		return g.max, true
	}
	return 0, false
}

// tryClaimRefill makes the caller the sole refiller if no refill is in flight. The winner
// gets a fresh, empty cycle; everybody else gets the cycle in flight to wait on.
func (s *segmentState) tryClaimRefill() (*refillCycle, bool) {
	for {
		cur := s.cycle.Load()
		if cur != nil && !cur.settled.Load() {
			return cur, false
		}
		next := newRefillCycle(s.backendTarget())
		if s.cycle.CompareAndSwap(cur, next) {
			return next, true
		}
	}
}

// releaseRefillClaim settles the current cycle once the segment it applied is exhausted,
// so the next tryClaimRefill can start a new refill. A cycle whose result is still pending,
// or that applied a newer segment than the exhausted one, is left alone.
func (s *segmentState) releaseRefillClaim(exhausted *segment) {
	c := s.cycle.Load()
	if c == nil {
		return
	}
	if c.isApplied() && c.seg == exhausted {
		c.settled.Store(true)
	}
}

// allocateNext increments the current value of the current segment. The caller has to
// check the value with seg.isWithinBound before handing it out.
func (s *segmentState) allocateNext() (int64, *segment, error) {
	g := s.seg.Load()
	if g == nil {
		return 0, nil, NewError(RetCNotFetched, s.name, "sequence was never fetched from the backend", nil)
	}
	return g.cur.Add(1), g, nil
}

// applyNewSegment installs [base, base+span) and returns base, which belongs to the caller
// that applies the segment.
func (s *segmentState) applyNewSegment(base, span int64) int64 {
	g := &segment{max: base + span}
	g.cur.Store(base)
	s.seg.Store(g)
	return base
}
