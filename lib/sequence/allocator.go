package sequence

import (
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/yanqingluo/dble/lib/backend"
)

var Logger = logger.GetLogger("sequence")

// allocator implements IAllocator on top of a backend connection pool.
type allocator struct {
	pool   backend.IPool
	config Config

	sequences  *xsync.MapOf[string, *segmentState]
	lastErrors *xsync.MapOf[string, string]

	reloadMu  sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once

	sequencesCount *metrics.Counter
}

// NewAllocator creates a new allocator without any sequences. Call Reload to configure them.
// The pool is not owned by the allocator and is not closed by Close.
func NewAllocator(pool backend.IPool, config Config) IAllocator {
	defaults := DefaultConfig()
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = defaults.WaitTimeout
	}
	if config.RefillTimeout <= 0 {
		config.RefillTimeout = defaults.RefillTimeout
	}
	return &allocator{
		pool:       pool,
		config:     config,
		sequences:  xsync.NewMapOf[string, *segmentState](),
		lastErrors: xsync.NewMapOf[string, string](),
		closed:     make(chan struct{}),

		sequencesCount: sequencesCount(allocatorIDs.Add(1)),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see sequence.IAllocator)
// --------------------------------------------------------------------------

func (a *allocator) NextID(name string) (int64, error) {
	if a.isClosed() {
		return 0, NewError(RetCClosed, name, "allocator is closed", nil)
	}

	state, ok := a.sequences.Load(name)
	if !ok {
		return 0, NewError(RetCUnknownSequence, name, "can't find definition for sequence", nil)
	}

	// fast path, no I/O
	if state.fetched() {
		value, seg, err := state.allocateNext()
		if err != nil {
			return 0, err
		}
		if seg.isWithinBound(value) {
			state.nextCount.Inc()
			return value, nil
		}
		state.releaseRefillClaim(seg)
	}

	return a.refillAndWait(state)
}

func (a *allocator) Reload(mapping map[string]string) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	a.sequences.Range(func(name string, _ *segmentState) bool {
		if _, ok := mapping[name]; !ok {
			a.sequences.Delete(name)
			a.lastErrors.Delete(name)
			Logger.Infof("sequence %s removed", name)
		}
		return true
	})

	for name, target := range mapping {
		state, loaded := a.sequences.LoadOrCompute(name, func() *segmentState {
			return newSegmentState(name, target)
		})
		if !loaded {
			Logger.Infof("sequence %s added (backend %s)", name, target)
			continue
		}
		if old := state.backendTarget(); old != target {
			state.setBackendTarget(target)
			Logger.Infof("sequence %s moved from backend %s to %s", name, old, target)
		}
	}

	if !a.isClosed() {
		a.sequencesCount.Set(uint64(a.sequences.Size()))
	}
}

func (a *allocator) LastError(name string) (string, bool) {
	return a.lastErrors.Load(name)
}

func (a *allocator) LastErrors() map[string]string {
	result := make(map[string]string, a.lastErrors.Size())
	a.lastErrors.Range(func(name string, detail string) bool {
		result[name] = detail
		return true
	})
	return result
}

func (a *allocator) Sequences() map[string]string {
	result := make(map[string]string, a.sequences.Size())
	a.sequences.Range(func(name string, state *segmentState) bool {
		result[name] = state.backendTarget()
		return true
	})
	return result
}

func (a *allocator) Close() error {
	a.closeOnce.Do(func() {
		close(a.closed)
		a.reloadMu.Lock()
		a.sequencesCount.Set(0)
		a.reloadMu.Unlock()
		Logger.Infof("allocator closed")
	})
	return nil
}

// --------------------------------------------------------------------------
// Refill
// --------------------------------------------------------------------------

// refillAndWait joins or starts a refill of the sequence and waits for its outcome. The caller that
// wins the claim starts the driver and then waits on the same cycle as everybody else.
func (a *allocator) refillAndWait(state *segmentState) (int64, error) {
	timer := time.NewTimer(a.config.WaitTimeout)
	defer timer.Stop()

	for {
		cycle, claimed := state.tryClaimRefill()
		if claimed {
			newRefillRequest(state, cycle, a.pool, a.config.RefillTimeout, a.recordFailure).start()
		} else if state.fetchInFlight() {
			Logger.Debugf("sequence %s: waiting for the refill in flight", state.name)
		}

		if err := a.await(state, cycle.done, timer); err != nil {
			return 0, err
		}
		if cycle.err != nil {
			return 0, cycle.err
		}

		// the first consumer applies the segment and takes its base
		if cycle.consumed.CompareAndSwap(false, true) {
			value := cycle.apply(state)
			state.nextCount.Inc()
			return value, nil
		}

		if err := a.await(state, cycle.applied, timer); err != nil {
			return 0, err
		}
		value, seg, err := state.allocateNext()
		if err != nil {
			return 0, err
		}
		if seg.isWithinBound(value) {
			state.nextCount.Inc()
			return value, nil
		}
		// the delivered segment was used up by others already
		state.releaseRefillClaim(seg)
	}
}

// await blocks until ch is closed, the wait bound is reached or the allocator is closed.
func (a *allocator) await(state *segmentState, ch <-chan struct{}, timer *time.Timer) error {
	select {
	case <-ch:
		return nil
	case <-timer.C:
		waitTimeoutCounter(state.name).Inc()
		return NewError(RetCTimeout, state.name,
			fmt.Sprintf("no segment from backend %s within %s", state.backendTarget(), a.config.WaitTimeout), nil)
	case <-a.closed:
		return NewError(RetCClosed, state.name, "allocator is closed", nil)
	}
}

// recordFailure keeps the diagnostic text of the last failed refill per sequence.
func (a *allocator) recordFailure(name string, detail string) {
	if _, ok := a.sequences.Load(name); !ok {
		return
	}
	a.lastErrors.Store(name, detail)
}

func (a *allocator) isClosed() bool {
	select {
	case <-a.closed:
		return true
	default:
		return false
	}
}
