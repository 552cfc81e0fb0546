package sequence

import "time"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IAllocator hands out unique, increasing ids per named sequence. Values are taken from a locally
// cached segment; when the segment is exhausted exactly one caller refills it from the backend
// while all others wait for the result.
type IAllocator interface {
	// NextID returns the next value of the sequence. It never returns a value twice and never
	// returns a value smaller than one returned before for the same sequence.
	NextID(name string) (int64, error)
	// Reload replaces the sequence configuration (sequence name to backend target).
	// Sequences not in the mapping are removed, new ones are added without a segment and
	// existing ones keep their segment but use the new target for future refills.
	Reload(mapping map[string]string)
	// LastError returns the diagnostic text of the last failed refill of the sequence.
	LastError(name string) (string, bool)
	// LastErrors returns a copy of all recorded refill errors.
	LastErrors() map[string]string
	// Sequences returns a copy of the configuration (sequence name to backend target).
	Sequences() map[string]string
	// Close rejects all further calls and wakes up all waiting callers.
	Close() error
}

// Config configures an allocator.
type Config struct {
	// WaitTimeout bounds how long a caller waits for a refill before failing with a timeout.
	WaitTimeout time.Duration
	// RefillTimeout bounds a single refill attempt. When it fires the attempt fails and the
	// next caller may start a new one.
	RefillTimeout time.Duration
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		WaitTimeout:   10 * time.Second,
		RefillTimeout: 30 * time.Second,
	}
}
