package sequence

import (
	"fmt"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Metrics (exported by the admin api via metrics.WritePrometheus)
// --------------------------------------------------------------------------

func nextCounter(seq string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`dseq_next_total{sequence=%q}`, seq))
}

func refillCounter(seq, result string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`dseq_refills_total{sequence=%q,result=%q}`, seq, result))
}

func refillDuration(seq string) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(fmt.Sprintf(`dseq_refill_duration_seconds{sequence=%q}`, seq))
}

func waitTimeoutCounter(seq string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`dseq_wait_timeouts_total{sequence=%q}`, seq))
}

// allocatorIDs numbers the allocators of a process for the allocator label
var allocatorIDs atomic.Uint64

// sequencesCount reports the number of sequences configured on one allocator. Counter.Set is used
// as a gauge, a callback gauge could not be replaced when the allocator is closed.
func sequencesCount(allocatorID uint64) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`dseq_sequences{allocator="%d"}`, allocatorID))
}
