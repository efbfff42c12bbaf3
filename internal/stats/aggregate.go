package stats

import (
	"sync"
	"time"
)

// Aggregate is the cumulative count and total duration of completed
// iterations. It is never reset during a run.
type Aggregate struct {
	mu    sync.Mutex
	count uint64
	total time.Duration
}

// AggregateSnapshot is a consistent view of the aggregate.
type AggregateSnapshot struct {
	Count uint64
	Total time.Duration
}

// MeanMs is the cumulative mean latency in milliseconds.
func (s AggregateSnapshot) MeanMs() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Total) / float64(time.Millisecond) / float64(s.Count)
}

// Add records one iteration and returns the state right after it, so the
// caller can decide on print boundaries without a second read racing other
// workers.
func (a *Aggregate) Add(d time.Duration) AggregateSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
	a.total += d
	return AggregateSnapshot{Count: a.count, Total: a.total}
}

func (a *Aggregate) Snapshot() AggregateSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AggregateSnapshot{Count: a.count, Total: a.total}
}
