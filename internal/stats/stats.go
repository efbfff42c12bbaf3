package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds run-wide counters. Counters are updated atomically by workers;
// the latency histograms carry their own locks.
type Stats struct {
	Admitted        atomic.Uint64
	Dropped         atomic.Uint64
	Skipped         atomic.Uint64
	Completed       atomic.Uint64
	ChecksPassed    atomic.Uint64
	ChecksFailed    atomic.Uint64
	TransportErrors atomic.Uint64
	LongLived       atomic.Uint64
	ShortLived      atomic.Uint64

	// Latency of completed iterations (request only, pacing excluded)
	Latency *SafeHistogram
	// Delay between admission and a worker picking the iteration up
	QueueWait *SafeHistogram

	Running Aggregate

	errMu  sync.Mutex
	errors map[string]uint64
}

func NewStats() *Stats {
	return &Stats{
		Latency:   NewSafeHistogram(),
		QueueWait: NewSafeHistogram(),
		errors:    make(map[string]uint64),
	}
}

// AddError counts a transport failure under a short, low-cardinality label.
func (s *Stats) AddError(label string) {
	s.TransportErrors.Add(1)
	s.errMu.Lock()
	s.errors[label]++
	s.errMu.Unlock()
}

// ErrorCount is one row of the failure summary.
type ErrorCount struct {
	Label string
	Count uint64
}

// ErrorCounts returns failures ordered by count, highest first.
func (s *Stats) ErrorCounts() []ErrorCount {
	s.errMu.Lock()
	out := make([]ErrorCount, 0, len(s.errors))
	for label, n := range s.errors {
		out = append(out, ErrorCount{Label: label, Count: n})
	}
	s.errMu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Label < out[j].Label
		}
		return out[i].Count > out[j].Count
	})
	return out
}

func (s *Stats) ErrorRate() float64 {
	done := s.Completed.Load()
	if done == 0 {
		return 0
	}
	bad := s.TransportErrors.Load() + s.ChecksFailed.Load()
	return (float64(bad) / float64(done)) * 100
}

// Summary is the end-of-run view printed by the console mode.
type Summary struct {
	Elapsed         time.Duration
	Admitted        uint64
	Completed       uint64
	Dropped         uint64
	Skipped         uint64
	ChecksPassed    uint64
	ChecksFailed    uint64
	TransportErrors uint64
	LongLived       uint64
	ShortLived      uint64
	MeanMs          float64
	P50Ms           float64
	P90Ms           float64
	P95Ms           float64
	P99Ms           float64
	MaxMs           float64
	AvgQueueWaitMs  float64
	ErrorRate       float64 // percent of completed iterations
	Errors          []ErrorCount
}

func (s *Stats) Summary(elapsed time.Duration) Summary {
	return Summary{
		Elapsed:         elapsed,
		Admitted:        s.Admitted.Load(),
		Completed:       s.Completed.Load(),
		Dropped:         s.Dropped.Load(),
		Skipped:         s.Skipped.Load(),
		ChecksPassed:    s.ChecksPassed.Load(),
		ChecksFailed:    s.ChecksFailed.Load(),
		TransportErrors: s.TransportErrors.Load(),
		LongLived:       s.LongLived.Load(),
		ShortLived:      s.ShortLived.Load(),
		MeanMs:          s.Running.Snapshot().MeanMs(),
		P50Ms:           s.Latency.QuantileMs(50),
		P90Ms:           s.Latency.QuantileMs(90),
		P95Ms:           s.Latency.QuantileMs(95),
		P99Ms:           s.Latency.QuantileMs(99),
		MaxMs:           s.Latency.MaxMs(),
		AvgQueueWaitMs:  s.QueueWait.MeanMs(),
		ErrorRate:       s.ErrorRate(),
		Errors:          s.ErrorCounts(),
	}
}
