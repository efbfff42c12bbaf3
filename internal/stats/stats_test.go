package stats

import (
	"sync"
	"testing"
	"time"
)

func TestAggregateMeanAtBoundary(t *testing.T) {
	var a Aggregate
	var sum time.Duration
	var last AggregateSnapshot
	for i := 1; i <= 50; i++ {
		d := time.Duration(i) * time.Millisecond
		sum += d
		snap := a.Add(d)
		if snap.Count < last.Count || snap.Total < last.Total {
			t.Fatalf("aggregate went backwards: %+v -> %+v", last, snap)
		}
		last = snap
	}
	if last.Count != 50 {
		t.Fatalf("count = %d", last.Count)
	}
	want := float64(sum) / float64(time.Millisecond) / 50
	if got := last.MeanMs(); got != want {
		t.Fatalf("mean = %v, want %v", got, want)
	}
}

func TestAggregateConcurrentAdds(t *testing.T) {
	var a Aggregate
	var wg sync.WaitGroup
	for w := 0; w < 50; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				a.Add(time.Millisecond)
			}
		}()
	}
	wg.Wait()
	snap := a.Snapshot()
	if snap.Count != 10000 || snap.Total != 10000*time.Millisecond {
		t.Fatalf("lost updates: %+v", snap)
	}
}

func TestEmptyAggregateMean(t *testing.T) {
	var a Aggregate
	if m := a.Snapshot().MeanMs(); m != 0 {
		t.Fatalf("mean of empty aggregate = %v", m)
	}
}

func TestErrorCountsOrdered(t *testing.T) {
	s := NewStats()
	s.AddError("timeout")
	s.AddError("dns")
	s.AddError("timeout")

	got := s.ErrorCounts()
	if len(got) != 2 || got[0].Label != "timeout" || got[0].Count != 2 {
		t.Fatalf("unexpected error counts %+v", got)
	}
	if s.TransportErrors.Load() != 3 {
		t.Fatalf("transport errors = %d", s.TransportErrors.Load())
	}
}

func TestHistogramClampsOutliers(t *testing.T) {
	h := NewSafeHistogram()
	h.Record(0)
	h.Record(time.Hour)
	if h.TotalCount() != 2 {
		t.Fatalf("expected both values recorded, got %d", h.TotalCount())
	}
}

func TestSummary(t *testing.T) {
	s := NewStats()
	s.Completed.Add(2)
	s.ChecksPassed.Add(1)
	s.ChecksFailed.Add(1)
	s.Running.Add(10 * time.Millisecond)
	s.Running.Add(30 * time.Millisecond)
	s.Latency.Record(10 * time.Millisecond)
	s.Latency.Record(30 * time.Millisecond)

	sum := s.Summary(time.Second)
	if sum.MeanMs != 20 {
		t.Errorf("mean = %v", sum.MeanMs)
	}
	if sum.MaxMs < 29 || sum.MaxMs > 31 {
		t.Errorf("max = %v", sum.MaxMs)
	}
	if sum.ErrorRate != 50 {
		t.Errorf("error rate = %v", sum.ErrorRate)
	}
}
