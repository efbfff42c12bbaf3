package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"proxyload/internal/catalog"
	"proxyload/internal/metrics"
	"proxyload/internal/policy"
	"proxyload/internal/proxy"
	"proxyload/internal/stats"
)

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	State     State
	Elapsed   time.Duration
	Admitted  uint64
	Completed uint64
	Dropped   uint64
	Fail      uint64
	Inflight  int64
	Workers   int64

	// Pre-calculated for the UI (cheap copy)
	RunningMeanMs  float64
	P50Ms          float64
	P90Ms          float64
	P99Ms          float64
	AvgQueueWaitMs float64
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

// Recorder consumes every finished iteration, skipped ones included.
type Recorder interface {
	Record(res IterationResult)
}

// Deps are the collaborators a Runner drives. Metrics may be nil.
type Deps struct {
	Catalog  *catalog.Catalog
	Policy   *policy.Policy
	Resolver *proxy.Resolver
	Executor Executor
	Recorder Recorder
	Stats    *stats.Stats
	Metrics  *metrics.Collectors
	Log      logrus.FieldLogger
}

// Runner admits iterations at a constant arrival rate for a fixed duration,
// then drains in-flight work within the graceful stop window.
type Runner struct {
	Cfg   Config
	Stats *stats.Stats

	deps Deps
	log  logrus.FieldLogger

	inflight atomic.Int64
	workers  atomic.Int64
	state    atomic.Int32
	started  atomic.Int64 // unix nanos

	// Event Channel
	Updates StatsUpdateChan
}

func NewRunner(cfg Config, deps Deps, updates StatsUpdateChan) *Runner {
	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}
	if deps.Stats == nil {
		deps.Stats = stats.NewStats()
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &Runner{
		Cfg:     cfg,
		Stats:   deps.Stats,
		deps:    deps,
		log:     deps.Log,
		Updates: updates,
	}
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner) Snapshot() StatsSnapshot {
	s := r.Stats
	var elapsed time.Duration
	if ns := r.started.Load(); ns != 0 {
		elapsed = time.Since(time.Unix(0, ns))
	}
	return StatsSnapshot{
		State:          r.State(),
		Elapsed:        elapsed,
		Admitted:       s.Admitted.Load(),
		Completed:      s.Completed.Load(),
		Dropped:        s.Dropped.Load(),
		Fail:           s.TransportErrors.Load() + s.ChecksFailed.Load(),
		Inflight:       r.inflight.Load(),
		Workers:        r.workers.Load(),
		RunningMeanMs:  s.Running.Snapshot().MeanMs(),
		P50Ms:          s.Latency.QuantileMs(50),
		P90Ms:          s.Latency.QuantileMs(90),
		P99Ms:          s.Latency.QuantileMs(99),
		AvgQueueWaitMs: s.QueueWait.MeanMs(),
	}
}

func (r *Runner) sendUpdate() {
	// Non-blocking send
	select {
	case r.Updates <- r.Snapshot():
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

func (r *Runner) State() State { return State(r.state.Load()) }

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
	r.log.WithField("state", s.String()).Debug("scheduler state changed")
}

// Run blocks until the run terminates. Cancelling ctx ends admission early;
// the drain window still applies.
func (r *Runner) Run(ctx context.Context) stats.Summary {
	start := time.Now()
	r.started.Store(start.UnixNano())

	tickCtx, stopTicks := context.WithCancel(context.Background())
	defer stopTicks()
	r.StartTickLoop(tickCtx, 200*time.Millisecond)

	// In-flight iterations outlive ctx until the drain window closes.
	iterCtx, forceStop := context.WithCancel(context.WithoutCancel(ctx))
	defer forceStop()

	pool := newWorkerPool(r.Cfg.PreAllocated, r.Cfg.MaxWorkers,
		func(j job) { r.iterate(iterCtx, j) },
		func(n int64) {
			r.workers.Store(n)
			if r.deps.Metrics != nil {
				r.deps.Metrics.Workers.Set(float64(n))
			}
		},
	)

	r.setState(StateRunning)
	r.log.WithFields(logrus.Fields{
		"rate":          r.Cfg.Rate,
		"duration":      r.Cfg.Duration.String(),
		"pre_allocated": r.Cfg.PreAllocated,
		"max_workers":   r.Cfg.MaxWorkers,
	}).Info("load started")

	r.admit(ctx, pool)

	r.setState(StateDraining)
	pool.close()
	drained := make(chan struct{})
	go func() {
		pool.wait()
		close(drained)
	}()

	grace := time.NewTimer(r.Cfg.GracefulStop)
	defer grace.Stop()
	select {
	case <-drained:
	case <-grace.C:
		r.log.WithField("in_flight", r.inflight.Load()).
			Warn("graceful stop window elapsed, interrupting in-flight iterations")
		forceStop()
		<-drained
	}

	r.setState(StateTerminated)
	r.sendUpdate()
	return r.Stats.Summary(time.Since(start))
}

// admit releases one iteration per limiter token until the duration expires.
// The deadline runs on its own timer so a token due after it never cuts the
// window short.
func (r *Runner) admit(ctx context.Context, pool *workerPool) {
	deadline := time.NewTimer(r.Cfg.Duration)
	defer deadline.Stop()

	limiter := rate.NewLimiter(rate.Limit(r.Cfg.Rate), 1)
	var index uint64
	for {
		res := limiter.Reserve()
		next := time.NewTimer(res.Delay())
		select {
		case <-ctx.Done():
			next.Stop()
			res.Cancel()
			return
		case <-deadline.C:
			next.Stop()
			res.Cancel()
			return
		case <-next.C:
		}

		j := job{index: index, admitted: time.Now()}
		index++

		if pool.submit(j) {
			r.Stats.Admitted.Add(1)
			continue
		}
		r.Stats.Dropped.Add(1)
		if r.deps.Metrics != nil {
			r.deps.Metrics.Dropped.Inc()
		}
		r.log.WithFields(logrus.Fields{
			"iteration":   j.index,
			"max_workers": r.Cfg.MaxWorkers,
		}).Debug("all workers busy, iteration dropped")
	}
}

func (r *Runner) iterate(ctx context.Context, j job) {
	wait := time.Since(j.admitted)
	r.Stats.QueueWait.Record(wait)

	r.inflight.Add(1)
	if r.deps.Metrics != nil {
		r.deps.Metrics.InFlight.Inc()
	}
	defer func() {
		r.inflight.Add(-1)
		if r.deps.Metrics != nil {
			r.deps.Metrics.InFlight.Dec()
		}
	}()

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("iteration panic: %v", p)
			r.log.WithField("iteration", j.index).WithError(err).Error("iteration aborted")
			r.deps.Recorder.Record(IterationResult{
				Index:     j.index,
				QueueWait: wait,
				Outcome:   OutcomeTransportError,
				Err:       err,
				ErrLabel:  "panic",
			})
		}
	}()

	r.deps.Resolver.WarnIfUnconfigured()

	raw := r.deps.Catalog.Sample()
	class := r.deps.Policy.Classify()
	plan := r.deps.Policy.Build(class)
	plan.Target = catalog.Normalize(raw)

	if plan.Target == "" {
		pace(ctx, plan.Pacing)
		r.deps.Recorder.Record(IterationResult{
			Index:     j.index,
			Class:     class,
			QueueWait: wait,
			Outcome:   OutcomeSkipped,
		})
		return
	}

	res := r.deps.Executor.Execute(ctx, plan)
	res.Index = j.index
	res.QueueWait = wait
	r.deps.Recorder.Record(res)
}
