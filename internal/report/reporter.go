// Package report turns iteration results into console lines and run-wide
// counters.
package report

import (
	"github.com/sirupsen/logrus"

	"proxyload/internal/metrics"
	"proxyload/internal/policy"
	"proxyload/internal/runner"
	"proxyload/internal/stats"
)

type Config struct {
	// LogEvery logs iterations whose index is a multiple of it; 0 disables.
	LogEvery int
	// RunAvgEvery prints the cumulative mean each time the completed count
	// reaches a multiple of it; 0 disables.
	RunAvgEvery int
}

type Reporter struct {
	cfg     Config
	log     logrus.FieldLogger
	stats   *stats.Stats
	metrics *metrics.Collectors
}

// New returns a Reporter. m may be nil when no metrics endpoint is served.
func New(cfg Config, st *stats.Stats, m *metrics.Collectors, log logrus.FieldLogger) *Reporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reporter{cfg: cfg, log: log, stats: st, metrics: m}
}

// Record is safe for concurrent use by every worker.
func (r *Reporter) Record(res runner.IterationResult) {
	if r.metrics != nil {
		r.metrics.Iterations.WithLabelValues(res.Class.String(), res.Outcome.String()).Inc()
	}

	if res.Outcome == runner.OutcomeSkipped {
		r.stats.Skipped.Add(1)
		r.log.WithField("iteration", res.Index).Debug("no usable target, iteration skipped")
		return
	}

	switch res.Outcome {
	case runner.OutcomePass:
		r.stats.ChecksPassed.Add(1)
	case runner.OutcomeCheckFailed:
		r.stats.ChecksFailed.Add(1)
	case runner.OutcomeTransportError:
		r.stats.AddError(res.ErrLabel)
	}
	if res.Class == policy.LongLived {
		r.stats.LongLived.Add(1)
	} else {
		r.stats.ShortLived.Add(1)
	}
	r.stats.Latency.Record(res.Duration)
	if r.metrics != nil {
		r.metrics.Duration.WithLabelValues(res.Class.String()).Observe(res.Duration.Seconds())
	}

	if r.cfg.LogEvery > 0 && res.Index%uint64(r.cfg.LogEvery) == 0 {
		r.logIteration(res)
	}

	snap := r.stats.Running.Add(res.Duration)
	r.stats.Completed.Add(1)

	if r.cfg.RunAvgEvery > 0 && snap.Count%uint64(r.cfg.RunAvgEvery) == 0 {
		r.log.WithFields(logrus.Fields{
			"completed":   snap.Count,
			"avg_ms":      roundMs(snap.MeanMs()),
			"total_ms":    snap.Total.Milliseconds(),
			"error_count": r.stats.TransportErrors.Load() + r.stats.ChecksFailed.Load(),
		}).Info("running average")
	}
}

func (r *Reporter) logIteration(res runner.IterationResult) {
	fields := logrus.Fields{
		"iteration":   res.Index,
		"target":      res.Target,
		"class":       res.Class.String(),
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.Outcome == runner.OutcomeTransportError {
		fields["status"] = "failed"
		fields["error"] = res.ErrLabel
	} else {
		fields["status"] = res.Status
		fields["check"] = res.Outcome == runner.OutcomePass
	}
	r.log.WithFields(fields).Info("iteration")
}

func roundMs(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
