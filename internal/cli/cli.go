package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"proxyload/internal/catalog"
	"proxyload/internal/metrics"
	"proxyload/internal/policy"
	"proxyload/internal/proxy"
	"proxyload/internal/report"
	"proxyload/internal/rnd"
	"proxyload/internal/runner"
	"proxyload/internal/stats"
)

// Session is a fully wired run, shared by the console and dashboard modes.
type Session struct {
	Cfg      runner.Config
	RunID    string
	Endpoint proxy.Endpoint
	Targets  int
	Runner   *runner.Runner
	Updates  runner.StatsUpdateChan

	executor *runner.HTTPExecutor
	metrics  *metrics.Collectors
	log      logrus.FieldLogger
}

// Prepare validates cfg and wires every collaborator. Errors returned here
// are configuration errors and abort before any traffic is sent.
func Prepare(cfg runner.Config, log *logrus.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	entry := log.WithField("run_id", runID)

	src := rnd.New(cfg.Seed)
	cat, err := catalog.LoadFile(cfg.TargetsFile, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", runner.ErrInvalidConfig, err)
	}

	resolver := proxy.NewResolver(proxy.Settings{
		HTTPProxy:  cfg.HTTPProxy,
		HTTPSProxy: cfg.HTTPSProxy,
		Fallback:   cfg.FallbackProxy,
	}, entry)
	ep, err := resolver.Resolve()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", runner.ErrInvalidConfig, err)
	}

	var m *metrics.Collectors
	if cfg.MetricsAddr != "" {
		m = metrics.New()
	}

	st := stats.NewStats()
	exec := runner.NewHTTPExecutor(ep, entry)
	rep := report.New(report.Config{LogEvery: cfg.LogEvery, RunAvgEvery: cfg.RunAvgEvery}, st, m, entry)

	updates := make(runner.StatsUpdateChan, 100)
	r := runner.NewRunner(cfg, runner.Deps{
		Catalog:  cat,
		Policy:   policy.New(cfg.Policy, src),
		Resolver: resolver,
		Executor: exec,
		Recorder: rep,
		Stats:    st,
		Metrics:  m,
		Log:      entry,
	}, updates)

	return &Session{
		Cfg:      cfg,
		RunID:    runID,
		Endpoint: ep,
		Targets:  cat.Len(),
		Runner:   r,
		Updates:  updates,
		executor: exec,
		metrics:  m,
		log:      entry,
	}, nil
}

// Run drives the load to termination. The metrics listener, if any, lives
// exactly as long as the run.
func (s *Session) Run(ctx context.Context) stats.Summary {
	if s.metrics != nil {
		metricsCtx, stopMetrics := context.WithCancel(context.Background())
		defer stopMetrics()
		go s.metrics.Serve(metricsCtx, s.Cfg.MetricsAddr, s.log)
	}

	sum := s.Runner.Run(ctx)
	s.executor.CloseIdleConnections()
	return sum
}

// Start runs headless: header, run with structured log lines, summary.
func Start(cfg runner.Config, log *logrus.Logger) error {
	sess, err := Prepare(cfg, log)
	if err != nil {
		return err
	}
	PrintHeader(os.Stdout, sess)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum := sess.Run(ctx)
	PrintSummary(os.Stdout, sum)
	return nil
}

func PrintHeader(w io.Writer, s *Session) {
	cfg := s.Cfg
	fmt.Fprintf(w, "\n🚀 STARTING PROXY LOAD TEST\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Run ID     : %s\n", s.RunID)
	fmt.Fprintf(w, "Targets    : %d (%s)\n", s.Targets, cfg.TargetsFile)
	fmt.Fprintf(w, "Proxy      : %s\n", s.Endpoint)
	fmt.Fprintf(w, "Rate       : %d/s for %s\n", cfg.Rate, cfg.Duration)
	fmt.Fprintf(w, "Workers    : %d pre-allocated / %d max\n", cfg.PreAllocated, cfg.MaxWorkers)
	fmt.Fprintf(w, "Drain      : %s\n", cfg.GracefulStop)
	fmt.Fprintf(w, "Long-lived : %.0f%% (timeout %s, pacing %s)\n", cfg.Policy.LongLivedRatio*100, cfg.Policy.LongTimeout, cfg.Policy.LongPacing)
	fmt.Fprintf(w, "Short-lived: %.0f%% (timeout %s, pacing %s)\n", (1-cfg.Policy.LongLivedRatio)*100, cfg.Policy.ShortTimeout, cfg.Policy.ShortPacing)
	fmt.Fprintf(w, "======================================================================\n\n")
}

func PrintSummary(w io.Writer, sum stats.Summary) {
	rate := 0.0
	if sum.Elapsed > 0 {
		rate = float64(sum.Completed) / sum.Elapsed.Seconds()
	}

	fmt.Fprintf(w, "\n\n📊 LOAD TEST RESULTS\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Total Duration   : %s\n", sum.Elapsed.Round(time.Second))
	fmt.Fprintf(w, "Admitted         : %d\n", sum.Admitted)
	fmt.Fprintf(w, "Completed        : %d\n", sum.Completed)
	fmt.Fprintf(w, "Dropped          : %d\n", sum.Dropped)
	fmt.Fprintf(w, "Skipped          : %d\n", sum.Skipped)
	fmt.Fprintf(w, "Long / Short     : %d / %d\n", sum.LongLived, sum.ShortLived)
	fmt.Fprintf(w, "Checks passed    : %d\n", sum.ChecksPassed)
	fmt.Fprintf(w, "Checks failed    : %d\n", sum.ChecksFailed)
	fmt.Fprintf(w, "Transport errors : %d\n", sum.TransportErrors)
	fmt.Fprintf(w, "Error rate       : %.2f%%\n", sum.ErrorRate)
	fmt.Fprintf(w, "Actual rate      : %.2f/s\n", rate)
	fmt.Fprintf(w, "\n⏱️  RESPONSE TIMES (ms)\n")
	fmt.Fprintf(w, "   Avg : %.2f\n", sum.MeanMs)
	fmt.Fprintf(w, "   P50 : %.2f\n", sum.P50Ms)
	fmt.Fprintf(w, "   P90 : %.2f\n", sum.P90Ms)
	fmt.Fprintf(w, "   P95 : %.2f\n", sum.P95Ms)
	fmt.Fprintf(w, "   P99 : %.2f\n", sum.P99Ms)
	fmt.Fprintf(w, "   Max : %.2f\n", sum.MaxMs)
	fmt.Fprintf(w, "   Queue wait avg : %.2f\n", sum.AvgQueueWaitMs)

	if len(sum.Errors) > 0 {
		fmt.Fprintf(w, "\n❌ FAILURE SUMMARY\n")
		for _, e := range sum.Errors {
			fmt.Fprintf(w, "   %d x %s\n", e.Count, e.Label)
		}
	}
	fmt.Fprintf(w, "======================================================================\n")
}
