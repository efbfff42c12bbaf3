package runner

import (
	"errors"
	"fmt"
	"time"

	"proxyload/internal/policy"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	TargetsFile string

	// Arrival-rate scheduling
	Rate         int // iterations per second
	Duration     time.Duration
	PreAllocated int
	MaxWorkers   int
	GracefulStop time.Duration

	// Connection-class shaping
	Policy policy.Config

	// Console reporting
	LogEvery    int
	RunAvgEvery int

	// Explicit proxy configuration; empty means fallback
	HTTPProxy     string
	HTTPSProxy    string
	FallbackProxy string

	Seed        int64
	MetricsAddr string
}

// DefaultConfig mirrors the reference workload: 400 iterations/s for 30
// minutes on 60..300 workers with a 30s drain window.
func DefaultConfig() Config {
	return Config{
		TargetsFile:  "targets.json",
		Rate:         400,
		Duration:     30 * time.Minute,
		PreAllocated: 60,
		MaxWorkers:   300,
		GracefulStop: 30 * time.Second,
		Policy:       policy.DefaultConfig(),
		LogEvery:     1,
		RunAvgEvery:  50,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Rate <= 0:
		return fmt.Errorf("%w: rate must be positive, got %d", ErrInvalidConfig, c.Rate)
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidConfig, c.Duration)
	case c.PreAllocated < 0:
		return fmt.Errorf("%w: pre-allocated workers must not be negative", ErrInvalidConfig)
	case c.MaxWorkers <= 0 || c.MaxWorkers < c.PreAllocated:
		return fmt.Errorf("%w: max workers (%d) must be positive and >= pre-allocated (%d)", ErrInvalidConfig, c.MaxWorkers, c.PreAllocated)
	case c.GracefulStop < 0:
		return fmt.Errorf("%w: graceful stop must not be negative", ErrInvalidConfig)
	case c.Policy.LongLivedRatio < 0 || c.Policy.LongLivedRatio > 1:
		return fmt.Errorf("%w: long-lived ratio must be within [0,1], got %v", ErrInvalidConfig, c.Policy.LongLivedRatio)
	case c.Policy.LongTimeout <= 0 || c.Policy.ShortTimeout <= 0:
		return fmt.Errorf("%w: request timeouts must be positive", ErrInvalidConfig)
	case c.Policy.LongPacing < 0 || c.Policy.ShortPacing < 0:
		return fmt.Errorf("%w: pacing must not be negative", ErrInvalidConfig)
	case c.LogEvery < 0 || c.RunAvgEvery < 0:
		return fmt.Errorf("%w: reporting intervals must not be negative", ErrInvalidConfig)
	}
	return nil
}

type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeCheckFailed
	OutcomeTransportError
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeCheckFailed:
		return "check_failed"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// IterationResult is produced once per iteration and handed straight to the
// Recorder.
type IterationResult struct {
	Index     uint64
	Target    string
	Class     policy.Class
	Status    int // 0 when no response was received
	Duration  time.Duration
	QueueWait time.Duration
	Bytes     int64
	Outcome   Outcome
	Err       error
	ErrLabel  string
}

// CheckPassed reports whether the status fell in [200, 400).
func (r IterationResult) CheckPassed() bool {
	return r.Outcome == OutcomePass
}

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	}
	return "idle"
}
