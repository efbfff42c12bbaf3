// Package policy shapes the workload: each iteration is either a long-lived
// request that keeps its connection for reuse or a short-lived one that
// tears it down.
package policy

import (
	"net/http"
	"time"

	"proxyload/internal/rnd"
)

type Class int

const (
	ShortLived Class = iota
	LongLived
)

func (c Class) String() string {
	if c == LongLived {
		return "long-lived"
	}
	return "short-lived"
}

const (
	DefaultLongLivedRatio = 0.3
	DefaultLongTimeout    = 10 * time.Second
	DefaultShortTimeout   = 5 * time.Second
	DefaultLongPacing     = 800 * time.Millisecond
	DefaultShortPacing    = 200 * time.Millisecond

	LongLivedUserAgent  = "k6-long-lived"
	ShortLivedUserAgent = "k6-short-lived"
)

// Plan is built once per iteration and discarded afterwards.
type Plan struct {
	Target    string
	Class     Class
	Header    http.Header
	Timeout   time.Duration
	KeepAlive bool
	Pacing    time.Duration
}

type Config struct {
	LongLivedRatio float64
	LongTimeout    time.Duration
	ShortTimeout   time.Duration
	LongPacing     time.Duration
	ShortPacing    time.Duration
}

func DefaultConfig() Config {
	return Config{
		LongLivedRatio: DefaultLongLivedRatio,
		LongTimeout:    DefaultLongTimeout,
		ShortTimeout:   DefaultShortTimeout,
		LongPacing:     DefaultLongPacing,
		ShortPacing:    DefaultShortPacing,
	}
}

type Policy struct {
	cfg Config
	rng rnd.Source
}

func New(cfg Config, rng rnd.Source) *Policy {
	if rng == nil {
		rng = rnd.New(0)
	}
	return &Policy{cfg: cfg, rng: rng}
}

// Classify draws independently on every call; there is no affinity between
// consecutive iterations.
func (p *Policy) Classify() Class {
	if p.rng.Float64() < p.cfg.LongLivedRatio {
		return LongLived
	}
	return ShortLived
}

// Build returns the request parameters for a class. The target is filled in
// by the caller.
func (p *Policy) Build(class Class) Plan {
	h := make(http.Header)
	if class == LongLived {
		h.Set("User-Agent", LongLivedUserAgent)
		return Plan{
			Class:     LongLived,
			Header:    h,
			Timeout:   p.cfg.LongTimeout,
			KeepAlive: true,
			Pacing:    p.cfg.LongPacing,
		}
	}
	h.Set("User-Agent", ShortLivedUserAgent)
	h.Set("Connection", "close")
	return Plan{
		Class:   ShortLived,
		Header:  h,
		Timeout: p.cfg.ShortTimeout,
		Pacing:  p.cfg.ShortPacing,
	}
}
