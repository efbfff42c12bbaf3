// Package metrics exposes live run counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Collectors is registered on its own registry so tests and repeated runs in
// one process do not collide on the default one.
type Collectors struct {
	Registry *prometheus.Registry

	Iterations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Dropped    prometheus.Counter
	InFlight   prometheus.Gauge
	Workers    prometheus.Gauge
}

func New() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		Iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxyload_iterations_total",
			Help: "Completed iterations by connection class and outcome",
		}, []string{"class", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proxyload_request_duration_seconds",
			Help:    "Request latency through the proxy, pacing excluded",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"class"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxyload_dropped_iterations_total",
			Help: "Admissions dropped because every worker was busy at the ceiling",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxyload_in_flight_iterations",
			Help: "Iterations currently executing",
		}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxyload_workers",
			Help: "Worker goroutines allocated",
		}),
	}
	c.Registry.MustRegister(c.Iterations, c.Duration, c.Dropped, c.InFlight, c.Workers)
	return c
}

// Handler serves the registry.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// Serve runs a /metrics listener until ctx is done.
func (c *Collectors) Serve(ctx context.Context, addr string, log logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics at http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server stopped")
	}
}
