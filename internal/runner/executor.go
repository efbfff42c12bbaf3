package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"proxyload/internal/policy"
	"proxyload/internal/proxy"
)

// Executor performs one planned request. Implementations never return an
// error: every failure is folded into the result.
type Executor interface {
	Execute(ctx context.Context, plan policy.Plan) IterationResult
}

// HTTPExecutor issues GETs through the forward proxy.
type HTTPExecutor struct {
	Client *http.Client
	log    logrus.FieldLogger
}

func NewHTTPExecutor(ep proxy.Endpoint, log logrus.FieldLogger) *HTTPExecutor {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = ep.ProxyFunc()
	// Every connection goes to the proxy, so the per-host limits are the
	// global ones.
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 0

	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPExecutor{
		Client: &http.Client{Transport: t},
		log:    log,
	}
}

func (e *HTTPExecutor) Execute(ctx context.Context, plan policy.Plan) IterationResult {
	res := IterationResult{Target: plan.Target, Class: plan.Class}

	reqCtx, cancel := context.WithTimeout(ctx, plan.Timeout)
	defer cancel()

	start := time.Now()
	err := e.do(reqCtx, plan, &res)
	res.Duration = time.Since(start)

	if err != nil {
		res.Outcome = OutcomeTransportError
		res.Err = err
		res.ErrLabel = classifyError(err)

		entry := e.log.WithFields(logrus.Fields{
			"target": plan.Target,
			"class":  plan.Class.String(),
			"error":  err.Error(),
		})
		if ctx.Err() != nil {
			entry.Debug("request interrupted by shutdown")
		} else {
			entry.Warn("request failed")
		}
	} else if res.Status >= 200 && res.Status < 400 {
		res.Outcome = OutcomePass
	} else {
		res.Outcome = OutcomeCheckFailed
	}

	pace(ctx, plan.Pacing)
	return res
}

func (e *HTTPExecutor) do(ctx context.Context, plan policy.Plan, res *IterationResult) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, plan.Target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = plan.Header.Clone()
	req.Close = !plan.KeepAlive

	resp, err := e.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	// Bodies are never inspected, but draining them lets keep-alive
	// connections return to the pool.
	n, _ := io.Copy(io.Discard, resp.Body)
	res.Bytes = n
	return nil
}

// CloseIdleConnections releases pooled proxy connections at the end of a run.
func (e *HTTPExecutor) CloseIdleConnections() {
	e.Client.CloseIdleConnections()
}

// classifyError maps a transport error to a short label for the failure
// summary.
func classifyError(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "connection reset"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	}
	return "other"
}

// pace sleeps for d unless ctx ends first.
func pace(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
