package runner

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"proxyload/internal/policy"
	"proxyload/internal/proxy"
)

// seenRequest is what the fake forward proxy observed.
type seenRequest struct {
	URL       string
	UserAgent string
	Close     bool
}

// newFakeProxy answers proxied requests itself, which is all the executor
// can observe of a real forward proxy.
func newFakeProxy(t *testing.T, handler http.HandlerFunc) (*httptest.Server, func() []seenRequest) {
	t.Helper()
	var mu sync.Mutex
	seen := []seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, seenRequest{
			URL:       r.URL.String(),
			UserAgent: r.UserAgent(),
			Close:     r.Close || r.Header.Get("Connection") == "close",
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []seenRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]seenRequest(nil), seen...)
	}
}

func endpointFor(t *testing.T, rawURL string) proxy.Endpoint {
	t.Helper()
	ep, err := proxy.NewResolver(proxy.Settings{HTTPProxy: rawURL}, nil).Resolve()
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func testPlan(class policy.Class, target string) policy.Plan {
	cfg := policy.DefaultConfig()
	cfg.LongPacing = time.Millisecond
	cfg.ShortPacing = time.Millisecond
	plan := policy.New(cfg, nil).Build(class)
	plan.Target = target
	return plan
}

func TestExecuteLongLivedThroughProxy(t *testing.T) {
	srv, seen := newFakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})
	log, _ := test.NewNullLogger()
	e := NewHTTPExecutor(endpointFor(t, srv.URL), log)

	res := e.Execute(context.Background(), testPlan(policy.LongLived, "http://origin.test/page"))
	if res.Outcome != OutcomePass || res.Status != http.StatusOK {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Bytes != 5 {
		t.Errorf("bytes = %d", res.Bytes)
	}
	requests := seen()
	if len(requests) != 1 {
		t.Fatalf("proxy saw %d requests", len(requests))
	}
	got := requests[0]
	if got.URL != "http://origin.test/page" {
		t.Errorf("proxy saw URL %q, want the absolute target", got.URL)
	}
	if got.UserAgent != "k6-long-lived" || got.Close {
		t.Errorf("long-lived request arrived as %+v", got)
	}
}

func TestExecuteShortLivedClosesConnection(t *testing.T) {
	srv, seen := newFakeProxy(t, func(w http.ResponseWriter, r *http.Request) {})
	e := NewHTTPExecutor(endpointFor(t, srv.URL), nil)

	res := e.Execute(context.Background(), testPlan(policy.ShortLived, "http://origin.test/"))
	if res.Outcome != OutcomePass {
		t.Fatalf("unexpected result %+v", res)
	}
	got := seen()[0]
	if got.UserAgent != "k6-short-lived" || !got.Close {
		t.Errorf("short-lived request arrived as %+v", got)
	}
}

func TestExecuteStatusOutsideRangeFailsCheck(t *testing.T) {
	srv, _ := newFakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	e := NewHTTPExecutor(endpointFor(t, srv.URL), nil)

	res := e.Execute(context.Background(), testPlan(policy.ShortLived, "http://origin.test/"))
	if res.Outcome != OutcomeCheckFailed || res.Status != 503 || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExecuteConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	log, hook := test.NewNullLogger()
	e := NewHTTPExecutor(endpointFor(t, "http://"+addr), log)

	res := e.Execute(context.Background(), testPlan(policy.ShortLived, "http://origin.test/"))
	if res.Outcome != OutcomeTransportError || res.Err == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ErrLabel != "connection refused" {
		t.Errorf("label = %q", res.ErrLabel)
	}
	last := hook.LastEntry()
	if last == nil || last.Level != logrus.WarnLevel || last.Data["target"] != "http://origin.test/" {
		t.Fatalf("expected a warning naming the target, got %+v", last)
	}
}

func TestExecuteTimeout(t *testing.T) {
	srv, _ := newFakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	e := NewHTTPExecutor(endpointFor(t, srv.URL), nil)

	plan := testPlan(policy.ShortLived, "http://origin.test/")
	plan.Timeout = 50 * time.Millisecond
	res := e.Execute(context.Background(), plan)
	if res.Outcome != OutcomeTransportError || res.ErrLabel != "timeout" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Duration > time.Second {
		t.Errorf("timeout not honoured, took %s", res.Duration)
	}
}

func TestExecutePacesAfterRequest(t *testing.T) {
	srv, _ := newFakeProxy(t, func(w http.ResponseWriter, r *http.Request) {})
	e := NewHTTPExecutor(endpointFor(t, srv.URL), nil)

	plan := testPlan(policy.LongLived, "http://origin.test/")
	plan.Pacing = 100 * time.Millisecond
	start := time.Now()
	res := e.Execute(context.Background(), plan)
	if time.Since(start) < 100*time.Millisecond {
		t.Fatal("pacing sleep skipped")
	}
	if res.Duration >= 100*time.Millisecond {
		t.Errorf("duration %s includes pacing", res.Duration)
	}
}

func TestClassifyError(t *testing.T) {
	cases := map[string]error{
		"timeout":  context.DeadlineExceeded,
		"canceled": context.Canceled,
		"dns":      &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}},
	}
	for want, err := range cases {
		if got := classifyError(err); got != want {
			t.Errorf("classifyError(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestExecutorVerifiesProxyTLS(t *testing.T) {
	u, _ := url.Parse("https://proxy.test:8443")
	e := NewHTTPExecutor(proxy.Endpoint{HTTP: u, HTTPS: u, Configured: true}, nil)

	tr, ok := e.Client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport is %T", e.Client.Transport)
	}
	if tr.TLSClientConfig != nil && tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatal("certificate verification disabled for the proxy connection")
	}
}
