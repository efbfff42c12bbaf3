package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"proxyload/internal/catalog"
	"proxyload/internal/runner"
	"proxyload/internal/stats"
)

func writeTargets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPrepareEmptyCatalog(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := runner.DefaultConfig()
	cfg.TargetsFile = writeTargets(t, "[]")

	_, err := Prepare(cfg, log)
	if !errors.Is(err, catalog.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
	if !errors.Is(err, runner.ErrInvalidConfig) {
		t.Fatalf("empty catalog should be a configuration error, got %v", err)
	}
}

func TestPrepareMalformedTargets(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := runner.DefaultConfig()
	cfg.TargetsFile = writeTargets(t, `{"not": "a list"}`)

	_, err := Prepare(cfg, log)
	if !errors.Is(err, runner.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if errors.Is(err, catalog.ErrEmptyCatalog) {
		t.Fatalf("malformed file reported as empty: %v", err)
	}
}

func TestPrepareInvalidConfig(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := runner.DefaultConfig()
	cfg.Rate = 0

	if _, err := Prepare(cfg, log); !errors.Is(err, runner.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSessionEndToEnd(t *testing.T) {
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Host == "down.test" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer proxySrv.Close()

	log, hook := test.NewNullLogger()
	cfg := runner.DefaultConfig()
	cfg.TargetsFile = writeTargets(t, `["https://a.test/","b.test","http://down.test/"]`)
	cfg.HTTPProxy = proxySrv.URL
	cfg.Rate = 10
	cfg.Duration = 2 * time.Second
	cfg.PreAllocated = 2
	cfg.MaxWorkers = 20
	cfg.GracefulStop = 2 * time.Second
	cfg.Policy.LongPacing = 10 * time.Millisecond
	cfg.Policy.ShortPacing = 10 * time.Millisecond
	cfg.RunAvgEvery = 5
	cfg.Seed = 11

	sess, err := Prepare(cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	sum := sess.Run(context.Background())

	if sum.Admitted < 17 || sum.Admitted > 23 {
		t.Fatalf("admitted %d, want about 20", sum.Admitted)
	}
	if sum.Completed != sum.Admitted {
		t.Errorf("completed %d of %d admitted", sum.Completed, sum.Admitted)
	}
	if sum.ChecksPassed+sum.ChecksFailed+sum.TransportErrors != sum.Completed {
		t.Errorf("outcomes do not add up: %+v", sum)
	}
	if sum.ChecksFailed == 0 || sum.ChecksPassed == 0 {
		t.Errorf("expected both passing and failing checks: %+v", sum)
	}
	if sum.LongLived+sum.ShortLived != sum.Completed {
		t.Errorf("class counts do not add up: %+v", sum)
	}

	avgLines := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "running average" {
			avgLines++
		}
		if e.Data["run_id"] != sess.RunID {
			t.Fatalf("log line %q missing run_id", e.Message)
		}
	}
	if want := int(sum.Completed / 5); avgLines != want {
		t.Errorf("running average printed %d times, want %d", avgLines, want)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, stats.Summary{
		Elapsed:         2 * time.Second,
		Completed:       20,
		ChecksPassed:    18,
		TransportErrors: 2,
		ErrorRate:       10,
		Errors:          []stats.ErrorCount{{Label: "timeout", Count: 2}},
	})
	out := buf.String()
	for _, want := range []string{"Completed        : 20", "Actual rate      : 10.00/s", "2 x timeout", "Error rate       : 10.00%"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}
