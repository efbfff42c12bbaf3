package targets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"proxyload/internal/catalog"
)

func TestBuild(t *testing.T) {
	csv := "1,google.com\r\n2,facebook.com\n\n3, , \nbare.example\n4,netflix.com\n"
	got, err := Build(strings.NewReader(csv), 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://google.com/", "https://facebook.com/", "https://bare.example/"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("Build = %v, want %v", got, want)
	}
}

func TestBuildEmpty(t *testing.T) {
	if _, err := Build(strings.NewReader("\n\n"), 10); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets, got %v", err)
	}
}

func TestGenerateRoundTripsThroughCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1,a.test\n2,b.test\n3,c.test\n"))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "targets.json")
	n, err := Generate(context.Background(), srv.Client(), srv.URL, 2, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("wrote %d targets", n)
	}
	cat, err := catalog.LoadFile(out, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cat.Len() != 2 {
		t.Fatalf("catalog has %d targets", cat.Len())
	}
}

func TestGenerateBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Generate(context.Background(), srv.Client(), srv.URL, 2, filepath.Join(t.TempDir(), "t.json"))
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("expected HTTP 404 error, got %v", err)
	}
}
