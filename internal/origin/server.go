// Package origin is a local origin for smoke runs: point the proxy under test
// at it and list its endpoints in the target file.
package origin

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type ServerConfig struct {
	Port int
}

// Handler serves the origin endpoints.
func Handler() http.Handler {
	mux := http.NewServeMux()

	// 1. Fast Endpoint (10-50ms)
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(40)+10) * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Fast response"))
	})

	// 2. Slow Endpoint (1s-2s), inside both request timeouts
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(1000)+1000) * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Slow response"))
	})

	// 3. Error Endpoint (Random failures)
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		rnd := rand.Float32()
		if rnd < 0.2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
		} else if rnd < 0.4 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("429 Too Many Requests"))
		} else {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		}
	})

	// 4. Close Endpoint: the origin tears the connection down itself
	mux.HandleFunc("/close", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Closing"))
	})

	return mux
}

// Start serves the origin in the background and returns the server so the
// caller can shut it down.
func Start(cfg ServerConfig, log logrus.FieldLogger) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", "http://localhost"+addr).
		Info("origin running, endpoints: /fast, /slow, /error, /close")

	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("origin server failed")
		}
	}()
	return server
}
