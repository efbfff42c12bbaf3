// Package proxy resolves the forward proxy every request is routed through.
package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DefaultFallback is used for both slots when neither HTTP_PROXY nor
// HTTPS_PROXY is configured.
const DefaultFallback = "http://127.0.0.1:3128"

// Settings carries the explicit proxy configuration, usually HTTP_PROXY and
// HTTPS_PROXY as read by viper.
type Settings struct {
	HTTPProxy  string
	HTTPSProxy string
	Fallback   string
}

// Endpoint is the resolved, immutable proxy configuration for a run.
type Endpoint struct {
	HTTP       *url.URL
	HTTPS      *url.URL
	Configured bool
}

// Resolver resolves Settings once and remembers whether the missing
// configuration warning has been emitted.
type Resolver struct {
	settings Settings
	log      logrus.FieldLogger

	once     sync.Once
	endpoint Endpoint
	err      error

	warned atomic.Bool
}

func NewResolver(s Settings, log logrus.FieldLogger) *Resolver {
	if s.Fallback == "" {
		s.Fallback = DefaultFallback
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{settings: s, log: log}
}

// Resolve returns the endpoint. The work happens on the first call only.
func (r *Resolver) Resolve() (Endpoint, error) {
	r.once.Do(func() {
		r.endpoint, r.err = r.resolve()
	})
	return r.endpoint, r.err
}

func (r *Resolver) resolve() (Endpoint, error) {
	plain := strings.TrimSpace(r.settings.HTTPProxy)
	secure := strings.TrimSpace(r.settings.HTTPSProxy)

	ep := Endpoint{Configured: plain != "" || secure != ""}
	if !ep.Configured {
		plain, secure = r.settings.Fallback, r.settings.Fallback
	}
	if plain == "" {
		plain = secure
	}
	if secure == "" {
		secure = plain
	}

	var err error
	if ep.HTTP, err = parseProxyURL(plain); err != nil {
		return Endpoint{}, fmt.Errorf("http proxy: %w", err)
	}
	if ep.HTTPS, err = parseProxyURL(secure); err != nil {
		return Endpoint{}, fmt.Errorf("https proxy: %w", err)
	}
	return ep, nil
}

// WarnIfUnconfigured logs the fallback warning at most once per run, no
// matter how many workers call it.
func (r *Resolver) WarnIfUnconfigured() {
	ep, err := r.Resolve()
	if err != nil || ep.Configured {
		return
	}
	if !r.warned.CompareAndSwap(false, true) {
		return
	}
	r.log.WithField("proxy", ep.HTTP.String()).
		Warn("HTTP_PROXY/HTTPS_PROXY not set, using fallback proxy")
}

// ProxyFunc adapts the endpoint for http.Transport.Proxy, picking the slot by
// request scheme.
func (e Endpoint) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" {
			return e.HTTPS, nil
		}
		return e.HTTP, nil
	}
}

// String renders the plain-traffic slot, which all normalized targets use.
func (e Endpoint) String() string {
	if e.HTTP == nil {
		return ""
	}
	return e.HTTP.String()
}

// parseProxyURL accepts host:port as well as a full URL.
func parseProxyURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}
