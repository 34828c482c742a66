// Package proxy serves the inbound HTTP surface: /health, the cached JSON API
// proxy under /api/ and the image proxy with its fallback chain under /img/.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/sw-proxy/pkg/cache"
	"github.com/Sternrassler/sw-proxy/pkg/client"
	"github.com/Sternrassler/sw-proxy/pkg/logging"
	"github.com/Sternrassler/sw-proxy/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	notModifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swproxy_not_modified_total",
		Help: "Total 304 Not Modified responses by route",
	}, []string{"route"})

	imageStageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swproxy_image_stage_total",
		Help: "Image fallback stage results by stage and outcome",
	}, []string{"stage", "outcome"})
)

// Engine is the fetch-and-cache engine as seen by the route handlers.
type Engine interface {
	// Lookup returns a fresh entry without calling upstream.
	Lookup(url string) (*cache.Entry, bool)

	// ProxyCached resolves a fetch through the cache.
	ProxyCached(ctx context.Context, f client.Fetch) (*cache.Entry, error)
}

// Config holds the upstream origins.
type Config struct {
	// APIBase is the JSON API origin
	APIBase string

	// ImageHTTPSBase is the primary image location
	ImageHTTPSBase string

	// ImageHTTPBase is the plain-HTTP mirror of the image host
	ImageHTTPBase string

	// ImageCDNBase is the image proxy CDN endpoint taking a ?url= parameter
	ImageCDNBase string
}

// Server routes inbound requests to the engine.
type Server struct {
	engine  Engine
	config  Config
	stages  []imageStage
	referer string
	logger  zerolog.Logger
	mux     *http.ServeMux
}

// New creates the server and registers its routes.
func New(engine Engine, cfg Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.ImageHTTPSBase = strings.TrimRight(cfg.ImageHTTPSBase, "/")
	cfg.ImageHTTPBase = strings.TrimRight(cfg.ImageHTTPBase, "/")

	for name, base := range map[string]string{
		"api base":         cfg.APIBase,
		"image https base": cfg.ImageHTTPSBase,
		"image http base":  cfg.ImageHTTPBase,
		"image cdn base":   cfg.ImageCDNBase,
	} {
		if _, err := parseBase(base); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	primary, _ := parseBase(cfg.ImageHTTPSBase)

	s := &Server{
		engine:  engine,
		config:  cfg,
		referer: primary.Scheme + "://" + primary.Host + "/",
		logger:  logging.NewLogger("proxy"),
		mux:     http.NewServeMux(),
	}
	s.stages = s.imageStages()

	s.mux.HandleFunc("GET /health", healthHandler)
	s.mux.Handle("GET /metrics", metrics.Handler())

	return s, nil
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		http.HandlerFunc(s.route),
		RequestIDMiddleware(s.logger),
		RecoveryMiddleware,
		AccessLogMiddleware,
		CORSMiddleware,
	)
}

// route dispatches the proxy prefixes itself. ServeMux would clean the path
// (collapsing "//", resolving "..") and redirect, while <rest> must reach
// upstream verbatim.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	var handler http.HandlerFunc
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"):
		handler = s.apiHandler
	case strings.HasPrefix(r.URL.Path, "/img/"):
		handler = s.imageHandler
	default:
		s.mux.ServeHTTP(w, r)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	handler(w, r)
}

var healthBody, _ = json.Marshal(map[string]bool{"ok": true})

func healthHandler(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", cache.CacheControlNoStore)
	h.Set("ETag", cache.WeakETag(healthBody))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(healthBody)
}

// restOf returns the escaped path after prefix plus the raw query, forwarded
// verbatim to the upstream origin.
func restOf(r *http.Request, prefix string) string {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	if r.URL.RawQuery != "" {
		rest += "?" + r.URL.RawQuery
	}
	return rest
}

func parseBase(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme in %q", base)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", base)
	}
	return u, nil
}

func writeNotModified(w http.ResponseWriter, route string) {
	notModifiedTotal.WithLabelValues(route).Inc()
	cache.WriteNotModified(w)
}

func writeBadGateway(w http.ResponseWriter, err error) {
	body := []byte(fmt.Sprintf("upstream request failed: %v\n", err))
	h := w.Header()
	h.Set("Content-Type", cache.FailureContentType)
	h.Set("Cache-Control", cache.CacheControlNoStore)
	h.Set("ETag", cache.WeakETag(body))
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write(body)
}
