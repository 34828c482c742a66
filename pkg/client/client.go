// Package client provides the fetch-and-cache engine: upstream HTTP fetches
// committed to the response cache under a TTL.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/sw-proxy/pkg/cache"
	"github.com/Sternrassler/sw-proxy/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for upstream fetches.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swproxy_upstream_requests_total",
		Help: "Total upstream requests by TTL class and status",
	}, []string{"class", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swproxy_upstream_duration_seconds",
		Help:    "Upstream request duration in seconds by TTL class",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"class"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swproxy_upstream_errors_total",
		Help: "Total upstream transport errors by TTL class and error class",
	}, []string{"class", "error_class"})

	coalescedFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swproxy_coalesced_fetches_total",
		Help: "Total fetches that joined an in-flight request for the same URL",
	})
)

// TTL classes.
const (
	// TTLAPI keeps JSON list/detail data reasonably fresh.
	TTLAPI = 60 * time.Second

	// TTLImage is long since upstream images are effectively immutable.
	TTLImage = 6 * time.Hour
)

// Fetch describes one upstream resource to resolve through the cache.
type Fetch struct {
	// URL is the fully resolved upstream URL and the cache key
	URL string

	// TTL is how long the committed entry stays fresh
	TTL time.Duration

	// Header is forwarded verbatim on the upstream request
	Header http.Header

	// MustBeImage rejects responses whose content type is not image/*
	MustBeImage bool
}

func (f Fetch) class() string {
	if f.MustBeImage {
		return "image"
	}
	return "api"
}

// Client is the fetch-and-cache engine. It is the only owner of its Store.
type Client struct {
	httpClient *http.Client
	store      cache.Store
	group      singleflight.Group
	config     Config
	logger     zerolog.Logger
	now        func() time.Time
}

// Config holds the engine configuration.
type Config struct {
	// Store receives every committed entry
	Store cache.Store

	// Timeout bounds a single upstream attempt (request + body read)
	Timeout time.Duration

	// Coalesce makes concurrent cold fetches of one URL share a single
	// upstream request
	Coalesce bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig(store cache.Store) Config {
	return Config{
		Store:    store,
		Timeout:  10 * time.Second,
		Coalesce: true,
	}
}

// New creates a new engine.
func New(cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		store:  cfg.Store,
		config: cfg,
		logger: logging.NewLogger("fetch-engine"),
		now:    time.Now,
	}, nil
}

// Lookup returns the entry for url only while it is fresh.
// It never calls upstream.
func (c *Client) Lookup(url string) (*cache.Entry, bool) {
	entry, ok := c.store.Get(url)
	if !ok || !entry.IsFresh(c.now()) {
		return nil, false
	}
	return entry, true
}

// ProxyCached returns the fresh cached entry for f.URL or fetches it from
// upstream, commits it with ExpiresAt = now + f.TTL and returns it.
//
// Failed upstream responses (non-2xx, or a non-image body when MustBeImage
// is set) are cached and returned as entries, not errors. Only transport
// failures return an error, always an *UpstreamError.
func (c *Client) ProxyCached(ctx context.Context, f Fetch) (*cache.Entry, error) {
	if f.URL == "" || f.TTL <= 0 {
		return nil, fmt.Errorf("%w: url=%q ttl=%s", ErrInvalidFetch, f.URL, f.TTL)
	}

	if entry, ok := c.Lookup(f.URL); ok {
		cache.CacheHits.WithLabelValues(f.class()).Inc()
		c.logger.Debug().
			Str("url", f.URL).
			Dur("ttl", entry.TTL(c.now())).
			Msg("Cache hit")
		return entry, nil
	}
	cache.CacheMisses.WithLabelValues(f.class()).Inc()

	if !c.config.Coalesce {
		return c.fetch(ctx, ctx, f)
	}

	// The shared fetch must outlive any single waiter; each waiter still
	// stops waiting when its own context ends.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(f.URL, func() (any, error) {
		if entry, ok := c.Lookup(f.URL); ok {
			return entry, nil
		}
		return c.fetch(detached, context.Background(), f)
	})

	select {
	case res := <-ch:
		if res.Shared {
			coalescedFetchesTotal.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cache.Entry), nil
	case <-ctx.Done():
		return nil, newUpstreamError(ctx, f.URL, ctx.Err())
	}
}

// fetch performs the upstream GET and commits the result. parent is the
// context whose cancellation counts as the caller giving up; shared fetches
// pass context.Background().
func (c *Client) fetch(ctx, parent context.Context, f Fetch) (*cache.Entry, error) {
	class := f.class()
	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(class).Observe(time.Since(startTime).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, &UpstreamError{URL: f.URL, ErrorClass: ErrorClassNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	if f.Header != nil {
		req.Header = f.Header.Clone()
	}

	c.logger.Debug().
		Str("url", f.URL).
		Str("class", class).
		Msg("Fetching upstream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(parent, f, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(parent, f, fmt.Errorf("read response body: %w", err))
	}

	upstreamRequestsTotal.WithLabelValues(class, strconv.Itoa(resp.StatusCode)).Inc()

	now := c.now()
	entry := cache.BuildEntry(resp.StatusCode, resp.Header, body, f.MustBeImage, now, f.TTL)
	c.store.Set(f.URL, entry)

	if !cache.IsValid(resp.StatusCode, resp.Header.Get("Content-Type"), f.MustBeImage) {
		c.logger.Warn().
			Str("url", f.URL).
			Int("status", resp.StatusCode).
			Str("content_type", resp.Header.Get("Content-Type")).
			Msg("Upstream response rejected")
	} else {
		c.logger.Debug().
			Str("url", f.URL).
			Int("status", resp.StatusCode).
			Str("etag", entry.ETag).
			Dur("ttl", f.TTL).
			Msg("Cached response")
	}

	return entry, nil
}

func (c *Client) transportError(parent context.Context, f Fetch, err error) error {
	upstreamErr := newUpstreamError(parent, f.URL, err)
	upstreamErrorsTotal.WithLabelValues(f.class(), string(upstreamErr.ErrorClass)).Inc()

	c.logger.Warn().
		Err(err).
		Str("url", f.URL).
		Str("error_class", string(upstreamErr.ErrorClass)).
		Msg("Upstream request failed")

	return upstreamErr
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetClock replaces the time source used for freshness and expiry (for testing).
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}
