package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/sw-proxy/internal/testutil"
	"github.com/Sternrassler/sw-proxy/pkg/cache"
	"github.com/Sternrassler/sw-proxy/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const imagePath = "/assets/img"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires a Server to four mock origins and an isolated cache.
type harness struct {
	api       *testutil.MockOrigin
	primary   *testutil.MockOrigin
	secondary *testutil.MockOrigin
	cdn       *testutil.MockOrigin
	store     *cache.MemoryStore
	clock     *testClock
	server    *Server
	handler   http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		api:       testutil.NewMockOrigin(),
		primary:   testutil.NewMockOrigin(),
		secondary: testutil.NewMockOrigin(),
		cdn:       testutil.NewMockOrigin(),
		store:     cache.NewMemoryStore(),
		clock:     &testClock{now: time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)},
	}
	t.Cleanup(func() {
		h.api.Close()
		h.primary.Close()
		h.secondary.Close()
		h.cdn.Close()
	})

	cfg := client.DefaultConfig(h.store)
	cfg.Timeout = 2 * time.Second
	engine, err := client.New(cfg)
	require.NoError(t, err)
	engine.SetClock(h.clock.Now)

	h.server, err = New(engine, Config{
		APIBase:        h.api.URL(),
		ImageHTTPSBase: h.primary.URL() + imagePath,
		ImageHTTPBase:  h.secondary.URL() + imagePath,
		ImageCDNBase:   h.cdn.URL() + "/",
	})
	require.NoError(t, err)
	h.handler = h.server.Handler()

	return h
}

// cdnKey is the ?url= value the CDN stage sends for rest.
func (h *harness) cdnKey(rest string) string {
	return strings.TrimPrefix(h.primary.URL(), "http://") + imagePath + "/" + rest
}

func (h *harness) do(t *testing.T, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for key, values := range header {
		req.Header[key] = values
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestNew_Validation(t *testing.T) {
	valid := Config{
		APIBase:        "https://sw-api.starnavi.io",
		ImageHTTPSBase: "https://starwars-visualguide.com/assets/img",
		ImageHTTPBase:  "http://starwars-visualguide.com/assets/img",
		ImageCDNBase:   "https://images.weserv.nl/",
	}
	engine, err := client.New(client.DefaultConfig(cache.NewMemoryStore()))
	require.NoError(t, err)

	tests := []struct {
		name     string
		engine   Engine
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "valid config", engine: engine},
		{name: "nil engine", errorMsg: "engine is required"},
		{
			name:     "relative api base",
			engine:   engine,
			mutate:   func(c *Config) { c.APIBase = "/api" },
			errorMsg: `api base: unsupported scheme in "/api"`,
		},
		{
			name:     "missing cdn host",
			engine:   engine,
			mutate:   func(c *Config) { c.ImageCDNBase = "https://" },
			errorMsg: `image cdn base: missing host in "https://"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			s, err := New(tt.engine, cfg)
			if tt.errorMsg != "" {
				assert.EqualError(t, err, tt.errorMsg)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://starwars-visualguide.com/", s.referer)
		})
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, cache.CacheControlNoStore, rec.Header().Get("Cache-Control"))
	assert.Equal(t, cache.WeakETag([]byte(`{"ok":true}`)), rec.Header().Get("ETag"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Zero(t, h.api.RequestCount())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "swproxy_cache_entries")
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/films/1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, h.api.RequestCount())
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t)

	for _, target := range []string{"/api/people/1/", "/img/characters/1.jpg", "/health"} {
		rec := h.do(t, http.MethodPost, target, nil)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
		assert.Contains(t, rec.Header().Get("Allow"), "GET", target)
	}
	assert.Zero(t, h.api.RequestCount())
	assert.Zero(t, h.primary.RequestCount())
}

func TestRestOf(t *testing.T) {
	tests := []struct {
		target string
		prefix string
		want   string
	}{
		{"/api/people/1/", "/api/", "people/1/"},
		{"/api/people/?page=2&search=sky", "/api/", "people/?page=2&search=sky"},
		{"/img/characters/1.jpg", "/img/", "characters/1.jpg"},
		{"/img/big%20ship.png", "/img/", "big%20ship.png"},
		{"/api/", "/api/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.want, restOf(req, tt.prefix))
		})
	}
}
