// Package cache provides the in-memory response cache used by the proxy.
//
// The cache keeps exactly one Entry per upstream URL (the full resolved URL
// including the query string). Entries are created or overwritten on every
// upstream fetch and are never deleted; an entry whose ExpiresAt has passed
// is stale and only gets replaced by the next fetch of the same URL.
//
// # Basic Usage
//
//	store := cache.NewMemoryStore()
//
//	entry := cache.BuildEntry(resp.StatusCode, resp.Header, body, false, time.Now(), time.Minute)
//	store.Set("https://sw-api.starnavi.io/people/1/", entry)
//
//	if cached, ok := store.Get("https://sw-api.starnavi.io/people/1/"); ok && cached.IsFresh(time.Now()) {
//		// serve cached.Body
//	}
//
// # Validators
//
// Upstream ETag headers are passed through untouched. When the origin sends
// none, WeakETag derives W/"<sha1>" from the body bytes, so refetching an
// unchanged body yields the same validator.
//
// # Cache-Control
//
// Successful entries replay "public, max-age=21600". Failed fetches are
// cached as well but replay "no-store" so browsers never keep them.
//
// # Metrics
//
//   - swproxy_cache_hits_total{class} - fresh entries served without an upstream call
//   - swproxy_cache_misses_total{class} - absent or stale entries
//   - swproxy_cache_entries - number of URLs currently held
package cache
