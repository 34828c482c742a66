package proxy

import (
	"net/http"
	"time"

	"github.com/Sternrassler/sw-proxy/pkg/cache"
)

// PlaceholderSVG is served when no upstream stage yields an image.
const PlaceholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="300">
  <rect width="100%" height="100%" fill="#e5e7eb"/>
  <text x="50%" y="50%" dominant-baseline="middle" text-anchor="middle"
        fill="#64748b" font-family="sans-serif" font-size="14">no image</text>
</svg>`

const (
	placeholderContentType  = "image/svg+xml"
	placeholderCacheControl = "public, max-age=86400"
)

var placeholderETag = cache.WeakETag([]byte(PlaceholderSVG))

// Placeholder builds the terminal fallback image. It never touches the cache.
func Placeholder() *cache.Entry {
	now := time.Now()
	entry := &cache.Entry{
		Status:    http.StatusOK,
		Headers:   make(http.Header, 3),
		Body:      []byte(PlaceholderSVG),
		ETag:      placeholderETag,
		ExpiresAt: now.Add(24 * time.Hour),
		StoredAt:  now,
	}
	entry.Headers.Set("Content-Type", placeholderContentType)
	entry.Headers.Set("Cache-Control", placeholderCacheControl)
	entry.Headers.Set("ETag", placeholderETag)
	return entry
}
