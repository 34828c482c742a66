package cache

import (
	"net/http"
	"time"
)

// Entry represents one cached upstream response.
type Entry struct {
	// Status is the HTTP status replayed to the caller
	Status int

	// Headers replayed to the caller (Content-Type, Cache-Control, ETag)
	Headers http.Header

	// Body is the raw upstream payload
	Body []byte

	// ETag is the validator, always equal to Headers.Get("ETag")
	ETag string

	// ExpiresAt is when the entry becomes stale
	ExpiresAt time.Time

	// StoredAt is when the entry was committed
	StoredAt time.Time
}

// IsFresh reports whether the entry may still be served at now.
func (e *Entry) IsFresh(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}

// IsExpired returns true if the entry is stale at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return !e.IsFresh(now)
}

// TTL returns the time left until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	if e.StoredAt.IsZero() {
		return 0
	}
	return now.Sub(e.StoredAt)
}

// Matches reports whether an If-None-Match value equals the entry's validator.
// An empty validator never matches.
func (e *Entry) Matches(ifNoneMatch string) bool {
	return e != nil && ifNoneMatch != "" && ifNoneMatch == e.ETag
}

// ContentType returns the Content-Type header of the entry.
func (e *Entry) ContentType() string {
	if e == nil || e.Headers == nil {
		return ""
	}
	return e.Headers.Get("Content-Type")
}
