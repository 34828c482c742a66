package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// CacheControlPublic is replayed for successful upstream responses (6h).
	CacheControlPublic = "public, max-age=21600"

	// CacheControlNoStore is replayed for failed upstream responses.
	CacheControlNoStore = "no-store"

	// FailureContentType replaces the upstream content type on failed fetches.
	FailureContentType = "text/plain; charset=utf-8"
)

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// IsImageContentType reports whether contentType starts with "image/",
// ignoring case.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// IsValid reports whether an upstream response counts as ok: a 2xx status
// and, when mustBeImage is set, an image content type.
func IsValid(status int, contentType string, mustBeImage bool) bool {
	if !IsSuccess(status) {
		return false
	}
	return !mustBeImage || IsImageContentType(contentType)
}

// BuildEntry converts an upstream response into an Entry expiring at now+ttl.
//
// Valid responses become status 200 with the upstream content type and
// public caching. Anything else keeps the upstream status, is relabelled
// text/plain and marked no-store.
func BuildEntry(status int, header http.Header, body []byte, mustBeImage bool, now time.Time, ttl time.Duration) *Entry {
	contentType := header.Get("Content-Type")
	etag := ResolveETag(header.Get("ETag"), body)

	entry := &Entry{
		Body:      body,
		ETag:      etag,
		ExpiresAt: now.Add(ttl),
		StoredAt:  now,
		Headers:   make(http.Header, 3),
	}

	if IsValid(status, contentType, mustBeImage) {
		entry.Status = http.StatusOK
		entry.Headers.Set("Content-Type", contentType)
		entry.Headers.Set("Cache-Control", CacheControlPublic)
	} else {
		entry.Status = status
		entry.Headers.Set("Content-Type", FailureContentType)
		entry.Headers.Set("Cache-Control", CacheControlNoStore)
	}
	entry.Headers.Set("ETag", etag)

	return entry
}

// WriteEntry replays the entry's headers and body with the given status.
func WriteEntry(w http.ResponseWriter, entry *Entry, status int) error {
	h := w.Header()
	for key, values := range entry.Headers {
		h.Del(key)
		for _, value := range values {
			h.Add(key, value)
		}
	}
	h.Set("Content-Length", strconv.Itoa(len(entry.Body)))

	w.WriteHeader(status)
	_, err := w.Write(entry.Body)
	return err
}

// WriteNotModified sends a bare 304.
func WriteNotModified(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotModified)
}
