package cache

import (
	"crypto/sha1"
	"encoding/hex"
)

// WeakETag derives a weak validator from the exact body bytes.
// Format: W/"<sha1 hex>"
//
// The same byte sequence always yields the same value, so a refetch of an
// unchanged resource keeps If-None-Match working across cache expiry.
func WeakETag(body []byte) string {
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}

// ResolveETag returns the upstream validator when present, otherwise the
// weak validator computed over body.
func ResolveETag(upstream string, body []byte) string {
	if upstream != "" {
		return upstream
	}
	return WeakETag(body)
}
