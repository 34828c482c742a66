package proxy

import (
	"net/http"

	"github.com/Sternrassler/sw-proxy/pkg/cache"
	"github.com/Sternrassler/sw-proxy/pkg/client"
	"github.com/rs/zerolog"
)

// apiHandler proxies GET /api/<rest> to <APIBase>/<rest>.
func (s *Server) apiHandler(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	target := s.config.APIBase + "/" + restOf(r, "/api/")
	ifNoneMatch := r.Header.Get("If-None-Match")

	if cached, ok := s.engine.Lookup(target); ok && cached.Matches(ifNoneMatch) {
		logger.Debug().Str("url", target).Str("etag", cached.ETag).Msg("304 from cache")
		writeNotModified(w, "api")
		return
	}

	entry, err := s.engine.ProxyCached(r.Context(), client.Fetch{
		URL:    target,
		TTL:    client.TTLAPI,
		Header: http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		if client.IsFatal(err) {
			logger.Debug().Err(err).Str("url", target).Msg("Client went away")
			return
		}
		logger.Error().Err(err).Str("url", target).Msg("API upstream failed")
		writeBadGateway(w, err)
		return
	}

	// Covers a refetch after expiry that returned an unchanged body.
	if entry.Matches(ifNoneMatch) {
		writeNotModified(w, "api")
		return
	}

	if err := cache.WriteEntry(w, entry, entry.Status); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}
