package proxy

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/sw-proxy/pkg/cache"
	"github.com/Sternrassler/sw-proxy/pkg/client"
	"github.com/rs/zerolog"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36"
	imageAccept      = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
	imageLanguage    = "en-US,en;q=0.9"
)

// imageStage is one upstream source in the fallback chain.
type imageStage struct {
	name   string
	url    func(rest string) string
	accept func(entry *cache.Entry) bool
}

// stageOutcome tells the fallback loop what to do after a stage.
type stageOutcome int

const (
	// stageResolved means the stage produced an image.
	stageResolved stageOutcome = iota
	// stageAdvance means try the next stage.
	stageAdvance
	// stageAbort means the inbound request is gone.
	stageAbort
)

func (o stageOutcome) String() string {
	switch o {
	case stageResolved:
		return "resolved"
	case stageAdvance:
		return "advance"
	case stageAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// imageStages lists the upstream sources in order. The placeholder is not a
// stage; it is what remains when every stage advances.
func (s *Server) imageStages() []imageStage {
	return []imageStage{
		{
			name:   "primary",
			url:    func(rest string) string { return s.config.ImageHTTPSBase + "/" + rest },
			accept: isImage,
		},
		{
			name:   "secondary",
			url:    func(rest string) string { return s.config.ImageHTTPBase + "/" + rest },
			accept: isImage,
		},
		{
			name:   "cdn",
			url:    func(rest string) string { return cdnURL(s.config.ImageCDNBase, s.config.ImageHTTPSBase+"/"+rest) },
			accept: isImage,
		},
	}
}

func isImage(entry *cache.Entry) bool {
	return cache.IsSuccess(entry.Status) && cache.IsImageContentType(entry.ContentType())
}

// cdnURL points the image CDN at target, passed without its scheme.
func cdnURL(cdnBase, target string) string {
	clean := strings.TrimPrefix(strings.TrimPrefix(target, "https://"), "http://")

	u, err := url.Parse(cdnBase)
	if err != nil {
		return cdnBase + "?url=" + url.QueryEscape(clean)
	}
	q := u.Query()
	q.Set("url", clean)
	u.RawQuery = q.Encode()
	return u.String()
}

// imageHeaders are sent to every image origin attempt.
func (s *Server) imageHeaders(r *http.Request) http.Header {
	userAgent := r.Header.Get("User-Agent")
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	h := make(http.Header, 4)
	h.Set("User-Agent", userAgent)
	h.Set("Accept", imageAccept)
	h.Set("Referer", s.referer)
	h.Set("Accept-Language", imageLanguage)
	return h
}

func (s *Server) runStage(ctx context.Context, stage imageStage, rest string, header http.Header) (*cache.Entry, stageOutcome, error) {
	entry, err := s.engine.ProxyCached(ctx, client.Fetch{
		URL:         stage.url(rest),
		TTL:         client.TTLImage,
		Header:      header,
		MustBeImage: true,
	})
	switch {
	case err != nil && client.IsFatal(err):
		return nil, stageAbort, err
	case err != nil:
		return nil, stageAdvance, err
	case !stage.accept(entry):
		return entry, stageAdvance, nil
	default:
		return entry, stageResolved, nil
	}
}

// imageHandler proxies GET /img/<rest> through the fallback chain and ends
// with the placeholder, so callers never see an upstream failure.
func (s *Server) imageHandler(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	rest := restOf(r, "/img/")
	ifNoneMatch := r.Header.Get("If-None-Match")

	// Only the primary location is checked before any stage runs.
	if cached, ok := s.engine.Lookup(s.stages[0].url(rest)); ok && cached.Matches(ifNoneMatch) {
		writeNotModified(w, "img")
		return
	}

	header := s.imageHeaders(r)
	for _, stage := range s.stages {
		entry, outcome, err := s.runStage(r.Context(), stage, rest, header)
		imageStageTotal.WithLabelValues(stage.name, outcome.String()).Inc()

		switch outcome {
		case stageResolved:
			if entry.Matches(ifNoneMatch) {
				writeNotModified(w, "img")
				return
			}
			if err := cache.WriteEntry(w, entry, http.StatusOK); err != nil {
				logger.Debug().Err(err).Msg("Failed to write response")
			}
			return
		case stageAbort:
			logger.Debug().Err(err).Str("stage", stage.name).Msg("Client went away")
			return
		}

		event := logger.Debug().Str("stage", stage.name).Str("rest", rest)
		if err != nil {
			event = event.Err(err)
		} else {
			event = event.Int("status", entry.Status)
		}
		event.Msg("Image stage failed, advancing")
	}

	logger.Info().Str("rest", rest).Msg("Serving placeholder image")
	if err := cache.WriteEntry(w, Placeholder(), http.StatusOK); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}
