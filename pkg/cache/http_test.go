package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBuildEntry(t *testing.T) {
	now := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"name":"Luke Skywalker"}`)

	tests := []struct {
		name             string
		status           int
		header           http.Header
		mustBeImage      bool
		wantStatus       int
		wantContentType  string
		wantCacheControl string
		wantETag         string
	}{
		{
			name:             "json success without upstream etag",
			status:           200,
			header:           http.Header{"Content-Type": []string{"application/json"}},
			wantStatus:       200,
			wantContentType:  "application/json",
			wantCacheControl: CacheControlPublic,
			wantETag:         WeakETag(body),
		},
		{
			name:   "upstream etag passed through",
			status: 200,
			header: http.Header{
				"Content-Type": []string{"application/json"},
				"Etag":         []string{`"v42"`},
			},
			wantStatus:       200,
			wantContentType:  "application/json",
			wantCacheControl: CacheControlPublic,
			wantETag:         `"v42"`,
		},
		{
			name:             "non-2xx status is a failure",
			status:           404,
			header:           http.Header{"Content-Type": []string{"application/json"}},
			wantStatus:       404,
			wantContentType:  FailureContentType,
			wantCacheControl: CacheControlNoStore,
			wantETag:         WeakETag(body),
		},
		{
			name:             "204 counts as success",
			status:           204,
			header:           http.Header{"Content-Type": []string{"application/json"}},
			wantStatus:       200,
			wantContentType:  "application/json",
			wantCacheControl: CacheControlPublic,
			wantETag:         WeakETag(body),
		},
		{
			name:             "html page rejected when image required",
			status:           200,
			header:           http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
			mustBeImage:      true,
			wantStatus:       200,
			wantContentType:  FailureContentType,
			wantCacheControl: CacheControlNoStore,
			wantETag:         WeakETag(body),
		},
		{
			name:             "image accepted case-insensitively",
			status:           200,
			header:           http.Header{"Content-Type": []string{"IMAGE/JPEG"}},
			mustBeImage:      true,
			wantStatus:       200,
			wantContentType:  "IMAGE/JPEG",
			wantCacheControl: CacheControlPublic,
			wantETag:         WeakETag(body),
		},
		{
			name:             "missing content type rejected when image required",
			status:           200,
			header:           http.Header{},
			mustBeImage:      true,
			wantStatus:       200,
			wantContentType:  FailureContentType,
			wantCacheControl: CacheControlNoStore,
			wantETag:         WeakETag(body),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := BuildEntry(tt.status, tt.header, body, tt.mustBeImage, now, time.Minute)

			if entry.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", entry.Status, tt.wantStatus)
			}
			if got := entry.Headers.Get("Content-Type"); got != tt.wantContentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantContentType)
			}
			if got := entry.Headers.Get("Cache-Control"); got != tt.wantCacheControl {
				t.Errorf("Cache-Control = %q, want %q", got, tt.wantCacheControl)
			}
			if entry.ETag != tt.wantETag {
				t.Errorf("ETag = %q, want %q", entry.ETag, tt.wantETag)
			}
			if got := entry.Headers.Get("ETag"); got != entry.ETag {
				t.Errorf("ETag header %q differs from ETag field %q", got, entry.ETag)
			}
			if !entry.ExpiresAt.Equal(now.Add(time.Minute)) {
				t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, now.Add(time.Minute))
			}
			if string(entry.Body) != string(body) {
				t.Errorf("Body = %q, want %q", entry.Body, body)
			}
		})
	}
}

func TestBuildEntry_FailureStatusPreserved(t *testing.T) {
	// A 200 HTML page on an image fetch keeps status 200 but is still a failure.
	entry := BuildEntry(200, http.Header{"Content-Type": []string{"text/html"}}, nil, true, time.Now(), time.Hour)
	if IsImageContentType(entry.ContentType()) {
		t.Error("failed image fetch must not carry an image content type")
	}
}

func TestIsImageContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/jpeg", true},
		{"image/svg+xml", true},
		{"Image/PNG", true},
		{" image/webp", true},
		{"text/html", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := IsImageContentType(tt.contentType); got != tt.want {
				t.Errorf("IsImageContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestWriteEntry(t *testing.T) {
	entry := BuildEntry(200, http.Header{"Content-Type": []string{"application/json"}}, []byte(`{}`), false, time.Now(), time.Minute)
	w := httptest.NewRecorder()

	if err := WriteEntry(w, entry, entry.Status); err != nil {
		t.Fatalf("WriteEntry() error = %v", err)
	}

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	for _, h := range []string{"Content-Type", "Cache-Control", "ETag"} {
		if resp.Header.Get(h) != entry.Headers.Get(h) {
			t.Errorf("%s = %q, want %q", h, resp.Header.Get(h), entry.Headers.Get(h))
		}
	}
	if w.Body.String() != `{}` {
		t.Errorf("body = %q, want {}", w.Body.String())
	}
}

func TestWriteNotModified(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNotModified(w)

	if w.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body length = %d, want 0", w.Body.Len())
	}
}
