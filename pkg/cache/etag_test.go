package cache

import (
	"regexp"
	"testing"
)

var weakETagPattern = regexp.MustCompile(`^W/"[0-9a-f]{40}"$`)

func TestWeakETag_Format(t *testing.T) {
	got := WeakETag([]byte(`{"name":"Luke Skywalker"}`))
	if !weakETagPattern.MatchString(got) {
		t.Errorf("WeakETag() = %q, want W/\"<40 hex chars>\"", got)
	}
}

func TestWeakETag_Deterministic(t *testing.T) {
	body := []byte(`{"name":"Luke Skywalker"}`)

	first := WeakETag(body)
	second := WeakETag(append([]byte(nil), body...))
	if first != second {
		t.Errorf("same body produced different validators: %q vs %q", first, second)
	}

	other := WeakETag([]byte(`{"name":"Leia Organa"}`))
	if other == first {
		t.Error("different bodies produced the same validator")
	}
}

func TestWeakETag_EmptyBody(t *testing.T) {
	// sha1 of the empty string
	want := `W/"da39a3ee5e6b4b0d3255bfef95601890afd80709"`
	if got := WeakETag(nil); got != want {
		t.Errorf("WeakETag(nil) = %q, want %q", got, want)
	}
}

func TestResolveETag(t *testing.T) {
	body := []byte("payload")

	if got := ResolveETag(`"upstream-1"`, body); got != `"upstream-1"` {
		t.Errorf("ResolveETag() = %q, want upstream validator", got)
	}
	if got := ResolveETag("", body); got != WeakETag(body) {
		t.Errorf("ResolveETag() = %q, want derived validator %q", got, WeakETag(body))
	}
}
