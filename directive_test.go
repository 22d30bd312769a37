package httpdispatch

import (
	"testing"
	"time"
)

func TestParseDirectivesMaxAgeAndETag(t *testing.T) {
	resp := &Response{Headers: map[string][]string{
		"Cache-Control": {"max-age=120"},
		"ETag":          {"\"abc\""},
	}}
	d := ParseDirectives(resp, mustParseURL(t, "https://example.com/a"))
	if !d.HasTTL || d.TTL == nil || *d.TTL != 120*time.Second {
		t.Fatalf("TTL = %v, HasTTL = %v", d.TTL, d.HasTTL)
	}
	if d.ETag != "\"abc\"" {
		t.Fatalf("ETag = %q", d.ETag)
	}
}

func TestParseDirectivesNoCache(t *testing.T) {
	resp := &Response{Headers: map[string][]string{"Cache-Control": {"no-cache"}}}
	d := ParseDirectives(resp, mustParseURL(t, "https://example.com/a"))
	if !d.NoCache {
		t.Fatal("expected NoCache = true")
	}
}

func TestParseDirectivesMaxStale(t *testing.T) {
	resp := &Response{Headers: map[string][]string{"Cache-Control": {"max-age=60, max-stale=30"}}}
	d := ParseDirectives(resp, mustParseURL(t, "https://example.com/a"))
	if d.MaxStale == nil || *d.MaxStale != 30*time.Second {
		t.Fatalf("MaxStale = %v", d.MaxStale)
	}
}

func TestResolveLocationAbsolute(t *testing.T) {
	req := mustParseURL(t, "https://example.com/a?x=1")
	d := resolveLocation("https://other.com/b", req)
	if d.String() != "https://other.com/b" {
		t.Fatalf("got %s", d)
	}
}

func TestResolveLocationRootRelative(t *testing.T) {
	req := mustParseURL(t, "https://example.com/a?x=1")
	d := resolveLocation("/newpath#frag", req)
	want := "https://example.com/newpath?x=1#frag"
	if d.String() != want {
		t.Fatalf("resolveLocation = %s, want %s", d, want)
	}
}

func TestResolveLocationOtherRelative(t *testing.T) {
	req := mustParseURL(t, "https://example.com/dir/a")
	d := resolveLocation("sibling", req)
	want := "https://example.com/dir/sibling"
	if d.String() != want {
		t.Fatalf("resolveLocation = %s, want %s", d, want)
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	now := time.Unix(1700000000, 0)
	d := parseRetryAfter("120", now)
	if d == nil || *d != 120*time.Second {
		t.Fatalf("parseRetryAfter(seconds) = %v", d)
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	now := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	future := now.Add(30 * time.Second).Format(time.RFC1123)
	d := parseRetryAfter(future, now)
	if d == nil {
		t.Fatal("expected parsed duration for RFC1123 date")
	}
	if *d < 29*time.Second || *d > 31*time.Second {
		t.Fatalf("parseRetryAfter(date) = %v, want ~30s", *d)
	}
}

func TestParseRetryAfterInvalid(t *testing.T) {
	if d := parseRetryAfter("not-a-value", time.Now()); d != nil {
		t.Fatalf("expected nil for invalid Retry-After, got %v", d)
	}
}
