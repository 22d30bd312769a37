package httpdispatch

import (
	"net/url"
	"testing"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestFingerprintStableAcrossQueryOrder(t *testing.T) {
	a := mustParseURL(t, "https://example.com/path?b=2&a=1")
	b := mustParseURL(t, "https://example.com/path?a=1&b=2")
	if fingerprint(a, nil) != fingerprint(b, nil) {
		t.Fatal("fingerprint should not depend on query parameter order")
	}
}

func TestFingerprintDiffersOnBody(t *testing.T) {
	u := mustParseURL(t, "https://example.com/path")
	if fingerprint(u, []byte("one")) == fingerprint(u, []byte("two")) {
		t.Fatal("different bodies should yield different fingerprints")
	}
}

func TestFingerprintCaseInsensitiveSchemeHost(t *testing.T) {
	a := mustParseURL(t, "HTTPS://Example.COM/path")
	b := mustParseURL(t, "https://example.com/path")
	if fingerprint(a, nil) != fingerprint(b, nil) {
		t.Fatal("fingerprint should be case-insensitive on scheme and host")
	}
}

func TestFingerprintDiffersOnPort(t *testing.T) {
	a := mustParseURL(t, "https://example.com:8443/path")
	b := mustParseURL(t, "https://example.com:9443/path")
	if fingerprint(a, nil) == fingerprint(b, nil) {
		t.Fatal("different ports should yield different fingerprints")
	}
}
