package httpdispatch

import "testing"

func TestNewRequestRejectsRelativeURI(t *testing.T) {
	if _, err := NewRequest(MethodGET, "/just/a/path", nil, nil, true); err == nil {
		t.Fatal("expected error for relative URI")
	}
}

func TestRequestIDInvariantAcrossRedirect(t *testing.T) {
	req, err := NewRequest(MethodGET, "https://example.com/a", nil, nil, true)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	id := req.ID()

	next := mustParseURL(t, "https://example.com/b")
	if !req.Redirect(next) {
		t.Fatal("Redirect to a new endpoint should succeed")
	}
	if req.ID() != id {
		t.Fatal("id must not change across redirects")
	}
	if req.CurrentURI().String() != next.String() {
		t.Fatalf("CurrentURI = %s, want %s", req.CurrentURI(), next)
	}
	if req.OriginalURI().String() == next.String() {
		t.Fatal("OriginalURI must remain the first endpoint")
	}
}

func TestRequestRedirectRejectsCycle(t *testing.T) {
	req, err := NewRequest(MethodGET, "https://example.com/a", nil, nil, true)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	b := mustParseURL(t, "https://example.com/b")
	if !req.Redirect(b) {
		t.Fatal("first redirect should succeed")
	}
	a := mustParseURL(t, "https://example.com/a")
	if req.Redirect(a) {
		t.Fatal("redirecting back to a visited endpoint must be rejected")
	}
	if len(req.EndpointHistory()) != 2 {
		t.Fatalf("EndpointHistory length = %d, want 2", len(req.EndpointHistory()))
	}
}
