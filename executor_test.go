package httpdispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPExecutorExecuteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", "\"v1\"")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	executor := NewHTTPExecutor(cfg)
	req, err := NewRequest(MethodGET, srv.URL+"/path", nil, nil, true)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := executor.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	if string(resp.Bytes) != "hello" {
		t.Fatalf("Bytes = %q", resp.Bytes)
	}
	if resp.HeaderFirst("ETag") != "\"v1\"" {
		t.Fatalf("ETag = %q", resp.HeaderFirst("ETag"))
	}
}

func TestHTTPExecutorDoesNotFollowRedirectsByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/other")
		w.WriteHeader(302)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	executor := NewHTTPExecutor(cfg)
	req, err := NewRequest(MethodGET, srv.URL+"/start", nil, nil, true)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := executor.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Status != 302 {
		t.Fatalf("Status = %d, want 302 (redirect surfaced to caller, not followed)", resp.Status)
	}
	if resp.HeaderFirst("Location") != "/other" {
		t.Fatalf("Location = %q", resp.HeaderFirst("Location"))
	}
}
