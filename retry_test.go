package httpdispatch

import (
	"testing"
	"time"
)

func TestDefaultRetryPolicyOnErrorRequiresIdempotent(t *testing.T) {
	req, _ := NewRequest(MethodPOST, "https://example.com/a", nil, nil, false)
	shouldRetry, _ := DefaultRetryPolicy{}.OnError(req, &TransportError{Kind: TransportErrorTimeout})
	if shouldRetry {
		t.Fatal("a non-idempotent request must never be retried on transport error")
	}
}

func TestDefaultRetryPolicyOnErrorRespectsBudget(t *testing.T) {
	req, _ := NewRequest(MethodGET, "https://example.com/a", nil, nil, true)
	req.RetryCountFailure = maxRetryCount
	shouldRetry, _ := DefaultRetryPolicy{}.OnError(req, &TransportError{Kind: TransportErrorTimeout})
	if shouldRetry {
		t.Fatal("retry budget exhausted should stop retries")
	}
}

func TestDefaultRetryPolicyOnErrorSkipsNonTransient(t *testing.T) {
	req, _ := NewRequest(MethodGET, "https://example.com/a", nil, nil, true)
	shouldRetry, _ := DefaultRetryPolicy{}.OnError(req, &TransportError{Kind: TransportErrorTLSCertificate})
	if shouldRetry {
		t.Fatal("a non-transient transport error should not be retried")
	}
}

func TestDefaultRetryPolicyOnResponseHonorsRetryAfter(t *testing.T) {
	req, _ := NewRequest(MethodGET, "https://example.com/a", nil, nil, true)
	resp := &Response{Status: 503, Headers: map[string][]string{"Retry-After": {"42"}}}
	shouldRetry, delay := DefaultRetryPolicy{}.OnResponse(req, resp)
	if !shouldRetry {
		t.Fatal("503 should be retried")
	}
	if delay != 42*time.Second {
		t.Fatalf("delay = %v, want 42s", delay)
	}
}

func TestDefaultRetryPolicyOnResponseIgnoresOtherStatuses(t *testing.T) {
	req, _ := NewRequest(MethodGET, "https://example.com/a", nil, nil, true)
	resp := &Response{Status: 200}
	if shouldRetry, _ := DefaultRetryPolicy{}.OnResponse(req, resp); shouldRetry {
		t.Fatal("200 should never be retried")
	}
}
