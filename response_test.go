package httpdispatch

import (
	"bytes"
	"testing"
	"time"
)

func TestResponseSerializeRoundTrip(t *testing.T) {
	resp := &Response{
		Bytes:          []byte("hello world"),
		Status:         200,
		Headers:        map[string][]string{"ETag": {"abc123"}},
		RequestID:      42,
		ResponseTimeMs: 17,
		CreatedAt:      time.Unix(1700000000, 0).UTC(),
		FromCache:      false,
	}
	data, err := resp.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := DeserializeResponse(data)
	if err != nil {
		t.Fatalf("DeserializeResponse: %v", err)
	}
	if !bytes.Equal(got.Bytes, resp.Bytes) {
		t.Fatalf("Bytes = %q, want %q", got.Bytes, resp.Bytes)
	}
	if got.Status != resp.Status || got.RequestID != resp.RequestID || got.ResponseTimeMs != resp.ResponseTimeMs {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if got.HeaderFirst("ETag") != "abc123" {
		t.Fatalf("HeaderFirst(ETag) = %q", got.HeaderFirst("ETag"))
	}
	if !got.CreatedAt.Equal(resp.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, resp.CreatedAt)
	}
}

func TestResponseSuccessful(t *testing.T) {
	cases := map[int]bool{200: true, 201: true, 204: false, 304: false, 500: false}
	for status, want := range cases {
		r := &Response{Status: status}
		if r.Successful() != want {
			t.Errorf("Status %d: Successful() = %v, want %v", status, r.Successful(), want)
		}
	}
}

func TestDeserializeResponseTruncated(t *testing.T) {
	if _, err := DeserializeResponse([]byte{0, 0}); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
