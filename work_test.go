package httpdispatch

import (
	"context"
	"testing"
	"time"
)

func newTestWork(t *testing.T, uri string) *Work {
	t.Helper()
	req, err := NewRequest(MethodGET, uri, nil, nil, true)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	priority := NewPriority(PriorityMedium, time.Now())
	return NewWork(req, priority, CachePriorityNormal, CacheBehaviorNormal)
}

func TestWorkCompleteReleasesWaiters(t *testing.T) {
	w := newTestWork(t, "https://example.com/a")
	resp := &Response{Status: 200, Bytes: []byte("ok"), CreatedAt: time.Now()}

	go func() {
		w.addResponse(resp)
		w.complete(nil)
	}()

	got, err := w.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got.Status != 200 {
		t.Fatalf("Status = %d, want 200", got.Status)
	}
	if !w.IsDone() {
		t.Fatal("Work should be done after complete")
	}
}

func TestWorkCancelIsIdempotentAndReleasesWaiters(t *testing.T) {
	w := newTestWork(t, "https://example.com/a")
	w.cancel()
	w.cancel() // must not panic or double-close done

	_, err := w.Wait(context.Background())
	if err != ErrCancelled {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if !w.IsCancelled() {
		t.Fatal("IsCancelled should be true")
	}
}

func TestWorkLatestResponseIsNewest(t *testing.T) {
	w := newTestWork(t, "https://example.com/a")
	old := &Response{Status: 500, CreatedAt: time.Unix(100, 0)}
	newer := &Response{Status: 200, CreatedAt: time.Unix(200, 0)}
	w.addResponse(old)
	w.addResponse(newer)
	got := w.latestResponse()
	if got.Status != 200 {
		t.Fatalf("latestResponse().Status = %d, want 200 (newest)", got.Status)
	}
}

func TestWorkWaitRespectsContextCancellation(t *testing.T) {
	w := newTestWork(t, "https://example.com/a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Wait(ctx); err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestWorkSetDependentRejectsCycle(t *testing.T) {
	a := newTestWork(t, "https://example.com/a")
	b := newTestWork(t, "https://example.com/b")

	if err := b.SetDependent(a, nil); err != nil {
		t.Fatalf("SetDependent: %v", err)
	}
	if err := a.SetDependent(b, nil); err != ErrCyclicDependency {
		t.Fatalf("err = %v, want ErrCyclicDependency", err)
	}
}
