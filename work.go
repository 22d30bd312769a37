package httpdispatch

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// WorkState is a Work's position in its lifecycle. Terminal states are
// Completed and Cancelled.
type WorkState int32

const (
	StateCreated WorkState = iota
	StateWaiting
	StateRunning
	StateRetrying
	StateRedirecting
	StateCompleted
	StateCancelled
)

func (s WorkState) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateRunning:
		return "RUNNING"
	case StateRetrying:
		return "RETRYING"
	case StateRedirecting:
		return "REDIRECTING"
	case StateCompleted:
		return "COMPLETED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "CREATED"
	}
}

// CacheBehavior is the per-submission policy controlling cache consultation
// and writeback.
type CacheBehavior int

const (
	CacheBehaviorNormal CacheBehavior = iota
	CacheBehaviorDoNotCache
	CacheBehaviorGetOnlyFromCache
	CacheBehaviorServerDirectedCache
)

// DependentListener is notified when a Work's dependency reaches a
// terminal state. Returning false cancels the dependent Work (with a nil
// result) instead of letting it proceed to scheduling.
type DependentListener interface {
	OnCompleted(dep, current *Work) bool
}

// Work is a submission plus its scheduling metadata and result waiter. Two
// Works are equal iff their Request ids are equal.
type Work struct {
	Request         *Request
	RequestPriority *Priority
	CachePriority   CachePriority
	Behavior        CacheBehavior

	state int32 // atomic WorkState

	mu         sync.Mutex
	responses  []*Response // the terminal (or cache-synthesized) response, in recording order
	err        error
	retryAfter time.Time

	dependent         *Work
	dependentListener DependentListener

	done       chan struct{}
	closeOnce  sync.Once
}

// NewWork builds a Work in the CREATED state for req.
func NewWork(req *Request, reqPriority *Priority, cachePriority CachePriority, behavior CacheBehavior) *Work {
	return &Work{
		Request:         req,
		RequestPriority: reqPriority,
		CachePriority:   cachePriority,
		Behavior:        behavior,
		state:           int32(StateCreated),
		done:            make(chan struct{}),
	}
}

// NewCompletedWork builds a Work that is already in the COMPLETED state
// with resp pre-populated — the "cached-result Work" design: rather than a
// distinct type hierarchy, Wait on it returns immediately.
func NewCompletedWork(req *Request, reqPriority *Priority, cachePriority CachePriority, behavior CacheBehavior, resp *Response) *Work {
	w := NewWork(req, reqPriority, cachePriority, behavior)
	if resp != nil {
		w.responses = append(w.responses, resp)
	}
	w.state = int32(StateCompleted)
	close(w.done)
	return w
}

// NewFailedWork builds a Work that is already COMPLETED with err recorded —
// used when a submission can be resolved to a terminal error without ever
// reaching the worker loop (e.g. CacheBehaviorGetOnlyFromCache with no
// usable entry).
func NewFailedWork(req *Request, reqPriority *Priority, cachePriority CachePriority, behavior CacheBehavior, err error) *Work {
	w := NewWork(req, reqPriority, cachePriority, behavior)
	w.err = err
	w.state = int32(StateCompleted)
	close(w.done)
	return w
}

// ID returns the underlying Request's fingerprint.
func (w *Work) ID() uint32 { return w.Request.ID() }

// Equal reports whether two Works share the same Request identity.
func (w *Work) Equal(o *Work) bool {
	if w == nil || o == nil {
		return w == o
	}
	return w.ID() == o.ID()
}

// State returns the current lifecycle state. Safe to call without holding
// any external lock — the state is itself an atomic.
func (w *Work) State() WorkState {
	return WorkState(atomic.LoadInt32(&w.state))
}

func (w *Work) setState(s WorkState) {
	atomic.StoreInt32(&w.state, int32(s))
}

// IsDone reports whether the Work has reached a terminal state.
func (w *Work) IsDone() bool {
	s := w.State()
	return s == StateCompleted || s == StateCancelled
}

// IsCancelled reports whether the Work's terminal state is CANCELLED.
func (w *Work) IsCancelled() bool {
	return w.State() == StateCancelled
}

// addResponse records one attempt's result and advances the Work toward a
// state transition the Manager will apply immediately afterward.
func (w *Work) addResponse(resp *Response) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.responses = append(w.responses, resp)
}

// latestResponse returns the newest recorded Response, compared by
// CreatedAt, or nil if none was ever recorded.
func (w *Work) latestResponse() *Response {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.responses) == 0 {
		return nil
	}
	sorted := append([]*Response(nil), w.responses...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
	return sorted[len(sorted)-1]
}

// complete transitions the Work to COMPLETED, optionally recording a
// terminal error (e.g. a retry-exhausted TransportError), and releases all
// waiters.
func (w *Work) complete(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
	w.setState(StateCompleted)
	w.signalDone()
}

// cancel transitions the Work to CANCELLED and releases all waiters with
// ErrCancelled. It is idempotent.
func (w *Work) cancel() {
	if w.IsDone() {
		return
	}
	w.mu.Lock()
	w.err = ErrCancelled
	w.mu.Unlock()
	w.setState(StateCancelled)
	w.signalDone()
}

func (w *Work) signalDone() {
	w.closeOnce.Do(func() { close(w.done) })
}

// Wait blocks until the Work reaches a terminal state, then returns the
// newest Response produced across all attempts (or nil if none), or
// re-raises the recorded error. ctx may cancel the wait itself without
// affecting the Work's own lifecycle — a Work's wait is a hint, not a
// cancellation signal (per spec.md §5, callers should use Manager.Cancel
// for that).
func (w *Work) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-w.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	w.mu.Lock()
	err := w.err
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return w.latestResponse(), nil
}

// SetDependent makes w depend on dep: dep must run to terminal state
// before w is scheduled, and listener.OnCompleted(dep, w) decides whether
// w proceeds (true) or is cancelled with a nil result (false). Cycles are
// rejected.
func (w *Work) SetDependent(dep *Work, listener DependentListener) error {
	if dep == nil {
		return nil
	}
	for cur := dep; cur != nil; cur = cur.dependent {
		if cur.Equal(w) {
			return ErrCyclicDependency
		}
	}
	w.dependent = dep
	w.dependentListener = listener
	return nil
}
