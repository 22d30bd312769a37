package httpdispatch

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// retryAfterFloor is the minimum delay the worker loop ever sleeps for
// between retry-after checks (spec.md §4.5.2 step 5).
const retryAfterFloor = 20 * time.Millisecond

// Manager is the Work Manager (C8): queues, dedup, worker goroutine,
// concurrency limit, retry scheduling, redirect orchestration, and cache
// read/writeback. Per-manager state (the queues, cache handle, policies)
// lives in this single owning value — no package-level globals.
type Manager struct {
	cfg         Config
	cache       CacheProvider
	executor    Executor
	retryPolicy RetryPolicy
	promoter    PriorityPromoter
	logger      Logger
	metrics     *metrics
	now         func() time.Time

	mu      sync.Mutex
	waiting map[uint32]*Work
	active  map[uint32]*Work
	retry   map[uint32]*Work
	cancels map[uint32]context.CancelFunc

	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// ManagerOption customizes NewManager beyond its required collaborators.
type ManagerOption func(*Manager)

// WithLogger overrides the default no-op Logger.
func WithLogger(l Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithPrometheusRegisterer registers the Manager's metrics with a
// specific registerer instead of the default one.
func WithPrometheusRegisterer(r prometheus.Registerer) ManagerOption {
	return func(m *Manager) { m.metrics = newMetrics(r) }
}

// NewManager builds and starts a Manager. cache, executor, retryPolicy,
// and promoter are the capability interfaces spec.md §9 calls for; pass
// NewMemoryCache(), NewHTTPExecutor(cfg), DefaultRetryPolicy{}, and
// DefaultPromoter{Interval: cfg.PromotionInterval()} for the reference
// stack.
func NewManager(cfg Config, cache CacheProvider, executor Executor, retryPolicy RetryPolicy, promoter PriorityPromoter, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:         cfg,
		cache:       cache,
		executor:    executor,
		retryPolicy: retryPolicy,
		promoter:    promoter,
		logger:      NopLogger{},
		now:         time.Now,
		waiting:     make(map[uint32]*Work),
		active:      make(map[uint32]*Work),
		retry:       make(map[uint32]*Work),
		cancels:     make(map[uint32]context.CancelFunc),
		wakeCh:      make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = newMetrics(prometheus.DefaultRegisterer)
	}
	m.wg.Add(1)
	go m.runWorker()
	return m, nil
}

// Stop halts the worker loop and waits for in-flight attempts to finish.
// Queued and retrying Works are cancelled.
func (m *Manager) Stop() {
	m.mu.Lock()
	for _, w := range m.waiting {
		w.cancel()
	}
	for _, w := range m.retry {
		w.cancel()
	}
	m.waiting = make(map[uint32]*Work)
	m.retry = make(map[uint32]*Work)
	m.mu.Unlock()
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Manager) wake() {
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
}

func cacheKeyForID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Submit enqueues one unit of work per spec.md §4.5.1: dedup against the
// three internal queues, then a cache consult (unless DO_NOT_CACHE), then
// either a synthesized cached-result Work or a fresh network dispatch.
func (m *Manager) Submit(uri string, method Method, body []byte, headers map[string]string, idempotent bool, startPriority StartingPriority, cachePriority CachePriority, behavior CacheBehavior) (*Work, error) {
	req, err := NewRequest(method, uri, body, headers, idempotent)
	if err != nil {
		return nil, err
	}
	id := req.ID()
	now := m.now()

	m.mu.Lock()
	if existing, ok := m.findLocked(id); ok {
		m.mu.Unlock()
		m.logger.Debugf("submit dedup id=%d", id)
		return existing, nil
	}
	m.mu.Unlock()

	if behavior != CacheBehaviorDoNotCache {
		key := cacheKeyForID(id)
		entry, ok, cacheErr := m.cache.Get(key, true)
		if cacheErr != nil {
			m.logger.Warnf("cache get failed during submit id=%d: %v", id, cacheErr)
		}
		if cacheErr == nil && ok && !entry.StaleUseExceeded(now) {
			resp, derr := DeserializeResponse(entry.Bytes())
			if derr == nil {
				resp.FromCache = true
				resp.CreatedAt = now
				if entry.ETag != "" && resp.HeaderFirst("ETag") == "" {
					if resp.Headers == nil {
						resp.Headers = map[string][]string{}
					}
					resp.Headers["ETag"] = []string{entry.ETag}
				}
				m.metrics.observeCacheResult(cacheResultLabel(entry, now))
				priority := NewPriority(startPriority, now)
				w := NewCompletedWork(req, priority, cachePriority, behavior, resp)
				m.logger.Infof("submit cache hit id=%d stale=%v", id, entry.Expired(now))
				return w, nil
			}
		}
		m.logger.Debugf("submit cache miss id=%d", id)
		if behavior == CacheBehaviorGetOnlyFromCache {
			m.metrics.observeCacheResult("miss")
			priority := NewPriority(startPriority, now)
			w := NewFailedWork(req, priority, cachePriority, behavior, ErrGetOnlyFromCache)
			return w, nil
		}
		m.metrics.observeCacheResult("miss")
	}

	priority := NewPriority(startPriority, now)
	w := NewWork(req, priority, cachePriority, behavior)
	w.setState(StateWaiting)

	m.mu.Lock()
	m.waiting[id] = w
	m.updateQueueMetricsLocked()
	m.mu.Unlock()
	m.logger.Debugf("submit enqueued id=%d priority=%d", id, int(startPriority))
	m.wake()
	return w, nil
}

func cacheResultLabel(e *CacheEntry, now time.Time) string {
	if e.Expired(now) {
		return "stale_hit"
	}
	return "hit"
}

// findLocked searches waiting, active, then retry for id. Callers must
// hold m.mu.
func (m *Manager) findLocked(id uint32) (*Work, bool) {
	if w, ok := m.waiting[id]; ok {
		return w, true
	}
	if w, ok := m.active[id]; ok {
		return w, true
	}
	if w, ok := m.retry[id]; ok {
		return w, true
	}
	return nil, false
}

// Cancel cancels a queued, retrying, or in-flight Work by id.
func (m *Manager) Cancel(workID uint32, interruptInFlight bool) {
	m.mu.Lock()
	w, ok := m.findLocked(workID)
	if !ok || w.IsDone() {
		m.mu.Unlock()
		return
	}
	delete(m.waiting, workID)
	delete(m.retry, workID)
	if _, inActive := m.active[workID]; inActive {
		delete(m.active, workID)
		if interruptInFlight {
			if cancel, hasCancel := m.cancels[workID]; hasCancel {
				cancel()
			}
		}
	}
	m.updateQueueMetricsLocked()
	m.mu.Unlock()
	w.cancel()
	m.wake()
}

// SetDependent makes current depend on dep: dep must reach a terminal
// state before current is scheduled, and listener.OnCompleted decides
// whether current proceeds.
func (m *Manager) SetDependent(current, dep *Work, listener DependentListener) error {
	if err := current.SetDependent(dep, listener); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.waiting, current.ID())
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, _ = dep.Wait(context.Background())
		proceed := true
		if listener != nil {
			proceed = listener.OnCompleted(dep, current)
		}
		if !proceed {
			current.cancel()
			return
		}
		m.mu.Lock()
		current.setState(StateWaiting)
		m.waiting[current.ID()] = current
		m.updateQueueMetricsLocked()
		m.mu.Unlock()
		m.wake()
	}()
	return nil
}

// InvalidateCache forces the cache entry for workID to read as expired, by
// re-writing it with a zero TTL (so created_at + ttl < now immediately).
func (m *Manager) InvalidateCache(workID uint32) error {
	key := cacheKeyForID(workID)
	entry, ok, err := m.cache.Get(key, true)
	if err != nil {
		return &CacheError{Op: "get", Cause: err}
	}
	if !ok {
		return nil
	}
	zero := time.Duration(0)
	if err := m.cache.Add(key, entry.Bytes(), &zero, nil, entry.ETag, entry.SourceURI, entry.Priority); err != nil {
		return &CacheError{Op: "add", Cause: err}
	}
	return nil
}

// PurgeCache removes one entry (workID non-nil) or clears the whole store.
func (m *Manager) PurgeCache(workID *uint32) error {
	if workID == nil {
		if err := m.cache.RemoveAll(); err != nil {
			return &CacheError{Op: "remove_all", Cause: err}
		}
		return nil
	}
	if err := m.cache.Remove(cacheKeyForID(*workID)); err != nil {
		return &CacheError{Op: "remove", Cause: err}
	}
	return nil
}

// runWorker is the single dedicated goroutine driving the queue state
// machine (spec.md §4.5.2). It never holds m.mu across I/O.
func (m *Manager) runWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		m.mu.Lock()
		now := m.now()

		for id, w := range m.retry {
			if !w.retryAfter.After(now) {
				delete(m.retry, id)
				w.setState(StateWaiting)
				m.waiting[id] = w
			}
		}

		for _, w := range m.waiting {
			m.promoter.Promote(w.RequestPriority, now)
		}

		ordered := make([]*Work, 0, len(m.waiting))
		for _, w := range m.waiting {
			ordered = append(ordered, w)
		}
		sort.Slice(ordered, func(i, j int) bool {
			return priorityLess(ordered[i].RequestPriority, ordered[j].RequestPriority)
		})

		for len(m.active) < m.cfg.MaxConcurrency && len(ordered) > 0 {
			w := ordered[0]
			ordered = ordered[1:]
			delete(m.waiting, w.ID())
			m.active[w.ID()] = w
			w.setState(StateRunning)
			attemptCtx, cancel := context.WithCancel(context.Background())
			m.cancels[w.ID()] = cancel
			m.wg.Add(1)
			go m.runAttempt(attemptCtx, w)
		}

		wait := m.nextWakeLocked(now)
		m.updateQueueMetricsLocked()
		m.mu.Unlock()

		if wait <= 0 {
			select {
			case <-m.wakeCh:
			case <-m.stopCh:
				return
			}
			continue
		}
		select {
		case <-m.wakeCh:
		case <-time.After(wait):
		case <-m.stopCh:
			return
		}
	}
}

// nextWakeLocked computes the worker's next wake delay: the minimum
// retry-after across pending retries, floored at 20ms; zero if there's
// still dispatchable work; or -1 if no retries are pending. runWorker
// treats any non-positive result as "wait for a wake signal or Stop".
// Callers must hold m.mu.
func (m *Manager) nextWakeLocked(now time.Time) time.Duration {
	if len(m.waiting) > 0 && len(m.active) < m.cfg.MaxConcurrency {
		return 0
	}
	if len(m.retry) == 0 {
		return -1 // block indefinitely until woken or stopped
	}
	min := time.Duration(0)
	first := true
	for _, w := range m.retry {
		d := w.retryAfter.Sub(now)
		if first || d < min {
			min = d
			first = false
		}
	}
	if min < retryAfterFloor {
		min = retryAfterFloor
	}
	return min
}

func (m *Manager) updateQueueMetricsLocked() {
	m.metrics.setQueueDepth("waiting", len(m.waiting))
	m.metrics.setQueueDepth("active", len(m.active))
	m.metrics.setQueueDepth("retry", len(m.retry))
}

// runAttempt issues one HTTP attempt for w and applies the per-attempt
// completion rules (spec.md §4.5.3).
func (m *Manager) runAttempt(ctx context.Context, w *Work) {
	defer m.wg.Done()
	start := m.now()
	resp, err := m.executor.Execute(ctx, w.Request)
	m.completeAttempt(w, resp, err, start)
}

func (m *Manager) completeAttempt(w *Work, resp *Response, err error, attemptStart time.Time) {
	id := w.ID()
	m.mu.Lock()
	defer func() {
		delete(m.cancels, id)
		m.updateQueueMetricsLocked()
		m.mu.Unlock()
		m.wake()
	}()

	now := m.now()

	if w.IsDone() {
		// Cancelled while the attempt was in flight.
		delete(m.active, id)
		return
	}

	if err != nil {
		tErr, ok := err.(*TransportError)
		if !ok {
			tErr = &TransportError{Kind: TransportErrorUnknown, Cause: err}
		}
		shouldRetry, delay := m.retryPolicy.OnError(w.Request, tErr)
		delete(m.active, id)
		if shouldRetry {
			w.Request.RetryCountFailure++
			w.retryAfter = now.Add(delay)
			w.setState(StateRetrying)
			m.retry[id] = w
			m.metrics.observeRetry("failure")
			m.logger.Debugf("retry scheduled id=%d kind=failure count=%d delay=%s", id, w.Request.RetryCountFailure, delay)
		} else {
			w.complete(tErr)
			m.metrics.observeWorkDuration(now.Sub(w.RequestPriority.CreatedAt))
			m.logger.Warnf("work failed id=%d err=%v", id, tErr)
		}
		return
	}

	resp.RequestID = id

	shouldRetry, delay := m.retryPolicy.OnResponse(w.Request, resp)
	if shouldRetry {
		delete(m.active, id)
		w.Request.RetryCountResponse++
		w.retryAfter = now.Add(delay)
		w.setState(StateRetrying)
		m.retry[id] = w
		m.metrics.observeRetry("response")
		m.logger.Debugf("retry scheduled id=%d kind=response status=%d delay=%s", id, resp.Status, delay)
		return
	}

	if isRedirectStatus(resp.Status) && w.Request.RedirectCount < m.cfg.RedirectLimit {
		directives := ParseDirectives(resp, w.Request.CurrentURI())
		if directives.Location != nil && w.Request.Redirect(directives.Location) {
			delete(m.active, id)
			w.Request.RedirectCount++
			w.retryAfter = now
			w.setState(StateRedirecting)
			m.retry[id] = w
			m.metrics.observeRedirect()
			m.logger.Debugf("redirect id=%d -> %s", id, directives.Location)
			return
		}
		// Cycle rejected, or no Location header: fall through to terminal.
	}

	m.finishTerminalLocked(w, resp, now)
	delete(m.active, id)
	m.metrics.observeWorkDuration(now.Sub(w.RequestPriority.CreatedAt))
	m.logger.Debugf("work completed id=%d status=%d", id, resp.Status)
}

func isRedirectStatus(status int) bool {
	return status == 301 || status == 302 || status == 303
}

// finishTerminalLocked applies the 304/shouldCache rules and completes w.
// Callers must hold m.mu.
func (m *Manager) finishTerminalLocked(w *Work, resp *Response, now time.Time) {
	key := cacheKeyForID(w.ID())

	if resp.Status == 304 {
		entry, ok, err := m.cache.Get(key, true)
		if err == nil && ok {
			directives := ParseDirectives(resp, w.Request.CurrentURI())
			ttl, maxStale := entry.TTL, entry.MaxStale
			if directives.HasTTL {
				ttl = directives.TTL
			}
			if directives.MaxStale != nil {
				maxStale = directives.MaxStale
			}
			_ = m.cache.Add(key, entry.Bytes(), ttl, maxStale, entry.ETag, entry.SourceURI, entry.Priority)
			if cached, derr := DeserializeResponse(entry.Bytes()); derr == nil {
				cached.FromCache = true
				cached.CreatedAt = now
				w.addResponse(cached)
				w.complete(nil)
				return
			}
		}
		w.addResponse(resp)
		w.complete(nil)
		return
	}

	if m.shouldCache(w, resp) {
		directives := ParseDirectives(resp, w.Request.CurrentURI())
		serialized, err := resp.Serialize()
		if err != nil {
			m.logger.Errorf("response serialize failed id=%d: %v", w.ID(), err)
		} else {
			ttl := directives.TTL
			maxStale := directives.MaxStale
			if maxStale == nil {
				zero := time.Duration(0)
				maxStale = &zero
			}
			if addErr := m.cache.Add(key, serialized, ttl, maxStale, directives.ETag, w.Request.OriginalURI().String(), w.CachePriority); addErr != nil {
				m.logger.Warnf("cache add failed id=%d: %v", w.ID(), addErr)
			} else if trimErr := m.cache.TrimLRU(m.cfg.CacheCapacity); trimErr != nil {
				m.logger.Warnf("cache trim failed: %v", trimErr)
			}
		}
	}

	w.addResponse(resp)
	w.complete(nil)
}

// shouldCache implements spec.md §4.5.3's shouldCache() evaluation.
func (m *Manager) shouldCache(w *Work, resp *Response) bool {
	if w.Behavior == CacheBehaviorDoNotCache {
		return false
	}
	directives := ParseDirectives(resp, w.Request.CurrentURI())
	if w.Behavior == CacheBehaviorServerDirectedCache && !directives.HasTTL {
		return false
	}
	if directives.NoCache {
		return false
	}
	return resp.Successful()
}
