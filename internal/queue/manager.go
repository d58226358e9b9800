package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/IshaanNene/MediaGoat/internal/observability"
	"github.com/IshaanNene/MediaGoat/internal/types"
)

// rateLimitPenalty is the spacing forced onto a host that rate-limits us
// before we have seen a single success. retryPenaltyCeiling caps the
// multiplicative penalty for hosts that rate-limit later on.
const (
	rateLimitPenalty    = 10 * time.Second
	retryPenaltyCeiling = 30 * time.Second
	drainPollInterval   = 100 * time.Millisecond
)

// Executor performs a single HTTP request. The HTTP fetcher implements it;
// tests substitute stubs.
type Executor interface {
	Execute(ctx context.Context, rawURL string, opts types.RequestOptions) (*types.Response, error)
}

// Options enumerate the queue's tuning knobs. See config.QueueConfig for the
// externally loaded form.
type Options struct {
	// BaseWaitOnRetry is the retry delay base; attempt N waits about
	// base × (N+1), jittered.
	BaseWaitOnRetry time.Duration

	// DefaultRequestInterval seeds each new host's spacing.
	DefaultRequestInterval time.Duration

	// MaxConcurrentPerDomain caps in-flight requests per host.
	MaxConcurrentPerDomain int

	// MaxRequestInterval and MinRequestInterval clamp adaptive spacing.
	MaxRequestInterval time.Duration
	MinRequestInterval time.Duration

	// MaxRetries bounds retries per request. 0 disables retry entirely.
	MaxRetries int

	// MinExpectedResponseTime divides "fast" responses from "slow" ones
	// when adapting spacing.
	MinExpectedResponseTime time.Duration

	// RetryableStatusCodes are the HTTP statuses worth retrying.
	RetryableStatusCodes []int
}

// DefaultRetryableStatusCodes are used when Options carries none.
var DefaultRetryableStatusCodes = []int{429, 408, 502, 503, 504}

// Manager partitions outbound requests by remote host, enforcing per-host
// concurrency and inter-request spacing. Spacing adapts to observed response
// latencies and errors, so a slow or rate-limiting host is backed off without
// stalling the rest of the run.
type Manager struct {
	opts      Options
	exec      Executor
	logger    *slog.Logger
	metrics   *observability.Metrics
	retryable map[int]struct{}

	mu    sync.RWMutex
	hosts map[string]*hostState
}

// pendingRequest bridges enqueue and dispatch. done is a one-shot reply
// channel; buffering guarantees the dispatcher never blocks on delivery.
type pendingRequest struct {
	ctx  context.Context
	url  string
	opts types.RequestOptions
	done chan result
}

type result struct {
	resp *types.Response
	err  error
}

// hostState unifies the per-host queue, adaptive spacing state, and active
// counter behind one mutex, so dispatch decisions are race-free per host.
type hostState struct {
	mu                sync.Mutex
	pending           []*pendingRequest
	active            int
	minInterval       time.Duration
	lastRequest       time.Time
	successes         int
	errors            int
	consecutiveErrors int
}

// NewManager creates a queue manager executing requests through exec.
// metrics may be nil.
func NewManager(opts Options, exec Executor, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	codes := opts.RetryableStatusCodes
	if len(codes) == 0 {
		codes = DefaultRetryableStatusCodes
	}
	retryable := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		retryable[code] = struct{}{}
	}

	return &Manager{
		opts:      opts,
		exec:      exec,
		logger:    logger.With("component", "request_queue"),
		metrics:   metrics,
		retryable: retryable,
		hosts:     make(map[string]*hostState),
	}
}

// QueueRequest appends a request to its host's FIFO and blocks until the
// request finally succeeds or permanently fails. A URL without a resolvable
// host is rejected immediately.
func (m *Manager) QueueRequest(ctx context.Context, rawURL string, opts types.RequestOptions) (*types.Response, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return nil, err
	}

	st := m.host(host)
	pr := &pendingRequest{
		ctx:  ctx,
		url:  rawURL,
		opts: opts,
		done: make(chan result, 1),
	}

	st.mu.Lock()
	st.pending = append(st.pending, pr)
	st.mu.Unlock()

	go m.dispatch(host, st)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-pr.done:
		return r.resp, r.err
	}
}

// AreAllQueuesEmpty reports whether every per-host queue is empty. In-flight
// requests do not count; see WaitForAllQueues for the full drain barrier.
func (m *Manager) AreAllQueuesEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.hosts {
		st.mu.Lock()
		n := len(st.pending)
		st.mu.Unlock()
		if n > 0 {
			return false
		}
	}
	return true
}

// WaitForAllQueues polls until every per-host queue is empty and no request
// is in flight, then returns. This is the orchestrator's termination barrier.
func (m *Manager) WaitForAllQueues(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		if m.AreAllQueuesEmpty() && m.activeTotal() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// HostSnapshot is a copy of one host's adaptive state, for inspection.
type HostSnapshot struct {
	MinInterval       time.Duration
	Active            int
	Pending           int
	Successes         int
	Errors            int
	ConsecutiveErrors int
}

// Snapshot returns the state of host, if it has been seen.
func (m *Manager) Snapshot(host string) (HostSnapshot, bool) {
	m.mu.RLock()
	st, ok := m.hosts[host]
	m.mu.RUnlock()
	if !ok {
		return HostSnapshot{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return HostSnapshot{
		MinInterval:       st.minInterval,
		Active:            st.active,
		Pending:           len(st.pending),
		Successes:         st.successes,
		Errors:            st.errors,
		ConsecutiveErrors: st.consecutiveErrors,
	}, true
}

// host returns the lazily created state for a host.
func (m *Manager) host(host string) *hostState {
	m.mu.RLock()
	st, ok := m.hosts[host]
	m.mu.RUnlock()
	if ok {
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok = m.hosts[host]; ok {
		return st
	}
	st = &hostState{minInterval: m.opts.DefaultRequestInterval}
	m.hosts[host] = st
	return st
}

// dispatch attempts to release the next queued request for host. It is
// invoked on enqueue and after each completion; when spacing or concurrency
// blocks release, a timer re-invokes it.
func (m *Manager) dispatch(host string, st *hostState) {
	st.mu.Lock()

	if st.active >= m.opts.MaxConcurrentPerDomain {
		st.mu.Unlock()
		return
	}

	now := time.Now()
	if !st.lastRequest.IsZero() {
		if delta := now.Sub(st.lastRequest); delta < st.minInterval {
			// The jitter desynchronizes dispatchers across hosts.
			wait := time.Duration(float64(st.minInterval-delta) * dispatchJitter())
			st.mu.Unlock()
			time.AfterFunc(wait, func() { m.dispatch(host, st) })
			return
		}
	}

	if len(st.pending) == 0 {
		st.mu.Unlock()
		return
	}
	pr := st.pending[0]
	st.pending = st.pending[1:]
	st.active++
	st.lastRequest = now
	st.mu.Unlock()

	go m.run(host, st, pr)
}

// run executes one released request, adapts the host's spacing from the
// outcome, and delivers the result to the completion sink exactly once.
func (m *Manager) run(host string, st *hostState, pr *pendingRequest) {
	defer func() {
		st.mu.Lock()
		st.active--
		st.mu.Unlock()
		// Jittered re-dispatch avoids a thundering herd after drain events.
		time.AfterFunc(time.Duration(rand.Int63n(int64(time.Second))), func() {
			m.dispatch(host, st)
		})
	}()

	if m.metrics != nil {
		m.metrics.RequestsTotal.Add(1)
	}

	start := time.Now()
	resp, err := m.requestWithRetry(pr.ctx, st, pr.url, pr.opts, 0)
	responseTime := time.Since(start)

	st.mu.Lock()
	if err == nil {
		st.successes++
		if st.consecutiveErrors > 0 {
			st.consecutiveErrors--
		}
		m.adaptOnSuccess(st, responseTime)
	} else {
		st.errors++
		st.consecutiveErrors++
		m.adaptOnError(host, st, types.StatusCode(err))
		if m.metrics != nil {
			m.metrics.RequestsFailed.Add(1)
		}
	}
	st.mu.Unlock()

	pr.done <- result{resp: resp, err: err}
}

// adaptOnSuccess nudges spacing down after fast responses and up after slow
// ones. Called with st.mu held.
func (m *Manager) adaptOnSuccess(st *hostState, responseTime time.Duration) {
	if responseTime <= m.opts.MinExpectedResponseTime {
		// The jittered configured minimum acts as a floor: spacing decays
		// 5% per fast response but never dives under it.
		floor := time.Duration(float64(m.opts.MinRequestInterval) * adaptJitter())
		next := time.Duration(float64(st.minInterval) * 0.95)
		st.minInterval = maxDuration(floor, next)
		return
	}
	ceiling := time.Duration(float64(m.opts.MaxRequestInterval) * adaptJitter())
	next := time.Duration(float64(st.minInterval) * 1.10)
	st.minInterval = minDuration(ceiling, next)
}

// adaptOnError penalizes spacing after failures. A rate-limit status on a
// host with zero successes means we hit an unknown limit on first contact,
// so spacing jumps straight to the penalty value. Called with st.mu held.
func (m *Manager) adaptOnError(host string, st *hostState, statusCode int) {
	switch {
	case m.isRetryableStatus(statusCode):
		m.penalizeSpacing(st)
		m.logger.Warn("host rate-limit penalty",
			"host", host,
			"status", statusCode,
			"min_interval", st.minInterval,
		)
	case st.consecutiveErrors >= 2:
		st.minInterval = minDuration(m.opts.MaxRequestInterval, st.minInterval*2)
	case st.errors > 0 && st.successes == 0:
		st.minInterval = minDuration(m.opts.MaxRequestInterval, time.Duration(float64(st.minInterval)*1.5))
	}
}

// penalizeSpacing applies the rate-limit spacing penalty. A host that
// rate-limits before its first success jumps straight to the flat penalty;
// otherwise spacing triples up to the ceiling. Called with st.mu held.
func (m *Manager) penalizeSpacing(st *hostState) {
	if st.successes == 0 {
		st.minInterval = rateLimitPenalty
	} else {
		st.minInterval = minDuration(retryPenaltyCeiling, st.minInterval*3)
	}
	if m.metrics != nil {
		m.metrics.RatePenalties.Add(1)
	}
}

// requestWithRetry performs the request, retrying retryable statuses with
// jittered multiplicative backoff. Retries happen inside the dispatch slot;
// they never re-enter the per-host queue. Each retried attempt penalizes the
// host's spacing, so the post-retry release rate already reflects the limit
// we just hit.
func (m *Manager) requestWithRetry(ctx context.Context, st *hostState, rawURL string, opts types.RequestOptions, attempt int) (*types.Response, error) {
	resp, err := m.exec.Execute(ctx, rawURL, opts)
	if err == nil {
		return resp, nil
	}

	statusCode := types.StatusCode(err)
	if m.isRetryableStatus(statusCode) && attempt < m.opts.MaxRetries {
		st.mu.Lock()
		m.penalizeSpacing(st)
		st.mu.Unlock()

		wait := time.Duration(float64(m.opts.BaseWaitOnRetry) * float64(attempt+1) * dispatchJitter())
		m.logger.Warn("retrying request",
			"url", rawURL,
			"status", statusCode,
			"attempt", attempt+1,
			"max_retries", m.opts.MaxRetries,
			"wait", wait,
		)
		if m.metrics != nil {
			m.metrics.RequestsRetried.Add(1)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		return m.requestWithRetry(ctx, st, rawURL, opts, attempt+1)
	}

	return nil, err
}

func (m *Manager) isRetryableStatus(statusCode int) bool {
	_, ok := m.retryable[statusCode]
	return ok
}

func (m *Manager) activeTotal() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, st := range m.hosts {
		st.mu.Lock()
		total += st.active
		st.mu.Unlock()
	}
	return total
}

// hostOf extracts the rate-limit partition key from a URL.
func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", types.ErrInvalidURL, rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", types.ErrInvalidURL, rawURL)
	}
	return host, nil
}

// dispatchJitter returns a multiplicative factor in [1.15, 1.50).
func dispatchJitter() float64 {
	return 1 + 0.15 + rand.Float64()*0.35
}

// adaptJitter returns a multiplicative factor in [1.15, 1.70).
func adaptJitter() float64 {
	return 1 + 0.15 + rand.Float64()*0.55
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
