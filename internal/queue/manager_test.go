package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IshaanNene/MediaGoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		BaseWaitOnRetry:         10 * time.Millisecond,
		DefaultRequestInterval:  time.Millisecond,
		MaxConcurrentPerDomain:  2,
		MaxRequestInterval:      time.Second,
		MinRequestInterval:      time.Millisecond,
		MaxRetries:              3,
		MinExpectedResponseTime: 50 * time.Millisecond,
		RetryableStatusCodes:    []int{429, 408, 502, 503, 504},
	}
}

// stubExecutor scripts responses per call and records observed concurrency.
type stubExecutor struct {
	mu       sync.Mutex
	urls     []string
	statuses []int // status per attempt; 200 means success; empty means always 200

	calls      atomic.Int64
	active     atomic.Int64
	maxActive  atomic.Int64
	delay      time.Duration
	gate       chan struct{} // when non-nil, Execute blocks until closed
	bodyByURL  map[string][]byte
	defaultRsp []byte
}

func (s *stubExecutor) Execute(ctx context.Context, rawURL string, opts types.RequestOptions) (*types.Response, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		prev := s.maxActive.Load()
		if n <= prev || s.maxActive.CompareAndSwap(prev, n) {
			break
		}
	}

	if s.gate != nil {
		<-s.gate
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	call := int(s.calls.Add(1)) - 1
	s.mu.Lock()
	s.urls = append(s.urls, rawURL)
	s.mu.Unlock()

	status := 200
	if call < len(s.statuses) {
		status = s.statuses[call]
	}
	if status != 200 {
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: status,
			Err:        errors.New("scripted failure"),
		}
	}

	body := s.defaultRsp
	if b, ok := s.bodyByURL[rawURL]; ok {
		body = b
	}
	return &types.Response{StatusCode: 200, Body: body}, nil
}

func (s *stubExecutor) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}

func TestQueueRequestInvalidURL(t *testing.T) {
	m := NewManager(testOptions(), &stubExecutor{}, testLogger(), nil)

	cases := []string{
		"http://",
		"not-a-url",
		"://missing-scheme",
	}
	for _, rawURL := range cases {
		_, err := m.QueueRequest(context.Background(), rawURL, types.RequestOptions{})
		if !errors.Is(err, types.ErrInvalidURL) {
			t.Errorf("QueueRequest(%q): expected ErrInvalidURL, got %v", rawURL, err)
		}
	}
}

func TestQueueRequestSuccess(t *testing.T) {
	exec := &stubExecutor{defaultRsp: []byte("payload")}
	m := NewManager(testOptions(), exec, testLogger(), nil)

	resp, err := m.QueueRequest(context.Background(), "http://cdn.example.com/a.png", types.RequestOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "payload" {
		t.Errorf("expected payload body, got %q", resp.Body)
	}

	snap, ok := m.Snapshot("cdn.example.com")
	if !ok {
		t.Fatal("expected host state for cdn.example.com")
	}
	if snap.Successes != 1 || snap.Errors != 0 {
		t.Errorf("expected 1 success 0 errors, got %+v", snap)
	}
}

func TestDispatchFIFOPerHost(t *testing.T) {
	opts := testOptions()
	opts.MaxConcurrentPerDomain = 1
	gate := make(chan struct{})
	exec := &stubExecutor{gate: gate}
	m := NewManager(opts, exec, testLogger(), nil)

	urls := []string{
		"http://one.example.com/a",
		"http://one.example.com/b",
		"http://one.example.com/c",
		"http://one.example.com/d",
	}

	var wg sync.WaitGroup
	enqueue := func(u string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.QueueRequest(context.Background(), u, types.RequestOptions{}); err != nil {
				t.Errorf("QueueRequest(%q): %v", u, err)
			}
		}()
	}

	// First request occupies the single slot, blocked on the gate; the rest
	// pile up in the queue one at a time so FIFO order is deterministic.
	enqueue(urls[0])
	waitFor(t, func() bool { return exec.active.Load() == 1 })
	for i, rawURL := range urls[1:] {
		enqueue(rawURL)
		waitFor(t, func() bool {
			snap, _ := m.Snapshot("one.example.com")
			return snap.Pending == i+1
		})
	}

	close(gate)
	wg.Wait()

	got := exec.recorded()
	if len(got) != len(urls) {
		t.Fatalf("expected %d executions, got %d", len(urls), len(got))
	}
	for i := range urls {
		if got[i] != urls[i] {
			t.Errorf("position %d: expected %s, got %s", i, urls[i], got[i])
		}
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never held")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConcurrencyCapPerHost(t *testing.T) {
	opts := testOptions()
	opts.MaxConcurrentPerDomain = 2
	gate := make(chan struct{})
	exec := &stubExecutor{gate: gate}
	m := NewManager(opts, exec, testLogger(), nil)

	const total = 6
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.QueueRequest(context.Background(), "http://capped.example.com/x", types.RequestOptions{})
		}()
	}

	// Give dispatchers time to (wrongly) exceed the cap before release.
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := exec.maxActive.Load(); got > int64(opts.MaxConcurrentPerDomain) {
		t.Errorf("concurrency cap violated: saw %d in flight, cap %d", got, opts.MaxConcurrentPerDomain)
	}
	if got := exec.calls.Load(); got != total {
		t.Errorf("expected %d executions, got %d", total, got)
	}
}

func TestRetryThenSuccess(t *testing.T) {
	opts := testOptions()
	opts.BaseWaitOnRetry = 20 * time.Millisecond
	exec := &stubExecutor{statuses: []int{429, 429, 200}}
	m := NewManager(opts, exec, testLogger(), nil)

	start := time.Now()
	resp, err := m.QueueRequest(context.Background(), "http://flaky.example.com/a.jpg", types.RequestOptions{})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if resp == nil || resp.StatusCode != 200 {
		t.Fatalf("expected 200 response, got %+v", resp)
	}
	if got := exec.calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	// Backoff waits are at least base*1*1.15 + base*2*1.15.
	if minWait := 60 * time.Millisecond; elapsed < minWait {
		t.Errorf("expected backoff of at least %v, elapsed %v", minWait, elapsed)
	}

	// Spacing was penalized during the errors, then eased 5% on success.
	snap, _ := m.Snapshot("flaky.example.com")
	if snap.MinInterval < 3*opts.DefaultRequestInterval {
		t.Errorf("expected penalized spacing >= 3x default, got %v", snap.MinInterval)
	}
	if snap.Successes != 1 {
		t.Errorf("expected 1 success, got %d", snap.Successes)
	}
}

func TestFirstContactRateLimitPenalty(t *testing.T) {
	opts := testOptions()
	opts.MaxRetries = 0
	exec := &stubExecutor{statuses: []int{429}}
	m := NewManager(opts, exec, testLogger(), nil)

	_, err := m.QueueRequest(context.Background(), "http://limited.example.com/a", types.RequestOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := exec.calls.Load(); got != 1 {
		t.Errorf("max_retries=0 must disable retry: expected 1 attempt, got %d", got)
	}

	snap, _ := m.Snapshot("limited.example.com")
	if snap.MinInterval != rateLimitPenalty {
		t.Errorf("expected first-contact penalty %v, got %v", rateLimitPenalty, snap.MinInterval)
	}
	if snap.Errors != 1 || snap.ConsecutiveErrors != 1 {
		t.Errorf("expected 1 error recorded, got %+v", snap)
	}
}

func TestNonRetryableStatusFailsImmediately(t *testing.T) {
	exec := &stubExecutor{statuses: []int{404}}
	m := NewManager(testOptions(), exec, testLogger(), nil)

	_, err := m.QueueRequest(context.Background(), "http://missing.example.com/a", types.RequestOptions{})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if types.StatusCode(err) != 404 {
		t.Errorf("expected status 404 in error, got %d", types.StatusCode(err))
	}
	if got := exec.calls.Load(); got != 1 {
		t.Errorf("404 must not be retried: expected 1 attempt, got %d", got)
	}
}

func TestWaitForAllQueuesDrain(t *testing.T) {
	exec := &stubExecutor{delay: 5 * time.Millisecond}
	m := NewManager(testOptions(), exec, testLogger(), nil)

	hosts := []string{"a.example.com", "b.example.com", "c.example.com"}
	var wg sync.WaitGroup
	for _, h := range hosts {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(h string) {
				defer wg.Done()
				m.QueueRequest(context.Background(), "http://"+h+"/asset", types.RequestOptions{})
			}(h)
		}
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.WaitForAllQueues(ctx); err != nil {
		t.Fatalf("WaitForAllQueues: %v", err)
	}

	if !m.AreAllQueuesEmpty() {
		t.Error("queues must be empty after drain")
	}
	for _, h := range hosts {
		snap, ok := m.Snapshot(h)
		if !ok {
			t.Errorf("missing host state for %s", h)
			continue
		}
		if snap.Active != 0 || snap.Pending != 0 {
			t.Errorf("host %s not drained: %+v", h, snap)
		}
	}
}

func TestWaitForAllQueuesEmptyManager(t *testing.T) {
	m := NewManager(testOptions(), &stubExecutor{}, testLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.WaitForAllQueues(ctx); err != nil {
		t.Fatalf("WaitForAllQueues on idle manager: %v", err)
	}
	if !m.AreAllQueuesEmpty() {
		t.Error("idle manager must report empty queues")
	}
}

func TestHostOf(t *testing.T) {
	cases := []struct {
		rawURL string
		host   string
		ok     bool
	}{
		{"http://cdn.example.com/a/b.png", "cdn.example.com", true},
		{"https://s3.amazonaws.com/revue/x.jpg", "s3.amazonaws.com", true},
		{"http://cdn.example.com:8080/a", "cdn.example.com", true},
		{"/relative/path.png", "", false},
		{"http://", "", false},
	}
	for _, tc := range cases {
		host, err := hostOf(tc.rawURL)
		if tc.ok && (err != nil || host != tc.host) {
			t.Errorf("hostOf(%q) = %q, %v; expected %q", tc.rawURL, host, err, tc.host)
		}
		if !tc.ok && err == nil {
			t.Errorf("hostOf(%q): expected error", tc.rawURL)
		}
	}
}

func TestJitterRanges(t *testing.T) {
	for i := 0; i < 1000; i++ {
		if j := dispatchJitter(); j < 1.15 || j >= 1.50 {
			t.Fatalf("dispatchJitter out of range: %f", j)
		}
		if j := adaptJitter(); j < 1.15 || j >= 1.70 {
			t.Fatalf("adaptJitter out of range: %f", j)
		}
	}
}
