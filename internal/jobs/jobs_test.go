package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerExecutesInOrder(t *testing.T) {
	r := NewRunner(context.Background(), testLogger())
	defer r.Close()

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		r.Add(name, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}
	r.Wait()

	want := []string{"first", "second", "third"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestRunnerFailingJobDoesNotStopNext(t *testing.T) {
	r := NewRunner(context.Background(), testLogger())
	defer r.Close()

	ran := false
	r.Add("broken", func(ctx context.Context) error {
		return errors.New("boom")
	})
	r.Add(ExternalMediaInliner, func(ctx context.Context) error {
		ran = true
		return nil
	})
	r.Wait()

	if !ran {
		t.Error("a failing job must not stop the runner")
	}
}

func TestRunnerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ctx, testLogger())
	defer r.Close()

	var seen context.Context
	r.Add("probe", func(jobCtx context.Context) error {
		seen = jobCtx
		return nil
	})
	r.Wait()

	cancel()
	if seen == nil || seen.Err() == nil {
		t.Error("jobs must observe the runner context")
	}
}
