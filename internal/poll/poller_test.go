package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

const testInterval = 2 * time.Millisecond

func TestStopsOnFirstTerminalResult(t *testing.T) {
	var fetches int32
	statuses := []string{"generating", "generating", "completed"}

	h, err := Start(context.Background(), Config[string]{
		Fetch: func(ctx context.Context) (string, error) {
			n := atomic.AddInt32(&fetches, 1)
			return statuses[n-1], nil
		},
		Terminal:    func(s string) bool { return s == "completed" || s == "failed" },
		Interval:    testInterval,
		MaxAttempts: 20,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	status, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != "completed" {
		t.Fatalf("status = %q, want completed", status)
	}
	if got := atomic.LoadInt32(&fetches); got != 3 {
		t.Fatalf("fetch count = %d, want 3", got)
	}
}

func TestTimesOutAfterMaxAttempts(t *testing.T) {
	var fetches int32
	h, err := Start(context.Background(), Config[string]{
		Fetch: func(ctx context.Context) (string, error) {
			atomic.AddInt32(&fetches, 1)
			return "generating", nil
		},
		Terminal:    func(s string) bool { return s == "completed" },
		Interval:    testInterval,
		MaxAttempts: 20,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = h.Wait(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if got := atomic.LoadInt32(&fetches); got != 20 {
		t.Fatalf("fetch count = %d, want exactly 20", got)
	}
}

func TestFetchErrorsAreRetriedNotFatal(t *testing.T) {
	var fetches int32
	h, err := Start(context.Background(), Config[string]{
		Fetch: func(ctx context.Context) (string, error) {
			n := atomic.AddInt32(&fetches, 1)
			if n < 3 {
				return "", errors.New("connection reset")
			}
			return "completed", nil
		},
		Terminal:    func(s string) bool { return s == "completed" },
		Interval:    testInterval,
		MaxAttempts: 20,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	status, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != "completed" {
		t.Fatalf("status = %q, want completed", status)
	}
	if got := atomic.LoadInt32(&fetches); got != 3 {
		t.Fatalf("fetch count = %d, want 3", got)
	}
}

func TestPersistentFetchErrorsResolveAsTimeout(t *testing.T) {
	var fetches int32
	h, err := Start(context.Background(), Config[string]{
		Fetch: func(ctx context.Context) (string, error) {
			atomic.AddInt32(&fetches, 1)
			return "", errors.New("network down")
		},
		Terminal:    func(s string) bool { return true },
		Interval:    testInterval,
		MaxAttempts: 5,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = h.Wait(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if got := atomic.LoadInt32(&fetches); got != 5 {
		t.Fatalf("fetch count = %d, want 5", got)
	}
}

func TestCancelPreventsNextTick(t *testing.T) {
	var fetches int32
	h, err := Start(context.Background(), Config[string]{
		Fetch: func(ctx context.Context) (string, error) {
			atomic.AddInt32(&fetches, 1)
			return "generating", nil
		},
		Terminal:    func(s string) bool { return s == "completed" },
		Interval:    time.Hour,
		MaxAttempts: 20,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let the immediate first tick run, then cancel during the long wait.
	time.Sleep(20 * time.Millisecond)
	h.Cancel()

	_, err = h.Wait(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}
}

func TestCancelledInFlightResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	var published int32

	h, err := Start(context.Background(), Config[string]{
		Fetch: func(ctx context.Context) (string, error) {
			<-release
			return "completed", nil
		},
		Terminal:    func(s string) bool { return s == "completed" },
		Interval:    testInterval,
		MaxAttempts: 20,
		OnResult:    func(string) { atomic.AddInt32(&published, 1) },
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Cancel while the first fetch is in flight, then let it resolve with a
	// terminal status. The late result must not be published.
	h.Cancel()
	close(release)

	_, err = h.Wait(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if got := atomic.LoadInt32(&published); got != 0 {
		t.Fatalf("cancelled session published %d results", got)
	}
}

func TestFirstTickSkipsInterval(t *testing.T) {
	start := time.Now()
	h, err := Start(context.Background(), Config[string]{
		Fetch:       func(ctx context.Context) (string, error) { return "completed", nil },
		Terminal:    func(s string) bool { return s == "completed" },
		Interval:    time.Hour,
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("first tick waited %v, expected immediate fetch", elapsed)
	}
}

func TestParentContextCancelResolvesSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := Start(ctx, Config[string]{
		Fetch:       func(ctx context.Context) (string, error) { return "generating", nil },
		Terminal:    func(s string) bool { return s == "completed" },
		Interval:    time.Hour,
		MaxAttempts: 20,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	if _, err := h.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
