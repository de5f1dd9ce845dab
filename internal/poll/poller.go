// Package poll implements the single-job polling primitive shared by every
// pipeline controller: fetch a status at a fixed interval until it turns
// terminal, the attempt budget runs out, or the session is cancelled.
package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"aistoryctl/internal/infra"
)

var (
	// ErrTimeout reports that the attempt budget was exhausted without the
	// status ever turning terminal.
	ErrTimeout = errors.New("poll: attempt budget exhausted")
	// ErrCancelled reports that the session was cancelled before resolving.
	ErrCancelled = errors.New("poll: session cancelled")
)

// Config describes one polling session over a status type T.
type Config[T any] struct {
	// Fetch retrieves the current status. It runs at most once per tick and
	// never concurrently with itself.
	Fetch func(ctx context.Context) (T, error)
	// Terminal reports whether a fetched status ends the session.
	Terminal func(T) bool
	// Interval is the wait between ticks. The very first tick skips the wait
	// because the job may already be terminal right after submission.
	Interval time.Duration
	// MaxAttempts bounds the number of Fetch invocations. Fetch errors are
	// swallowed and retried but still consume one attempt each, so a dead
	// network resolves as a timeout instead of polling forever.
	MaxAttempts int
	// OnResult, when set, observes every successfully fetched status before
	// the terminal check. It is never invoked after cancellation.
	OnResult func(T)
	Logger   *infra.Logger
}

// Handle is a cancellable reference to a running session.
type Handle[T any] struct {
	done      chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	cancelled atomic.Bool

	mu     sync.Mutex
	result T
	err    error
}

// Start validates the configuration and launches the session in a background
// goroutine.
func Start[T any](ctx context.Context, cfg Config[T]) (*Handle[T], error) {
	if cfg.Fetch == nil {
		return nil, errors.New("poll: fetch function is required")
	}
	if cfg.Terminal == nil {
		return nil, errors.New("poll: terminal predicate is required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poll: interval must be positive")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("poll: max attempts must be positive")
	}
	if cfg.Logger == nil {
		l := infra.DiscardLogger()
		cfg.Logger = &l
	}

	h := &Handle[T]{
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}
	go h.run(ctx, cfg)
	return h, nil
}

// Cancel stops the session before its next tick. An in-flight fetch is
// allowed to finish but its result is discarded and never published.
func (h *Handle[T]) Cancel() {
	h.cancelled.Store(true)
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done is closed once the session has resolved (terminal, timeout or cancel).
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Result returns the session outcome. It only carries meaning after Done is
// closed: the terminal status, or ErrTimeout / ErrCancelled / a context error.
func (h *Handle[T]) Result() (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// Wait blocks until the session resolves or the given context expires.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (h *Handle[T]) run(ctx context.Context, cfg Config[T]) {
	defer close(h.done)

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(cfg.Interval)
			select {
			case <-timer.C:
			case <-h.stop:
				timer.Stop()
				h.finish(nil, ErrCancelled)
				return
			case <-ctx.Done():
				timer.Stop()
				h.finish(nil, ctx.Err())
				return
			}
		} else {
			select {
			case <-h.stop:
				h.finish(nil, ErrCancelled)
				return
			case <-ctx.Done():
				h.finish(nil, ctx.Err())
				return
			default:
			}
		}

		status, err := cfg.Fetch(ctx)

		// A result arriving after cancellation must never be applied.
		if h.cancelled.Load() {
			h.finish(nil, ErrCancelled)
			return
		}
		if ctx.Err() != nil {
			h.finish(nil, ctx.Err())
			return
		}
		if err != nil {
			cfg.Logger.Debug().Err(err).Int("attempt", attempt).Int("max_attempts", cfg.MaxAttempts).
				Msg("poll: fetch failed, retrying")
			continue
		}
		if cfg.OnResult != nil {
			cfg.OnResult(status)
		}
		if cfg.Terminal(status) {
			h.finish(&status, nil)
			return
		}
	}
	h.finish(nil, ErrTimeout)
}

func (h *Handle[T]) finish(result *T, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if result != nil {
		h.result = *result
	}
	h.err = err
}
