// Package pipeline contains the generation-orchestration controllers: one per
// long-running concern (story, shot list, single-shot regeneration, video).
// Each controller owns at most one active polling session per target, never
// blocks its caller, and publishes progress through observable values.
package pipeline

import "sync"

// Phase tags the observable controller state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the discriminated Idle | Loading | Success | Error value a
// controller exposes. Value is only meaningful for PhaseSuccess; Reason is a
// non-empty, user-facing message for PhaseError.
type State[T any] struct {
	Phase  Phase
	Value  T
	Reason string
	Err    error
}

// Idle returns the zero state.
func Idle[T any]() State[T] {
	return State[T]{Phase: PhaseIdle}
}

// Loading marks work in flight.
func Loading[T any]() State[T] {
	return State[T]{Phase: PhaseLoading}
}

// Success wraps a terminal success payload.
func Success[T any](value T) State[T] {
	return State[T]{Phase: PhaseSuccess, Value: value}
}

// Failure wraps a terminal failure with its user-facing reason. Every failed
// state carries a reason; errors are never silently dropped.
func Failure[T any](err error, reason string) State[T] {
	if reason == "" {
		reason = "operation failed"
	}
	return State[T]{Phase: PhaseError, Reason: reason, Err: err}
}

// Value is a thread-safe observable cell. Subscribers read through a
// single-slot channel that always holds the latest published value, so a slow
// presentation layer never stalls a controller.
type Value[T any] struct {
	mu     sync.Mutex
	cur    T
	nextID int
	subs   map[int]chan T
}

// NewValue creates an observable cell seeded with an initial value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{cur: initial, subs: make(map[int]chan T)}
}

// Get returns the latest published value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set publishes a new value to all subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = val
	for _, ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		ch <- val
	}
}

// Observe subscribes to the cell. The channel is seeded with the current
// value; the cancel function must be called when the observer goes away.
func (v *Value[T]) Observe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nextID++
	id := v.nextID
	ch := make(chan T, 1)
	ch <- v.cur
	v.subs[id] = ch
	cancel := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
	return ch, cancel
}
