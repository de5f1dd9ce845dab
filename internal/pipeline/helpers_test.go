package pipeline

import (
	"testing"
	"time"

	"aistoryctl/internal/cache"
)

const testInterval = 2 * time.Millisecond

func newTestCache(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(cache.Options{Path: ":memory:"})
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	return store
}

// waitPhase blocks until the observable state reaches the wanted phase, or
// fails the test after a generous deadline. Observation seeds the current
// value, which may be a stale terminal state from an earlier session, so
// everything but the wanted phase is skipped over.
func waitPhase[T any](t *testing.T, v *Value[State[T]], want Phase) State[T] {
	t.Helper()
	ch, cancel := v.Observe()
	defer cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-ch:
			if st.Phase == want {
				return st
			}
		case <-deadline:
			st := v.Get()
			t.Fatalf("state never reached %v (current %v, reason %q)", want, st.Phase, st.Reason)
		}
	}
}

// waitTrue blocks until a bool observable turns true.
func waitTrue(t *testing.T, v *Value[bool]) {
	t.Helper()
	ch, cancel := v.Observe()
	defer cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case b := <-ch:
			if b {
				return
			}
		case <-deadline:
			t.Fatalf("flag never turned true")
		}
	}
}
