package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aistoryctl/internal/api"
	"aistoryctl/internal/cache"
	"aistoryctl/internal/domain"
)

type fakeRegenBackend struct {
	mu           sync.Mutex
	updateCalls  int
	previewCalls int

	update  func(shotID string, req api.UpdateShotRequest) (*api.ShotPreviewResponse, error)
	preview func(call int, shotID string) (*api.ShotPreviewResponse, error)
	detail  func(shotID string) (*api.ShotDetailResponse, error)
}

func (f *fakeRegenBackend) UpdateShot(_ context.Context, shotID string, req api.UpdateShotRequest) (*api.ShotPreviewResponse, error) {
	f.mu.Lock()
	f.updateCalls++
	f.mu.Unlock()
	return f.update(shotID, req)
}

func (f *fakeRegenBackend) ShotPreview(_ context.Context, shotID string) (*api.ShotPreviewResponse, error) {
	f.mu.Lock()
	f.previewCalls++
	call := f.previewCalls
	f.mu.Unlock()
	return f.preview(call, shotID)
}

func (f *fakeRegenBackend) ShotDetail(_ context.Context, shotID string) (*api.ShotDetailResponse, error) {
	if f.detail == nil {
		return nil, errors.New("detail not scripted")
	}
	return f.detail(shotID)
}

func (f *fakeRegenBackend) previewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.previewCalls
}

func seedShot(t *testing.T, store *cache.Store) *domain.Shot {
	t.Helper()
	shot := &domain.Shot{
		ID:         "shot-1",
		StoryID:    "story-1",
		SortOrder:  2,
		Title:      "Opening",
		Prompt:     "original prompt",
		Narration:  "original narration",
		ImageURL:   "https://cdn.example.com/v1.png",
		Transition: domain.TransitionCrossfade,
		Status:     domain.StatusCompleted,
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	if err := store.UpsertShot(context.Background(), shot); err != nil {
		t.Fatalf("seed shot: %v", err)
	}
	return shot
}

func newRegenController(t *testing.T, backend RegenBackend, store *cache.Store) *RegenController {
	t.Helper()
	ctrl, err := NewRegenController(RegenOptions{
		Backend:     backend,
		Cache:       store,
		Interval:    testInterval,
		MaxAttempts: 20,
	})
	if err != nil {
		t.Fatalf("NewRegenController: %v", err)
	}
	return ctrl
}

// A regeneration that the server reports as failed flips only the status; the
// user's edited prompt, narration and transition stay in the cache.
func TestRegenerateFailurePreservesEdits(t *testing.T) {
	store := newTestCache(t)
	seedShot(t, store)

	backend := &fakeRegenBackend{
		update: func(shotID string, req api.UpdateShotRequest) (*api.ShotPreviewResponse, error) {
			return &api.ShotPreviewResponse{Status: "generating"}, nil
		},
		preview: func(call int, shotID string) (*api.ShotPreviewResponse, error) {
			if call >= 2 {
				return &api.ShotPreviewResponse{Status: "failed"}, nil
			}
			return &api.ShotPreviewResponse{Status: "generating"}, nil
		},
	}
	ctrl := newRegenController(t, backend, store)

	edit := domain.ShotEdit{
		ShotID:     "shot-1",
		Prompt:     "a castle at night",
		Narration:  "the gates were already closed",
		Transition: domain.TransitionKenBurns,
	}
	if err := ctrl.Regenerate(context.Background(), edit); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	waitPhase(t, ctrl.State(), PhaseError)

	got, err := store.ShotByID(context.Background(), "shot-1")
	if err != nil {
		t.Fatalf("ShotByID: %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.Prompt != edit.Prompt || got.Narration != edit.Narration || got.Transition != edit.Transition {
		t.Fatalf("edits lost on failure: got %+v", got)
	}
}

func TestRegenerateCompletedRefreshesShot(t *testing.T) {
	store := newTestCache(t)
	seeded := seedShot(t, store)

	backend := &fakeRegenBackend{
		update: func(shotID string, req api.UpdateShotRequest) (*api.ShotPreviewResponse, error) {
			return &api.ShotPreviewResponse{Status: "generating"}, nil
		},
		preview: func(call int, shotID string) (*api.ShotPreviewResponse, error) {
			if call >= 2 {
				return &api.ShotPreviewResponse{Status: "completed"}, nil
			}
			return &api.ShotPreviewResponse{Status: "generating"}, nil
		},
		detail: func(shotID string) (*api.ShotDetailResponse, error) {
			return &api.ShotDetailResponse{
				ID:         shotID,
				Title:      "Opening",
				Prompt:     "a castle at night",
				ImageURL:   "https://cdn.example.com/v2.png",
				Narration:  "the gates were already closed",
				Transition: domain.TransitionKenBurns,
				Status:     "completed",
			}, nil
		},
	}
	ctrl := newRegenController(t, backend, store)

	err := ctrl.Regenerate(context.Background(), domain.ShotEdit{
		ShotID:     "shot-1",
		Prompt:     "a castle at night",
		Narration:  "the gates were already closed",
		Transition: domain.TransitionKenBurns,
	})
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	st := waitPhase(t, ctrl.State(), PhaseSuccess)
	if st.Value.ImageURL != "https://cdn.example.com/v2.png" {
		t.Fatalf("image url = %q, want the regenerated one", st.Value.ImageURL)
	}

	got, err := store.ShotByID(context.Background(), "shot-1")
	if err != nil {
		t.Fatalf("ShotByID: %v", err)
	}
	if got.ImageURL != "https://cdn.example.com/v2.png" {
		t.Fatalf("cached image url = %q, want the regenerated one", got.ImageURL)
	}
	// List placement survives the refresh.
	if got.StoryID != seeded.StoryID || got.SortOrder != seeded.SortOrder {
		t.Fatalf("list placement lost: got storyID=%q sortOrder=%d", got.StoryID, got.SortOrder)
	}
}

// When the update request itself fails there is nothing to poll: the shot is
// marked failed locally and the edits stay.
func TestRegenerateUpdateErrorFailsLocally(t *testing.T) {
	store := newTestCache(t)
	seedShot(t, store)

	backend := &fakeRegenBackend{
		update: func(shotID string, req api.UpdateShotRequest) (*api.ShotPreviewResponse, error) {
			return nil, errors.New("connection reset")
		},
		preview: func(call int, shotID string) (*api.ShotPreviewResponse, error) {
			return nil, errors.New("preview must not be polled")
		},
	}
	ctrl := newRegenController(t, backend, store)

	err := ctrl.Regenerate(context.Background(), domain.ShotEdit{
		ShotID: "shot-1",
		Prompt: "a castle at night",
	})
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	waitPhase(t, ctrl.State(), PhaseError)

	if got := backend.previewCount(); got != 0 {
		t.Fatalf("preview polls = %d, want 0", got)
	}
	got, err := store.ShotByID(context.Background(), "shot-1")
	if err != nil {
		t.Fatalf("ShotByID: %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.Prompt != "a castle at night" {
		t.Fatalf("prompt = %q, edits must survive a failed request", got.Prompt)
	}
}

func TestRegenerateRejectsEmptyShotID(t *testing.T) {
	ctrl := newRegenController(t, &fakeRegenBackend{}, newTestCache(t))
	if err := ctrl.Regenerate(context.Background(), domain.ShotEdit{}); !errors.Is(err, domain.ErrEmptyTarget) {
		t.Fatalf("error = %v, want ErrEmptyTarget", err)
	}
}
