package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"aistoryctl/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Options{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestUpsertStoryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	story := &domain.Story{
		ID:        "story-1",
		Content:   "A dog in a park",
		Style:     domain.StyleMovie,
		Status:    domain.StatusGenerating,
		CreatedAt: time.Now(),
	}
	if err := store.UpsertStory(ctx, story); err != nil {
		t.Fatalf("UpsertStory: %v", err)
	}

	story.Status = domain.StatusCompleted
	story.Title = "A Dog In A Park"
	if err := store.UpsertStory(ctx, story); err != nil {
		t.Fatalf("upsert existing: %v", err)
	}

	got, err := store.StoryByID(ctx, "story-1")
	if err != nil {
		t.Fatalf("StoryByID: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.Title != "A Dog In A Park" {
		t.Fatalf("unexpected story: %+v", got)
	}
}

func TestStoryByIDNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.StoryByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceShotsDropsStaleIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := []domain.Shot{
		{ID: "shot-1", StoryID: "story-1", SortOrder: 1, Status: domain.StatusGenerating},
		{ID: "shot-2", StoryID: "story-1", SortOrder: 2, Status: domain.StatusGenerating},
		{ID: "shot-3", StoryID: "story-1", SortOrder: 3, Status: domain.StatusGenerating},
	}
	if err := store.ReplaceShots(ctx, "story-1", first); err != nil {
		t.Fatalf("ReplaceShots: %v", err)
	}

	second := []domain.Shot{
		{ID: "shot-1", StoryID: "story-1", SortOrder: 1, Status: domain.StatusCompleted},
		{ID: "shot-4", StoryID: "story-1", SortOrder: 2, Status: domain.StatusCompleted},
	}
	if err := store.ReplaceShots(ctx, "story-1", second); err != nil {
		t.Fatalf("ReplaceShots second: %v", err)
	}

	shots, err := store.ShotsByStory(ctx, "story-1")
	if err != nil {
		t.Fatalf("ShotsByStory: %v", err)
	}
	if len(shots) != 2 {
		t.Fatalf("shot count = %d, want 2", len(shots))
	}
	if shots[0].ID != "shot-1" || shots[1].ID != "shot-4" {
		t.Fatalf("unexpected ids: %q, %q", shots[0].ID, shots[1].ID)
	}
	for _, sh := range shots {
		if sh.ID == "shot-2" || sh.ID == "shot-3" {
			t.Fatalf("stale shot %q survived replace", sh.ID)
		}
	}
}

func TestDeleteStoryCascadesToShots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertStory(ctx, &domain.Story{ID: "story-1", Status: domain.StatusCompleted}); err != nil {
		t.Fatalf("UpsertStory: %v", err)
	}
	if err := store.ReplaceShots(ctx, "story-1", []domain.Shot{
		{ID: "shot-1", StoryID: "story-1", SortOrder: 1, Status: domain.StatusCompleted},
	}); err != nil {
		t.Fatalf("ReplaceShots: %v", err)
	}

	if err := store.DeleteStory(ctx, "story-1"); err != nil {
		t.Fatalf("DeleteStory: %v", err)
	}
	if _, err := store.StoryByID(ctx, "story-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("story should be gone, got %v", err)
	}
	shots, err := store.ShotsByStory(ctx, "story-1")
	if err != nil {
		t.Fatalf("ShotsByStory: %v", err)
	}
	if len(shots) != 0 {
		t.Fatalf("expected cascade delete, %d shots remain", len(shots))
	}
}

func TestObserveShotsReceivesSnapshots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ch, cancel := store.ObserveShots("story-1")
	defer cancel()

	// Initial seed snapshot (empty).
	select {
	case shots := <-ch:
		if len(shots) != 0 {
			t.Fatalf("seed snapshot should be empty, got %d", len(shots))
		}
	case <-time.After(time.Second):
		t.Fatalf("no seed snapshot")
	}

	if err := store.ReplaceShots(ctx, "story-1", []domain.Shot{
		{ID: "shot-1", StoryID: "story-1", SortOrder: 1, Status: domain.StatusGenerating},
	}); err != nil {
		t.Fatalf("ReplaceShots: %v", err)
	}

	select {
	case shots := <-ch:
		if len(shots) != 1 || shots[0].ID != "shot-1" {
			t.Fatalf("unexpected snapshot: %+v", shots)
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot after write")
	}
}

func TestObserverReadsLatestSnapshotOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ch, cancel := store.ObserveShots("story-1")
	defer cancel()

	// Two writes without a read in between; the unread first snapshot must be
	// replaced, not queued.
	for _, status := range []domain.Status{domain.StatusGenerating, domain.StatusCompleted} {
		if err := store.ReplaceShots(ctx, "story-1", []domain.Shot{
			{ID: "shot-1", StoryID: "story-1", SortOrder: 1, Status: status},
		}); err != nil {
			t.Fatalf("ReplaceShots: %v", err)
		}
	}

	select {
	case shots := <-ch:
		if len(shots) != 1 || shots[0].Status != domain.StatusCompleted {
			t.Fatalf("expected latest snapshot, got %+v", shots)
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot")
	}
}

func TestAssetLibrary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ch, cancel := store.ObserveAssets()
	defer cancel()
	<-ch // seed

	asset := &domain.Asset{
		ID:         "asset-1",
		StoryID:    "story-1",
		Title:      "Journey Through Woods",
		PreviewURL: "https://cdn.example.com/story-1.mp4",
		Status:     domain.StatusCompleted,
		CreatedAt:  time.Now(),
	}
	if err := store.UpsertAsset(ctx, asset); err != nil {
		t.Fatalf("UpsertAsset: %v", err)
	}

	select {
	case assets := <-ch:
		if len(assets) != 1 || assets[0].ID != "asset-1" {
			t.Fatalf("unexpected snapshot: %+v", assets)
		}
	case <-time.After(time.Second):
		t.Fatalf("no asset snapshot")
	}

	got, err := store.AssetByID(ctx, "asset-1")
	if err != nil {
		t.Fatalf("AssetByID: %v", err)
	}
	if got.PreviewURL != asset.PreviewURL {
		t.Fatalf("unexpected asset: %+v", got)
	}
}
