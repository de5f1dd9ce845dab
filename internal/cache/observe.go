package cache

import (
	"sync"

	"aistoryctl/internal/domain"
)

// observerHub fans committed snapshots out to subscribers. Channels hold a
// single slot and are drained before sending, so a slow observer always reads
// the latest snapshot instead of backing up the writer.
type observerHub struct {
	mu        sync.Mutex
	nextID    int
	shotSubs  map[string]map[int]chan []domain.Shot
	assetSubs map[int]chan []domain.Asset
}

func newObserverHub() *observerHub {
	return &observerHub{
		shotSubs:  make(map[string]map[int]chan []domain.Shot),
		assetSubs: make(map[int]chan []domain.Asset),
	}
}

func (h *observerHub) subscribeShots(storyID string) (chan []domain.Shot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	ch := make(chan []domain.Shot, 1)
	if h.shotSubs[storyID] == nil {
		h.shotSubs[storyID] = make(map[int]chan []domain.Shot)
	}
	h.shotSubs[storyID][id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.shotSubs[storyID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.shotSubs, storyID)
			}
		}
	}
	return ch, cancel
}

func (h *observerHub) publishShots(storyID string, shots []domain.Shot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.shotSubs[storyID] {
		sendLatest(ch, shots)
	}
}

func (h *observerHub) subscribeAssets() (chan []domain.Asset, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	ch := make(chan []domain.Asset, 1)
	h.assetSubs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.assetSubs, id)
	}
	return ch, cancel
}

func (h *observerHub) publishAssets(assets []domain.Asset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.assetSubs {
		sendLatest(ch, assets)
	}
}

// sendLatest replaces any unread snapshot with the new one.
func sendLatest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
