package mockapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aistoryctl/internal/api"
	"aistoryctl/internal/infra"
)

// Handler owns the simulated backend state and its HTTP surface.
type Handler struct {
	store  *store
	logger *infra.Logger
}

// NewHandler creates a fresh simulation.
func NewHandler(logger *infra.Logger) *Handler {
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &Handler{store: newStore(), logger: logger}
}

// Router builds the full /api surface of the generation backend.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/story", h.createStory)
		r.Get("/story/all", h.allAssets)
		r.Route("/story/{id}", func(r chi.Router) {
			r.Get("/", h.storyDetail)
			r.Get("/status", h.storyStatus)
			r.Get("/shots", h.storyShots)
			r.Post("/generate-video", h.generateVideo)
			r.Get("/preview", h.storyPreview)
		})
		r.Route("/shot/{id}", func(r chi.Router) {
			r.Get("/", h.shotDetail)
			r.Get("/preview", h.shotPreview)
			r.Post("/update", h.updateShot)
		})
	})

	return r
}

func (h *Handler) createStory(w http.ResponseWriter, r *http.Request) {
	var req api.CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, 400, "invalid request body")
		return
	}
	if req.Content == "" {
		h.writeError(w, 400, "content is required")
		return
	}

	story := h.store.createStory(req.Content, req.Style)
	h.logger.Info().Str("story_id", story.ID).Str("style", story.Style).Msg("mockapi: story created")
	h.writeData(w, api.CreateStoryResponse{
		StoryID:   story.ID,
		Status:    string(story.Status),
		CreatedAt: story.CreatedAt.UnixMilli(),
	})
}

func (h *Handler) storyStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, title, ok := h.store.pollStoryStatus(id)
	if !ok {
		h.writeError(w, 404, "story not found")
		return
	}
	h.writeData(w, api.CreateStoryResponse{StoryID: id, Status: string(status), Title: title})
}

func (h *Handler) storyDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	story, ok := h.store.story(id)
	if !ok {
		h.writeError(w, 404, "story not found")
		return
	}
	h.writeData(w, api.StoryDetailResponse{
		ID:        story.ID,
		Title:     story.Title,
		Content:   story.Content,
		Style:     story.Style,
		Status:    string(story.Status),
		CreatedAt: story.CreatedAt.UnixMilli(),
	})
}

func (h *Handler) storyShots(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	shots, ok := h.store.pollShots(id)
	if !ok {
		h.writeError(w, 404, "story not found")
		return
	}
	items := make([]api.ShotItem, 0, len(shots))
	for _, shot := range shots {
		items = append(items, api.ShotItem{
			ID:        shot.ID,
			SortOrder: shot.SortOrder,
			Title:     shot.Title,
			Prompt:    shot.Prompt,
			ImageURL:  shot.ImageURL,
			Status:    string(shot.Status),
		})
	}
	h.writeData(w, api.StoryShotsResponse{StoryID: id, Shots: items})
}

func (h *Handler) shotDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	shot, ok := h.store.shot(id)
	if !ok {
		h.writeError(w, 404, "shot not found")
		return
	}
	h.writeData(w, api.ShotDetailResponse{
		ID:         shot.ID,
		Title:      shot.Title,
		Prompt:     shot.Prompt,
		ImageURL:   shot.ImageURL,
		Transition: shot.Transition,
		Narration:  shot.Narration,
		Status:     string(shot.Status),
	})
}

func (h *Handler) shotPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, ok := h.store.pollShotPreview(id)
	if !ok {
		h.writeError(w, 404, "shot not found")
		return
	}
	h.writeData(w, api.ShotPreviewResponse{Status: string(status)})
}

func (h *Handler) updateShot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req api.UpdateShotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, 400, "invalid request body")
		return
	}
	shot, ok := h.store.updateShot(id, req.Prompt, req.Narration, req.Transition)
	if !ok {
		h.writeError(w, 404, "shot not found")
		return
	}
	h.logger.Info().Str("shot_id", id).Msg("mockapi: shot regeneration queued")
	h.writeData(w, api.ShotPreviewResponse{Status: string(shot.Status)})
}

func (h *Handler) generateVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	videoID, ok := h.store.requestVideo(id)
	if !ok {
		h.writeError(w, 404, "story not found")
		return
	}
	h.logger.Info().Str("story_id", id).Msg("mockapi: video render queued")
	h.writeData(w, api.GenerateVideoResponse{ID: videoID, Status: "generating"})
}

func (h *Handler) storyPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, progress, previewURL, coverURL, ok := h.store.pollVideo(id)
	if !ok {
		h.writeError(w, 404, "no render requested for story")
		return
	}
	h.writeData(w, api.StoryPreviewResponse{
		Status:     string(status),
		Progress:   &progress,
		PreviewURL: previewURL,
		CoverURL:   coverURL,
	})
}

func (h *Handler) allAssets(w http.ResponseWriter, r *http.Request) {
	items := make([]api.AssetItem, 0)
	for _, story := range h.store.completedVideos() {
		items = append(items, api.AssetItem{
			ID:         story.videoID,
			StoryID:    story.ID,
			Title:      story.Title,
			PreviewURL: "https://cdn.mock.local/" + story.videoID + ".mp4",
			CoverURL:   "https://cdn.mock.local/" + story.videoID + ".jpg",
			Duration:   len(story.Shots) * 5,
			Status:     "completed",
			CreatedAt:  story.CreatedAt.UnixMilli(),
		})
	}
	h.writeData(w, items)
}

func (h *Handler) writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{
		"code":    0,
		"message": "success",
		"data":    data,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("mockapi: response encode failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"data":    nil,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("mockapi: response encode failed")
	}
}
