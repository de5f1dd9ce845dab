package api

import (
	"encoding/json"
	"fmt"
)

// envelope is the `{code, message, data}` wrapper shared by every backend
// response. Code zero means success; data is decoded lazily so each endpoint
// can supply its own payload type.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// TransportError reports a connectivity failure or a non-2xx HTTP status.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api: transport failure: %v", e.Err)
	}
	return fmt.Sprintf("api: unexpected http status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError reports a well-formed response the backend rejected: a non-zero
// envelope code or a null data payload.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: backend error code %d", e.Code)
	}
	return fmt.Sprintf("api: backend error code %d: %s", e.Code, e.Message)
}

// CreateStoryRequest is the body for POST /api/story.
type CreateStoryRequest struct {
	Content string `json:"content"`
	Style   string `json:"style"`
}

// CreateStoryResponse is returned by story creation and by the story status
// poll. Title is only present once the backend has produced one.
type CreateStoryResponse struct {
	StoryID   string `json:"storyId"`
	Status    string `json:"status"`
	Title     string `json:"title,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// StoryDetailResponse is the full story record from GET /api/story/{id}.
type StoryDetailResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Style     string `json:"style"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

// ShotItem is one entry of the story shot list.
type ShotItem struct {
	ID        string `json:"id"`
	SortOrder int    `json:"sortOrder"`
	Title     string `json:"title"`
	Prompt    string `json:"prompt"`
	ImageURL  string `json:"imageUrl"`
	Status    string `json:"status"`
}

// StoryShotsResponse is returned by GET /api/story/{id}/shots.
type StoryShotsResponse struct {
	StoryID string     `json:"storyId"`
	Shots   []ShotItem `json:"shots"`
}

// ShotPreviewResponse is the single-shot poll payload.
type ShotPreviewResponse struct {
	Status string `json:"status"`
}

// ShotDetailResponse is the full shot record from GET /api/shot/{id}.
type ShotDetailResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Prompt     string `json:"prompt"`
	ImageURL   string `json:"imageUrl"`
	Transition string `json:"transition"`
	Narration  string `json:"narration"`
	Status     string `json:"status"`
}

// UpdateShotRequest is the body for POST /api/shot/{id}/update, triggering a
// regeneration of the shot image.
type UpdateShotRequest struct {
	Prompt     string `json:"prompt"`
	Narration  string `json:"narration"`
	Transition string `json:"transition"`
}

// GenerateVideoResponse is returned by POST /api/story/{id}/generate-video.
type GenerateVideoResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StoryPreviewResponse is the video rendering poll payload. Progress is a
// 0-100 percentage, only meaningful while the status is still generating.
type StoryPreviewResponse struct {
	Status     string `json:"status"`
	Progress   *int   `json:"progress,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
	CoverURL   string `json:"coverUrl,omitempty"`
	Error      string `json:"error,omitempty"`
}

// AssetItem is one entry of the remote asset library from GET /api/story/all.
type AssetItem struct {
	ID         string `json:"id"`
	StoryID    string `json:"storyId"`
	Title      string `json:"title"`
	PreviewURL string `json:"previewUrl"`
	CoverURL   string `json:"coverUrl"`
	Duration   int    `json:"duration"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"`
}
