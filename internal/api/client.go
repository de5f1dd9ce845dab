package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"aistoryctl/internal/infra"
)

// ErrMissingBaseURL indicates that the client was configured without a backend address.
var ErrMissingBaseURL = errors.New("api: base url is required")

// Options configures the generation backend client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the story generation backend. It is
// stateless; every method issues exactly one request and decodes the shared
// response envelope.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CreateStory submits story text for decomposition into shots.
func (c *Client) CreateStory(ctx context.Context, req CreateStoryRequest) (*CreateStoryResponse, error) {
	return call[CreateStoryResponse](ctx, c, http.MethodPost, "/api/story", req)
}

// StoryStatus fetches the current generation status of a story.
func (c *Client) StoryStatus(ctx context.Context, storyID string) (*CreateStoryResponse, error) {
	return call[CreateStoryResponse](ctx, c, http.MethodGet, "/api/story/"+url.PathEscape(storyID)+"/status", nil)
}

// StoryDetail fetches the full story record.
func (c *Client) StoryDetail(ctx context.Context, storyID string) (*StoryDetailResponse, error) {
	return call[StoryDetailResponse](ctx, c, http.MethodGet, "/api/story/"+url.PathEscape(storyID), nil)
}

// StoryShots fetches the full shot list of a story.
func (c *Client) StoryShots(ctx context.Context, storyID string) (*StoryShotsResponse, error) {
	return call[StoryShotsResponse](ctx, c, http.MethodGet, "/api/story/"+url.PathEscape(storyID)+"/shots", nil)
}

// ShotPreview fetches the generation status of a single shot.
func (c *Client) ShotPreview(ctx context.Context, shotID string) (*ShotPreviewResponse, error) {
	return call[ShotPreviewResponse](ctx, c, http.MethodGet, "/api/shot/"+url.PathEscape(shotID)+"/preview", nil)
}

// ShotDetail fetches the full shot record.
func (c *Client) ShotDetail(ctx context.Context, shotID string) (*ShotDetailResponse, error) {
	return call[ShotDetailResponse](ctx, c, http.MethodGet, "/api/shot/"+url.PathEscape(shotID), nil)
}

// UpdateShot submits edited shot fields and triggers image regeneration.
func (c *Client) UpdateShot(ctx context.Context, shotID string, req UpdateShotRequest) (*ShotPreviewResponse, error) {
	return call[ShotPreviewResponse](ctx, c, http.MethodPost, "/api/shot/"+url.PathEscape(shotID)+"/update", req)
}

// GenerateVideo asks the backend to render the final video for a story.
func (c *Client) GenerateVideo(ctx context.Context, storyID string) (*GenerateVideoResponse, error) {
	return call[GenerateVideoResponse](ctx, c, http.MethodPost, "/api/story/"+url.PathEscape(storyID)+"/generate-video", nil)
}

// StoryPreview fetches rendering status and progress of the story video.
func (c *Client) StoryPreview(ctx context.Context, storyID string) (*StoryPreviewResponse, error) {
	return call[StoryPreviewResponse](ctx, c, http.MethodGet, "/api/story/"+url.PathEscape(storyID)+"/preview", nil)
}

// AllAssets fetches the remote asset library.
func (c *Client) AllAssets(ctx context.Context) ([]AssetItem, error) {
	items, err := call[[]AssetItem](ctx, c, http.MethodGet, "/api/story/all", nil)
	if err != nil {
		return nil, err
	}
	return *items, nil
}

// call issues one request and unwraps the response envelope into T. Failures
// map onto the error taxonomy: *TransportError for connectivity and non-2xx
// statuses, *APIError for non-zero envelope codes and null payloads.
func call[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("api: request rejected")
		return nil, &TransportError{StatusCode: resp.StatusCode}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("api: decode envelope: %w", err)
	}
	if env.Code != 0 {
		return nil, &APIError{Code: env.Code, Message: env.Message}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &APIError{Code: env.Code, Message: "empty data payload"}
	}

	out := new(T)
	if err := json.Unmarshal(env.Data, out); err != nil {
		return nil, fmt.Errorf("api: decode payload: %w", err)
	}
	return out, nil
}
