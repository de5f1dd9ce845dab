package pipeline

import (
	"context"
	"sync"
	"time"

	"aistoryctl/internal/api"
	"aistoryctl/internal/domain"
	"aistoryctl/internal/i18n"
	"aistoryctl/internal/infra"
	"aistoryctl/internal/poll"
)

// VideoBackend is the slice of the generation API the video pipeline needs.
type VideoBackend interface {
	GenerateVideo(ctx context.Context, storyID string) (*api.GenerateVideoResponse, error)
	StoryPreview(ctx context.Context, storyID string) (*api.StoryPreviewResponse, error)
}

// ProgressUnset is published while no rendering progress is known.
const ProgressUnset = -1

// VideoResult is the success payload of a finished video rendering.
type VideoResult struct {
	StoryID    string
	AssetID    string
	PreviewURL string
	CoverURL   string
}

// VideoOptions configures a VideoController.
type VideoOptions struct {
	Backend     VideoBackend
	Cache       domain.EntityCache
	Messages    *i18n.Catalog
	Interval    time.Duration
	MaxAttempts int
	Logger      *infra.Logger
}

// VideoController drives video submission and the progress-bearing poll that
// follows. Unlike the other pipelines every tick publishes a progress
// percentage so the UI can render an indicator before the render settles.
type VideoController struct {
	backend     VideoBackend
	cache       domain.EntityCache
	msgs        *i18n.Catalog
	interval    time.Duration
	maxAttempts int
	logger      *infra.Logger

	state    *Value[State[VideoResult]]
	progress *Value[int]

	mu      sync.Mutex
	session int
	handle  *poll.Handle[api.StoryPreviewResponse]
}

// NewVideoController validates options and applies the default poll policy.
func NewVideoController(opts VideoOptions) (*VideoController, error) {
	if opts.Backend == nil {
		return nil, errNilBackend
	}
	if opts.Cache == nil {
		return nil, errNilCache
	}
	applyDefaults(&opts.Interval, &opts.MaxAttempts, &opts.Logger)
	msgs := opts.Messages
	if msgs == nil {
		msgs = i18n.New("en")
	}
	return &VideoController{
		backend:     opts.Backend,
		cache:       opts.Cache,
		msgs:        msgs,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		state:       NewValue(Idle[VideoResult]()),
		progress:    NewValue(ProgressUnset),
	}, nil
}

// State exposes the observable rendering state.
func (c *VideoController) State() *Value[State[VideoResult]] {
	return c.state
}

// Progress exposes the observable rendering percentage (0-100), or
// ProgressUnset before the first progress-bearing tick of the current call.
func (c *VideoController) Progress() *Value[int] {
	return c.progress
}

// GenerateVideo submits the render request for storyID and polls the preview
// endpoint until the video is ready. Any prior session is cancelled and the
// progress value resets to unset.
func (c *VideoController) GenerateVideo(ctx context.Context, storyID string) error {
	if storyID == "" {
		return domain.ErrEmptyTarget
	}

	token := c.begin()
	c.progress.Set(ProgressUnset)
	c.state.Set(Loading[VideoResult]())

	go c.run(ctx, token, storyID)
	return nil
}

// Stop cancels the active polling session, if any.
func (c *VideoController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session++
}

func (c *VideoController) run(ctx context.Context, token int, storyID string) {
	resp, err := c.backend.GenerateVideo(ctx, storyID)
	if err != nil {
		c.logger.Error().Err(err).Str("story_id", storyID).Msg("video: generate request failed")
		c.publish(token, Failure[VideoResult](err, c.msgs.Text(i18n.KeyVideoFailed)))
		return
	}

	assetID := resp.ID
	if assetID == "" {
		assetID = storyID
	}
	title := c.storyTitle(ctx, storyID)
	c.upsertAsset(ctx, assetID, storyID, title, domain.StatusGenerating, 0, "", "", "")

	handle, err := poll.Start(ctx, poll.Config[api.StoryPreviewResponse]{
		Fetch: func(ctx context.Context) (api.StoryPreviewResponse, error) {
			preview, err := c.backend.StoryPreview(ctx, storyID)
			if err != nil {
				return api.StoryPreviewResponse{}, err
			}
			return *preview, nil
		},
		Terminal: func(p api.StoryPreviewResponse) bool {
			return domain.ParseStatus(p.Status).Terminal()
		},
		Interval:    c.interval,
		MaxAttempts: c.maxAttempts,
		OnResult: func(p api.StoryPreviewResponse) {
			if p.Progress == nil {
				return
			}
			c.progressFor(token, *p.Progress)
			c.upsertAsset(ctx, assetID, storyID, title, domain.ParseStatus(p.Status), *p.Progress, p.PreviewURL, p.CoverURL, p.Error)
		},
		Logger: c.logger,
	})
	if err != nil {
		c.publish(token, Failure[VideoResult](err, c.msgs.Text(i18n.KeyVideoFailed)))
		return
	}
	c.track(token, handle)

	preview, err := handle.Wait(ctx)
	switch {
	case err == nil && domain.ParseStatus(preview.Status) == domain.StatusCompleted:
		c.upsertAsset(ctx, assetID, storyID, title, domain.StatusCompleted, 100, preview.PreviewURL, preview.CoverURL, "")
		c.publish(token, Success(VideoResult{
			StoryID:    storyID,
			AssetID:    assetID,
			PreviewURL: preview.PreviewURL,
			CoverURL:   preview.CoverURL,
		}))
	case err == nil:
		reason := preview.Error
		if reason == "" {
			reason = c.msgs.Text(i18n.KeyVideoFailed)
		}
		c.upsertAsset(ctx, assetID, storyID, title, domain.StatusFailed, 0, "", "", preview.Error)
		c.publish(token, Failure[VideoResult](nil, reason))
	case isCancelled(err):
	case isTimeout(err):
		c.publish(token, Failure[VideoResult](err, c.msgs.Text(i18n.KeyTimeout)))
	default:
		c.publish(token, Failure[VideoResult](err, c.msgs.Text(i18n.KeyVideoFailed)))
	}
}

func (c *VideoController) storyTitle(ctx context.Context, storyID string) string {
	story, err := c.cache.StoryByID(ctx, storyID)
	if err != nil || story.Title == "" {
		return "Untitled Story"
	}
	return story.Title
}

func (c *VideoController) upsertAsset(ctx context.Context, id, storyID, title string, status domain.Status, progress int, previewURL, coverURL, errMsg string) {
	asset := &domain.Asset{
		ID:         id,
		StoryID:    storyID,
		Title:      title,
		PreviewURL: previewURL,
		CoverURL:   coverURL,
		Status:     status,
		Progress:   progress,
		Error:      errMsg,
		CreatedAt:  time.Now(),
	}
	if existing, err := c.cache.AssetByID(ctx, id); err == nil {
		asset.CreatedAt = existing.CreatedAt
		if previewURL == "" {
			asset.PreviewURL = existing.PreviewURL
		}
		if coverURL == "" {
			asset.CoverURL = existing.CoverURL
		}
	}
	if err := c.cache.UpsertAsset(ctx, asset); err != nil {
		c.logger.Error().Err(err).Str("asset_id", id).Msg("video: cache write failed")
	}
}

// progressFor publishes a progress tick only for the current session.
func (c *VideoController) progressFor(token int, pct int) {
	c.mu.Lock()
	current := token == c.session
	c.mu.Unlock()
	if current {
		c.progress.Set(pct)
	}
}

func (c *VideoController) begin() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session++
	return c.session
}

func (c *VideoController) track(token int, handle *poll.Handle[api.StoryPreviewResponse]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.session {
		handle.Cancel()
		return
	}
	c.handle = handle
}

func (c *VideoController) publish(token int, state State[VideoResult]) {
	c.mu.Lock()
	current := token == c.session
	c.mu.Unlock()
	if current {
		c.state.Set(state)
	}
}
