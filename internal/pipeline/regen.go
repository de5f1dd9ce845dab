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

// RegenBackend is the slice of the generation API the single-shot
// regeneration pipeline needs.
type RegenBackend interface {
	UpdateShot(ctx context.Context, shotID string, req api.UpdateShotRequest) (*api.ShotPreviewResponse, error)
	ShotPreview(ctx context.Context, shotID string) (*api.ShotPreviewResponse, error)
	ShotDetail(ctx context.Context, shotID string) (*api.ShotDetailResponse, error)
}

// RegenOptions configures a RegenController.
type RegenOptions struct {
	Backend     RegenBackend
	Cache       domain.ShotStore
	Messages    *i18n.Catalog
	Interval    time.Duration
	MaxAttempts int
	Logger      *infra.Logger
}

// RegenController drives one shot's regenerate-then-poll cycle, independent
// of the list-level poller. The local record is optimistically marked
// generating before the server acknowledges; a failed regeneration flips only
// the status back so the user's edits survive.
type RegenController struct {
	backend     RegenBackend
	cache       domain.ShotStore
	msgs        *i18n.Catalog
	interval    time.Duration
	maxAttempts int
	logger      *infra.Logger

	state *Value[State[domain.Shot]]

	mu      sync.Mutex
	session int
	handle  *poll.Handle[domain.Status]
}

// NewRegenController validates options and applies the default poll policy.
func NewRegenController(opts RegenOptions) (*RegenController, error) {
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
	return &RegenController{
		backend:     opts.Backend,
		cache:       opts.Cache,
		msgs:        msgs,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		state:       NewValue(Idle[domain.Shot]()),
	}, nil
}

// State exposes the observable regeneration state. The success payload is the
// refreshed shot record including the new image URL.
func (c *RegenController) State() *Value[State[domain.Shot]] {
	return c.state
}

// Regenerate submits the edited shot fields and polls the shot until the new
// image is ready. A prior session is cancelled first.
func (c *RegenController) Regenerate(ctx context.Context, edit domain.ShotEdit) error {
	if edit.ShotID == "" {
		return domain.ErrEmptyTarget
	}

	token := c.begin()
	c.state.Set(Loading[domain.Shot]())

	go c.run(ctx, token, edit)
	return nil
}

// Stop cancels the active polling session, if any.
func (c *RegenController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session++
}

func (c *RegenController) run(ctx context.Context, token int, edit domain.ShotEdit) {
	// Optimistic local write: the UI shows the attempt before the server
	// acknowledges it.
	c.applyEdit(ctx, edit, domain.StatusGenerating)

	_, err := c.backend.UpdateShot(ctx, edit.ShotID, api.UpdateShotRequest{
		Prompt:     edit.Prompt,
		Narration:  edit.Narration,
		Transition: edit.Transition,
	})
	if err != nil {
		// The request itself failed; it may never have reached the server, so
		// there is nothing to poll. Mark the shot failed locally, edits kept.
		c.logger.Error().Err(err).Str("shot_id", edit.ShotID).Msg("regen: update request failed")
		c.setStatus(ctx, edit.ShotID, domain.StatusFailed)
		c.publish(token, Failure[domain.Shot](err, c.msgs.Text(i18n.KeyRegenerationFailed)))
		return
	}

	handle, err := poll.Start(ctx, poll.Config[domain.Status]{
		Fetch: func(ctx context.Context) (domain.Status, error) {
			resp, err := c.backend.ShotPreview(ctx, edit.ShotID)
			if err != nil {
				return "", err
			}
			return domain.ParseStatus(resp.Status), nil
		},
		Terminal:    domain.Status.Terminal,
		Interval:    c.interval,
		MaxAttempts: c.maxAttempts,
		Logger:      c.logger,
	})
	if err != nil {
		c.publish(token, Failure[domain.Shot](err, c.msgs.Text(i18n.KeyRegenerationFailed)))
		return
	}
	c.track(token, handle)

	status, err := handle.Wait(ctx)
	switch {
	case err == nil && status == domain.StatusCompleted:
		c.finishCompleted(ctx, token, edit)
	case err == nil:
		// Polled failure: only the status changes so in-progress edits to
		// prompt, narration and transition are not lost.
		c.setStatus(ctx, edit.ShotID, domain.StatusFailed)
		c.publish(token, Failure[domain.Shot](nil, c.msgs.Text(i18n.KeyRegenerationFailed)))
	case isCancelled(err):
	case isTimeout(err):
		c.publish(token, Failure[domain.Shot](err, c.msgs.Text(i18n.KeyTimeout)))
	default:
		c.publish(token, Failure[domain.Shot](err, c.msgs.Text(i18n.KeyRegenerationFailed)))
	}
}

// finishCompleted replaces the cached edit buffer with the full server-side
// detail, including the freshly generated image URL.
func (c *RegenController) finishCompleted(ctx context.Context, token int, edit domain.ShotEdit) {
	detail, err := c.backend.ShotDetail(ctx, edit.ShotID)
	if err != nil {
		// Detail fetch failed after a successful regeneration; keep the local
		// edits and at least settle the status.
		c.logger.Warn().Err(err).Str("shot_id", edit.ShotID).Msg("regen: detail refresh failed")
		c.setStatus(ctx, edit.ShotID, domain.StatusCompleted)
		if shot, err := c.cache.ShotByID(ctx, edit.ShotID); err == nil {
			c.publish(token, Success(*shot))
			return
		}
		c.publish(token, Success(domain.Shot{ID: edit.ShotID, Status: domain.StatusCompleted}))
		return
	}

	shot := domain.Shot{
		ID:         detail.ID,
		Title:      detail.Title,
		Prompt:     detail.Prompt,
		ImageURL:   detail.ImageURL,
		Narration:  detail.Narration,
		Transition: detail.Transition,
		Status:     domain.ParseStatus(detail.Status),
	}
	if cached, err := c.cache.ShotByID(ctx, edit.ShotID); err == nil {
		shot.StoryID = cached.StoryID
		shot.SortOrder = cached.SortOrder
		shot.CreatedAt = cached.CreatedAt
	}
	if err := c.cache.UpsertShot(ctx, &shot); err != nil {
		c.logger.Error().Err(err).Str("shot_id", shot.ID).Msg("regen: cache write failed")
	}
	c.publish(token, Success(shot))
}

// applyEdit writes the edit buffer plus a status onto the cached shot.
func (c *RegenController) applyEdit(ctx context.Context, edit domain.ShotEdit, status domain.Status) {
	shot, err := c.cache.ShotByID(ctx, edit.ShotID)
	if err != nil {
		c.logger.Debug().Err(err).Str("shot_id", edit.ShotID).Msg("regen: shot not cached yet")
		return
	}
	shot.Prompt = edit.Prompt
	shot.Narration = edit.Narration
	shot.Transition = edit.Transition
	shot.Status = status
	if err := c.cache.UpsertShot(ctx, shot); err != nil {
		c.logger.Error().Err(err).Str("shot_id", edit.ShotID).Msg("regen: cache write failed")
	}
}

// setStatus flips only the status field of the cached shot.
func (c *RegenController) setStatus(ctx context.Context, shotID string, status domain.Status) {
	shot, err := c.cache.ShotByID(ctx, shotID)
	if err != nil {
		return
	}
	shot.Status = status
	if err := c.cache.UpsertShot(ctx, shot); err != nil {
		c.logger.Error().Err(err).Str("shot_id", shotID).Msg("regen: cache write failed")
	}
}

func (c *RegenController) begin() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session++
	return c.session
}

func (c *RegenController) track(token int, handle *poll.Handle[domain.Status]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.session {
		handle.Cancel()
		return
	}
	c.handle = handle
}

func (c *RegenController) publish(token int, state State[domain.Shot]) {
	c.mu.Lock()
	current := token == c.session
	c.mu.Unlock()
	if current {
		c.state.Set(state)
	}
}
