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

// Poll policy shared by every controller.
const (
	defaultPollInterval = 1500 * time.Millisecond
	defaultMaxAttempts  = 20
)

// StoryBackend is the slice of the generation API the story pipeline needs.
type StoryBackend interface {
	CreateStory(ctx context.Context, req api.CreateStoryRequest) (*api.CreateStoryResponse, error)
	StoryStatus(ctx context.Context, storyID string) (*api.CreateStoryResponse, error)
	StoryDetail(ctx context.Context, storyID string) (*api.StoryDetailResponse, error)
}

// StoryResult is the success payload of a finished story submission.
type StoryResult struct {
	StoryID string
	Title   string
}

// StoryOptions configures a StoryController.
type StoryOptions struct {
	Backend     StoryBackend
	Cache       domain.StoryStore
	Messages    *i18n.Catalog
	Interval    time.Duration
	MaxAttempts int
	Logger      *infra.Logger
}

// StoryController drives story creation: submit, short-circuit if the
// response is already terminal, otherwise poll the status endpoint until it
// is. Submitting again cancels any polling session left from the previous
// submission.
type StoryController struct {
	backend     StoryBackend
	cache       domain.StoryStore
	msgs        *i18n.Catalog
	interval    time.Duration
	maxAttempts int
	logger      *infra.Logger

	state *Value[State[StoryResult]]

	mu      sync.Mutex
	session int
	handle  *poll.Handle[domain.Status]
}

// NewStoryController validates options and applies the default poll policy.
func NewStoryController(opts StoryOptions) (*StoryController, error) {
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
	return &StoryController{
		backend:     opts.Backend,
		cache:       opts.Cache,
		msgs:        msgs,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		state:       NewValue(Idle[StoryResult]()),
	}, nil
}

// State exposes the observable submission state.
func (c *StoryController) State() *Value[State[StoryResult]] {
	return c.state
}

// Submit validates the story text, cancels any prior session and starts the
// submit-then-poll cycle in the background. The returned error only covers
// validation; everything asynchronous is published through State.
func (c *StoryController) Submit(ctx context.Context, content string, style domain.Style) error {
	if content == "" {
		return domain.ErrEmptyContent
	}

	token := c.begin()
	c.state.Set(Loading[StoryResult]())

	go c.run(ctx, token, content, style)
	return nil
}

// Stop cancels the active polling session, if any. The state keeps its last
// published value; the caller decides what to render next.
func (c *StoryController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session++
}

func (c *StoryController) run(ctx context.Context, token int, content string, style domain.Style) {
	resp, err := c.backend.CreateStory(ctx, api.CreateStoryRequest{
		Content: content,
		Style:   string(style),
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("story: create request failed")
		c.publish(token, Failure[StoryResult](err, c.msgs.Text(i18n.KeyGenerationFailed)))
		return
	}

	status := domain.ParseStatus(resp.Status)
	story := &domain.Story{
		ID:        resp.StoryID,
		Title:     resp.Title,
		Content:   content,
		Style:     style,
		Status:    status,
		CreatedAt: time.Now(),
	}
	if err := c.cache.UpsertStory(ctx, story); err != nil {
		c.logger.Error().Err(err).Str("story_id", resp.StoryID).Msg("story: cache write failed")
	}

	// The job may already be terminal right after submission; skip the poller
	// and the extra round trip it would cost.
	if status.Terminal() {
		c.finish(ctx, token, story, status)
		return
	}

	handle, err := poll.Start(ctx, poll.Config[domain.Status]{
		Fetch: func(ctx context.Context) (domain.Status, error) {
			st, err := c.backend.StoryStatus(ctx, story.ID)
			if err != nil {
				return "", err
			}
			return domain.ParseStatus(st.Status), nil
		},
		Terminal:    domain.Status.Terminal,
		Interval:    c.interval,
		MaxAttempts: c.maxAttempts,
		OnResult: func(st domain.Status) {
			if st == story.Status {
				return
			}
			story.Status = st
			if err := c.cache.UpsertStory(ctx, story); err != nil {
				c.logger.Error().Err(err).Str("story_id", story.ID).Msg("story: cache write failed")
			}
		},
		Logger: c.logger,
	})
	if err != nil {
		c.publish(token, Failure[StoryResult](err, c.msgs.Text(i18n.KeyGenerationFailed)))
		return
	}
	c.track(token, handle)

	status, err = handle.Wait(ctx)
	switch {
	case err == nil:
		c.finish(ctx, token, story, status)
	case isCancelled(err):
		// Superseded or stopped; the newer session owns the state now.
	case isTimeout(err):
		c.publish(token, Failure[StoryResult](err, c.msgs.Text(i18n.KeyTimeout)))
	default:
		c.publish(token, Failure[StoryResult](err, c.msgs.Text(i18n.KeyGenerationFailed)))
	}
}

// finish resolves a terminal status into the published result, backfilling
// the title on completion.
func (c *StoryController) finish(ctx context.Context, token int, story *domain.Story, status domain.Status) {
	story.Status = status
	if status == domain.StatusFailed {
		_ = c.cache.UpsertStory(ctx, story)
		c.publish(token, Failure[StoryResult](nil, c.msgs.Text(i18n.KeyGenerationFailed)))
		return
	}

	if story.Title == "" {
		if detail, err := c.backend.StoryDetail(ctx, story.ID); err == nil && detail.Title != "" {
			story.Title = detail.Title
		} else {
			story.Title = domain.FallbackTitle(story.Content)
		}
	}
	if err := c.cache.UpsertStory(ctx, story); err != nil {
		c.logger.Error().Err(err).Str("story_id", story.ID).Msg("story: cache write failed")
	}
	c.publish(token, Success(StoryResult{StoryID: story.ID, Title: story.Title}))
}

// begin cancels the previous session and hands out the next session token.
func (c *StoryController) begin() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session++
	return c.session
}

func (c *StoryController) track(token int, handle *poll.Handle[domain.Status]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.session {
		// A newer session started while this one was submitting.
		handle.Cancel()
		return
	}
	c.handle = handle
}

// publish applies a state only if the session is still current, so a result
// from a cancelled session can never clobber its successor.
func (c *StoryController) publish(token int, state State[StoryResult]) {
	c.mu.Lock()
	current := token == c.session
	c.mu.Unlock()
	if current {
		c.state.Set(state)
	}
}
