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

// ShotBackend is the slice of the generation API the shot-list pipeline needs.
type ShotBackend interface {
	StoryShots(ctx context.Context, storyID string) (*api.StoryShotsResponse, error)
}

// ShotsOptions configures a ShotsController.
type ShotsOptions struct {
	Backend     ShotBackend
	Cache       domain.ShotStore
	Messages    *i18n.Catalog
	Interval    time.Duration
	MaxAttempts int
	Logger      *infra.Logger
}

// ShotsController polls the shot list of one story until every shot is
// terminal. There is no submission step: the parent story's generation
// produces the shots server-side, the controller only observes them. Each
// tick replaces the cached list wholesale. The caller must Stop the
// controller when leaving the screen; it never self-cancels.
type ShotsController struct {
	backend     ShotBackend
	cache       domain.ShotStore
	msgs        *i18n.Catalog
	interval    time.Duration
	maxAttempts int
	logger      *infra.Logger

	state       *Value[State[[]domain.Shot]]
	allTerminal *Value[bool]

	mu      sync.Mutex
	session int
	handle  *poll.Handle[[]domain.Shot]
}

// NewShotsController validates options and applies the default poll policy.
func NewShotsController(opts ShotsOptions) (*ShotsController, error) {
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
	return &ShotsController{
		backend:     opts.Backend,
		cache:       opts.Cache,
		msgs:        msgs,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		state:       NewValue(Idle[[]domain.Shot]()),
		allTerminal: NewValue(false),
	}, nil
}

// State exposes the observable polling state. The success payload is the
// final shot list.
func (c *ShotsController) State() *Value[State[[]domain.Shot]] {
	return c.state
}

// AllTerminal turns true once the list is non-empty and every shot settled.
// The presentation layer uses it to gate navigation into shot editing while
// the list is still mutating.
func (c *ShotsController) AllTerminal() *Value[bool] {
	return c.allTerminal
}

// PollUntilAllTerminal starts polling the shot list of storyID. A prior
// session is cancelled first; the terminal gate resets to false.
func (c *ShotsController) PollUntilAllTerminal(ctx context.Context, storyID string) error {
	if storyID == "" {
		return domain.ErrEmptyTarget
	}

	token := c.begin()
	c.allTerminal.Set(false)
	c.state.Set(Loading[[]domain.Shot]())

	handle, err := poll.Start(ctx, poll.Config[[]domain.Shot]{
		Fetch: func(ctx context.Context) ([]domain.Shot, error) {
			resp, err := c.backend.StoryShots(ctx, storyID)
			if err != nil {
				return nil, err
			}
			return mapShots(storyID, resp.Shots), nil
		},
		// An empty list is never terminal: the story may still be producing
		// its first shot.
		Terminal:    allShotsTerminal,
		Interval:    c.interval,
		MaxAttempts: c.maxAttempts,
		OnResult: func(shots []domain.Shot) {
			if err := c.cache.ReplaceShots(ctx, storyID, shots); err != nil {
				c.logger.Error().Err(err).Str("story_id", storyID).Msg("shots: cache replace failed")
			}
		},
		Logger: c.logger,
	})
	if err != nil {
		return err
	}
	c.track(token, handle)

	go func() {
		shots, err := handle.Wait(ctx)
		switch {
		case err == nil:
			c.publish(token, Success(shots), true)
		case isCancelled(err):
		case isTimeout(err):
			c.publish(token, Failure[[]domain.Shot](err, c.msgs.Text(i18n.KeyTimeout)), false)
		default:
			c.publish(token, Failure[[]domain.Shot](err, c.msgs.Text(i18n.KeyGenerationFailed)), false)
		}
	}()
	return nil
}

// Stop cancels the active polling session. Called by the presentation layer
// when the shot screen goes away.
func (c *ShotsController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session++
}

func (c *ShotsController) begin() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session++
	return c.session
}

func (c *ShotsController) track(token int, handle *poll.Handle[[]domain.Shot]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.session {
		handle.Cancel()
		return
	}
	c.handle = handle
}

func (c *ShotsController) publish(token int, state State[[]domain.Shot], terminal bool) {
	c.mu.Lock()
	current := token == c.session
	c.mu.Unlock()
	if !current {
		return
	}
	c.state.Set(state)
	if terminal {
		c.allTerminal.Set(true)
	}
}

func allShotsTerminal(shots []domain.Shot) bool {
	if len(shots) == 0 {
		return false
	}
	for _, s := range shots {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}

func mapShots(storyID string, items []api.ShotItem) []domain.Shot {
	shots := make([]domain.Shot, 0, len(items))
	for _, item := range items {
		shots = append(shots, domain.Shot{
			ID:         item.ID,
			StoryID:    storyID,
			SortOrder:  item.SortOrder,
			Title:      item.Title,
			Prompt:     item.Prompt,
			ImageURL:   item.ImageURL,
			Transition: domain.TransitionCrossfade,
			Status:     domain.ParseStatus(item.Status),
			CreatedAt:  time.Now(),
		})
	}
	return shots
}
