package pipeline

import (
	"context"
	"strings"
	"time"

	"aistoryctl/internal/api"
	"aistoryctl/internal/domain"
	"aistoryctl/internal/i18n"
	"aistoryctl/internal/infra"
)

// AssetBackend is the slice of the generation API the asset library needs.
type AssetBackend interface {
	AllAssets(ctx context.Context) ([]api.AssetItem, error)
}

// AssetsOptions configures an AssetsController.
type AssetsOptions struct {
	Backend  AssetBackend
	Cache    domain.AssetStore
	Messages *i18n.Catalog
	Logger   *infra.Logger
}

// AssetsController keeps the local asset library in sync with the backend.
// There is nothing to poll here: rendered videos land in the library through
// the video pipeline, this controller only refreshes the remote list on
// demand and serves filtered reads.
type AssetsController struct {
	backend AssetBackend
	cache   domain.AssetStore
	msgs    *i18n.Catalog
	logger  *infra.Logger

	state *Value[State[[]domain.Asset]]
}

// NewAssetsController validates options.
func NewAssetsController(opts AssetsOptions) (*AssetsController, error) {
	if opts.Backend == nil {
		return nil, errNilBackend
	}
	if opts.Cache == nil {
		return nil, errNilCache
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := infra.DiscardLogger()
		logger = &l
	}
	msgs := opts.Messages
	if msgs == nil {
		msgs = i18n.New("en")
	}
	return &AssetsController{
		backend: opts.Backend,
		cache:   opts.Cache,
		msgs:    msgs,
		logger:  logger,
		state:   NewValue(Idle[[]domain.Asset]()),
	}, nil
}

// State exposes the observable refresh state.
func (c *AssetsController) State() *Value[State[[]domain.Asset]] {
	return c.state
}

// Refresh fetches the remote asset library and upserts it into the cache.
func (c *AssetsController) Refresh(ctx context.Context) error {
	c.state.Set(Loading[[]domain.Asset]())

	items, err := c.backend.AllAssets(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("assets: refresh failed")
		c.state.Set(Failure[[]domain.Asset](err, c.msgs.Text(i18n.KeyGenerationFailed)))
		return err
	}

	for _, item := range items {
		asset := &domain.Asset{
			ID:         item.ID,
			StoryID:    item.StoryID,
			Title:      item.Title,
			PreviewURL: item.PreviewURL,
			CoverURL:   item.CoverURL,
			Duration:   item.Duration,
			Status:     domain.ParseStatus(item.Status),
			CreatedAt:  time.UnixMilli(item.CreatedAt),
		}
		if err := c.cache.UpsertAsset(ctx, asset); err != nil {
			c.logger.Error().Err(err).Str("asset_id", item.ID).Msg("assets: cache write failed")
		}
	}

	assets, err := c.cache.Assets(ctx)
	if err != nil {
		c.state.Set(Failure[[]domain.Asset](err, c.msgs.Text(i18n.KeyGenerationFailed)))
		return err
	}
	c.state.Set(Success(assets))
	return nil
}

// Search returns cached assets whose title contains the query,
// case-insensitively. An empty query returns the whole library.
func (c *AssetsController) Search(ctx context.Context, query string) ([]domain.Asset, error) {
	assets, err := c.cache.Assets(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return assets, nil
	}
	filtered := assets[:0:0]
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Title), strings.ToLower(query)) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}
