// Package cache is the observable local store of stories, shots and assets.
// Pipeline controllers write freshly polled server state into it; the
// presentation layer observes it. Backed by an embedded SQLite database so
// the library survives restarts, like the mobile client's on-device cache.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"aistoryctl/internal/domain"
	"aistoryctl/internal/infra"
)

// Options configures the cache store.
type Options struct {
	// Path is the SQLite database location. Use ":memory:" for tests.
	Path   string
	Logger *infra.Logger
}

// Store implements domain.EntityCache on top of gorm. Writes are serialized
// by the database; observers receive a full snapshot after every committed
// write so they never see a partially applied poll.
type Store struct {
	db     *gorm.DB
	logger *infra.Logger

	observers *observerHub
}

// Open opens (and migrates) the cache database at the given path.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("cache: database path is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := infra.DiscardLogger()
		logger = &l
	}

	db, err := gorm.Open(sqlite.Open(opts.Path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Story{}, &domain.Shot{}, &domain.Asset{}); err != nil {
		return nil, fmt.Errorf("cache: migrate schema: %w", err)
	}

	return &Store{
		db:        db,
		logger:    logger,
		observers: newObserverHub(),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("cache: close database: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("cache: close database: %w", err)
	}
	return nil
}

// UpsertStory inserts or replaces a story record.
func (s *Store) UpsertStory(ctx context.Context, story *domain.Story) error {
	if story == nil || story.ID == "" {
		return domain.ErrEmptyTarget
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(story).Error
	if err != nil {
		return fmt.Errorf("cache: upsert story: %w", err)
	}
	return nil
}

// StoryByID fetches a cached story.
func (s *Store) StoryByID(ctx context.Context, id string) (*domain.Story, error) {
	var story domain.Story
	if err := s.db.WithContext(ctx).First(&story, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("cache: load story: %w", err)
	}
	return &story, nil
}

// DeleteStory removes a story and cascades to its shots.
func (s *Store) DeleteStory(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.Shot{}, "story_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Story{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("cache: delete story: %w", err)
	}
	s.publishShots(ctx, id)
	return nil
}

// UpsertShot inserts or replaces one shot record.
func (s *Store) UpsertShot(ctx context.Context, shot *domain.Shot) error {
	if shot == nil || shot.ID == "" {
		return domain.ErrEmptyTarget
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(shot).Error
	if err != nil {
		return fmt.Errorf("cache: upsert shot: %w", err)
	}
	s.publishShots(ctx, shot.StoryID)
	return nil
}

// ShotByID fetches a cached shot.
func (s *Store) ShotByID(ctx context.Context, id string) (*domain.Shot, error) {
	var shot domain.Shot
	if err := s.db.WithContext(ctx).First(&shot, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("cache: load shot: %w", err)
	}
	return &shot, nil
}

// ShotsByStory returns a story's cached shots in sort order.
func (s *Store) ShotsByStory(ctx context.Context, storyID string) ([]domain.Shot, error) {
	var shots []domain.Shot
	err := s.db.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("sort_order asc").
		Find(&shots).Error
	if err != nil {
		return nil, fmt.Errorf("cache: list shots: %w", err)
	}
	return shots, nil
}

// ReplaceShots swaps the entire cached shot list of a story in one
// transaction. A partial merge could pair a stale status with a fresh sort
// order when the server list changed between polls, so the whole list goes in
// or nothing does.
func (s *Store) ReplaceShots(ctx context.Context, storyID string, shots []domain.Shot) error {
	if storyID == "" {
		return domain.ErrEmptyTarget
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.Shot{}, "story_id = ?", storyID).Error; err != nil {
			return err
		}
		if len(shots) == 0 {
			return nil
		}
		return tx.Create(&shots).Error
	})
	if err != nil {
		return fmt.Errorf("cache: replace shots: %w", err)
	}
	s.publishShots(ctx, storyID)
	return nil
}

// ObserveShots streams snapshots of a story's shot list. The returned cancel
// function must be called when the observer goes away.
func (s *Store) ObserveShots(storyID string) (<-chan []domain.Shot, func()) {
	ch, cancel := s.observers.subscribeShots(storyID)
	// Seed with the current snapshot so late subscribers start consistent.
	s.publishShots(context.Background(), storyID)
	return ch, cancel
}

// UpsertAsset inserts or replaces an asset record.
func (s *Store) UpsertAsset(ctx context.Context, asset *domain.Asset) error {
	if asset == nil || asset.ID == "" {
		return domain.ErrEmptyTarget
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(asset).Error
	if err != nil {
		return fmt.Errorf("cache: upsert asset: %w", err)
	}
	s.publishAssets(ctx)
	return nil
}

// AssetByID fetches a cached asset.
func (s *Store) AssetByID(ctx context.Context, id string) (*domain.Asset, error) {
	var asset domain.Asset
	if err := s.db.WithContext(ctx).First(&asset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("cache: load asset: %w", err)
	}
	return &asset, nil
}

// Assets returns the cached asset library, newest first.
func (s *Store) Assets(ctx context.Context) ([]domain.Asset, error) {
	var assets []domain.Asset
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("cache: list assets: %w", err)
	}
	return assets, nil
}

// ObserveAssets streams snapshots of the asset library.
func (s *Store) ObserveAssets() (<-chan []domain.Asset, func()) {
	ch, cancel := s.observers.subscribeAssets()
	s.publishAssets(context.Background())
	return ch, cancel
}

func (s *Store) publishShots(ctx context.Context, storyID string) {
	if storyID == "" {
		return
	}
	shots, err := s.ShotsByStory(ctx, storyID)
	if err != nil {
		s.logger.Error().Err(err).Str("story_id", storyID).Msg("cache: snapshot for observers failed")
		return
	}
	s.observers.publishShots(storyID, shots)
}

func (s *Store) publishAssets(ctx context.Context) {
	assets, err := s.Assets(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("cache: asset snapshot for observers failed")
		return
	}
	s.observers.publishAssets(assets)
}

var _ domain.EntityCache = (*Store)(nil)
