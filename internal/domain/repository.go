package domain

import "context"

// StoryStore defines local persistence for stories.
type StoryStore interface {
	UpsertStory(ctx context.Context, story *Story) error
	StoryByID(ctx context.Context, id string) (*Story, error)
	DeleteStory(ctx context.Context, id string) error
}

// ShotStore defines local persistence for shots, scoped by their parent
// story. ReplaceShots swaps the whole cached list for a story in one write so
// observers never see a mix of two polls.
type ShotStore interface {
	UpsertShot(ctx context.Context, shot *Shot) error
	ShotByID(ctx context.Context, id string) (*Shot, error)
	ShotsByStory(ctx context.Context, storyID string) ([]Shot, error)
	ReplaceShots(ctx context.Context, storyID string, shots []Shot) error
	ObserveShots(storyID string) (<-chan []Shot, func())
}

// AssetStore defines local persistence for rendered video assets.
type AssetStore interface {
	UpsertAsset(ctx context.Context, asset *Asset) error
	AssetByID(ctx context.Context, id string) (*Asset, error)
	Assets(ctx context.Context) ([]Asset, error)
	ObserveAssets() (<-chan []Asset, func())
}

// EntityCache is the full local cache surface consumed by the pipeline
// controllers and the presentation layer.
type EntityCache interface {
	StoryStore
	ShotStore
	AssetStore
}
