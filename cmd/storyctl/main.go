// storyctl is the command-line front end of the story client: it submits
// stories, watches shot generation, regenerates individual shots, renders
// videos and saves them into the local media library.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"aistoryctl/internal/api"
	"aistoryctl/internal/cache"
	"aistoryctl/internal/domain"
	"aistoryctl/internal/export"
	"aistoryctl/internal/i18n"
	"aistoryctl/internal/infra"
	"aistoryctl/internal/pipeline"
	"aistoryctl/internal/storage"
)

const usage = `usage: storyctl <command> [flags]

commands:
  create  -content <text> [-style movie|animation|realistic]
  shots   -story <id>
  regen   -shot <id> -prompt <text> [-narration <text>] [-transition <name>]
  video   -story <id> [-save]
  assets  [-query <text>] [-refresh]
  export  -asset <id>
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	a, err := newApp(cfg, logger)
	if err != nil {
		exitWithError(err)
	}
	defer a.close()

	ctx := context.Background()
	switch os.Args[1] {
	case "create":
		err = a.cmdCreate(ctx, os.Args[2:])
	case "shots":
		err = a.cmdShots(ctx, os.Args[2:])
	case "regen":
		err = a.cmdRegen(ctx, os.Args[2:])
	case "video":
		err = a.cmdVideo(ctx, os.Args[2:])
	case "assets":
		err = a.cmdAssets(ctx, os.Args[2:])
	case "export":
		err = a.cmdExport(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		exitWithError(err)
	}
}

// app wires the client, the local cache and the pipeline controllers the
// commands run on.
type app struct {
	cfg    *infra.Config
	logger infra.Logger
	client *api.Client
	cache  *cache.Store
	msgs   *i18n.Catalog
}

func newApp(cfg *infra.Config, logger infra.Logger) (*app, error) {
	client, err := api.NewClient(api.Options{
		BaseURL:        cfg.APIBaseURL,
		HTTPClient:     &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:         &logger,
		RequestTimeout: cfg.HTTPTimeout,
	})
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(cache.Options{Path: cfg.CachePath, Logger: &logger})
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		cache:  store,
		msgs:   i18n.New(cfg.Locale),
	}, nil
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("cache close failed")
	}
}

func (a *app) cmdCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	content := fs.String("content", "", "story text to generate from")
	style := fs.String("style", string(domain.StyleMovie), "visual style (movie, animation, realistic)")
	fs.Parse(args)

	ctrl, err := pipeline.NewStoryController(pipeline.StoryOptions{
		Backend:     a.client,
		Cache:       a.cache,
		Messages:    a.msgs,
		Interval:    a.cfg.PollInterval,
		MaxAttempts: a.cfg.PollMaxAttempts,
		Logger:      &a.logger,
	})
	if err != nil {
		return err
	}
	defer ctrl.Stop()

	if err := ctrl.Submit(ctx, *content, domain.ParseStyle(*style)); err != nil {
		return err
	}
	fmt.Println("generating story...")

	st := waitTerminal(ctrl.State())
	if st.Phase != pipeline.PhaseSuccess {
		return stateError(st.Reason, st.Err)
	}
	fmt.Printf("story %s ready: %s\n", st.Value.StoryID, st.Value.Title)

	// The storyboard follows immediately, like the app navigating into it.
	return a.watchShots(ctx, st.Value.StoryID)
}

func (a *app) cmdShots(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("shots", flag.ExitOnError)
	storyID := fs.String("story", "", "story id to watch")
	fs.Parse(args)

	return a.watchShots(ctx, *storyID)
}

func (a *app) watchShots(ctx context.Context, storyID string) error {
	ctrl, err := pipeline.NewShotsController(pipeline.ShotsOptions{
		Backend:     a.client,
		Cache:       a.cache,
		Messages:    a.msgs,
		Interval:    a.cfg.PollInterval,
		MaxAttempts: a.cfg.PollMaxAttempts,
		Logger:      &a.logger,
	})
	if err != nil {
		return err
	}
	defer ctrl.Stop()

	if err := ctrl.PollUntilAllTerminal(ctx, storyID); err != nil {
		return err
	}
	fmt.Println("waiting for shots...")

	st := waitTerminal(ctrl.State())
	if st.Phase != pipeline.PhaseSuccess {
		return stateError(st.Reason, st.Err)
	}
	for _, shot := range st.Value {
		fmt.Printf("  %d. [%s] %s  %s\n", shot.SortOrder, shot.Status, shot.Title, shot.ImageURL)
	}
	return nil
}

func (a *app) cmdRegen(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("regen", flag.ExitOnError)
	shotID := fs.String("shot", "", "shot id to regenerate")
	prompt := fs.String("prompt", "", "new image prompt")
	narration := fs.String("narration", "", "new narration text")
	transition := fs.String("transition", domain.TransitionCrossfade, "transition effect")
	fs.Parse(args)

	ctrl, err := pipeline.NewRegenController(pipeline.RegenOptions{
		Backend:     a.client,
		Cache:       a.cache,
		Messages:    a.msgs,
		Interval:    a.cfg.PollInterval,
		MaxAttempts: a.cfg.PollMaxAttempts,
		Logger:      &a.logger,
	})
	if err != nil {
		return err
	}
	defer ctrl.Stop()

	err = ctrl.Regenerate(ctx, domain.ShotEdit{
		ShotID:     *shotID,
		Prompt:     *prompt,
		Narration:  *narration,
		Transition: *transition,
	})
	if err != nil {
		return err
	}
	fmt.Println("regenerating shot...")

	st := waitTerminal(ctrl.State())
	if st.Phase != pipeline.PhaseSuccess {
		return stateError(st.Reason, st.Err)
	}
	fmt.Printf("shot %s regenerated: %s\n", st.Value.ID, st.Value.ImageURL)
	return nil
}

func (a *app) cmdVideo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("video", flag.ExitOnError)
	storyID := fs.String("story", "", "story id to render")
	save := fs.Bool("save", false, "save the finished video into the media library")
	fs.Parse(args)

	ctrl, err := pipeline.NewVideoController(pipeline.VideoOptions{
		Backend:     a.client,
		Cache:       a.cache,
		Messages:    a.msgs,
		Interval:    a.cfg.PollInterval,
		MaxAttempts: a.cfg.PollMaxAttempts,
		Logger:      &a.logger,
	})
	if err != nil {
		return err
	}
	defer ctrl.Stop()

	progCh, cancelProg := ctrl.Progress().Observe()
	defer cancelProg()
	go func() {
		for pct := range progCh {
			if pct != pipeline.ProgressUnset {
				fmt.Printf("rendering... %d%%\n", pct)
			}
		}
	}()

	if err := ctrl.GenerateVideo(ctx, *storyID); err != nil {
		return err
	}

	st := waitTerminal(ctrl.State())
	if st.Phase != pipeline.PhaseSuccess {
		return stateError(st.Reason, st.Err)
	}
	fmt.Printf("video ready: %s\n", st.Value.PreviewURL)

	if !*save {
		return nil
	}
	return a.saveAsset(ctx, st.Value.AssetID)
}

func (a *app) cmdAssets(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("assets", flag.ExitOnError)
	query := fs.String("query", "", "filter assets by title")
	refresh := fs.Bool("refresh", true, "sync the library from the backend first")
	fs.Parse(args)

	ctrl, err := pipeline.NewAssetsController(pipeline.AssetsOptions{
		Backend:  a.client,
		Cache:    a.cache,
		Messages: a.msgs,
		Logger:   &a.logger,
	})
	if err != nil {
		return err
	}
	if *refresh {
		if err := ctrl.Refresh(ctx); err != nil {
			return err
		}
	}
	assets, err := ctrl.Search(ctx, *query)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		fmt.Println("no assets")
		return nil
	}
	for _, asset := range assets {
		fmt.Printf("  %s  [%s]  %s  %s\n", asset.ID, asset.Status, asset.Title, asset.PreviewURL)
	}
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	assetID := fs.String("asset", "", "asset id to save")
	fs.Parse(args)

	return a.saveAsset(ctx, *assetID)
}

// saveAsset downloads a cached asset's video (and cover, when present) into
// the media library.
func (a *app) saveAsset(ctx context.Context, assetID string) error {
	if assetID == "" {
		return domain.ErrEmptyTarget
	}
	asset, err := a.cache.AssetByID(ctx, assetID)
	if err != nil {
		return err
	}
	lib, err := storage.NewLibrary(a.cfg.StoragePath)
	if err != nil {
		return err
	}
	saver, err := export.NewSaver(export.Options{Library: lib, Logger: &a.logger})
	if err != nil {
		return err
	}

	lastPct := -1
	path, err := saver.SaveVideo(ctx, *asset, func(pct int) {
		if pct/10 > lastPct/10 {
			fmt.Printf("downloading... %d%%\n", pct)
		}
		lastPct = pct
	})
	if err != nil {
		return fmt.Errorf("%s: %w", a.msgs.Text(i18n.KeyExportFailed), err)
	}
	if _, err := saver.SaveCover(ctx, *asset); err != nil {
		a.logger.Warn().Err(err).Str("asset_id", assetID).Msg("cover download failed")
	}
	fmt.Printf("%s: %s\n", a.msgs.Text(i18n.KeyExportDone), path)
	return nil
}

// waitTerminal blocks until the observable state settles in Success or Error.
func waitTerminal[T any](v *pipeline.Value[pipeline.State[T]]) pipeline.State[T] {
	ch, cancel := v.Observe()
	defer cancel()
	for st := range ch {
		if st.Phase == pipeline.PhaseSuccess || st.Phase == pipeline.PhaseError {
			return st
		}
	}
	return v.Get()
}

func stateError(reason string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", reason, err)
	}
	return errors.New(reason)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "storyctl: %v\n", err)
	os.Exit(1)
}
