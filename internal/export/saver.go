// Package export downloads rendered videos from the backend CDN and saves
// them into the local media library, reporting download progress on the way.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"aistoryctl/internal/domain"
	"aistoryctl/internal/infra"
	"aistoryctl/internal/storage"
)

// ErrNoPreview is returned when the asset has no rendered video to save.
var ErrNoPreview = errors.New("export: asset has no preview url")

const defaultDownloadTimeout = 5 * time.Minute

// Options configures a Saver.
type Options struct {
	Library    *storage.Library
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Saver streams a rendered video to disk. Progress is reported as a 0-100
// percentage when the server announces a content length, otherwise only the
// final 100 is emitted.
type Saver struct {
	library *storage.Library
	client  *http.Client
	logger  *infra.Logger
}

// NewSaver validates options and applies defaults.
func NewSaver(opts Options) (*Saver, error) {
	if opts.Library == nil {
		return nil, errors.New("export: library is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultDownloadTimeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &Saver{library: opts.Library, client: client, logger: logger}, nil
}

// SaveVideo downloads the asset's rendered video into the library and returns
// the absolute path of the saved file. A partial file left by a failed
// download is removed. onProgress may be nil.
func (s *Saver) SaveVideo(ctx context.Context, asset domain.Asset, onProgress func(pct int)) (string, error) {
	if asset.PreviewURL == "" {
		return "", ErrNoPreview
	}
	key := storage.VideoKey(asset.Title, asset.ID)
	path, err := s.download(ctx, asset.PreviewURL, key, onProgress)
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("asset_id", asset.ID).Str("path", path).Msg("export: video saved")
	return path, nil
}

// SaveCover downloads the asset's cover image next to the video. Assets
// without a cover are not an error; an empty path is returned.
func (s *Saver) SaveCover(ctx context.Context, asset domain.Asset) (string, error) {
	if asset.CoverURL == "" {
		return "", nil
	}
	return s.download(ctx, asset.CoverURL, storage.CoverKey(asset.Title, asset.ID), nil)
}

func (s *Saver) download(ctx context.Context, url, key string, onProgress func(pct int)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("export: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("export: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("export: download: unexpected http status %d", resp.StatusCode)
	}

	f, path, err := s.library.Create(key)
	if err != nil {
		return "", err
	}

	var dst io.Writer = f
	if onProgress != nil {
		dst = &progressWriter{total: resp.ContentLength, report: onProgress, dst: f}
	}
	_, copyErr := io.Copy(dst, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		if err := s.library.Remove(key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("export: partial file cleanup failed")
		}
		if copyErr != nil {
			return "", fmt.Errorf("export: stream to disk: %w", copyErr)
		}
		return "", fmt.Errorf("export: close file: %w", closeErr)
	}
	if onProgress != nil {
		onProgress(100)
	}
	return path, nil
}

// progressWriter counts bytes through to dst and reports whole-percent steps.
type progressWriter struct {
	dst     io.Writer
	total   int64
	written int64
	report  func(pct int)
	lastPct int
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.written += int64(n)
	if w.total > 0 {
		pct := int(w.written * 100 / w.total)
		if pct > 100 {
			pct = 100
		}
		if pct > w.lastPct {
			w.lastPct = pct
			w.report(pct)
		}
	}
	return n, err
}
