package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Library is the on-disk media library exported videos and cover images land
// in. It mirrors the gallery directory a mobile client saves into: a flat
// root with one subdirectory per media kind.
type Library struct {
	root string
}

// NewLibrary initializes a Library rooted at root, creating it if needed.
func NewLibrary(root string) (*Library, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: library root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure library root: %w", err)
	}
	return &Library{root: root}, nil
}

// Root returns the configured library directory.
func (l *Library) Root() string {
	if l == nil {
		return ""
	}
	return l.root
}

// Create opens a file for streaming at the given relative key and returns it
// together with its absolute path. Keys are cleaned so a hostile download name
// cannot escape the library root. The caller owns closing the file.
func (l *Library) Create(key string) (*os.File, string, error) {
	if l == nil {
		return nil, "", errors.New("storage: no library configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, "", err
	}
	fullPath := filepath.Join(l.root, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return nil, "", fmt.Errorf("storage: create file: %w", err)
	}
	return f, fullPath, nil
}

// Write persists the provided bytes at the given relative key in one shot and
// returns the canonicalized key. Used for small artifacts like cover images;
// videos stream through Create instead.
func (l *Library) Write(ctx context.Context, key string, data []byte) (string, error) {
	if l == nil {
		return "", errors.New("storage: no library configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, _, err := l.Create(key)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	cleanKey, _ := sanitizeKey(key)
	return cleanKey, nil
}

// Remove deletes the file at key. Missing files are not an error so a failed
// download can always clean up after itself.
func (l *Library) Remove(key string) error {
	if l == nil {
		return errors.New("storage: no library configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.root, filepath.FromSlash(cleanKey)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

// VideoKey builds the library key for a rendered video from its display title
// and asset id, e.g. "videos/sunset-harbor-a1.mp4".
func VideoKey(title, assetID string) string {
	return "videos/" + mediaSlug(title, assetID) + ".mp4"
}

// CoverKey builds the library key for a video's cover image.
func CoverKey(title, assetID string) string {
	return "covers/" + mediaSlug(title, assetID) + ".jpg"
}

func mediaSlug(title, assetID string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return assetID
	}
	return slug + "-" + assetID
}

// sanitizeKey normalizes a key and prevents escaping the library root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
