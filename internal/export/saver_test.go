package export

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"aistoryctl/internal/domain"
	"aistoryctl/internal/storage"
)

func newTestSaver(t *testing.T) (*Saver, *storage.Library) {
	t.Helper()
	lib, err := storage.NewLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	saver, err := NewSaver(Options{Library: lib})
	if err != nil {
		t.Fatalf("NewSaver: %v", err)
	}
	return saver, lib
}

func TestSaveVideoStreamsWithProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("v"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(payload)
	}))
	defer srv.Close()

	saver, _ := newTestSaver(t)
	var progress []int
	path, err := saver.SaveVideo(context.Background(), domain.Asset{
		ID:         "a1",
		Title:      "Sunset Harbor",
		PreviewURL: srv.URL + "/x.mp4",
	}, func(pct int) { progress = append(progress, pct) })
	if err != nil {
		t.Fatalf("SaveVideo: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("saved %d bytes, want %d", len(data), len(payload))
	}
	if filepath.Base(path) != "sunset-harbor-a1.mp4" {
		t.Fatalf("file name = %q", filepath.Base(path))
	}

	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("progress = %v, want it to end at 100", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress went backwards: %v", progress)
		}
	}
}

func TestSaveVideoHTTPErrorLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	saver, lib := newTestSaver(t)
	_, err := saver.SaveVideo(context.Background(), domain.Asset{
		ID:         "a2",
		Title:      "Missing",
		PreviewURL: srv.URL + "/x.mp4",
	}, nil)
	if err == nil {
		t.Fatalf("SaveVideo succeeded on 404")
	}
	if _, statErr := os.Stat(filepath.Join(lib.Root(), "videos", "missing-a2.mp4")); !os.IsNotExist(statErr) {
		t.Fatalf("partial file present after failed download")
	}
}

func TestSaveVideoRequiresPreviewURL(t *testing.T) {
	saver, _ := newTestSaver(t)
	if _, err := saver.SaveVideo(context.Background(), domain.Asset{ID: "a3"}, nil); err != ErrNoPreview {
		t.Fatalf("error = %v, want ErrNoPreview", err)
	}
}

func TestSaveCoverSkipsEmptyURL(t *testing.T) {
	saver, _ := newTestSaver(t)
	path, err := saver.SaveCover(context.Background(), domain.Asset{ID: "a4"})
	if err != nil {
		t.Fatalf("SaveCover: %v", err)
	}
	if path != "" {
		t.Fatalf("path = %q, want empty for coverless asset", path)
	}
}
