package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLibraryWriteAndRemove(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}

	key, err := lib.Write(context.Background(), "covers/test.jpg", []byte("jpeg bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "covers/test.jpg" {
		t.Fatalf("key = %q, want covers/test.jpg", key)
	}
	data, err := os.ReadFile(filepath.Join(lib.Root(), "covers", "test.jpg"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Fatalf("content = %q", data)
	}

	if err := lib.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := lib.Remove(key); err != nil {
		t.Fatalf("Remove of missing file: %v", err)
	}
}

func TestLibraryRejectsEscapingKeys(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	for _, key := range []string{"", "../outside.mp4", "videos/../../outside.mp4", "."} {
		if _, err := lib.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("key %q accepted, want rejection", key)
		}
	}
}

func TestMediaKeys(t *testing.T) {
	if got := VideoKey("Sunset Harbor!", "a1"); got != "videos/sunset-harbor-a1.mp4" {
		t.Fatalf("VideoKey = %q", got)
	}
	if got := CoverKey("Sunset  Harbor", "a1"); got != "covers/sunset-harbor-a1.jpg" {
		t.Fatalf("CoverKey = %q", got)
	}
	// A title with no usable characters falls back to the asset id.
	if got := VideoKey("!!!", "a9"); got != "videos/a9.mp4" {
		t.Fatalf("VideoKey fallback = %q", got)
	}
}
