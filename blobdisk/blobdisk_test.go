package blobdisk

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUploadAndRemove(t *testing.T) {
	store, err := New(t.TempDir(), "http://localhost/blobs/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	path, err := store.Upload(ctx, "project-files", "projects/1-a.png", "image/png", strings.NewReader("img"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if path != "projects/1-a.png" {
		t.Errorf("stored path = %q", path)
	}
	if got := store.PublicURL("project-files", path); got != "http://localhost/blobs/project-files/projects/1-a.png" {
		t.Errorf("public url = %q", got)
	}

	// Overwrite is allowed.
	if _, err := store.Upload(ctx, "project-files", path, "image/png", strings.NewReader("img2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	if err := store.Remove(ctx, "project-files", []string{path}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing again is a no-op.
	if err := store.Remove(ctx, "project-files", []string{path}); err != nil {
		t.Errorf("idempotent remove: %v", err)
	}
}

func TestUploadRefusesEscapingPaths(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "root"), "http://localhost")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Upload(context.Background(), "bucket", "../../escape.txt", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatal("path escaping the root must be refused")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "escape.txt")); statErr == nil {
		t.Fatal("escaped file was written")
	}
}
