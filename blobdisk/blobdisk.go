// Package blobdisk implements the blob storage contract on a local
// directory tree, with public URLs served from a configured base. It stands
// in for the managed blob store in self-hosted and test deployments.
package blobdisk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store implements gateway.Blobs over root, one subdirectory per bucket.
type Store struct {
	root    string
	baseURL string
}

// New builds a Store rooted at dir. baseURL is the public prefix blobs are
// reachable under, without a trailing slash.
func New(dir, baseURL string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("blobdisk: empty root directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobdisk: create root: %w", err)
	}
	return &Store{root: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// resolve maps bucket/path onto a filesystem location, refusing anything
// that would escape the root.
func (s *Store) resolve(bucket, path string) (string, error) {
	if bucket == "" || path == "" {
		return "", fmt.Errorf("blobdisk: empty bucket or path")
	}
	full := filepath.Join(s.root, bucket, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("blobdisk: path %q escapes storage root", path)
	}
	return full, nil
}

// Upload stores the blob with overwrite-allowed semantics and returns the
// path, which doubles as the deletion key. The content type is carried in
// the path's descriptor, not on disk.
func (s *Store) Upload(ctx context.Context, bucket, path string, contentType string, r io.Reader) (string, error) {
	full, err := s.resolve(bucket, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blobdisk: create bucket dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("blobdisk: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("blobdisk: write %s: %w", path, err)
	}
	return path, nil
}

// PublicURL returns the durable public URL of a stored blob.
func (s *Store) PublicURL(bucket, path string) string {
	return s.baseURL + "/" + bucket + "/" + path
}

// Remove deletes the given blobs. Paths that are already gone are skipped,
// so removal is idempotent.
func (s *Store) Remove(ctx context.Context, bucket string, paths []string) error {
	for _, path := range paths {
		full, err := s.resolve(bucket, path)
		if err != nil {
			return err
		}
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("blobdisk: remove %s: %w", path, err)
		}
	}
	return nil
}
