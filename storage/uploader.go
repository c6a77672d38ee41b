package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"projectflow/gateway"
)

// Upload is one raw file blob handed to the uploader.
type Upload struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Uploader turns raw blobs into FileDescriptors through the blob gateway.
type Uploader struct {
	blobs gateway.Blobs
	now   func() time.Time
}

// NewUploader builds an Uploader over the given blob store.
func NewUploader(blobs gateway.Blobs) *Uploader {
	return &Uploader{blobs: blobs, now: time.Now}
}

// WithClock overrides the uploaded-at timestamp source for tests.
func (u *Uploader) WithClock(now func() time.Time) *Uploader {
	u.now = now
	return u
}

// Now exposes the uploader's clock so callers building storage paths use the
// same timestamp source.
func (u *Uploader) Now() time.Time {
	return u.now()
}

// Upload stores one blob at bucket/path with overwrite-allowed semantics and
// returns its descriptor. Storage errors propagate unmodified; there is no
// retry.
func (u *Uploader) Upload(ctx context.Context, in Upload, bucket, path string) (FileDescriptor, error) {
	stored, err := u.blobs.Upload(ctx, bucket, path, in.ContentType, in.Content)
	if err != nil {
		return FileDescriptor{}, fmt.Errorf("storage: upload %s: %w", path, err)
	}
	return FileDescriptor{
		ID:         stored,
		Name:       in.Name,
		URL:        u.blobs.PublicURL(bucket, stored),
		Type:       Classify(in.ContentType),
		UploadedAt: u.now().UTC().Format(time.RFC3339),
	}, nil
}

// Remove deletes stored blobs by path.
func (u *Uploader) Remove(ctx context.Context, bucket string, paths []string) error {
	if err := u.blobs.Remove(ctx, bucket, paths); err != nil {
		return fmt.Errorf("storage: remove %d blob(s) from %s: %w", len(paths), bucket, err)
	}
	return nil
}

// UploadAll stores every blob in parallel, preserving input order in the
// result. The first failure aborts the batch.
func (u *Uploader) UploadAll(ctx context.Context, ins []Upload, bucket string, path func(Upload) string) ([]FileDescriptor, error) {
	if len(ins) == 0 {
		return nil, nil
	}

	descs := make([]FileDescriptor, len(ins))
	g, ctx := errgroup.WithContext(ctx)
	for i, in := range ins {
		g.Go(func() error {
			desc, err := u.Upload(ctx, in, bucket, path(in))
			if err != nil {
				return err
			}
			descs[i] = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return descs, nil
}
