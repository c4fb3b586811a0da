// Package storage persists uploaded files. The default backend is the
// local filesystem with per-owner directories; a MinIO backend is
// available for deployments with object storage. Extraction always
// works on a local path, so every backend can materialize one.
package storage

import (
	"context"
	"io"
)

// Store is the uploaded-file backend.
type Store interface {
	// Save writes the file under the owner's namespace and returns the
	// backend-specific storage path recorded on the document.
	Save(ctx context.Context, ownerID, storedName string, r io.Reader, size int64, contentType string) (string, error)
	// Open streams the stored file.
	Open(ctx context.Context, storagePath string) (io.ReadCloser, error)
	// Exists reports whether the stored file is still present.
	Exists(ctx context.Context, storagePath string) (bool, error)
	// Delete removes the stored file.
	Delete(ctx context.Context, storagePath string) error
	// LocalPath makes the file reachable on the local filesystem for
	// extraction. The cleanup func must always be called.
	LocalPath(ctx context.Context, storagePath string) (path string, cleanup func(), err error)
}
