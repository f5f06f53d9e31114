// Package storage abstracts the external blob store that holds uploaded
// image bytes. Upload mechanics live outside this service; cascades only
// need deletion.
package storage

import (
	"context"
	"log/slog"
)

// BlobStore is the external blob storage collaborator.
type BlobStore interface {
	Delete(ctx context.Context, storageID string) error
}

// NoopStore is a BlobStore that only logs. Used in development and tests,
// and as the fallback when no store is configured.
type NoopStore struct{}

// Delete implements BlobStore.
func (NoopStore) Delete(ctx context.Context, storageID string) error {
	slog.DebugContext(ctx, "noop blob delete", "storage_id", storageID)
	return nil
}
