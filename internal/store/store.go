package store

import (
	"context"

	"github.com/quan0715/notion-github-sync/internal/models"
)

// Store defines the persistence interface for sync history.
type Store interface {
	CreateSyncRecord(ctx context.Context, rec *models.SyncRecord) error
	ListSyncRecords(ctx context.Context, limit int) ([]*models.SyncRecord, error)
	ListSyncRecordsForPage(ctx context.Context, pageID string, limit int) ([]*models.SyncRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
