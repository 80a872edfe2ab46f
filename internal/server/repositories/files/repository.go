package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/server/models"
)

// Repository persists encrypted file records. Soft-deleted files are
// invisible to every read.
type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	SoftDelete(ctx context.Context, id string, now time.Time) error
	// IncrementDownloadCount bumps the counter only while the file is live,
	// unexpired at now and under quota, and returns the new count.
	IncrementDownloadCount(ctx context.Context, id string, now time.Time) (int64, error)
	UpdateEncryptedPath(ctx context.Context, id, path string) error
	// ListExpired returns ids of live files that are expired at now or have
	// used up their download quota.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}
