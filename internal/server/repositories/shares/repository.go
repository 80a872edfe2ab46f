package shares

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/server/models"
)

// Repository persists share links. The unique index on short_id is the
// authority for short id uniqueness.
type Repository interface {
	// Create inserts the share; a taken short id yields
	// common.ErrorAlreadyExists without aborting the surrounding transaction.
	Create(ctx context.Context, share *models.Share) error
	GetByID(ctx context.Context, id string) (*models.Share, error)
	GetByShortID(ctx context.Context, shortID string) (*models.Share, error)
	ShortIDExists(ctx context.Context, shortID string) (bool, error)
	DeleteByFileID(ctx context.Context, fileID string) (int64, error)
	IncrementAccessCount(ctx context.Context, id string, now time.Time) (int64, error)
	// DeleteOrphans removes shares whose file is gone or soft-deleted.
	DeleteOrphans(ctx context.Context) (int64, error)
}
