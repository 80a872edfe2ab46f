// Package shares provides the PostgreSQL repository for share links.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/dbx"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const shareColumns = `id, file_id, short_id, share_url, created_at, expires_at,
	access_count, max_access, password_protected, password_hash`

// Create uses ON CONFLICT DO NOTHING so that a short id collision inside a
// transaction does not poison it; zero affected rows means the id is taken.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Share) error {
	query := `INSERT INTO shares (` + shareColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (short_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		s.ID, s.FileID, s.ShortID, s.ShareURL, s.CreatedAt, s.ExpiresAt,
		s.AccessCount, s.MaxAccess, s.PasswordProtected, s.PasswordHash)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("insert share: %w", common.ErrorAlreadyExists)
		}
		return fmt.Errorf("insert share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("insert share %q: %w", s.ShortID, common.ErrorAlreadyExists)
	}
	return nil
}

func (r *PostgresRepository) get(ctx context.Context, where string, arg string) (*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE ` + where

	var s models.Share
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&s.ID, &s.FileID, &s.ShortID, &s.ShareURL, &s.CreatedAt, &s.ExpiresAt,
		&s.AccessCount, &s.MaxAccess, &s.PasswordProtected, &s.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("select share: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Share, error) {
	return r.get(ctx, "id=$1", id)
}

func (r *PostgresRepository) GetByShortID(ctx context.Context, shortID string) (*models.Share, error) {
	return r.get(ctx, "short_id=$1", shortID)
}

func (r *PostgresRepository) ShortIDExists(ctx context.Context, shortID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM shares WHERE short_id=$1)`
	if err := r.db.QueryRowContext(ctx, query, shortID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check short id: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) DeleteByFileID(ctx context.Context, fileID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shares WHERE file_id=$1`, fileID)
	if err != nil {
		return 0, fmt.Errorf("delete shares: %w", err)
	}
	return res.RowsAffected()
}

// IncrementAccessCount bumps access_count only while the share is unexpired
// at now and under its access limit. Otherwise common.ErrAccessDenied.
func (r *PostgresRepository) IncrementAccessCount(ctx context.Context, id string, now time.Time) (int64, error) {
	query := `UPDATE shares SET access_count = access_count + 1
		WHERE id=$1 AND expires_at > $2
		AND (max_access IS NULL OR access_count < max_access)
		RETURNING access_count`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, id, now).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrAccessDenied
		}
		return 0, fmt.Errorf("increment access count: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	query := `DELETE FROM shares s
		WHERE NOT EXISTS (
			SELECT 1 FROM files f WHERE f.id = s.file_id AND f.deleted_at IS NULL
		)`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete orphan shares: %w", err)
	}
	return res.RowsAffected()
}
