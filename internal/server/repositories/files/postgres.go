package files

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

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, original_name, mime_type, size, encrypted_path, uploaded_at, expires_at,
	download_count, max_downloads, access_password_hash, key_mode, metadata, deleted_at`

// Create inserts a new file row. A duplicate id yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, f *models.File) error {
	query := `INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.OriginalName, f.MimeType, f.Size, f.EncryptedPath, f.UploadedAt, f.ExpiresAt,
		f.DownloadCount, f.MaxDownloads, f.AccessPasswordHash, string(f.KeyMode), f.Metadata, f.DeletedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("insert file: %w", common.ErrorAlreadyExists)
		}
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetByID returns a live file or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id=$1 AND deleted_at IS NULL`

	var f models.File
	var mode string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.OriginalName, &f.MimeType, &f.Size, &f.EncryptedPath, &f.UploadedAt, &f.ExpiresAt,
		&f.DownloadCount, &f.MaxDownloads, &f.AccessPasswordHash, &mode, &f.Metadata, &f.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("select file: %w", err)
	}

	if f.KeyMode, err = models.ParseKeyMode(mode); err != nil {
		return nil, fmt.Errorf("select file: %w", err)
	}
	return &f, nil
}

// SoftDelete stamps deleted_at. Deleting an already deleted or unknown file
// yields common.ErrorNotFound.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE files SET deleted_at=$2 WHERE id=$1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("soft delete file: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) IncrementDownloadCount(ctx context.Context, id string, now time.Time) (int64, error) {
	query := `UPDATE files SET download_count = download_count + 1
		WHERE id=$1 AND deleted_at IS NULL AND expires_at > $2
		AND (max_downloads IS NULL OR download_count < max_downloads)
		RETURNING download_count`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, id, now).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrAccessDenied
		}
		return 0, fmt.Errorf("increment download count: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) UpdateEncryptedPath(ctx context.Context, id, path string) error {
	query := `UPDATE files SET encrypted_path=$2 WHERE id=$1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, path)
	if err != nil {
		return fmt.Errorf("update encrypted path: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `SELECT id FROM files
		WHERE deleted_at IS NULL
		AND (expires_at <= $1 OR (max_downloads IS NOT NULL AND download_count >= max_downloads))
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select expired files: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
