package shares

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func sampleShare() *models.Share {
	return &models.Share{
		ID:                "s-1",
		FileID:            "f-1",
		ShortID:           "Ab3dE9xZ",
		ShareURL:          "https://share.example/s/Ab3dE9xZ",
		CreatedAt:         now,
		ExpiresAt:         now.Add(time.Hour),
		PasswordProtected: true,
	}
}

const insertQ = `(?s)^INSERT\s+INTO\s+shares\s*\(.*\)\s*VALUES\s*\(.*\)\s*ON\s+CONFLICT\s*\(short_id\)\s*DO\s+NOTHING$`

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).
		WithArgs("s-1", "f-1", "Ab3dE9xZ", "https://share.example/s/Ab3dE9xZ", now, now.Add(time.Hour),
			int64(0), nil, true, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), sampleShare()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ShortIDTaken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), sampleShare())
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_UniqueViolationOnID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), sampleShare())
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), sampleShare())
	require.ErrorContains(t, err, "db down")
	assert.NotErrorIs(t, err, common.ErrorAlreadyExists)
}

func shareRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "file_id", "short_id", "share_url", "created_at", "expires_at",
		"access_count", "max_access", "password_protected", "password_hash"}).
		AddRow("s-1", "f-1", "Ab3dE9xZ", "https://share.example/s/Ab3dE9xZ", now, now.Add(time.Hour),
			int64(1), int64(3), false, "$argon2id$...")
}

func TestGetByShortID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+shares\s+WHERE\s+short_id=\$1$`).
		WithArgs("Ab3dE9xZ").
		WillReturnRows(shareRows())

	s, err := repo.GetByShortID(context.Background(), "Ab3dE9xZ")
	require.NoError(t, err)
	assert.Equal(t, "f-1", s.FileID)
	require.NotNil(t, s.MaxAccess)
	assert.Equal(t, int64(3), *s.MaxAccess)
	assert.True(t, s.RequiresAccessPassword())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+shares\s+WHERE\s+id=\$1$`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestShortIDExists(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `^SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+shares\s+WHERE\s+short_id=\$1\)$`

	mock.ExpectQuery(q).WithArgs("taken").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(q).WithArgs("free").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(q).WithArgs("err").WillReturnError(errors.New("timeout"))

	ok, err := repo.ShortIDExists(context.Background(), "taken")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ShortIDExists(context.Background(), "free")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.ShortIDExists(context.Background(), "err")
	require.ErrorContains(t, err, "timeout")
}

func TestDeleteByFileID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^DELETE\s+FROM\s+shares\s+WHERE\s+file_id=\$1$`).
		WithArgs("f-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteByFileID(context.Background(), "f-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIncrementAccessCount(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)^UPDATE\s+shares\s+SET\s+access_count\s*=\s*access_count\s*\+\s*1.*access_count\s*<\s*max_access.*RETURNING\s+access_count$`

	mock.ExpectQuery(q).WithArgs("s-1", now).WillReturnRows(sqlmock.NewRows([]string{"access_count"}).AddRow(int64(2)))
	mock.ExpectQuery(q).WithArgs("s-1", now).WillReturnError(sql.ErrNoRows)

	n, err := repo.IncrementAccessCount(context.Background(), "s-1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.IncrementAccessCount(context.Background(), "s-1", now)
	require.ErrorIs(t, err, common.ErrAccessDenied)
}

func TestDeleteOrphans(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+shares\s+s\s+WHERE\s+NOT\s+EXISTS.*deleted_at\s+IS\s+NULL\s*\)$`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
