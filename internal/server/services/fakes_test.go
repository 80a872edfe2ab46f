package services

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/cryptox"
	"github.com/dmitrijs2005/gophshare/internal/dbx"
	"github.com/dmitrijs2005/gophshare/internal/logging"
	"github.com/dmitrijs2005/gophshare/internal/server/config"
	"github.com/dmitrijs2005/gophshare/internal/server/keydist"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
	"github.com/dmitrijs2005/gophshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophshare/internal/server/repositories/shares"
	"github.com/dmitrijs2005/gophshare/internal/server/storage"
	"github.com/stretchr/testify/require"
)

// --- in-memory repositories ---

type memFiles struct {
	files.Repository

	mu        sync.Mutex
	byID      map[string]models.File
	createErr error
	// afterGet runs once a GetByID result has been copied out, outside the
	// lock, to interleave a concurrent writer.
	afterGet func(id string)
}

func (m *memFiles) Create(_ context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byID[f.ID]; ok {
		return common.ErrorAlreadyExists
	}
	m.byID[f.ID] = *f
	return nil
}

func (m *memFiles) GetByID(_ context.Context, id string) (*models.File, error) {
	m.mu.Lock()
	f, ok := m.byID[id]
	m.mu.Unlock()
	if !ok || f.IsDeleted() {
		return nil, common.ErrorNotFound
	}
	if m.afterGet != nil {
		m.afterGet(id)
	}
	return &f, nil
}

func (m *memFiles) markDeleted(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.byID[id]
	f.DeletedAt = &at
	m.byID[id] = f
}

func (m *memFiles) SoftDelete(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok || f.IsDeleted() {
		return common.ErrorNotFound
	}
	f.DeletedAt = &now
	m.byID[id] = f
	return nil
}

func (m *memFiles) IncrementDownloadCount(_ context.Context, id string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok || f.IsDeleted() || !f.CanBeDownloaded(now) {
		return 0, common.ErrAccessDenied
	}
	f, err := f.IncrementDownloadCount()
	if err != nil {
		return 0, err
	}
	m.byID[id] = f
	return f.DownloadCount, nil
}

func (m *memFiles) UpdateEncryptedPath(_ context.Context, id, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	m.byID[id] = f.UpdateEncryptedPath(path)
	return nil
}

func (m *memFiles) ListExpired(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, f := range m.byID {
		if !f.IsDeleted() && !f.CanBeDownloaded(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memFiles) raw(id string) models.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

type memShares struct {
	shares.Repository

	mu    sync.Mutex
	byID  map[string]models.Share
	files *memFiles
}

func (m *memShares) Create(_ context.Context, s *models.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.ShortID == s.ShortID {
			return common.ErrorAlreadyExists
		}
	}
	m.byID[s.ID] = *s
	return nil
}

func (m *memShares) GetByID(_ context.Context, id string) (*models.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (m *memShares) GetByShortID(_ context.Context, shortID string) (*models.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.ShortID == shortID {
			return &s, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memShares) ShortIDExists(ctx context.Context, shortID string) (bool, error) {
	_, err := m.GetByShortID(ctx, shortID)
	return err == nil, nil
}

func (m *memShares) DeleteByFileID(_ context.Context, fileID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.byID {
		if s.FileID == fileID {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memShares) IncrementAccessCount(_ context.Context, id string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok || !s.CanBeAccessed(now) {
		return 0, common.ErrAccessDenied
	}
	s, err := s.IncrementAccessCount()
	if err != nil {
		return 0, err
	}
	m.byID[id] = s
	return s.AccessCount, nil
}

func (m *memShares) DeleteOrphans(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.byID {
		if _, err := m.files.GetByID(ctx, s.FileID); err != nil {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memShares) byFile(fileID string) []models.Share {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Share
	for _, s := range m.byID {
		if s.FileID == fileID {
			out = append(out, s)
		}
	}
	return out
}

// memManager hands out the same repositories for every DBTX.
type memManager struct {
	files  *memFiles
	shares *memShares
}

func (m *memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memManager) Files(dbx.DBTX) files.Repository { return m.files }
func (m *memManager) Shares(dbx.DBTX) shares.Repository { return m.shares }

type recordingInvalidator struct {
	mu    sync.Mutex
	files []string
}

func (r *recordingInvalidator) InvalidateFile(_ context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, fileID)
	return nil
}

// --- fixture ---

type fixture struct {
	svc    *FileService
	mock   sqlmock.Sqlmock
	files  *memFiles
	shares *memShares
	store  *storage.FSStorage
	root   string
	thumbs *recordingInvalidator
	cfg    *config.Config
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	root := t.TempDir()
	store, err := storage.NewFSStorage(root)
	require.NoError(t, err)

	mf := &memFiles{byID: map[string]models.File{}}
	ms := &memShares{byID: map[string]models.Share{}, files: mf}

	cfg := &config.Config{}
	cfg.LoadDefaults()

	fx := &fixture{
		mock:   mock,
		files:  mf,
		shares: ms,
		store:  store,
		root:   root,
		thumbs: &recordingInvalidator{},
		cfg:    cfg,
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.svc = NewFileService(db, &memManager{files: mf, shares: ms}, store, cryptox.New("test-fallback"),
		keydist.New("https://share.example.com"), logging.Discard(), cfg,
		WithThumbnails(fx.thumbs), WithClock(func() time.Time { return fx.now }))

	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sql expectations: %v", err)
		}
	})
	return fx
}

func (fx *fixture) expectCommit() {
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
}

func (fx *fixture) expectRollback() {
	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()
}

// upload runs a successful upload and returns its result.
func (fx *fixture) upload(t *testing.T, req UploadRequest) *UploadResult {
	t.Helper()
	fx.expectCommit()
	res, err := fx.svc.UploadFile(context.Background(), req)
	require.NoError(t, err)
	return res
}

// fragment returns the fragment of a share link.
func fragment(t *testing.T, link string) string {
	t.Helper()
	_, frag, err := keydist.ParseShareLink(link)
	require.NoError(t, err)
	return frag
}

func (fx *fixture) blobCount(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(fx.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func ptr[T any](v T) *T { return &v }
