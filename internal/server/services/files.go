// Package services implements the file encryption service: uploads are
// encrypted and packed before they reach storage, downloads are gated by the
// file and share predicates and decrypted with a key the server only holds
// for embedded-mode files.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/cryptox"
	"github.com/dmitrijs2005/gophshare/internal/logging"
	"github.com/dmitrijs2005/gophshare/internal/server/config"
	"github.com/dmitrijs2005/gophshare/internal/server/keydist"
	"github.com/dmitrijs2005/gophshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophshare/internal/server/storage"
)

// ThumbnailInvalidator drops every cached thumbnail of a file.
type ThumbnailInvalidator interface {
	InvalidateFile(ctx context.Context, fileID string) error
}

type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
	crypto      *cryptox.Engine
	scheme      *keydist.Scheme
	logger      logging.Logger
	config      *config.Config
	thumbnails  ThumbnailInvalidator
	now         func() time.Time
}

type Option func(*FileService)

// WithThumbnails makes file deletion invalidate cached thumbnails.
func WithThumbnails(t ThumbnailInvalidator) Option {
	return func(s *FileService) { s.thumbnails = t }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *FileService) { s.now = now }
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage, engine *cryptox.Engine,
	scheme *keydist.Scheme, logger logging.Logger, cfg *config.Config, opts ...Option) *FileService {
	s := &FileService{
		db:          db,
		repomanager: m,
		storage:     st,
		crypto:      engine,
		scheme:      scheme,
		logger:      logger.With("module", "files"),
		config:      cfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine exposes the crypto engine to collaborators that re-encrypt derived
// content, such as thumbnails.
func (s *FileService) Engine() *cryptox.Engine {
	return s.crypto
}
