package thumbnails

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/logging"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
	"github.com/dmitrijs2005/gophshare/internal/server/services"
)

// Source authorizes share access and decrypts file content.
// *services.FileService implements it.
type Source interface {
	AuthorizeShare(ctx context.Context, shortID string, creds services.Credentials) (*services.Authorized, error)
	ReadContent(ctx context.Context, file *models.File, secret services.FileSecret) ([]byte, error)
}

type Service struct {
	source    Source
	cache     *Cache
	generator *Generator
	logger    logging.Logger
}

// NewService builds the thumbnail service. cache may be nil, in which case
// every request regenerates the thumbnail.
func NewService(source Source, cache *Cache, generator *Generator, logger logging.Logger) *Service {
	return &Service{
		source:    source,
		cache:     cache,
		generator: generator,
		logger:    logger.With("module", "thumbnails"),
	}
}

// Get returns the thumbnail of the file shared as shortID. The same
// credentials as for a download are required. Thumbnail requests do not
// count as downloads or share accesses.
func (s *Service) Get(ctx context.Context, shortID string, creds services.Credentials) (*Thumbnail, error) {
	a, err := s.source.AuthorizeShare(ctx, shortID, creds)
	if err != nil {
		return nil, err
	}
	defer a.Secret.Wipe()

	if !Supports(a.File.MimeType) {
		return nil, fmt.Errorf("%w: %s", common.ErrThumbnailUnsupported, a.File.MimeType)
	}

	shortURL := a.Share.ShareURL
	if s.cache != nil {
		th, err := s.cache.Retrieve(ctx, a.File.ID, shortURL, a.Secret)
		if err != nil {
			return nil, err
		}
		if th != nil {
			return th, nil
		}
	}

	content, err := s.source.ReadContent(ctx, a.File, a.Secret)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(content)

	data, meta, err := s.generator.Generate(content, a.File.MimeType)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "thumbnail generated", "file_id", a.File.ID, "width", meta.Width, "height", meta.Height)
	if s.cache == nil {
		return &Thumbnail{Data: data, Meta: meta}, nil
	}
	if err := s.cache.Store(ctx, a.File.ID, shortURL, data, meta, a.Secret); err != nil {
		s.logger.Warn(ctx, "thumbnail not cached", "file_id", a.File.ID, "error", err)
		return &Thumbnail{Data: data, Meta: meta}, nil
	}

	// serve the stored entry so a bad write fails this request, not a later one
	th, err := s.cache.Retrieve(ctx, a.File.ID, shortURL, a.Secret)
	if err != nil {
		s.logger.Error(ctx, "cached thumbnail unreadable", "file_id", a.File.ID)
		return nil, err
	}
	if th == nil {
		s.logger.Warn(ctx, "cached thumbnail vanished", "file_id", a.File.ID)
		return &Thumbnail{Data: data, Meta: meta}, nil
	}
	return th, nil
}
