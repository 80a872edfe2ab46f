package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/server/auth"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
)

// ShareAccess is what a recipient learns by opening a share link, before
// any content is decrypted.
type ShareAccess struct {
	ShareID     string
	ShortID     string
	FileID      string
	MimeType    string
	Size        int64
	KeyMode     models.KeyMode
	Metadata    models.ZKFileMetadata
	ExpiresAt   time.Time
	AccessCount int64
	// NeedsPassword is set for password-mode files: the client must prompt
	// for the key password before downloading.
	NeedsPassword  bool
	Grant          string
	GrantExpiresAt time.Time
}

func (s *FileService) loadShare(ctx context.Context, shortID string) (*models.Share, error) {
	share, err := s.repomanager.Shares(s.db).GetByShortID(ctx, shortID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: no share %q", common.ErrFileNotFound, shortID)
		}
		return nil, fmt.Errorf("load share: %w", err)
	}
	return share, nil
}

// AccessShare opens a share link: it checks the share and its file, runs the
// access gate, counts the access and returns the public metadata together
// with a short-lived grant for the download.
func (s *FileService) AccessShare(ctx context.Context, shortID, accessPassword string) (*ShareAccess, error) {
	share, err := s.loadShare(ctx, shortID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !share.CanBeAccessed(now) {
		return nil, fmt.Errorf("%w: share expired or access limit reached", common.ErrAccessDenied)
	}

	file, err := s.loadFile(ctx, share.FileID)
	if err != nil {
		return nil, err
	}
	if !file.CanBeDownloaded(now) {
		return nil, fmt.Errorf("%w: file expired or download limit reached", common.ErrAccessDenied)
	}
	if err := s.checkGate(file, Credentials{AccessPassword: accessPassword}); err != nil {
		return nil, err
	}

	count, err := s.repomanager.Shares(s.db).IncrementAccessCount(ctx, share.ID, now)
	if err != nil {
		if errors.Is(err, common.ErrAccessDenied) {
			return nil, fmt.Errorf("%w: access limit reached", common.ErrAccessDenied)
		}
		return nil, fmt.Errorf("count access: %w", err)
	}

	grant, err := auth.GenerateGrant(file.ID, share.ID, []byte(s.config.GrantSecret), s.config.GrantValidityDuration)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "share accessed", "short_id", share.ShortID, "file_id", file.ID, "access_count", count)

	return &ShareAccess{
		ShareID:        share.ID,
		ShortID:        share.ShortID,
		FileID:         file.ID,
		MimeType:       file.MimeType,
		Size:           file.Size,
		KeyMode:        file.KeyMode,
		Metadata:       file.Metadata,
		ExpiresAt:      share.ExpiresAt,
		AccessCount:    count,
		NeedsPassword:  file.KeyMode == models.ModePasswordDerived,
		Grant:          grant,
		GrantExpiresAt: now.Add(s.config.GrantValidityDuration),
	}, nil
}
