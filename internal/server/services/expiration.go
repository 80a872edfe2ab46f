package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/dbx"
)

// DefaultSweepLimit bounds one SweepExpired batch when no limit is given.
const DefaultSweepLimit = 100

// CheckFileExpiration deletes fileID when it is expired or out of downloads:
// the record is soft-deleted and its shares removed in one transaction, then
// the blob and cached thumbnails are dropped. It reports whether it deleted.
func (s *FileService) CheckFileExpiration(ctx context.Context, fileID string) (bool, error) {
	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return false, err
	}
	now := s.now()
	if file.CanBeDownloaded(now) {
		return false, nil
	}

	var removed int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).SoftDelete(ctx, file.ID, now); err != nil {
			return fmt.Errorf("soft delete: %w", err)
		}
		n, err := s.repomanager.Shares(tx).DeleteByFileID(ctx, file.ID)
		if err != nil {
			return fmt.Errorf("delete shares: %w", err)
		}
		removed = n
		return nil
	})
	if errors.Is(err, common.ErrorNotFound) {
		// another sweep soft-deleted it first and owns the cleanup
		s.logger.Debug(ctx, "file already deleted", "file_id", file.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.storage.Delete(ctx, file.EncryptedPath); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Warn(ctx, "blob delete failed", "file_id", file.ID, "error", err)
	}
	if s.thumbnails != nil {
		if err := s.thumbnails.InvalidateFile(ctx, file.ID); err != nil {
			s.logger.Warn(ctx, "thumbnail invalidation failed", "file_id", file.ID, "error", err)
		}
	}

	s.logger.Info(ctx, "file expired",
		"file_id", file.ID, "expired", file.IsExpired(now), "quota_reached", file.QuotaReached(), "shares", removed)
	return true, nil
}

// SweepReport summarizes one SweepExpired run.
type SweepReport struct {
	Checked      int
	Deleted      int
	Failed       int
	OrphanShares int64
}

// SweepExpired runs CheckFileExpiration over up to limit candidates and then
// removes shares left without a live file. A failing file is logged and
// skipped.
func (s *FileService) SweepExpired(ctx context.Context, limit int) (*SweepReport, error) {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}
	ids, err := s.repomanager.Files(s.db).ListExpired(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}

	report := &SweepReport{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		deleted, err := s.CheckFileExpiration(ctx, id)
		if err != nil {
			report.Failed++
			s.logger.Error(ctx, "expiration check failed", "file_id", id, "error", err)
			continue
		}
		if deleted {
			report.Deleted++
		}
	}

	orphans, err := s.repomanager.Shares(s.db).DeleteOrphans(ctx)
	if err != nil {
		return report, fmt.Errorf("delete orphan shares: %w", err)
	}
	report.OrphanShares = orphans

	s.logger.Info(ctx, "sweep finished",
		"checked", report.Checked, "deleted", report.Deleted, "failed", report.Failed, "orphan_shares", orphans)
	return report, nil
}
