package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/cryptox"
	"github.com/dmitrijs2005/gophshare/internal/envelope"
	"github.com/dmitrijs2005/gophshare/internal/server/auth"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
)

// Credentials is everything a downloader may present. Which fields matter
// depends on the file's key mode and access gate.
type Credentials struct {
	// Password is the key-derivation password of password-mode files.
	Password string
	// FragmentKey is the encoded key from the share URL fragment.
	FragmentKey string
	// AccessPassword opens the server-side gate.
	AccessPassword string
	// Grant is an access grant from AccessShare; it replaces AccessPassword.
	Grant string
}

type Download struct {
	FileName      string
	MimeType      string
	Content       []byte
	KeyMode       models.KeyMode
	DownloadCount int64
}

// Authorized is a file that passed every check short of decryption.
type Authorized struct {
	File   *models.File
	Share  *models.Share
	Secret FileSecret
}

// errWrongKey is returned for every key or decryption failure so callers
// can match either sentinel.
var errWrongKey = fmt.Errorf("%w: %w", common.ErrInvalidPassword, common.ErrDecryption)

func (s *FileService) loadFile(ctx context.Context, fileID string) (*models.File, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrFileNotFound, fileID)
		}
		return nil, fmt.Errorf("load file: %w", err)
	}
	return file, nil
}

// checkGate verifies the server-side access gate of file, if it has one.
func (s *FileService) checkGate(file *models.File, creds Credentials) error {
	if !file.RequiresAccessPassword() {
		return nil
	}
	if creds.Grant != "" {
		if err := auth.ValidateGrant(creds.Grant, []byte(s.config.GrantSecret), file.ID); err != nil {
			return fmt.Errorf("%w: %w", common.ErrInvalidPassword, err)
		}
		return nil
	}
	if creds.AccessPassword == "" {
		return fmt.Errorf("%w: access password required", common.ErrInvalidPassword)
	}
	ok, err := cryptox.VerifyPassword(creds.AccessPassword, *file.AccessPasswordHash)
	if err != nil {
		return fmt.Errorf("verify access password: %w", err)
	}
	if !ok {
		return common.ErrInvalidPassword
	}
	return nil
}

func (s *FileService) authorize(ctx context.Context, fileID string, creds Credentials) (*models.File, FileSecret, error) {
	file, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, FileSecret{}, err
	}
	if !file.CanBeDownloaded(s.now()) {
		return nil, FileSecret{}, fmt.Errorf("%w: file expired or download limit reached", common.ErrAccessDenied)
	}
	if err := s.checkGate(file, creds); err != nil {
		return nil, FileSecret{}, err
	}
	secret, err := secretFor(file.KeyMode, creds)
	if err != nil {
		return nil, FileSecret{}, errWrongKey
	}
	return file, secret, nil
}

// AuthorizeShare resolves shortID to its file and runs the share, file and
// gate checks. Counters are left untouched.
func (s *FileService) AuthorizeShare(ctx context.Context, shortID string, creds Credentials) (*Authorized, error) {
	share, err := s.loadShare(ctx, shortID)
	if err != nil {
		return nil, err
	}
	if !share.CanBeAccessed(s.now()) {
		return nil, fmt.Errorf("%w: share expired or access limit reached", common.ErrAccessDenied)
	}
	file, secret, err := s.authorize(ctx, share.FileID, creds)
	if err != nil {
		return nil, err
	}
	return &Authorized{File: file, Share: share, Secret: secret}, nil
}

// ReadContent reads and decrypts the blob of an authorized file.
func (s *FileService) ReadContent(ctx context.Context, file *models.File, secret FileSecret) ([]byte, error) {
	blob, err := s.storage.Read(ctx, file.EncryptedPath)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "blob missing", "file_id", file.ID)
			return nil, fmt.Errorf("%w: %s has no content", common.ErrFileNotFound, file.ID)
		}
		return nil, fmt.Errorf("read envelope: %w", err)
	}

	env, err := envelope.Unpack(blob)
	if err != nil {
		s.logger.Error(ctx, "corrupt envelope", "file_id", file.ID, "size", len(blob))
		return nil, err
	}

	key, err := secret.Key(s.crypto, env.Salt)
	if err != nil {
		return nil, errWrongKey
	}
	defer key.Wipe()

	plaintext, err := s.crypto.Decrypt(env.Ciphertext, key, env.IV)
	if err != nil {
		s.logger.Warn(ctx, "decryption failed", "file_id", file.ID, "mode", file.KeyMode)
		return nil, errWrongKey
	}
	return plaintext, nil
}

// DownloadFile checks the file predicates and the access gate, decrypts the
// content and counts the download. The counter is bumped atomically and
// guarded by the quota, so concurrent downloads never exceed MaxDownloads.
func (s *FileService) DownloadFile(ctx context.Context, fileID string, creds Credentials) (*Download, error) {
	file, secret, err := s.authorize(ctx, fileID, creds)
	if err != nil {
		return nil, err
	}
	defer secret.Wipe()

	content, err := s.ReadContent(ctx, file, secret)
	if err != nil {
		return nil, err
	}

	count, err := s.repomanager.Files(s.db).IncrementDownloadCount(ctx, file.ID, s.now())
	if err != nil {
		common.WipeByteArray(content)
		if errors.Is(err, common.ErrAccessDenied) {
			return nil, fmt.Errorf("%w: download limit reached", common.ErrAccessDenied)
		}
		return nil, fmt.Errorf("count download: %w", err)
	}

	s.logger.Info(ctx, "file downloaded", "file_id", file.ID, "mode", file.KeyMode, "download_count", count)

	return &Download{
		FileName:      file.OriginalName,
		MimeType:      file.MimeType,
		Content:       content,
		KeyMode:       file.KeyMode,
		DownloadCount: count,
	}, nil
}
