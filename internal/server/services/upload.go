package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/cryptox"
	"github.com/dmitrijs2005/gophshare/internal/dbx"
	"github.com/dmitrijs2005/gophshare/internal/envelope"
	"github.com/dmitrijs2005/gophshare/internal/server/keydist"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
	"github.com/dmitrijs2005/gophshare/internal/server/storage"
	"github.com/google/uuid"
)

type UploadRequest struct {
	Content      []byte
	OriginalName string
	MimeType     string
	// Password derives the file key. It is never stored.
	Password string
	// AccessPassword gates downloads on the server. Not allowed with
	// ModePasswordDerived.
	AccessPassword string
	// Mode defaults to ModePasswordDerived when Password is set and to
	// ModeURLFragment otherwise.
	Mode            models.KeyMode
	ExpirationHours int
	MaxDownloads    *int64
	MaxAccess       *int64
	Alias           string
}

type UploadResult struct {
	FileID  string
	ShortID string
	// ShareURL carries the key fragment for URL-fragment uploads. It is the
	// only place the key ever appears.
	ShareURL  string
	KeyMode   models.KeyMode
	ExpiresAt time.Time
	Metadata  models.ZKFileMetadata
}

type sealed struct {
	envelope   []byte
	iv         []byte
	salt       []byte
	encodedKey string
	kdf        models.KeyDerivation
}

func resolveMode(req UploadRequest) (models.KeyMode, error) {
	mode := req.Mode
	if mode == "" {
		mode = models.ModeURLFragment
		if req.Password != "" {
			mode = models.ModePasswordDerived
		}
	}
	if _, err := models.ParseKeyMode(string(mode)); err != nil {
		return "", err
	}

	switch {
	case mode == models.ModePasswordDerived && req.Password == "":
		return "", fmt.Errorf("%w: password mode requires a password", common.ErrValidation)
	case mode == models.ModePasswordDerived && req.AccessPassword != "":
		return "", fmt.Errorf("%w: access password cannot be combined with password mode", common.ErrValidation)
	case mode != models.ModePasswordDerived && req.Password != "":
		return "", fmt.Errorf("%w: password is only used by password mode", common.ErrValidation)
	}
	return mode, nil
}

func (s *FileService) expiration(hours int) (time.Duration, error) {
	if hours <= 0 {
		return s.config.DefaultExpiration, nil
	}
	d := time.Duration(hours) * time.Hour
	if d > s.config.MaxExpiration {
		return 0, fmt.Errorf("%w: expiration exceeds %s", common.ErrValidation, s.config.MaxExpiration)
	}
	return d, nil
}

func validateLimit(name string, v *int64) error {
	if v != nil && *v <= 0 {
		return fmt.Errorf("%w: %s must be positive", common.ErrValidation, name)
	}
	return nil
}

func (s *FileService) seal(data []byte, mode models.KeyMode, password string) (*sealed, error) {
	if mode == models.ModeURLFragment {
		key, err := s.crypto.GenerateKey("", nil)
		if err != nil {
			return nil, err
		}
		defer key.Wipe()

		iv, err := s.crypto.GenerateIV()
		if err != nil {
			return nil, err
		}
		ct, err := s.crypto.Encrypt(data, key, iv)
		if err != nil {
			return nil, err
		}
		encoded, err := cryptox.EncodeKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrEncryption, err)
		}
		return &sealed{
			envelope:   envelope.Pack(ct, iv, nil),
			iv:         iv,
			encodedKey: encoded,
			kdf:        models.KeyDerivation{Algorithm: cryptox.KDFNone},
		}, nil
	}

	// embedded mode passes an empty password and gets the fallback passphrase
	ef, err := s.crypto.EncryptFile(data, password)
	if err != nil {
		return nil, err
	}
	return &sealed{
		envelope: envelope.Pack(ef.Ciphertext, ef.IV, ef.Salt),
		iv:       ef.IV,
		salt:     ef.Salt,
		kdf:      models.KeyDerivation{Algorithm: cryptox.KDFAlgorithm, Iterations: cryptox.PBKDF2Iterations},
	}, nil
}

// UploadFile encrypts req.Content, stores the envelope and persists the file
// and its share in one transaction. If persisting fails, the stored blob is
// removed.
func (s *FileService) UploadFile(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: empty content", common.ErrValidation)
	}
	mode, err := resolveMode(req)
	if err != nil {
		return nil, err
	}
	ttl, err := s.expiration(req.ExpirationHours)
	if err != nil {
		return nil, err
	}
	if err := validateLimit("max downloads", req.MaxDownloads); err != nil {
		return nil, err
	}
	if err := validateLimit("max access", req.MaxAccess); err != nil {
		return nil, err
	}
	if req.Alias != "" {
		if err := keydist.ValidateAlias(req.Alias); err != nil {
			return nil, err
		}
	}

	var accessHash *string
	if req.AccessPassword != "" {
		h, err := cryptox.HashPassword(req.AccessPassword)
		if err != nil {
			return nil, err
		}
		accessHash = &h
	}

	sl, err := s.seal(req.Content, mode, req.Password)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	now := s.now().UTC()
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file := &models.File{
		ID:                 uuid.NewString(),
		OriginalName:       req.OriginalName,
		MimeType:           mimeType,
		Size:               int64(len(req.Content)),
		EncryptedPath:      storage.NewLocator(now),
		UploadedAt:         now,
		ExpiresAt:          now.Add(ttl),
		MaxDownloads:       req.MaxDownloads,
		AccessPasswordHash: accessHash,
		KeyMode:            mode,
		Metadata: models.ZKFileMetadata{
			Algorithm:       cryptox.Algorithm,
			KeyDerivation:   sl.kdf,
			KeyHint:         mode,
			EncryptedSize:   int64(len(sl.envelope)),
			UploadTimestamp: now,
			ContentCategory: models.CategorizeContent(mimeType),
			IV:              sl.iv,
			Salt:            sl.salt,
		},
	}

	if err := s.storage.Save(ctx, sl.envelope, file.EncryptedPath); err != nil {
		return nil, fmt.Errorf("store envelope: %w", err)
	}

	var shortID string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).Create(ctx, file); err != nil {
			return fmt.Errorf("create file: %w", err)
		}

		shares := s.repomanager.Shares(tx)
		id, err := s.scheme.Claim(ctx, req.Alias, shares, func(ctx context.Context, candidate string) error {
			return shares.Create(ctx, &models.Share{
				ID:                uuid.NewString(),
				FileID:            file.ID,
				ShortID:           candidate,
				ShareURL:          s.scheme.ShareURL(candidate),
				CreatedAt:         now,
				ExpiresAt:         file.ExpiresAt,
				MaxAccess:         req.MaxAccess,
				PasswordProtected: mode == models.ModePasswordDerived || accessHash != nil,
				PasswordHash:      accessHash,
			})
		})
		if err != nil {
			return err
		}
		shortID = id
		return nil
	})
	if err != nil {
		s.discardBlob(ctx, file.EncryptedPath)
		return nil, err
	}

	s.logger.Info(ctx, "file uploaded",
		"file_id", file.ID, "short_id", shortID, "mode", mode, "size", file.Size)

	return &UploadResult{
		FileID:    file.ID,
		ShortID:   shortID,
		ShareURL:  s.scheme.ShareLink(shortID, mode, sl.encodedKey),
		KeyMode:   mode,
		ExpiresAt: file.ExpiresAt,
		Metadata:  file.Metadata,
	}, nil
}

// discardBlob removes a blob whose record was never committed.
func (s *FileService) discardBlob(ctx context.Context, path string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.storage.Delete(ctx, path); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Warn(ctx, "blob cleanup failed", "path", path, "error", err)
	}
}
