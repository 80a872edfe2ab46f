// Package thumbnails caches encrypted image previews of shared files.
//
// A cached thumbnail is encrypted under the key of the file it was made
// from, with a fresh salt and IV, so a cache entry is no more readable than
// the file itself. Entries are keyed by file id and share URL.
package thumbnails

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/cryptox"
	"github.com/dmitrijs2005/gophshare/internal/envelope"
	"github.com/dmitrijs2005/gophshare/internal/logging"
	"github.com/dmitrijs2005/gophshare/internal/server/services"
)

const keyPrefix = "thumb:"

// ThumbnailMetadata is stored in clear next to the encrypted thumbnail.
type ThumbnailMetadata struct {
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	MimeType  string    `json:"mimeType"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

type Thumbnail struct {
	Data []byte
	Meta ThumbnailMetadata
}

type record struct {
	Meta     ThumbnailMetadata `json:"meta"`
	Envelope []byte            `json:"envelope"`
}

type Cache struct {
	backend Backend
	crypto  *cryptox.Engine
	ttl     time.Duration
	logger  logging.Logger
}

func NewCache(backend Backend, engine *cryptox.Engine, ttl time.Duration, logger logging.Logger) *Cache {
	return &Cache{
		backend: backend,
		crypto:  engine,
		ttl:     ttl,
		logger:  logger.With("module", "thumbnails"),
	}
}

func filePrefix(fileID string) string {
	return keyPrefix + fileID + ":"
}

// Key is the backend key of the thumbnail of fileID reached through shortURL.
func Key(fileID, shortURL string) string {
	return filePrefix(fileID) + shortURL
}

// Retrieve returns the cached thumbnail or nil on a miss. A secret that
// does not open the entry yields an error matching common.ErrInvalidPassword
// and common.ErrDecryption.
func (c *Cache) Retrieve(ctx context.Context, fileID, shortURL string, secret services.FileSecret) (*Thumbnail, error) {
	key := Key(fileID, shortURL)
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.drop(ctx, key, "undecodable record")
		return nil, nil
	}
	env, err := envelope.Unpack(rec.Envelope)
	if err != nil {
		c.drop(ctx, key, "malformed envelope")
		return nil, nil
	}

	k, err := secret.Key(c.crypto, env.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidPassword, common.ErrDecryption)
	}
	defer k.Wipe()

	data, err := c.crypto.Decrypt(env.Ciphertext, k, env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidPassword, err)
	}
	return &Thumbnail{Data: data, Meta: rec.Meta}, nil
}

// Store encrypts data under the file key and caches it for the configured
// TTL.
func (c *Cache) Store(ctx context.Context, fileID, shortURL string, data []byte, meta ThumbnailMetadata, secret services.FileSecret) error {
	var salt []byte
	if secret.Salted() {
		s, err := c.crypto.GenerateSalt()
		if err != nil {
			return err
		}
		salt = s
	}
	iv, err := c.crypto.GenerateIV()
	if err != nil {
		return err
	}

	k, err := secret.Key(c.crypto, salt)
	if err != nil {
		return fmt.Errorf("%w: thumbnail key: %w", common.ErrEncryption, err)
	}
	defer k.Wipe()

	ct, err := c.crypto.Encrypt(data, k, iv)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(record{Meta: meta, Envelope: envelope.Pack(ct, iv, salt)})
	if err != nil {
		return fmt.Errorf("encode thumbnail record: %w", err)
	}
	return c.backend.Set(ctx, Key(fileID, shortURL), raw, c.ttl)
}

// Invalidate drops one cached thumbnail.
func (c *Cache) Invalidate(ctx context.Context, fileID, shortURL string) error {
	return c.backend.Del(ctx, Key(fileID, shortURL))
}

// InvalidateFile drops the thumbnails of fileID under every share URL.
func (c *Cache) InvalidateFile(ctx context.Context, fileID string) error {
	n, err := c.backend.DelPrefix(ctx, filePrefix(fileID))
	if err != nil {
		return err
	}
	c.logger.Debug(ctx, "thumbnails invalidated", "file_id", fileID, "count", n)
	return nil
}

func (c *Cache) drop(ctx context.Context, key, reason string) {
	c.logger.Warn(ctx, "dropping cache entry", "key", key, "reason", reason)
	if err := c.backend.Del(ctx, key); err != nil {
		c.logger.Warn(ctx, "cache delete failed", "key", key, "error", err)
	}
}
