// Package storage persists encrypted envelopes as opaque blobs. Backends
// never see plaintext; they only move the bytes produced by envelope.Pack.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/google/uuid"
)

// Storage is the blob contract used by the file service.
type Storage interface {
	Save(ctx context.Context, data []byte, path string) error
	// Read returns common.ErrorNotFound for unknown paths.
	Read(ctx context.Context, path string) ([]byte, error)
	// Delete is idempotent.
	Delete(ctx context.Context, path string) error
}

// NewLocator returns a fresh blob path of the form files/YYYY/M/D/<uuid>.
func NewLocator(now time.Time) string {
	return fmt.Sprintf("files/%d/%d/%d/%v", now.Year(), now.Month(), now.Day(), uuid.New())
}

// ValidateLocator rejects empty, absolute and parent-escaping paths.
func ValidateLocator(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty storage path", common.ErrValidation)
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return fmt.Errorf("%w: storage path must be relative", common.ErrValidation)
	}
	if clean := path.Clean(p); clean != p || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return fmt.Errorf("%w: storage path %q is not canonical", common.ErrValidation, p)
	}
	return nil
}
