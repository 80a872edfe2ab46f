// Package models defines the entities persisted by the server: encrypted
// files, their share links and the public metadata attached to them.
//
// Entities are values. Mutators such as IncrementDownloadCount return an
// updated copy and leave the receiver untouched; persistence of counters is
// done atomically by the repositories, not by writing these copies back.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/common"
)

// File is the server-side record of an encrypted blob. The decryption key
// is never a field of File.
type File struct {
	ID            string
	OriginalName  string
	MimeType      string
	Size          int64
	EncryptedPath string
	UploadedAt    time.Time
	ExpiresAt     time.Time
	DownloadCount int64
	// MaxDownloads is nil when downloads are unlimited.
	MaxDownloads *int64
	// AccessPasswordHash is the argon2id hash of the optional access gate.
	AccessPasswordHash *string
	KeyMode            KeyMode
	Metadata           ZKFileMetadata
	DeletedAt          *time.Time
}

// IsExpired reports whether now is at or past ExpiresAt.
func (f File) IsExpired(now time.Time) bool {
	return !now.Before(f.ExpiresAt)
}

// QuotaReached reports whether the download limit has been used up.
func (f File) QuotaReached() bool {
	return f.MaxDownloads != nil && f.DownloadCount >= *f.MaxDownloads
}

// CanBeDownloaded is true iff the file has not expired and its download
// quota, if any, is not exhausted.
func (f File) CanBeDownloaded(now time.Time) bool {
	return !f.IsExpired(now) && !f.QuotaReached()
}

// IsDeleted reports whether the file was soft-deleted.
func (f File) IsDeleted() bool {
	return f.DeletedAt != nil
}

// RequiresAccessPassword reports whether downloads are gated by a server
// side password check.
func (f File) RequiresAccessPassword() bool {
	return f.AccessPasswordHash != nil && *f.AccessPasswordHash != ""
}

// IncrementDownloadCount returns a copy with one more download. It fails
// with common.ErrAccessDenied once the quota is used up.
func (f File) IncrementDownloadCount() (File, error) {
	if f.QuotaReached() {
		return f, fmt.Errorf("%w: download limit reached", common.ErrAccessDenied)
	}
	f.DownloadCount++
	return f, nil
}

func (f File) UpdateEncryptedPath(path string) File {
	f.EncryptedPath = path
	return f
}
