package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/common"
)

// Share is a public link to a File. ShareURL is stored without a fragment;
// the key-bearing fragment is only ever handed to the uploader.
type Share struct {
	ID          string
	FileID      string
	ShortID     string
	ShareURL    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	AccessCount int64
	MaxAccess   *int64
	// PasswordProtected is set for password-derived keys and for shares with
	// an access gate. Only the latter carry a PasswordHash.
	PasswordProtected bool
	PasswordHash      *string
}

// CanBeAccessed is true iff now is before ExpiresAt and the access limit,
// if any, is not exhausted.
func (s Share) CanBeAccessed(now time.Time) bool {
	if !now.Before(s.ExpiresAt) {
		return false
	}
	return !s.AccessLimitReached()
}

// AccessLimitReached reports whether the access limit has been used up.
func (s Share) AccessLimitReached() bool {
	return s.MaxAccess != nil && s.AccessCount >= *s.MaxAccess
}

// RequiresAccessPassword reports whether a gate hash must be checked. A
// password-derived share without a hash is verified by decryption alone.
func (s Share) RequiresAccessPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

// IncrementAccessCount returns a copy with one more access. It fails with
// common.ErrAccessDenied once the access limit is used up.
func (s Share) IncrementAccessCount() (Share, error) {
	if s.AccessLimitReached() {
		return s, fmt.Errorf("%w: access limit reached", common.ErrAccessDenied)
	}
	s.AccessCount++
	return s, nil
}
