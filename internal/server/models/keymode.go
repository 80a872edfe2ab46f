package models

import (
	"fmt"

	"github.com/dmitrijs2005/gophshare/internal/common"
)

// KeyMode tells how the decryption key of a file reaches the downloader.
type KeyMode string

const (
	// ModeURLFragment: a random key travels in the share URL fragment and is
	// never sent to the server.
	ModeURLFragment KeyMode = "url-fragment"
	// ModePasswordDerived: the key is derived from a password only the
	// recipient knows.
	ModePasswordDerived KeyMode = "password-protected"
	// ModeServerEmbedded: the key is derived from the server's fallback
	// passphrase. Not zero-knowledge.
	ModeServerEmbedded KeyMode = "embedded"
)

// ParseKeyMode accepts exactly the three wire values.
func ParseKeyMode(s string) (KeyMode, error) {
	switch m := KeyMode(s); m {
	case ModeURLFragment, ModePasswordDerived, ModeServerEmbedded:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown key mode %q", common.ErrValidation, s)
}

func (m KeyMode) String() string { return string(m) }

// IsZeroKnowledge reports whether the server can never decrypt files of
// this mode on its own.
func (m KeyMode) IsZeroKnowledge() bool {
	return m == ModeURLFragment || m == ModePasswordDerived
}
