package services

import (
	"fmt"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/dmitrijs2005/gophshare/internal/cryptox"
	"github.com/dmitrijs2005/gophshare/internal/server/models"
)

// FileSecret is what a file key is rebuilt from. Salted modes get a
// different key for every salt; URL-fragment keys ignore the salt.
type FileSecret struct {
	Mode     models.KeyMode
	Password string
	Raw      []byte
}

// Salted reports whether Key uses its salt argument.
func (f FileSecret) Salted() bool {
	return f.Mode != models.ModeURLFragment
}

// Key rebuilds the AES key for salt.
func (f FileSecret) Key(e *cryptox.Engine, salt []byte) (*cryptox.Key, error) {
	switch f.Mode {
	case models.ModeURLFragment:
		return e.ImportKey(f.Raw)
	case models.ModePasswordDerived:
		if f.Password == "" {
			return nil, fmt.Errorf("%w: password required", common.ErrInvalidPassword)
		}
		return e.DeriveKeyFromPassword(f.Password, salt)
	case models.ModeServerEmbedded:
		return e.FallbackKey(salt)
	}
	return nil, fmt.Errorf("%w: unknown key mode %q", common.ErrValidation, f.Mode)
}

func (f FileSecret) Wipe() {
	common.WipeByteArray(f.Raw)
}

// secretFor builds the secret of a file of the given mode from the
// downloader's credentials.
func secretFor(mode models.KeyMode, creds Credentials) (FileSecret, error) {
	secret := FileSecret{Mode: mode}
	switch mode {
	case models.ModeURLFragment:
		raw, err := cryptox.DecodeKey(creds.FragmentKey)
		if err != nil {
			return FileSecret{}, err
		}
		secret.Raw = raw
	case models.ModePasswordDerived:
		if creds.Password == "" {
			return FileSecret{}, fmt.Errorf("%w: password required", common.ErrInvalidPassword)
		}
		secret.Password = creds.Password
	case models.ModeServerEmbedded:
	default:
		return FileSecret{}, fmt.Errorf("%w: unknown key mode %q", common.ErrValidation, mode)
	}
	return secret, nil
}
