package cryptox

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophshare/internal/common"
)

// EncodeKey exports key as unpadded base64url, the form carried in a share
// URL fragment. Derived keys cannot be encoded.
func EncodeKey(key *Key) (string, error) {
	raw, err := key.Export()
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(raw)
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeKey parses a fragment produced by EncodeKey. Padding is tolerated.
func DecodeKey(fragment string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(fragment, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed key fragment", common.ErrDecryption)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: malformed key fragment", common.ErrDecryption)
	}
	return raw, nil
}
