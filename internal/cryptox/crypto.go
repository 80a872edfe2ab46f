// Package cryptox implements the cryptographic primitives used by gophshare:
// PBKDF2 key derivation, random key generation and AES-256-GCM authenticated
// encryption over byte buffers.
//
// An Engine holds configuration only (fallback passphrase, random source),
// so one value can be shared by concurrent uploads and downloads.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Algorithm is the AEAD used for every envelope.
	Algorithm = "AES-256-GCM"
	// KDFAlgorithm names the password based key derivation.
	KDFAlgorithm = "PBKDF2-SHA256"
	// KDFNone marks keys that were generated randomly instead of derived.
	KDFNone = "none"

	PBKDF2Iterations = 100000
	SaltSize         = 16
	IVSize           = 12
	KeySize          = 32
)

// DefaultFallbackPassphrase is used by EncryptFile/DecryptFile when neither
// the caller nor the engine configuration supplies a password. Files
// encrypted with it are not zero-knowledge.
const DefaultFallbackPassphrase = "gophshare-embedded-fallback"

// Key is an opaque AES-256 key handle. Keys derived from a password cannot
// be exported as raw bytes; randomly generated keys can, so they can travel
// in a share URL fragment.
type Key struct {
	raw        []byte
	exportable bool
}

// Export returns a copy of the raw key bytes.
func (k *Key) Export() ([]byte, error) {
	if k == nil || len(k.raw) == 0 {
		return nil, fmt.Errorf("export: %w", common.ErrValidation)
	}
	if !k.exportable {
		return nil, common.ErrKeyNotExportable
	}
	out := make([]byte, len(k.raw))
	copy(out, k.raw)
	return out, nil
}

// Exportable reports whether Export will succeed.
func (k *Key) Exportable() bool {
	return k != nil && k.exportable
}

// Wipe zeroes the key material. The handle is unusable afterwards.
func (k *Key) Wipe() {
	if k == nil {
		return
	}
	common.WipeByteArray(k.raw)
	k.raw = nil
}

// EncryptedFile is the output of EncryptFile: the three parts an envelope
// is packed from.
type EncryptedFile struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
}

// Engine bundles the primitives.
type Engine struct {
	fallback string
	random   io.Reader
}

// New builds an Engine. An empty fallbackPassphrase selects
// DefaultFallbackPassphrase.
func New(fallbackPassphrase string) *Engine {
	if fallbackPassphrase == "" {
		fallbackPassphrase = DefaultFallbackPassphrase
	}
	return &Engine{fallback: fallbackPassphrase, random: rand.Reader}
}

func (e *Engine) randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(e.random, b); err != nil {
		return nil, fmt.Errorf("%w: random source: %w", common.ErrEncryption, err)
	}
	return b, nil
}

// GenerateSalt returns SaltSize random bytes.
func (e *Engine) GenerateSalt() ([]byte, error) {
	return e.randomBytes(SaltSize)
}

// GenerateIV returns IVSize random bytes, the GCM nonce length.
func (e *Engine) GenerateIV() ([]byte, error) {
	return e.randomBytes(IVSize)
}

// DeriveKeyFromPassword runs PBKDF2-SHA256 with PBKDF2Iterations rounds.
// The same password and salt always give the same key.
func (e *Engine) DeriveKeyFromPassword(password string, salt []byte) (*Key, error) {
	if password == "" || len(salt) == 0 {
		return nil, fmt.Errorf("%w: derive key: password and salt required", common.ErrEncryption)
	}
	pw := []byte(password)
	defer common.WipeByteArray(pw)

	raw := pbkdf2.Key(pw, salt, PBKDF2Iterations, KeySize, sha256.New)
	return &Key{raw: raw}, nil
}

// GenerateKey derives a key when both password and salt are given and
// otherwise returns a fresh random key.
func (e *Engine) GenerateKey(password string, salt []byte) (*Key, error) {
	if password != "" && len(salt) > 0 {
		return e.DeriveKeyFromPassword(password, salt)
	}
	raw, err := e.randomBytes(KeySize)
	if err != nil {
		return nil, err
	}
	return &Key{raw: raw, exportable: true}, nil
}

// ImportKey wraps raw bytes received from a share URL fragment.
func (e *Engine) ImportKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: import key: wrong key length", common.ErrDecryption)
	}
	k := make([]byte, KeySize)
	copy(k, raw)
	return &Key{raw: k, exportable: true}, nil
}

func newAEAD(key *Key) (cipher.AEAD, error) {
	if key == nil || len(key.raw) != KeySize {
		return nil, fmt.Errorf("invalid key")
	}
	block, err := aes.NewCipher(key.raw)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext with AES-256-GCM under key and iv.
func (e *Engine) Encrypt(plaintext []byte, key *Key, iv []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", common.ErrEncryption, IVSize)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEncryption, err)
	}
	return aead.Seal(nil, iv, plaintext, nil), nil
}

// Decrypt opens ciphertext. A wrong key, a tampered ciphertext or a tampered
// iv all fail the authentication tag check and return common.ErrDecryption.
func (e *Engine) Decrypt(ciphertext []byte, key *Key, iv []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("decrypt: %w", common.ErrDecryption)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", common.ErrDecryption)
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", common.ErrDecryption)
	}
	return plaintext, nil
}

// EncryptFile generates salt and iv, derives the key from password (or the
// fallback passphrase when password is empty) and encrypts data.
func (e *Engine) EncryptFile(data []byte, password string) (*EncryptedFile, error) {
	salt, err := e.GenerateSalt()
	if err != nil {
		return nil, err
	}
	iv, err := e.GenerateIV()
	if err != nil {
		return nil, err
	}

	key, err := e.DeriveKeyFromPassword(e.passphrase(password), salt)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	ciphertext, err := e.Encrypt(data, key, iv)
	if err != nil {
		return nil, err
	}
	return &EncryptedFile{Ciphertext: ciphertext, IV: iv, Salt: salt}, nil
}

// DecryptFile reverses EncryptFile. When a password was supplied, failure is
// reported as common.ErrInvalidPassword in addition to common.ErrDecryption.
func (e *Engine) DecryptFile(ciphertext, iv, salt []byte, password string) ([]byte, error) {
	key, err := e.DeriveKeyFromPassword(e.passphrase(password), salt)
	if err != nil {
		return nil, fmt.Errorf("decrypt file: %w", common.ErrDecryption)
	}
	defer key.Wipe()

	plaintext, err := e.Decrypt(ciphertext, key, iv)
	if err != nil {
		if password != "" {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidPassword, err)
		}
		return nil, err
	}
	return plaintext, nil
}

// FallbackKey derives the server-side key of an embedded-mode file.
func (e *Engine) FallbackKey(salt []byte) (*Key, error) {
	return e.DeriveKeyFromPassword(e.fallback, salt)
}

func (e *Engine) passphrase(password string) string {
	if password == "" {
		return e.fallback
	}
	return password
}
