package cryptox

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateSaltAndIV_Sizes(t *testing.T) {
	e := New("")

	salt, err := e.GenerateSalt()
	require.NoError(t, err)
	assert.Len(t, salt, SaltSize)

	iv, err := e.GenerateIV()
	require.NoError(t, err)
	assert.Len(t, iv, IVSize)

	iv2, err := e.GenerateIV()
	require.NoError(t, err)
	assert.NotEqual(t, iv, iv2)
}

func TestDeriveKeyFromPassword_DeterministicAndNotExportable(t *testing.T) {
	e := New("")
	salt := bytes.Repeat([]byte{7}, SaltSize)
	iv := bytes.Repeat([]byte{1}, IVSize)

	k1, err := e.DeriveKeyFromPassword("hunter2", salt)
	require.NoError(t, err)
	k2, err := e.DeriveKeyFromPassword("hunter2", salt)
	require.NoError(t, err)

	ct, err := e.Encrypt([]byte("hello"), k1, iv)
	require.NoError(t, err)
	pt, err := e.Decrypt(ct, k2, iv)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), pt)

	_, err = k1.Export()
	assert.ErrorIs(t, err, common.ErrKeyNotExportable)
	assert.False(t, k1.Exportable())
}

func TestDeriveKeyFromPassword_DifferentSaltsDoNotCrossDecrypt(t *testing.T) {
	e := New("")
	iv := bytes.Repeat([]byte{1}, IVSize)

	k1, err := e.DeriveKeyFromPassword("pw", bytes.Repeat([]byte{1}, SaltSize))
	require.NoError(t, err)
	k2, err := e.DeriveKeyFromPassword("pw", bytes.Repeat([]byte{2}, SaltSize))
	require.NoError(t, err)

	ct, err := e.Encrypt([]byte("data"), k1, iv)
	require.NoError(t, err)
	_, err = e.Decrypt(ct, k2, iv)
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestDeriveKeyFromPassword_RequiresInputs(t *testing.T) {
	e := New("")
	_, err := e.DeriveKeyFromPassword("", []byte("salt"))
	assert.ErrorIs(t, err, common.ErrEncryption)
	_, err = e.DeriveKeyFromPassword("pw", nil)
	assert.ErrorIs(t, err, common.ErrEncryption)
}

func TestGenerateKey_RandomIsExportable(t *testing.T) {
	e := New("")

	k, err := e.GenerateKey("", nil)
	require.NoError(t, err)
	raw, err := k.Export()
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)

	k2, err := e.GenerateKey("", nil)
	require.NoError(t, err)
	raw2, _ := k2.Export()
	assert.NotEqual(t, raw, raw2)
}

func TestGenerateKey_WithPasswordDerives(t *testing.T) {
	e := New("")
	k, err := e.GenerateKey("pw", bytes.Repeat([]byte{3}, SaltSize))
	require.NoError(t, err)
	assert.False(t, k.Exportable())
}

func TestEncodeDecodeImportKey(t *testing.T) {
	e := New("")
	iv := bytes.Repeat([]byte{9}, IVSize)

	k, err := e.GenerateKey("", nil)
	require.NoError(t, err)
	frag, err := EncodeKey(k)
	require.NoError(t, err)
	assert.NotContains(t, frag, "=")
	assert.False(t, strings.ContainsAny(frag, "+/"))

	raw, err := DecodeKey(frag)
	require.NoError(t, err)
	imported, err := e.ImportKey(raw)
	require.NoError(t, err)

	ct, err := e.Encrypt([]byte("fragment"), k, iv)
	require.NoError(t, err)
	pt, err := e.Decrypt(ct, imported, iv)
	require.NoError(t, err)
	assert.Equal(t, "fragment", string(pt))
}

func TestEncodeKey_DerivedKeyRejected(t *testing.T) {
	e := New("")
	k, err := e.DeriveKeyFromPassword("pw", []byte("salt-salt-salt-1"))
	require.NoError(t, err)
	_, err = EncodeKey(k)
	assert.ErrorIs(t, err, common.ErrKeyNotExportable)
}

func TestDecodeKey_Malformed(t *testing.T) {
	_, err := DecodeKey("not*base64")
	assert.ErrorIs(t, err, common.ErrDecryption)
	_, err = DecodeKey("c2hvcnQ")
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestImportKey_WrongLength(t *testing.T) {
	_, err := New("").ImportKey([]byte("short"))
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestDecrypt_TamperedCiphertextAndIV(t *testing.T) {
	e := New("")
	k, err := e.GenerateKey("", nil)
	require.NoError(t, err)
	iv, err := e.GenerateIV()
	require.NoError(t, err)

	ct, err := e.Encrypt([]byte("integrity matters"), k, iv)
	require.NoError(t, err)

	flipped := append([]byte(nil), ct...)
	flipped[0] ^= 0x01
	_, err = e.Decrypt(flipped, k, iv)
	assert.ErrorIs(t, err, common.ErrDecryption)

	badIV := append([]byte(nil), iv...)
	badIV[len(badIV)-1] ^= 0x80
	_, err = e.Decrypt(ct, k, badIV)
	assert.ErrorIs(t, err, common.ErrDecryption)

	_, err = e.Decrypt(ct, k, iv[:8])
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestEncrypt_InvalidInputs(t *testing.T) {
	e := New("")
	k, err := e.GenerateKey("", nil)
	require.NoError(t, err)

	_, err = e.Encrypt([]byte("x"), k, []byte("short"))
	assert.ErrorIs(t, err, common.ErrEncryption)

	_, err = e.Encrypt([]byte("x"), nil, make([]byte, IVSize))
	assert.ErrorIs(t, err, common.ErrEncryption)

	k.Wipe()
	_, err = e.Encrypt([]byte("x"), k, make([]byte, IVSize))
	assert.ErrorIs(t, err, common.ErrEncryption)
}

func TestRandomSourceFailure_IsEncryptionError(t *testing.T) {
	e := New("")
	e.random = failingReader{}

	_, err := e.GenerateSalt()
	assert.ErrorIs(t, err, common.ErrEncryption)
	_, err = e.GenerateKey("", nil)
	assert.ErrorIs(t, err, common.ErrEncryption)
	_, err = e.EncryptFile([]byte("x"), "pw")
	assert.ErrorIs(t, err, common.ErrEncryption)
}

func TestEncryptFile_RoundTripWithPassword(t *testing.T) {
	e := New("")
	data := []byte("Hello World")

	ef, err := e.EncryptFile(data, "s3cret")
	require.NoError(t, err)
	assert.Len(t, ef.Salt, SaltSize)
	assert.Len(t, ef.IV, IVSize)
	assert.NotContains(t, string(ef.Ciphertext), "Hello")

	pt, err := e.DecryptFile(ef.Ciphertext, ef.IV, ef.Salt, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, data, pt)
}

func TestDecryptFile_WrongPassword(t *testing.T) {
	e := New("")
	ef, err := e.EncryptFile([]byte("payload"), "correct")
	require.NoError(t, err)

	_, err = e.DecryptFile(ef.Ciphertext, ef.IV, ef.Salt, "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidPassword)
	assert.ErrorIs(t, err, common.ErrDecryption)
	assert.NotContains(t, err.Error(), "correct")
}

func TestEncryptFile_FallbackPassphrase(t *testing.T) {
	e := New("server-side-secret")
	ef, err := e.EncryptFile([]byte("embedded"), "")
	require.NoError(t, err)

	pt, err := e.DecryptFile(ef.Ciphertext, ef.IV, ef.Salt, "")
	require.NoError(t, err)
	assert.Equal(t, "embedded", string(pt))

	k, err := e.FallbackKey(ef.Salt)
	require.NoError(t, err)
	pt, err = e.Decrypt(ef.Ciphertext, k, ef.IV)
	require.NoError(t, err)
	assert.Equal(t, "embedded", string(pt))

	other := New("another-secret")
	_, err = other.DecryptFile(ef.Ciphertext, ef.IV, ef.Salt, "")
	assert.ErrorIs(t, err, common.ErrDecryption)
	assert.NotErrorIs(t, err, common.ErrInvalidPassword)
}

func TestEncryptFile_EmptyPlaintext(t *testing.T) {
	e := New("")
	ef, err := e.EncryptFile(nil, "pw")
	require.NoError(t, err)
	assert.Len(t, ef.Ciphertext, 16)

	pt, err := e.DecryptFile(ef.Ciphertext, ef.IV, ef.Salt, "pw")
	require.NoError(t, err)
	assert.Empty(t, pt)
}

func TestKeyWipe(t *testing.T) {
	e := New("")
	k, err := e.GenerateKey("", nil)
	require.NoError(t, err)
	k.Wipe()
	_, err = k.Export()
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.NotPanics(t, func() { (*Key)(nil).Wipe() })
}
