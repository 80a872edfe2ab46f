// Package common defines shared constants and sentinel errors used across
// the gophshare packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrValidation = errors.New("validation error")

	// Crypto errors. Messages built on top of these never carry key
	// material, passwords, salts or IVs.
	ErrEncryption       = errors.New("encryption failed")
	ErrDecryption       = errors.New("decryption failed")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrKeyNotExportable = errors.New("key is not exportable")

	// Envelope decoding errors (data corruption, never retried).
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// Entity lifecycle outcomes.
	ErrFileNotFound = errors.New("file not found")
	ErrAccessDenied = errors.New("access denied")

	// Short id allocation.
	ErrShortIDExhausted = errors.New("short id generation exhausted attempts")
	ErrAliasTaken       = errors.New("alias already taken")

	// Access grants.
	ErrInvalidToken = errors.New("invalid token")

	// Thumbnails.
	ErrThumbnailUnsupported = errors.New("thumbnail not supported for content")
)
