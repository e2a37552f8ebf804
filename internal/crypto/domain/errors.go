package domain

import (
	"github.com/allisson/envsafe/internal/errors"
)

// Configuration errors. The process refuses to start when any of them is returned.
var (
	// ErrRootKeyNotSet indicates ROOT_KEY is empty.
	ErrRootKeyNotSet = errors.Wrap(errors.ErrConfig, "root key not set")

	// ErrInvalidRootKey indicates ROOT_KEY is not 64 hex characters (32 bytes), or that the
	// KMS ciphertext could not be opened.
	ErrInvalidRootKey = errors.Wrap(errors.ErrConfig, "invalid root key")
)

// Envelope errors.
//
// Every decryption failure wraps errors.ErrUnavailable: callers can tell the causes apart
// with errors.Is for logging, while the HTTP layer answers all of them with the same
// generic "secret unavailable" response.
var (
	// ErrCorruptCiphertext indicates the stored value is not a parseable envelope: bad
	// base64, a blob shorter than IV plus tag, an unknown version prefix or a malformed key id.
	ErrCorruptCiphertext = errors.Wrap(errors.ErrUnavailable, "corrupt ciphertext")

	// ErrUnknownKey indicates the envelope references a key id absent from the registry.
	ErrUnknownKey = errors.Wrap(errors.ErrUnavailable, "unknown encryption key")

	// ErrAuthTagMismatch indicates GCM authentication failed: wrong key or tampered data.
	ErrAuthTagMismatch = errors.Wrap(errors.ErrUnavailable, "authentication tag mismatch")
)

// Key registry errors.
var (
	// ErrKeyNotFound indicates the encryption key does not exist.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "encryption key not found")

	// ErrNoActiveKey indicates the registry holds no active key. Encryption cannot proceed
	// until a key is bootstrapped.
	ErrNoActiveKey = errors.Wrap(errors.ErrNotFound, "no active encryption key")

	// ErrKeyConflict indicates a write that would break the single active (or single
	// migrating) key rule.
	ErrKeyConflict = errors.Wrap(errors.ErrConflict, "encryption key conflict")

	// ErrInvalidKeySize indicates key material that is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")
)
