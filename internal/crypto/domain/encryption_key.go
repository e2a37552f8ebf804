package domain

import (
	"time"

	"github.com/google/uuid"
)

// KeyStatus is the lifecycle state of an EncryptionKey.
//
// A key moves strictly forward: migrating -> active -> retired. At most one key is active
// at any time and at most one is migrating (the target of the in-flight rotation job).
type KeyStatus string

const (
	// KeyStatusActive marks the single key used for all new encryptions.
	KeyStatusActive KeyStatus = "active"

	// KeyStatusMigrating marks a freshly generated key that secrets are being re-encrypted
	// into. It is readable but never chosen for new writes.
	KeyStatusMigrating KeyStatus = "migrating"

	// KeyStatusRetired marks a superseded key kept only to decrypt values that still
	// reference it.
	KeyStatusRetired KeyStatus = "retired"
)

// IsValid reports whether s is a known status.
func (s KeyStatus) IsValid() bool {
	switch s {
	case KeyStatusActive, KeyStatusMigrating, KeyStatusRetired:
		return true
	}
	return false
}

// EncryptionKey is a registry row: a 256-bit data key wrapped under the root key.
//
// The plaintext key never leaves memory; EncryptedKey holds the envelope blob
// (base64 of IV || ciphertext || tag) produced by sealing the key with the root key.
//
// Fields:
//   - ID: UUIDv7, so lexical order matches creation order
//   - EncryptedKey: the wrapped key material
//   - Status: lifecycle state
//   - CreatedAt: creation timestamp
type EncryptionKey struct {
	ID           uuid.UUID
	EncryptedKey string
	Status       KeyStatus
	CreatedAt    time.Time
}

// Keyring maps key ids to unwrapped data keys. It is built per unit of work (a rotation
// chunk) so each key is resolved once.
type Keyring map[uuid.UUID][]byte

// Close zeroes every key held by the ring.
func (k Keyring) Close() {
	for id, key := range k {
		Zero(key)
		delete(k, id)
	}
}
