// Package domain defines the secret entity stored under envelope encryption.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DecryptionFailedValue replaces a value that could not be decrypted when several secrets
// are returned together, so one bad row does not fail the whole listing.
const DecryptionFailedValue = "[DECRYPTION_FAILED]"

// Secret is an environment variable of a project. Value always holds an envelope, never
// plaintext.
//
// KeyID mirrors the key id embedded in Value so rows that need rotation can be found
// without parsing every envelope. It is nil for legacy values sealed under the root key.
type Secret struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Key       string
	Value     string
	KeyID     *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DecryptedSecret is a secret with its plaintext value.
type DecryptedSecret struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Key       string
	Value     string
	// Failed is true when Value holds DecryptionFailedValue instead of the plaintext.
	Failed    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValueUpdate rewrites a secret's envelope. The write only applies while the row still
// holds PreviousValue, so a concurrent user update is never overwritten with older data.
type ValueUpdate struct {
	ID            uuid.UUID
	PreviousValue string
	Value         string
	KeyID         uuid.UUID
}
