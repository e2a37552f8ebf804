// Package service provides the cryptographic primitives behind envelope encryption:
// AES-256-GCM sealing, data key generation and wrapping, and KMS keeper access.
package service

import (
	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
)

// Cipher seals and opens self-contained blobs laid out as IV || ciphertext || tag.
type Cipher interface {
	// Seal encrypts plaintext under a fresh random IV.
	Seal(plaintext []byte) ([]byte, error)

	// Open authenticates and decrypts a blob produced by Seal.
	//
	// Returns ErrCorruptCiphertext when the blob is shorter than IV plus tag and
	// ErrAuthTagMismatch when authentication fails.
	Open(blob []byte) ([]byte, error)
}

// KeyManager generates, wraps and unwraps data keys, and seals values into envelopes.
type KeyManager interface {
	// GenerateKey creates a random 256-bit data key wrapped under the root key. The
	// returned EncryptionKey has no status; the caller decides it. The plaintext key is
	// returned alongside and must be zeroed by the caller.
	GenerateKey(rootKey *cryptoDomain.RootKey) (*cryptoDomain.EncryptionKey, []byte, error)

	// UnwrapKey decrypts the key material of a registry row with the root key.
	UnwrapKey(key *cryptoDomain.EncryptionKey, rootKey *cryptoDomain.RootKey) ([]byte, error)

	// SealEnvelope encrypts plaintext with a data key into a v1 envelope.
	SealEnvelope(keyID uuid.UUID, dataKey, plaintext []byte) (cryptoDomain.Envelope, error)

	// OpenEnvelope decrypts an envelope with the key it references (the root key for legacy
	// envelopes).
	OpenEnvelope(envelope cryptoDomain.Envelope, key []byte) ([]byte, error)
}
