package domain

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// RootKeySize is the root key length in bytes.
const RootKeySize = 32

// KMSKeeper is the subset of *secrets.Keeper (gocloud.dev) used to unseal a KMS
// protected root key.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// RootKey is the process-wide key-encryption key. It wraps every EncryptionKey and
// decrypts legacy values that predate the versioned envelope format.
//
// The root key is loaded once at startup and is never persisted, cached or logged.
// Call Close on shutdown to zero the material.
type RootKey struct {
	Key []byte
}

// Close zeroes the key material.
func (r *RootKey) Close() {
	if r == nil {
		return
	}
	Zero(r.Key)
	r.Key = nil
}

// ParseRootKey decodes a 64 character hex string into a RootKey.
//
// Returns:
//   - ErrRootKeyNotSet if raw is empty
//   - ErrInvalidRootKey if raw is not valid hex or does not decode to 32 bytes
func ParseRootKey(raw string) (*RootKey, error) {
	if raw == "" {
		return nil, ErrRootKeyNotSet
	}

	if len(raw) != hex.EncodedLen(RootKeySize) {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d",
			ErrInvalidRootKey, hex.EncodedLen(RootKeySize), len(raw))
	}

	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRootKey, err)
	}

	return &RootKey{Key: key}, nil
}

// LoadRootKey builds the RootKey from configuration.
//
// Without a keeper, raw must be the 64 character hex key. With a keeper, raw is the
// base64 ciphertext produced by sealing that hex string with the KMS key, and the keeper
// opens it first. The keeper is not closed.
func LoadRootKey(ctx context.Context, raw string, keeper KMSKeeper) (*RootKey, error) {
	if keeper == nil {
		return ParseRootKey(raw)
	}

	if raw == "" {
		return nil, ErrRootKeyNotSet
	}

	ciphertext, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: kms ciphertext is not base64: %v", ErrInvalidRootKey, err)
	}

	plaintext, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: kms decrypt failed: %v", ErrInvalidRootKey, err)
	}
	defer Zero(plaintext)

	return ParseRootKey(string(plaintext))
}
