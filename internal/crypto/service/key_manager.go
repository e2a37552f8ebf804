package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
)

// KeyManagerService implements KeyManager.
//
// The hierarchy has two tiers: data keys are wrapped by the root key, and values are
// sealed with data keys. Legacy values skip the middle tier and are sealed with the root
// key directly.
type KeyManagerService struct{}

// NewKeyManager creates a KeyManagerService.
func NewKeyManager() *KeyManagerService {
	return &KeyManagerService{}
}

// GenerateKey implements KeyManager.
func (km *KeyManagerService) GenerateKey(
	rootKey *cryptoDomain.RootKey,
) (*cryptoDomain.EncryptionKey, []byte, error) {
	dataKey := make([]byte, 32)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	aead, err := NewAESGCM(rootKey.Key)
	if err != nil {
		cryptoDomain.Zero(dataKey)
		return nil, nil, err
	}

	wrapped, err := aead.Seal(dataKey)
	if err != nil {
		cryptoDomain.Zero(dataKey)
		return nil, nil, fmt.Errorf("failed to wrap data key: %w", err)
	}

	key := &cryptoDomain.EncryptionKey{
		ID:           uuid.Must(uuid.NewV7()),
		EncryptedKey: base64.StdEncoding.EncodeToString(wrapped),
		CreatedAt:    time.Now().UTC(),
	}

	return key, dataKey, nil
}

// UnwrapKey implements KeyManager.
func (km *KeyManagerService) UnwrapKey(
	key *cryptoDomain.EncryptionKey,
	rootKey *cryptoDomain.RootKey,
) ([]byte, error) {
	wrapped, err := base64.StdEncoding.DecodeString(key.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: key %s material is not base64", cryptoDomain.ErrCorruptCiphertext, key.ID)
	}

	aead, err := NewAESGCM(rootKey.Key)
	if err != nil {
		return nil, err
	}

	dataKey, err := aead.Open(wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key %s: %w", key.ID, err)
	}

	if len(dataKey) != 32 {
		cryptoDomain.Zero(dataKey)
		return nil, fmt.Errorf("%w: key %s", cryptoDomain.ErrInvalidKeySize, key.ID)
	}

	return dataKey, nil
}

// SealEnvelope implements KeyManager.
func (km *KeyManagerService) SealEnvelope(
	keyID uuid.UUID,
	dataKey, plaintext []byte,
) (cryptoDomain.Envelope, error) {
	aead, err := NewAESGCM(dataKey)
	if err != nil {
		return cryptoDomain.Envelope{}, err
	}

	blob, err := aead.Seal(plaintext)
	if err != nil {
		return cryptoDomain.Envelope{}, err
	}

	return cryptoDomain.NewEnvelope(keyID, blob), nil
}

// OpenEnvelope implements KeyManager.
func (km *KeyManagerService) OpenEnvelope(envelope cryptoDomain.Envelope, key []byte) ([]byte, error) {
	aead, err := NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(envelope.Blob)
}
