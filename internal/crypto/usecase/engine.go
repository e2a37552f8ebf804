package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	cryptoService "github.com/allisson/envsafe/internal/crypto/service"
)

type engine struct {
	registry   KeyRegistry
	keyManager cryptoService.KeyManager
	rootKey    *cryptoDomain.RootKey
}

// Encrypt implements Engine.
func (e *engine) Encrypt(ctx context.Context, plaintext []byte) (cryptoDomain.Envelope, error) {
	keyID, key, err := e.registry.ActiveKey(ctx)
	if err != nil {
		return cryptoDomain.Envelope{}, err
	}
	defer cryptoDomain.Zero(key)

	return e.keyManager.SealEnvelope(keyID, key, plaintext)
}

// EncryptWithKey implements Engine.
func (e *engine) EncryptWithKey(
	ctx context.Context,
	keyID uuid.UUID,
	plaintext []byte,
) (cryptoDomain.Envelope, error) {
	key, err := e.registry.DataKey(ctx, keyID)
	if err != nil {
		return cryptoDomain.Envelope{}, err
	}
	defer cryptoDomain.Zero(key)

	return e.keyManager.SealEnvelope(keyID, key, plaintext)
}

// Decrypt implements Engine.
func (e *engine) Decrypt(ctx context.Context, value string) ([]byte, error) {
	envelope, err := cryptoDomain.ParseEnvelope(value)
	if err != nil {
		return nil, err
	}

	if envelope.IsLegacy() {
		return e.keyManager.OpenEnvelope(envelope, e.rootKey.Key)
	}

	key, err := e.registry.DataKey(ctx, envelope.KeyID)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	return e.keyManager.OpenEnvelope(envelope, key)
}

// DecryptWithKeyring implements Engine.
func (e *engine) DecryptWithKeyring(value string, ring cryptoDomain.Keyring) ([]byte, error) {
	envelope, err := cryptoDomain.ParseEnvelope(value)
	if err != nil {
		return nil, err
	}

	if envelope.IsLegacy() {
		return e.keyManager.OpenEnvelope(envelope, e.rootKey.Key)
	}

	key, ok := ring[envelope.KeyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrUnknownKey, envelope.KeyID)
	}

	return e.keyManager.OpenEnvelope(envelope, key)
}

// ActiveKeyID implements Engine.
func (e *engine) ActiveKeyID(ctx context.Context) (uuid.UUID, error) {
	keyID, key, err := e.registry.ActiveKey(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	cryptoDomain.Zero(key)
	return keyID, nil
}

// MigratingKeyID implements Engine.
func (e *engine) MigratingKeyID(ctx context.Context) (uuid.UUID, error) {
	return e.registry.MigratingKeyID(ctx)
}

// NewEngine creates an Engine. The root key opens legacy values; everything else goes
// through the registry.
func NewEngine(
	registry KeyRegistry,
	keyManager cryptoService.KeyManager,
	rootKey *cryptoDomain.RootKey,
) Engine {
	return &engine{registry: registry, keyManager: keyManager, rootKey: rootKey}
}

// IsDecryptionFailure reports whether err is one of the envelope decryption errors.
func IsDecryptionFailure(err error) bool {
	return errors.Is(err, cryptoDomain.ErrCorruptCiphertext) ||
		errors.Is(err, cryptoDomain.ErrUnknownKey) ||
		errors.Is(err, cryptoDomain.ErrAuthTagMismatch)
}
