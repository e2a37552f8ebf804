package service

import (
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
)

func TestKeyManagerService_GenerateAndUnwrap(t *testing.T) {
	km := NewKeyManager()
	rootKey := &cryptoDomain.RootKey{Key: testKey(9)}

	key, dataKey, err := km.GenerateKey(rootKey)
	require.NoError(t, err)
	assert.Len(t, dataKey, 32)
	assert.NotEqual(t, uuid.Nil, key.ID)
	assert.Equal(t, byte(7), key.ID[6]>>4, "ids are UUIDv7")
	assert.Empty(t, key.Status)
	assert.False(t, key.CreatedAt.IsZero())

	wrapped, err := base64.StdEncoding.DecodeString(key.EncryptedKey)
	require.NoError(t, err)
	assert.Len(t, wrapped, cryptoDomain.IVSize+32+cryptoDomain.TagSize)

	unwrapped, err := km.UnwrapKey(key, rootKey)
	require.NoError(t, err)
	assert.Equal(t, dataKey, unwrapped)

	t.Run("wrong root key", func(t *testing.T) {
		_, err := km.UnwrapKey(key, &cryptoDomain.RootKey{Key: testKey(8)})
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthTagMismatch)
	})

	t.Run("material not base64", func(t *testing.T) {
		broken := *key
		broken.EncryptedKey = "***"
		_, err := km.UnwrapKey(&broken, rootKey)
		assert.ErrorIs(t, err, cryptoDomain.ErrCorruptCiphertext)
	})

	t.Run("wrapped material of the wrong size", func(t *testing.T) {
		aead, err := NewAESGCM(rootKey.Key)
		require.NoError(t, err)
		blob, err := aead.Seal([]byte("sixteen byte key"))
		require.NoError(t, err)

		odd := &cryptoDomain.EncryptionKey{ID: uuid.New(), EncryptedKey: base64.StdEncoding.EncodeToString(blob)}
		_, err = km.UnwrapKey(odd, rootKey)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})

	t.Run("invalid root key size", func(t *testing.T) {
		_, _, err := km.GenerateKey(&cryptoDomain.RootKey{Key: []byte("short")})
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})
}

func TestKeyManagerService_Envelope(t *testing.T) {
	km := NewKeyManager()
	keyID := uuid.Must(uuid.NewV7())
	dataKey := testKey(3)

	envelope, err := km.SealEnvelope(keyID, dataKey, []byte("s3cr3t"))
	require.NoError(t, err)
	assert.Equal(t, cryptoDomain.EnvelopeV1, envelope.Kind)
	assert.Equal(t, keyID, envelope.KeyID)

	parsed, err := cryptoDomain.ParseEnvelope(envelope.String())
	require.NoError(t, err)

	plaintext, err := km.OpenEnvelope(parsed, dataKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cr3t"), plaintext)

	_, err = km.OpenEnvelope(parsed, testKey(4))
	assert.ErrorIs(t, err, cryptoDomain.ErrAuthTagMismatch)
}

func TestKeyManagerService_LegacyEnvelope(t *testing.T) {
	km := NewKeyManager()
	rootKey := testKey(5)

	aead, err := NewAESGCM(rootKey)
	require.NoError(t, err)
	blob, err := aead.Seal([]byte("legacy value"))
	require.NoError(t, err)

	parsed, err := cryptoDomain.ParseEnvelope(base64.StdEncoding.EncodeToString(blob))
	require.NoError(t, err)
	require.True(t, parsed.IsLegacy())

	plaintext, err := km.OpenEnvelope(parsed, rootKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("legacy value"), plaintext)
}
