package domain

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/envsafe/internal/errors"
)

const testRootKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type fakeKeeper struct {
	plaintext []byte
	err       error
	got       []byte
}

func (f *fakeKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	return plaintext, nil
}

func (f *fakeKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	f.got = ciphertext
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte(nil), f.plaintext...), nil
}

func (f *fakeKeeper) Close() error { return nil }

func TestParseRootKey(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		rootKey, err := ParseRootKey(testRootKeyHex)
		require.NoError(t, err)
		expected, _ := hex.DecodeString(testRootKeyHex)
		assert.Equal(t, expected, rootKey.Key)
		assert.Len(t, rootKey.Key, RootKeySize)
	})

	t.Run("uppercase hex", func(t *testing.T) {
		_, err := ParseRootKey(strings.ToUpper(testRootKeyHex))
		assert.NoError(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseRootKey("")
		assert.ErrorIs(t, err, ErrRootKeyNotSet)
		assert.ErrorIs(t, err, apperrors.ErrConfig)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ParseRootKey(testRootKeyHex[:62])
		assert.ErrorIs(t, err, ErrInvalidRootKey)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := ParseRootKey(testRootKeyHex + "00")
		assert.ErrorIs(t, err, ErrInvalidRootKey)
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := ParseRootKey(strings.Repeat("zz", 32))
		assert.ErrorIs(t, err, ErrInvalidRootKey)
		assert.ErrorIs(t, err, apperrors.ErrConfig)
	})
}

func TestLoadRootKey(t *testing.T) {
	ctx := context.Background()

	t.Run("without keeper", func(t *testing.T) {
		rootKey, err := LoadRootKey(ctx, testRootKeyHex, nil)
		require.NoError(t, err)
		assert.Len(t, rootKey.Key, RootKeySize)
	})

	t.Run("with keeper", func(t *testing.T) {
		keeper := &fakeKeeper{plaintext: []byte(testRootKeyHex)}
		sealed := base64.StdEncoding.EncodeToString([]byte("sealed"))

		rootKey, err := LoadRootKey(ctx, sealed, keeper)
		require.NoError(t, err)
		assert.Equal(t, []byte("sealed"), keeper.got)
		assert.Len(t, rootKey.Key, RootKeySize)
	})

	t.Run("keeper with empty value", func(t *testing.T) {
		_, err := LoadRootKey(ctx, "", &fakeKeeper{})
		assert.ErrorIs(t, err, ErrRootKeyNotSet)
	})

	t.Run("keeper with invalid base64", func(t *testing.T) {
		_, err := LoadRootKey(ctx, "%%%", &fakeKeeper{})
		assert.ErrorIs(t, err, ErrInvalidRootKey)
	})

	t.Run("keeper decrypt failure", func(t *testing.T) {
		keeper := &fakeKeeper{err: errors.New("access denied")}
		_, err := LoadRootKey(ctx, base64.StdEncoding.EncodeToString([]byte("x")), keeper)
		assert.ErrorIs(t, err, ErrInvalidRootKey)
	})

	t.Run("keeper returns malformed key", func(t *testing.T) {
		keeper := &fakeKeeper{plaintext: []byte("short")}
		_, err := LoadRootKey(ctx, base64.StdEncoding.EncodeToString([]byte("x")), keeper)
		assert.ErrorIs(t, err, ErrInvalidRootKey)
	})
}

func TestRootKey_Close(t *testing.T) {
	rootKey, err := ParseRootKey(testRootKeyHex)
	require.NoError(t, err)
	key := rootKey.Key

	rootKey.Close()

	assert.Nil(t, rootKey.Key)
	assert.Equal(t, make([]byte, RootKeySize), key)

	var nilKey *RootKey
	assert.NotPanics(t, nilKey.Close)
}
