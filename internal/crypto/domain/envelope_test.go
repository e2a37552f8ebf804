package domain

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/envsafe/internal/errors"
)

func blobOfSize(n int) []byte {
	return bytes.Repeat([]byte{0xab}, n)
}

func TestParseEnvelope(t *testing.T) {
	keyID := uuid.Must(uuid.NewV7())
	blob := blobOfSize(IVSize + 5 + TagSize)
	encoded := base64.StdEncoding.EncodeToString(blob)

	t.Run("v1", func(t *testing.T) {
		env, err := ParseEnvelope("v1:" + keyID.String() + ":" + encoded)
		require.NoError(t, err)
		assert.Equal(t, EnvelopeV1, env.Kind)
		assert.Equal(t, keyID, env.KeyID)
		assert.Equal(t, blob, env.Blob)
		assert.False(t, env.IsLegacy())
	})

	t.Run("legacy", func(t *testing.T) {
		env, err := ParseEnvelope(encoded)
		require.NoError(t, err)
		assert.True(t, env.IsLegacy())
		assert.Equal(t, uuid.Nil, env.KeyID)
		assert.Equal(t, blob, env.Blob)
	})

	t.Run("minimum blob size", func(t *testing.T) {
		_, err := ParseEnvelope(base64.StdEncoding.EncodeToString(blobOfSize(IVSize + TagSize)))
		assert.NoError(t, err)
	})

	corrupt := map[string]string{
		"empty value":       "",
		"invalid base64":    "not base64!",
		"short legacy blob": base64.StdEncoding.EncodeToString(blobOfSize(IVSize + TagSize - 1)),
		"short v1 blob":     "v1:" + keyID.String() + ":" + base64.StdEncoding.EncodeToString(blobOfSize(10)),
		"unknown version":   "v2:" + keyID.String() + ":" + encoded,
		"malformed key id":  "v1:not-a-uuid:" + encoded,
		"missing blob":      "v1:" + keyID.String(),
		"only version":      "v1:",
		"colon inside blob": "v1:" + keyID.String() + ":" + encoded + ":extra",
	}
	for name, value := range corrupt {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEnvelope(value)
			assert.ErrorIs(t, err, ErrCorruptCiphertext)
			assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		})
	}
}

func TestParseEnvelope_DamagedPayload(t *testing.T) {
	keyID := uuid.Must(uuid.NewV7())
	encoded := base64.StdEncoding.EncodeToString(blobOfSize(IVSize + 5 + TagSize))
	require.True(t, strings.HasSuffix(encoded, "=="))

	// The last data character before "==" carries four padding bits.
	nonCanonical := []byte(encoded)
	nonCanonical[len(nonCanonical)-3]++

	tests := []struct {
		name    string
		payload string
	}{
		{name: "invalid characters", payload: "***"},
		{name: "padding replaced", payload: encoded[:len(encoded)-1] + "A"},
		{name: "non-canonical padding bits", payload: string(nonCanonical)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope("v1:" + keyID.String() + ":" + tt.payload)
			assert.ErrorIs(t, err, ErrAuthTagMismatch)
			assert.NotErrorIs(t, err, ErrCorruptCiphertext)
			assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		})
	}

	t.Run("legacy value stays corrupt", func(t *testing.T) {
		_, err := ParseEnvelope(string(nonCanonical))
		assert.ErrorIs(t, err, ErrCorruptCiphertext)
	})
}

func TestEnvelope_String(t *testing.T) {
	keyID := uuid.Must(uuid.NewV7())
	blob := blobOfSize(IVSize + 3 + TagSize)

	t.Run("v1 round trip", func(t *testing.T) {
		value := NewEnvelope(keyID, blob).String()
		assert.Equal(t, "v1:"+keyID.String()+":"+base64.StdEncoding.EncodeToString(blob), value)

		parsed, err := ParseEnvelope(value)
		require.NoError(t, err)
		assert.Equal(t, NewEnvelope(keyID, blob), parsed)
	})

	t.Run("legacy", func(t *testing.T) {
		env := Envelope{Kind: EnvelopeLegacy, Blob: blob}
		assert.Equal(t, base64.StdEncoding.EncodeToString(blob), env.String())
	})
}

func TestEnvelope_IsStale(t *testing.T) {
	old := uuid.Must(uuid.NewV7())
	active := uuid.Must(uuid.NewV7())
	migrating := uuid.Must(uuid.NewV7())
	blob := blobOfSize(IVSize + TagSize)

	tests := []struct {
		name      string
		envelope  Envelope
		migrating uuid.UUID
		want      bool
	}{
		{name: "active key", envelope: NewEnvelope(active, blob), want: false},
		{name: "older key", envelope: NewEnvelope(old, blob), want: true},
		{name: "rotation target", envelope: NewEnvelope(migrating, blob), migrating: migrating, want: false},
		{name: "newer key without rotation", envelope: NewEnvelope(migrating, blob), want: true},
		{name: "older key during rotation", envelope: NewEnvelope(old, blob), migrating: migrating, want: true},
		{name: "legacy", envelope: Envelope{Kind: EnvelopeLegacy, Blob: blob}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.envelope.IsStale(active, tt.migrating))
		})
	}
}
