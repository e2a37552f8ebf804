package domain

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Envelope layout constants.
const (
	// EnvelopeVersion is the only versioned format currently written.
	EnvelopeVersion = "v1"

	// IVSize is the AES-GCM nonce length used by every envelope.
	IVSize = 16

	// TagSize is the AES-GCM authentication tag length.
	TagSize = 16
)

// EnvelopeKind tags the two envelope variants.
type EnvelopeKind int

const (
	// EnvelopeLegacy is a bare base64 blob sealed directly under the root key.
	EnvelopeLegacy EnvelopeKind = iota

	// EnvelopeV1 is "v1:{keyId}:{base64 blob}" sealed under the referenced data key.
	EnvelopeV1
)

// Envelope is a parsed encrypted value.
//
// Wire formats:
//
//	v1:{keyId}:{base64(iv || ciphertext || tag)}
//	{base64(iv || ciphertext || tag)}              legacy, root key
//
// Standard base64 never contains ':', so any value with a colon is treated as versioned
// and any other value as legacy.
type Envelope struct {
	Kind  EnvelopeKind
	KeyID uuid.UUID
	Blob  []byte
}

// ParseEnvelope parses a stored value.
//
// Structural damage (segment count, version, key id, a blob shorter than IV plus tag)
// yields ErrCorruptCiphertext. A v1 value with an intact header whose payload is not
// canonical base64 yields ErrAuthTagMismatch, the same as a payload that decodes but fails
// authentication.
func ParseEnvelope(value string) (Envelope, error) {
	if !strings.Contains(value, ":") {
		blob, err := decodeBlob(value, ErrCorruptCiphertext)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Kind: EnvelopeLegacy, Blob: blob}, nil
	}

	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 {
		return Envelope{}, fmt.Errorf("%w: expected 3 segments", ErrCorruptCiphertext)
	}
	if parts[0] != EnvelopeVersion {
		return Envelope{}, fmt.Errorf("%w: unsupported version %q", ErrCorruptCiphertext, parts[0])
	}

	keyID, err := uuid.Parse(parts[1])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed key id", ErrCorruptCiphertext)
	}

	blob, err := decodeBlob(parts[2], ErrAuthTagMismatch)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{Kind: EnvelopeV1, KeyID: keyID, Blob: blob}, nil
}

// IsLegacy reports whether the envelope was sealed under the root key.
func (e Envelope) IsLegacy() bool {
	return e.Kind == EnvelopeLegacy
}

// IsStale reports whether the envelope should be re-encrypted under activeKeyID.
//
// Values under migratingKeyID, the target of the rotation in flight, are current: moving
// them back to the outgoing active key would undo the rotation. Pass uuid.Nil when no
// rotation is running. Every other key, older or newer, is stale.
func (e Envelope) IsStale(activeKeyID, migratingKeyID uuid.UUID) bool {
	if e.IsLegacy() {
		return true
	}
	return e.KeyID != activeKeyID && (migratingKeyID == uuid.Nil || e.KeyID != migratingKeyID)
}

// String renders the envelope in its wire format.
func (e Envelope) String() string {
	encoded := base64.StdEncoding.EncodeToString(e.Blob)
	if e.IsLegacy() {
		return encoded
	}
	return fmt.Sprintf("%s:%s:%s", EnvelopeVersion, e.KeyID, encoded)
}

// NewEnvelope returns a v1 envelope for blob sealed under keyID.
func NewEnvelope(keyID uuid.UUID, blob []byte) Envelope {
	return Envelope{Kind: EnvelopeV1, KeyID: keyID, Blob: blob}
}

// decodeBlob rejects non-canonical encodings, so each blob has exactly one valid text form.
func decodeBlob(encoded string, invalid error) ([]byte, error) {
	blob, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", invalid)
	}
	if len(blob) < IVSize+TagSize {
		return nil, fmt.Errorf("%w: blob too short", ErrCorruptCiphertext)
	}
	return blob, nil
}
