package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
)

// AESGCMCipher implements Cipher with AES-256-GCM and a 16-byte IV.
//
// The 16-byte IV (rather than the usual 12) is part of the stored format and must not
// change: existing values could no longer be opened. GCM hashes non-standard IVs through
// GHASH, so the security properties are unchanged.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a cipher for a 32-byte key.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be exactly 32 bytes, got %d", cryptoDomain.ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, cryptoDomain.IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Seal implements Cipher.
func (a *AESGCMCipher) Seal(plaintext []byte) ([]byte, error) {
	blob := make([]byte, cryptoDomain.IVSize, cryptoDomain.IVSize+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(blob); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	return a.aead.Seal(blob, blob[:cryptoDomain.IVSize], plaintext, nil), nil
}

// Open implements Cipher.
func (a *AESGCMCipher) Open(blob []byte) ([]byte, error) {
	if len(blob) < cryptoDomain.IVSize+cryptoDomain.TagSize {
		return nil, cryptoDomain.ErrCorruptCiphertext
	}

	iv, sealed := blob[:cryptoDomain.IVSize], blob[cryptoDomain.IVSize:]
	plaintext, err := a.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, cryptoDomain.ErrAuthTagMismatch
	}
	return plaintext, nil
}
