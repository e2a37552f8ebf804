package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	cryptoService "github.com/allisson/envsafe/internal/crypto/service"
)

// RunCreateRootKey generates a 32-byte root key and prints the ROOT_KEY to configure.
//
// Without kmsKeyURI the key is printed as 64 hex characters. With kmsKeyURI the hex key is
// sealed by the KMS key and ROOT_KEY is the base64 ciphertext, so the plain key never
// appears in configuration. For local development use "base64key://<32-byte-base64-key>".
//
// The root key wraps every data key in the registry. Losing it makes every stored secret
// unreadable.
func RunCreateRootKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	kmsKeyURI string,
) error {
	rootKey := make([]byte, cryptoDomain.RootKeySize)
	if _, err := rand.Read(rootKey); err != nil {
		return fmt.Errorf("failed to generate root key: %w", err)
	}
	defer cryptoDomain.Zero(rootKey)

	encoded := []byte(hex.EncodeToString(rootKey))
	defer cryptoDomain.Zero(encoded)

	if kmsKeyURI == "" {
		logger.Warn("root key printed in plain text; prefer --kms-key-uri in production")
		_, _ = fmt.Fprintln(writer, "# Root Key Configuration")
		_, _ = fmt.Fprintln(writer, "# Copy this environment variable to your .env file or secrets manager")
		_, _ = fmt.Fprintln(writer)
		_, _ = fmt.Fprintf(writer, "ROOT_KEY=\"%s\"\n", encoded)
		return nil
	}

	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	ciphertext, err := keeper.Encrypt(ctx, encoded)
	if err != nil {
		return fmt.Errorf("failed to encrypt root key with KMS: %w", err)
	}

	_, _ = fmt.Fprintln(writer, "# Root Key Configuration (KMS Mode)")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	_, _ = fmt.Fprintf(writer, "ROOT_KEY=\"%s\"\n", base64.StdEncoding.EncodeToString(ciphertext))

	return nil
}
