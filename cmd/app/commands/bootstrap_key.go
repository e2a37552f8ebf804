package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoUseCase "github.com/allisson/envsafe/internal/crypto/usecase"
)

// RunBootstrapKey creates the first active encryption key when the registry is empty.
// Running it again is harmless: the existing active key is reported instead.
func RunBootstrapKey(
	ctx context.Context,
	registry cryptoUseCase.KeyRegistry,
	logger *slog.Logger,
	writer io.Writer,
) error {
	key, created, err := registry.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to bootstrap encryption key: %w", err)
	}

	if created {
		logger.Info("encryption key created", slog.String("key_id", key.ID.String()))
		_, _ = fmt.Fprintf(writer, "Created active encryption key %s\n", key.ID)
		return nil
	}

	logger.Info("active encryption key already exists", slog.String("key_id", key.ID.String()))
	_, _ = fmt.Fprintf(writer, "Active encryption key %s already exists\n", key.ID)
	return nil
}
