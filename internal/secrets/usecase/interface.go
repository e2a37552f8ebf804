// Package usecase implements authorized secret storage under envelope encryption.
package usecase

import (
	"context"

	"github.com/google/uuid"

	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// SecretRepository persists secret rows. Implementations join the transaction carried by
// ctx (see database.GetTx).
//
// Available implementations:
//   - PostgreSQLSecretRepository
//   - MySQLSecretRepository
type SecretRepository interface {
	// Create stores a new secret. Returns ErrSecretKeyExists when the project already
	// has a secret with the same key.
	Create(ctx context.Context, secret *secretsDomain.Secret) error

	// Get returns a secret by id or ErrSecretNotFound.
	Get(ctx context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error)

	// Update rewrites value, key id and updated_at unconditionally.
	Update(ctx context.Context, secret *secretsDomain.Secret) error

	// Delete removes a secret. Returns ErrSecretNotFound for an unknown id.
	Delete(ctx context.Context, secretID uuid.UUID) error

	// ListByProject returns the secrets of a project ordered by key.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*secretsDomain.Secret, error)

	// UpdateValues applies compare-and-set rewrites and returns how many rows changed.
	UpdateValues(ctx context.Context, updates []secretsDomain.ValueUpdate) (int64, error)
}

// SecretUseCase manages secrets on behalf of a user. Every operation resolves the user's
// role first; a caller without the required role gets ErrForbidden.
type SecretUseCase interface {
	// Create encrypts plaintext under the active key and stores it as a new secret.
	// Requires owner or editor on the project.
	Create(
		ctx context.Context,
		userID, projectID uuid.UUID,
		key string,
		plaintext []byte,
	) (*secretsDomain.Secret, error)

	// Update replaces the value of a secret. Requires owner or editor on the secret.
	Update(ctx context.Context, userID, secretID uuid.UUID, plaintext []byte) (*secretsDomain.Secret, error)

	// Get decrypts a single secret. A value that cannot be decrypted is an error wrapping
	// errors.ErrUnavailable.
	Get(ctx context.Context, userID, secretID uuid.UUID) (*secretsDomain.DecryptedSecret, error)

	// ListByProject decrypts every secret of a project. Values that cannot be decrypted
	// are replaced with DecryptionFailedValue instead of failing the listing.
	ListByProject(ctx context.Context, userID, projectID uuid.UUID) ([]*secretsDomain.DecryptedSecret, error)

	// Delete removes a secret. Requires owner or editor on the secret.
	Delete(ctx context.Context, userID, secretID uuid.UUID) error
}

// RepairItem is a secret as read from storage together with its decrypted value.
type RepairItem struct {
	Secret    *secretsDomain.Secret
	Plaintext []byte
}

// Repairer upgrades stale envelopes found on the read path.
//
// Schedule must return without waiting on I/O. Errors are logged and never reach the
// reader.
type Repairer interface {
	Schedule(ctx context.Context, items []RepairItem)
}
