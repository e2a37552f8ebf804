// Package usecase implements envelope encryption on top of the key registry.
//
// KeyRegistry resolves key material (cache first, database second) and Engine turns
// plaintext into envelopes and back. Both are safe for concurrent use.
package usecase

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
)

// EncryptionKeyRepository persists registry rows.
//
// Implementations participate in the transaction carried by ctx (see database.GetTx), so
// promotions that touch several rows can be made atomic by the caller.
//
// Available implementations:
//   - PostgreSQLEncryptionKeyRepository
//   - MySQLEncryptionKeyRepository
type EncryptionKeyRepository interface {
	// Create stores a new key. Returns ErrKeyConflict when it would create a second
	// active or migrating key.
	Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error

	// Get returns a key by id or ErrKeyNotFound.
	Get(ctx context.Context, keyID uuid.UUID) (*cryptoDomain.EncryptionKey, error)

	// GetActive returns the active key or ErrNoActiveKey.
	GetActive(ctx context.Context) (*cryptoDomain.EncryptionKey, error)

	// ListByStatus returns keys in a status ordered newest first.
	ListByStatus(ctx context.Context, status cryptoDomain.KeyStatus) ([]*cryptoDomain.EncryptionKey, error)

	// UpdateStatus moves a key to status. Returns ErrKeyNotFound for an unknown id.
	UpdateStatus(ctx context.Context, keyID uuid.UUID, status cryptoDomain.KeyStatus) error

	// Delete removes a key. Returns ErrKeyNotFound for an unknown id.
	Delete(ctx context.Context, keyID uuid.UUID) error
}

// KeyRegistry resolves unwrapped key material.
//
// Reads go to the shared cache first (active_key and key:{id}); on a miss or a cache
// failure the database is consulted and the cache refilled. Concurrent misses for the
// same entry are collapsed into a single database read. Every returned key slice is owned
// by the caller, who should zero it when done.
type KeyRegistry interface {
	// ActiveKey returns the id and material of the active key.
	ActiveKey(ctx context.Context) (uuid.UUID, []byte, error)

	// DataKey returns the material of any key by id. Returns ErrUnknownKey when the
	// registry has no such key.
	DataKey(ctx context.Context, keyID uuid.UUID) ([]byte, error)

	// Keyring resolves several keys at once. Keys that cannot be resolved are left out
	// and reported in the returned error map.
	Keyring(ctx context.Context, keyIDs []uuid.UUID) (cryptoDomain.Keyring, map[uuid.UUID]error)

	// CreateKey generates a new key in the given status and stores it.
	CreateKey(ctx context.Context, status cryptoDomain.KeyStatus) (*cryptoDomain.EncryptionKey, error)

	// Bootstrap creates the first active key when the registry is empty. It returns the
	// active key and whether it was created by this call.
	Bootstrap(ctx context.Context) (*cryptoDomain.EncryptionKey, bool, error)

	// InvalidateActiveKey drops the cached active key so the next read sees a promotion.
	InvalidateActiveKey(ctx context.Context)

	// MigratingKeyID returns the id of the migrating key, or uuid.Nil when no rotation is
	// in flight. It always reads the store.
	MigratingKeyID(ctx context.Context) (uuid.UUID, error)
}

// Engine encrypts and decrypts values in the envelope format.
type Engine interface {
	// Encrypt seals plaintext under the active key.
	Encrypt(ctx context.Context, plaintext []byte) (cryptoDomain.Envelope, error)

	// EncryptWithKey seals plaintext under a specific key, active or not.
	EncryptWithKey(ctx context.Context, keyID uuid.UUID, plaintext []byte) (cryptoDomain.Envelope, error)

	// Decrypt opens a stored value in either the v1 or the legacy format.
	//
	// Returns ErrCorruptCiphertext, ErrUnknownKey or ErrAuthTagMismatch; all of them wrap
	// errors.ErrUnavailable.
	Decrypt(ctx context.Context, value string) ([]byte, error)

	// DecryptWithKeyring is Decrypt with keys taken from a preloaded ring instead of the
	// registry. A key missing from the ring is ErrUnknownKey.
	DecryptWithKeyring(value string, ring cryptoDomain.Keyring) ([]byte, error)

	// ActiveKeyID returns the id new values are sealed under.
	ActiveKeyID(ctx context.Context) (uuid.UUID, error)

	// MigratingKeyID returns the target key of the rotation in flight, or uuid.Nil.
	MigratingKeyID(ctx context.Context) (uuid.UUID, error)
}
