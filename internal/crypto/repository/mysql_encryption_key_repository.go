package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	"github.com/allisson/envsafe/internal/database"
	apperrors "github.com/allisson/envsafe/internal/errors"
)

// MySQLEncryptionKeyRepository implements key registry persistence for MySQL.
// UUIDs are stored as BINARY(16).
type MySQLEncryptionKeyRepository struct {
	db *sql.DB
}

// Create inserts a new key.
func (m *MySQLEncryptionKeyRepository) Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, m.db)

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal encryption key id")
	}

	query := `INSERT INTO encryption_keys (id, encrypted_key, status, created_at) VALUES (?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, id, key.EncryptedKey, key.Status, key.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrKeyConflict
		}
		return apperrors.Wrap(err, "failed to create encryption key")
	}
	return nil
}

// Get retrieves a key by id.
func (m *MySQLEncryptionKeyRepository) Get(
	ctx context.Context,
	keyID uuid.UUID,
) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal encryption key id")
	}

	query := `SELECT id, encrypted_key, status, created_at FROM encryption_keys WHERE id = ?`

	key, err := scanMySQLKey(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encryption key")
	}
	return key, nil
}

// GetActive retrieves the single active key.
func (m *MySQLEncryptionKeyRepository) GetActive(ctx context.Context) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, encrypted_key, status, created_at FROM encryption_keys WHERE status = ?`

	key, err := scanMySQLKey(querier.QueryRowContext(ctx, query, cryptoDomain.KeyStatusActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrNoActiveKey
		}
		return nil, apperrors.Wrap(err, "failed to get active encryption key")
	}
	return key, nil
}

// ListByStatus returns keys in a status, newest first.
func (m *MySQLEncryptionKeyRepository) ListByStatus(
	ctx context.Context,
	status cryptoDomain.KeyStatus,
) ([]*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, encrypted_key, status, created_at
			  FROM encryption_keys
			  WHERE status = ?
			  ORDER BY created_at DESC, id DESC`

	rows, err := querier.QueryContext(ctx, query, status)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list encryption keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	var keys []*cryptoDomain.EncryptionKey
	for rows.Next() {
		key, err := scanMySQLKey(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan encryption key")
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encryption keys")
	}

	return keys, nil
}

// UpdateStatus moves a key to a new status.
func (m *MySQLEncryptionKeyRepository) UpdateStatus(
	ctx context.Context,
	keyID uuid.UUID,
	status cryptoDomain.KeyStatus,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal encryption key id")
	}

	result, err := querier.ExecContext(ctx, `UPDATE encryption_keys SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrKeyConflict
		}
		return apperrors.Wrap(err, "failed to update encryption key status")
	}

	return requireAffected(result, cryptoDomain.ErrKeyNotFound)
}

// Delete removes a key.
func (m *MySQLEncryptionKeyRepository) Delete(ctx context.Context, keyID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal encryption key id")
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM encryption_keys WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete encryption key")
	}

	return requireAffected(result, cryptoDomain.ErrKeyNotFound)
}

// NewMySQLEncryptionKeyRepository creates a new MySQL key repository.
func NewMySQLEncryptionKeyRepository(db *sql.DB) *MySQLEncryptionKeyRepository {
	return &MySQLEncryptionKeyRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMySQLKey(row scanner) (*cryptoDomain.EncryptionKey, error) {
	var key cryptoDomain.EncryptionKey
	var idBytes []byte

	if err := row.Scan(&idBytes, &key.EncryptedKey, &key.Status, &key.CreatedAt); err != nil {
		return nil, err
	}
	if err := key.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal encryption key id")
	}
	return &key, nil
}
