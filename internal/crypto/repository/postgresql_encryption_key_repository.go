// Package repository persists encryption keys in PostgreSQL and MySQL.
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

// PostgreSQLEncryptionKeyRepository implements key registry persistence for PostgreSQL.
type PostgreSQLEncryptionKeyRepository struct {
	db *sql.DB
}

// Create inserts a new key. A second active or migrating key violates a partial unique
// index and is reported as ErrKeyConflict.
func (p *PostgreSQLEncryptionKeyRepository) Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO encryption_keys (id, encrypted_key, status, created_at)
			  VALUES ($1, $2, $3, $4)`

	_, err := querier.ExecContext(ctx, query, key.ID, key.EncryptedKey, key.Status, key.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrKeyConflict
		}
		return apperrors.Wrap(err, "failed to create encryption key")
	}
	return nil
}

// Get retrieves a key by id.
func (p *PostgreSQLEncryptionKeyRepository) Get(
	ctx context.Context,
	keyID uuid.UUID,
) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, encrypted_key, status, created_at FROM encryption_keys WHERE id = $1`

	var key cryptoDomain.EncryptionKey
	err := querier.QueryRowContext(ctx, query, keyID).Scan(
		&key.ID,
		&key.EncryptedKey,
		&key.Status,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encryption key")
	}
	return &key, nil
}

// GetActive retrieves the single active key.
func (p *PostgreSQLEncryptionKeyRepository) GetActive(ctx context.Context) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, encrypted_key, status, created_at FROM encryption_keys WHERE status = $1`

	var key cryptoDomain.EncryptionKey
	err := querier.QueryRowContext(ctx, query, cryptoDomain.KeyStatusActive).Scan(
		&key.ID,
		&key.EncryptedKey,
		&key.Status,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrNoActiveKey
		}
		return nil, apperrors.Wrap(err, "failed to get active encryption key")
	}
	return &key, nil
}

// ListByStatus returns keys in a status, newest first.
func (p *PostgreSQLEncryptionKeyRepository) ListByStatus(
	ctx context.Context,
	status cryptoDomain.KeyStatus,
) ([]*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, encrypted_key, status, created_at
			  FROM encryption_keys
			  WHERE status = $1
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
		var key cryptoDomain.EncryptionKey
		if err := rows.Scan(&key.ID, &key.EncryptedKey, &key.Status, &key.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan encryption key")
		}
		keys = append(keys, &key)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encryption keys")
	}

	return keys, nil
}

// UpdateStatus moves a key to a new status.
func (p *PostgreSQLEncryptionKeyRepository) UpdateStatus(
	ctx context.Context,
	keyID uuid.UUID,
	status cryptoDomain.KeyStatus,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE encryption_keys SET status = $1 WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, status, keyID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrKeyConflict
		}
		return apperrors.Wrap(err, "failed to update encryption key status")
	}

	return requireAffected(result, cryptoDomain.ErrKeyNotFound)
}

// Delete removes a key.
func (p *PostgreSQLEncryptionKeyRepository) Delete(ctx context.Context, keyID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM encryption_keys WHERE id = $1`, keyID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete encryption key")
	}

	return requireAffected(result, cryptoDomain.ErrKeyNotFound)
}

// NewPostgreSQLEncryptionKeyRepository creates a new PostgreSQL key repository.
func NewPostgreSQLEncryptionKeyRepository(db *sql.DB) *PostgreSQLEncryptionKeyRepository {
	return &PostgreSQLEncryptionKeyRepository{db: db}
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
