package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/envsafe/internal/database"
	apperrors "github.com/allisson/envsafe/internal/errors"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// `key` is reserved in MySQL.
const mysqlSecretColumns = "id, project_id, `key`, value, key_id, created_at, updated_at"

// MySQLSecretRepository implements Secret persistence for MySQL. UUIDs are stored as
// BINARY(16).
type MySQLSecretRepository struct {
	db *sql.DB
}

// Create inserts a new secret.
func (m *MySQLSecretRepository) Create(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, m.db)

	id, err := secret.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal secret id")
	}
	projectID, err := secret.ProjectID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal project id")
	}
	keyID, err := nullableBinary(secret.KeyID)
	if err != nil {
		return err
	}

	query := "INSERT INTO secrets (" + mysqlSecretColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		projectID,
		secret.Key,
		secret.Value,
		keyID,
		secret.CreatedAt,
		secret.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return secretsDomain.ErrSecretKeyExists
		}
		return apperrors.Wrap(err, "failed to create secret")
	}
	return nil
}

// Get retrieves a secret by id.
func (m *MySQLSecretRepository) Get(ctx context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := secretID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal secret id")
	}

	query := "SELECT " + mysqlSecretColumns + " FROM secrets WHERE id = ?"

	secret, err := scanMySQLSecret(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, secretsDomain.ErrSecretNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret")
	}
	return secret, nil
}

// Update rewrites the value, key id and update timestamp of a secret.
func (m *MySQLSecretRepository) Update(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, m.db)

	id, err := secret.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal secret id")
	}
	keyID, err := nullableBinary(secret.KeyID)
	if err != nil {
		return err
	}

	query := `UPDATE secrets SET value = ?, key_id = ?, updated_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, secret.Value, keyID, secret.UpdatedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update secret")
	}
	return requireAffected(result)
}

// Delete removes a secret.
func (m *MySQLSecretRepository) Delete(ctx context.Context, secretID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	id, err := secretID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal secret id")
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete secret")
	}
	return requireAffected(result)
}

// ListByProject returns the secrets of a project ordered by key.
func (m *MySQLSecretRepository) ListByProject(
	ctx context.Context,
	projectID uuid.UUID,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := projectID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal project id")
	}

	query := "SELECT " + mysqlSecretColumns + " FROM secrets WHERE project_id = ? ORDER BY `key` ASC"

	rows, err := querier.QueryContext(ctx, query, id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secrets")
	}
	return collectSecrets(rows, scanMySQLSecret)
}

// ListAfter returns up to limit secrets with an id greater than after, in id order.
// BINARY(16) comparison matches UUID byte order.
func (m *MySQLSecretRepository) ListAfter(
	ctx context.Context,
	after *uuid.UUID,
	limit int,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		query := "SELECT " + mysqlSecretColumns + " FROM secrets ORDER BY id ASC LIMIT ?"
		rows, err = querier.QueryContext(ctx, query, limit)
	} else {
		cursor, marshalErr := after.MarshalBinary()
		if marshalErr != nil {
			return nil, apperrors.Wrap(marshalErr, "failed to marshal cursor")
		}
		query := "SELECT " + mysqlSecretColumns + " FROM secrets WHERE id > ? ORDER BY id ASC LIMIT ?"
		rows, err = querier.QueryContext(ctx, query, cursor, limit)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secrets")
	}
	return collectSecrets(rows, scanMySQLSecret)
}

// Count returns the number of secrets.
func (m *MySQLSecretRepository) Count(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	var count int64
	if err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count secrets")
	}
	return count, nil
}

// CountByKeyID returns how many secrets are sealed under a key.
func (m *MySQLSecretRepository) CountByKeyID(ctx context.Context, keyID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal key id")
	}

	var count int64
	if err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets WHERE key_id = ?`, id).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count secrets by key")
	}
	return count, nil
}

// UpdateValues applies value rewrites and returns how many rows changed.
func (m *MySQLSecretRepository) UpdateValues(
	ctx context.Context,
	updates []secretsDomain.ValueUpdate,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE secrets SET value = ?, key_id = ?, updated_at = CURRENT_TIMESTAMP(6) WHERE id = ? AND value = ?`

	var total int64
	for _, update := range updates {
		id, err := update.ID.MarshalBinary()
		if err != nil {
			return total, apperrors.Wrap(err, "failed to marshal secret id")
		}
		keyID, err := update.KeyID.MarshalBinary()
		if err != nil {
			return total, apperrors.Wrap(err, "failed to marshal key id")
		}

		result, err := querier.ExecContext(ctx, query, update.Value, keyID, id, update.PreviousValue)
		if err != nil {
			return total, apperrors.Wrap(err, "failed to update secret value")
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, apperrors.Wrap(err, "failed to read affected rows")
		}
		total += affected
	}
	return total, nil
}

// NewMySQLSecretRepository creates a new MySQL secret repository.
func NewMySQLSecretRepository(db *sql.DB) *MySQLSecretRepository {
	return &MySQLSecretRepository{db: db}
}

func nullableBinary(id *uuid.UUID) (any, error) {
	if id == nil {
		return nil, nil
	}
	b, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal key id")
	}
	return b, nil
}

func scanMySQLSecret(row scanner) (*secretsDomain.Secret, error) {
	var secret secretsDomain.Secret
	var id, projectID, keyID []byte

	err := row.Scan(&id, &projectID, &secret.Key, &secret.Value, &keyID, &secret.CreatedAt, &secret.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := secret.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal secret id")
	}
	if err := secret.ProjectID.UnmarshalBinary(projectID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal project id")
	}
	if keyID != nil {
		var parsed uuid.UUID
		if err := parsed.UnmarshalBinary(keyID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal key id")
		}
		secret.KeyID = &parsed
	}
	return &secret, nil
}
