// Package repository persists secrets in PostgreSQL and MySQL.
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

const postgresSecretColumns = `id, project_id, key, value, key_id, created_at, updated_at`

// PostgreSQLSecretRepository implements Secret persistence for PostgreSQL databases.
type PostgreSQLSecretRepository struct {
	db *sql.DB
}

// Create inserts a new secret.
func (p *PostgreSQLSecretRepository) Create(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secrets (id, project_id, key, value, key_id, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		secret.ID,
		secret.ProjectID,
		secret.Key,
		secret.Value,
		secret.KeyID,
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
func (p *PostgreSQLSecretRepository) Get(ctx context.Context, secretID uuid.UUID) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresSecretColumns + ` FROM secrets WHERE id = $1`

	secret, err := scanPostgresSecret(querier.QueryRowContext(ctx, query, secretID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, secretsDomain.ErrSecretNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret")
	}
	return secret, nil
}

// Update rewrites the value, key id and update timestamp of a secret.
func (p *PostgreSQLSecretRepository) Update(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secrets SET value = $1, key_id = $2, updated_at = $3 WHERE id = $4`

	result, err := querier.ExecContext(ctx, query, secret.Value, secret.KeyID, secret.UpdatedAt, secret.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update secret")
	}
	return requireAffected(result)
}

// Delete removes a secret.
func (p *PostgreSQLSecretRepository) Delete(ctx context.Context, secretID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, secretID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete secret")
	}
	return requireAffected(result)
}

// ListByProject returns the secrets of a project ordered by key.
func (p *PostgreSQLSecretRepository) ListByProject(
	ctx context.Context,
	projectID uuid.UUID,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresSecretColumns + ` FROM secrets WHERE project_id = $1 ORDER BY key ASC`

	rows, err := querier.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secrets")
	}
	return collectSecrets(rows, scanPostgresSecret)
}

// ListAfter returns up to limit secrets with an id greater than after, in id order. A nil
// cursor starts from the beginning.
func (p *PostgreSQLSecretRepository) ListAfter(
	ctx context.Context,
	after *uuid.UUID,
	limit int,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		query := `SELECT ` + postgresSecretColumns + ` FROM secrets ORDER BY id ASC LIMIT $1`
		rows, err = querier.QueryContext(ctx, query, limit)
	} else {
		query := `SELECT ` + postgresSecretColumns + ` FROM secrets WHERE id > $1 ORDER BY id ASC LIMIT $2`
		rows, err = querier.QueryContext(ctx, query, *after, limit)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secrets")
	}
	return collectSecrets(rows, scanPostgresSecret)
}

// Count returns the number of secrets.
func (p *PostgreSQLSecretRepository) Count(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	if err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count secrets")
	}
	return count, nil
}

// CountByKeyID returns how many secrets are sealed under a key.
func (p *PostgreSQLSecretRepository) CountByKeyID(ctx context.Context, keyID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets WHERE key_id = $1`, keyID).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count secrets by key")
	}
	return count, nil
}

// UpdateValues applies value rewrites and returns how many rows changed. Rows whose value
// no longer matches PreviousValue are left alone.
func (p *PostgreSQLSecretRepository) UpdateValues(
	ctx context.Context,
	updates []secretsDomain.ValueUpdate,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secrets SET value = $1, key_id = $2, updated_at = NOW() WHERE id = $3 AND value = $4`

	var total int64
	for _, update := range updates {
		result, err := querier.ExecContext(ctx, query, update.Value, update.KeyID, update.ID, update.PreviousValue)
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

// NewPostgreSQLSecretRepository creates a new PostgreSQL secret repository.
func NewPostgreSQLSecretRepository(db *sql.DB) *PostgreSQLSecretRepository {
	return &PostgreSQLSecretRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPostgresSecret(row scanner) (*secretsDomain.Secret, error) {
	var secret secretsDomain.Secret
	var keyID uuid.NullUUID

	err := row.Scan(
		&secret.ID,
		&secret.ProjectID,
		&secret.Key,
		&secret.Value,
		&keyID,
		&secret.CreatedAt,
		&secret.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if keyID.Valid {
		secret.KeyID = &keyID.UUID
	}
	return &secret, nil
}

func collectSecrets(
	rows *sql.Rows,
	scan func(scanner) (*secretsDomain.Secret, error),
) ([]*secretsDomain.Secret, error) {
	defer func() {
		_ = rows.Close()
	}()

	var secrets []*secretsDomain.Secret
	for rows.Next() {
		secret, err := scan(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan secret")
		}
		secrets = append(secrets, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secrets")
	}
	return secrets, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return secretsDomain.ErrSecretNotFound
	}
	return nil
}
