package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/envsafe/internal/database"
	apperrors "github.com/allisson/envsafe/internal/errors"
	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
)

// MySQLRotationJobRepository implements RotationJob persistence for MySQL. UUIDs are
// stored as BINARY(16).
type MySQLRotationJobRepository struct {
	db *sql.DB
}

// Create inserts a new job. A unique violation on the in-flight guard column means another
// rotation is pending or processing.
func (m *MySQLRotationJobRepository) Create(ctx context.Context, job *rotationDomain.RotationJob) error {
	querier := database.GetTx(ctx, m.db)

	id, err := job.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal job id")
	}
	newKeyID, err := job.NewKeyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key id")
	}
	cursor, err := binaryOrNil(job.LastProcessedSecretID)
	if err != nil {
		return err
	}

	query := `INSERT INTO key_rotation_jobs (` + jobColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		newKeyID,
		job.Status,
		job.TotalSecrets,
		job.ProcessedSecrets,
		job.FailedSecrets,
		cursor,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return rotationDomain.ErrRotationInProgress
		}
		return apperrors.Wrap(err, "failed to create rotation job")
	}
	return nil
}

// Get retrieves a job by id.
func (m *MySQLRotationJobRepository) Get(ctx context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, error) {
	id, err := jobID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal job id")
	}
	return m.getOne(ctx, `SELECT `+jobColumns+` FROM key_rotation_jobs WHERE id = ?`, id)
}

// GetForUpdate retrieves a job by id and locks its row for the surrounding transaction.
func (m *MySQLRotationJobRepository) GetForUpdate(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, error) {
	id, err := jobID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal job id")
	}
	return m.getOne(ctx, `SELECT `+jobColumns+` FROM key_rotation_jobs WHERE id = ? FOR UPDATE`, id)
}

// GetInFlight returns the pending or processing job, or ErrJobNotFound.
func (m *MySQLRotationJobRepository) GetInFlight(ctx context.Context) (*rotationDomain.RotationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM key_rotation_jobs
			  WHERE status IN ('pending', 'processing')
			  ORDER BY created_at DESC LIMIT 1`
	return m.getOne(ctx, query)
}

// Update writes the mutable job fields.
func (m *MySQLRotationJobRepository) Update(ctx context.Context, job *rotationDomain.RotationJob) error {
	querier := database.GetTx(ctx, m.db)

	id, err := job.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal job id")
	}
	cursor, err := binaryOrNil(job.LastProcessedSecretID)
	if err != nil {
		return err
	}

	query := `UPDATE key_rotation_jobs
			  SET status = ?, processed_secrets = ?, failed_secrets = ?, last_processed_secret_id = ?,
			      error_message = ?, updated_at = ?, completed_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		job.Status,
		job.ProcessedSecrets,
		job.FailedSecrets,
		cursor,
		job.ErrorMessage,
		job.UpdatedAt,
		job.CompletedAt,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update rotation job")
	}
	return requireAffected(result)
}

// ListByStatus returns jobs in status, newest first.
func (m *MySQLRotationJobRepository) ListByStatus(
	ctx context.Context,
	status rotationDomain.JobStatus,
) ([]*rotationDomain.RotationJob, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + jobColumns + ` FROM key_rotation_jobs
			  WHERE status = ? ORDER BY created_at DESC, id DESC`

	rows, err := querier.QueryContext(ctx, query, status)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list rotation jobs")
	}
	return collectJobs(rows, scanMySQLJob)
}

// Delete removes a job and, through the cascade, its row failures.
func (m *MySQLRotationJobRepository) Delete(ctx context.Context, jobID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	id, err := jobID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal job id")
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM key_rotation_jobs WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete rotation job")
	}
	return requireAffected(result)
}

// RecordFailure stores a secret that a job could not re-encrypt.
func (m *MySQLRotationJobRepository) RecordFailure(ctx context.Context, failure *rotationDomain.RowFailure) error {
	querier := database.GetTx(ctx, m.db)

	ids := make([][]byte, 0, 3)
	for _, id := range []uuid.UUID{failure.ID, failure.JobID, failure.SecretID} {
		b, err := id.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal failure ids")
		}
		ids = append(ids, b)
	}

	query := `INSERT INTO key_rotation_failures (id, job_id, secret_id, error, created_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query, ids[0], ids[1], ids[2], failure.Error, failure.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to record rotation failure")
	}
	return nil
}

// ListFailures returns the row failures of a job in the order they were recorded.
func (m *MySQLRotationJobRepository) ListFailures(
	ctx context.Context,
	jobID uuid.UUID,
) ([]*rotationDomain.RowFailure, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := jobID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal job id")
	}

	query := `SELECT id, job_id, secret_id, error, created_at FROM key_rotation_failures
			  WHERE job_id = ? ORDER BY id ASC`

	rows, err := querier.QueryContext(ctx, query, id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list rotation failures")
	}
	defer func() {
		_ = rows.Close()
	}()

	var failures []*rotationDomain.RowFailure
	for rows.Next() {
		var failure rotationDomain.RowFailure
		var failureID, failureJobID, secretID []byte
		if err := rows.Scan(&failureID, &failureJobID, &secretID, &failure.Error, &failure.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan rotation failure")
		}
		if err := unmarshalAll(
			[]*uuid.UUID{&failure.ID, &failure.JobID, &failure.SecretID},
			[][]byte{failureID, failureJobID, secretID},
		); err != nil {
			return nil, err
		}
		failures = append(failures, &failure)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate rotation failures")
	}
	return failures, nil
}

func (m *MySQLRotationJobRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*rotationDomain.RotationJob, error) {
	querier := database.GetTx(ctx, m.db)

	job, err := scanMySQLJob(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rotationDomain.ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get rotation job")
	}
	return job, nil
}

// NewMySQLRotationJobRepository creates a new MySQL rotation job repository.
func NewMySQLRotationJobRepository(db *sql.DB) *MySQLRotationJobRepository {
	return &MySQLRotationJobRepository{db: db}
}

func binaryOrNil(id *uuid.UUID) (any, error) {
	if id == nil {
		return nil, nil
	}
	b, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal cursor")
	}
	return b, nil
}

func unmarshalAll(dst []*uuid.UUID, src [][]byte) error {
	for i := range dst {
		if err := dst[i].UnmarshalBinary(src[i]); err != nil {
			return apperrors.Wrap(err, "failed to unmarshal id")
		}
	}
	return nil
}

func scanMySQLJob(row scanner) (*rotationDomain.RotationJob, error) {
	var job rotationDomain.RotationJob
	var id, newKeyID, cursorBytes []byte
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&id,
		&newKeyID,
		&job.Status,
		&job.TotalSecrets,
		&job.ProcessedSecrets,
		&job.FailedSecrets,
		&cursorBytes,
		&errorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalAll([]*uuid.UUID{&job.ID, &job.NewKeyID}, [][]byte{id, newKeyID}); err != nil {
		return nil, err
	}

	var cursor uuid.NullUUID
	if cursorBytes != nil {
		if err := cursor.UUID.UnmarshalBinary(cursorBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal cursor")
		}
		cursor.Valid = true
	}
	applyNullable(&job, cursor, errorMessage, completedAt)
	return &job, nil
}
