// Package repository persists rotation jobs and their row failures.
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

const jobColumns = `id, new_key_id, status, total_secrets, processed_secrets, failed_secrets,
	last_processed_secret_id, error_message, created_at, updated_at, completed_at`

// PostgreSQLRotationJobRepository implements RotationJob persistence for PostgreSQL.
type PostgreSQLRotationJobRepository struct {
	db *sql.DB
}

// Create inserts a new job. The schema allows a single pending or processing job, so a
// unique violation means another rotation is in flight.
func (p *PostgreSQLRotationJobRepository) Create(ctx context.Context, job *rotationDomain.RotationJob) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO key_rotation_jobs (` + jobColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := querier.ExecContext(
		ctx,
		query,
		job.ID,
		job.NewKeyID,
		job.Status,
		job.TotalSecrets,
		job.ProcessedSecrets,
		job.FailedSecrets,
		job.LastProcessedSecretID,
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
func (p *PostgreSQLRotationJobRepository) Get(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, error) {
	return p.getOne(ctx, `SELECT `+jobColumns+` FROM key_rotation_jobs WHERE id = $1`, jobID)
}

// GetForUpdate retrieves a job by id and locks its row until the surrounding transaction
// ends. It must be called inside TxManager.WithTx.
func (p *PostgreSQLRotationJobRepository) GetForUpdate(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, error) {
	return p.getOne(ctx, `SELECT `+jobColumns+` FROM key_rotation_jobs WHERE id = $1 FOR UPDATE`, jobID)
}

// GetInFlight returns the pending or processing job, or ErrJobNotFound.
func (p *PostgreSQLRotationJobRepository) GetInFlight(ctx context.Context) (*rotationDomain.RotationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM key_rotation_jobs
			  WHERE status IN ('pending', 'processing')
			  ORDER BY created_at DESC LIMIT 1`
	return p.getOne(ctx, query)
}

// Update writes the mutable job fields.
func (p *PostgreSQLRotationJobRepository) Update(ctx context.Context, job *rotationDomain.RotationJob) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE key_rotation_jobs
			  SET status = $1, processed_secrets = $2, failed_secrets = $3, last_processed_secret_id = $4,
			      error_message = $5, updated_at = $6, completed_at = $7
			  WHERE id = $8`

	result, err := querier.ExecContext(
		ctx,
		query,
		job.Status,
		job.ProcessedSecrets,
		job.FailedSecrets,
		job.LastProcessedSecretID,
		job.ErrorMessage,
		job.UpdatedAt,
		job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update rotation job")
	}
	return requireAffected(result)
}

// ListByStatus returns jobs in status, newest first.
func (p *PostgreSQLRotationJobRepository) ListByStatus(
	ctx context.Context,
	status rotationDomain.JobStatus,
) ([]*rotationDomain.RotationJob, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + jobColumns + ` FROM key_rotation_jobs
			  WHERE status = $1 ORDER BY created_at DESC, id DESC`

	rows, err := querier.QueryContext(ctx, query, status)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list rotation jobs")
	}
	return collectJobs(rows, scanPostgresJob)
}

// Delete removes a job. Its row failures are removed by the foreign key cascade.
func (p *PostgreSQLRotationJobRepository) Delete(ctx context.Context, jobID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM key_rotation_jobs WHERE id = $1`, jobID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete rotation job")
	}
	return requireAffected(result)
}

// RecordFailure stores a secret that a job could not re-encrypt.
func (p *PostgreSQLRotationJobRepository) RecordFailure(
	ctx context.Context,
	failure *rotationDomain.RowFailure,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO key_rotation_failures (id, job_id, secret_id, error, created_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(
		ctx,
		query,
		failure.ID,
		failure.JobID,
		failure.SecretID,
		failure.Error,
		failure.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to record rotation failure")
	}
	return nil
}

// ListFailures returns the row failures of a job in the order they were recorded.
func (p *PostgreSQLRotationJobRepository) ListFailures(
	ctx context.Context,
	jobID uuid.UUID,
) ([]*rotationDomain.RowFailure, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, job_id, secret_id, error, created_at FROM key_rotation_failures
			  WHERE job_id = $1 ORDER BY id ASC`

	rows, err := querier.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list rotation failures")
	}
	defer func() {
		_ = rows.Close()
	}()

	var failures []*rotationDomain.RowFailure
	for rows.Next() {
		var failure rotationDomain.RowFailure
		err := rows.Scan(&failure.ID, &failure.JobID, &failure.SecretID, &failure.Error, &failure.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan rotation failure")
		}
		failures = append(failures, &failure)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate rotation failures")
	}
	return failures, nil
}

func (p *PostgreSQLRotationJobRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*rotationDomain.RotationJob, error) {
	querier := database.GetTx(ctx, p.db)

	job, err := scanPostgresJob(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rotationDomain.ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get rotation job")
	}
	return job, nil
}

// NewPostgreSQLRotationJobRepository creates a new PostgreSQL rotation job repository.
func NewPostgreSQLRotationJobRepository(db *sql.DB) *PostgreSQLRotationJobRepository {
	return &PostgreSQLRotationJobRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPostgresJob(row scanner) (*rotationDomain.RotationJob, error) {
	var job rotationDomain.RotationJob
	var cursor uuid.NullUUID
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.NewKeyID,
		&job.Status,
		&job.TotalSecrets,
		&job.ProcessedSecrets,
		&job.FailedSecrets,
		&cursor,
		&errorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	applyNullable(&job, cursor, errorMessage, completedAt)
	return &job, nil
}

func applyNullable(
	job *rotationDomain.RotationJob,
	cursor uuid.NullUUID,
	errorMessage sql.NullString,
	completedAt sql.NullTime,
) {
	if cursor.Valid {
		job.LastProcessedSecretID = &cursor.UUID
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
}

func collectJobs(
	rows *sql.Rows,
	scan func(scanner) (*rotationDomain.RotationJob, error),
) ([]*rotationDomain.RotationJob, error) {
	defer func() {
		_ = rows.Close()
	}()

	var jobs []*rotationDomain.RotationJob
	for rows.Next() {
		job, err := scan(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan rotation job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate rotation jobs")
	}
	return jobs, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return rotationDomain.ErrJobNotFound
	}
	return nil
}
