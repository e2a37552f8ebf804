package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
)

func bin(t *testing.T, id uuid.UUID) []byte {
	t.Helper()
	b, err := id.MarshalBinary()
	require.NoError(t, err)
	return b
}

func TestMySQLRotationJobRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		job := rotationDomain.NewRotationJob(uuid.Must(uuid.NewV7()), 3)

		mock.ExpectExec("INSERT INTO key_rotation_jobs").
			WithArgs(bin(t, job.ID), bin(t, job.NewKeyID), job.Status, int64(3), int64(0), int64(0),
				nil, nil, job.CreatedAt, job.UpdatedAt, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, NewMySQLRotationJobRepository(db).Create(ctx, job))
	})

	t.Run("second in-flight job", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectExec("INSERT INTO key_rotation_jobs").WillReturnError(&mysql.MySQLError{Number: 1062})

		err := NewMySQLRotationJobRepository(db).Create(ctx, rotationDomain.NewRotationJob(uuid.New(), 0))
		assert.ErrorIs(t, err, rotationDomain.ErrRotationInProgress)
	})
}

func TestMySQLRotationJobRepository_GetForUpdate(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	jobID, keyID, cursor := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("WHERE id = \\? FOR UPDATE").
		WithArgs(bin(t, jobID)).
		WillReturnRows(sqlmock.NewRows(jobColumnNames).AddRow(
			bin(t, jobID), bin(t, keyID), "processing", 10, 4, 0, bin(t, cursor), nil, now, now, nil,
		))

	job, err := NewMySQLRotationJobRepository(db).GetForUpdate(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, keyID, job.NewKeyID)
	require.NotNil(t, job.LastProcessedSecretID)
	assert.Equal(t, cursor, *job.LastProcessedSecretID)
}

func TestMySQLRotationJobRepository_GetInFlightNone(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("WHERE status IN").WillReturnRows(sqlmock.NewRows(jobColumnNames))

	_, err := NewMySQLRotationJobRepository(db).GetInFlight(context.Background())
	assert.ErrorIs(t, err, rotationDomain.ErrJobNotFound)
}

func TestMySQLRotationJobRepository_UpdateAndFailures(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	job := rotationDomain.NewRotationJob(uuid.New(), 1)
	secretID := uuid.New()
	job.Advance(secretID, 1, 1)
	failure := rotationDomain.NewRowFailure(job.ID, secretID, assert.AnError)

	mock.ExpectExec("UPDATE key_rotation_jobs").
		WithArgs(job.Status, int64(1), int64(1), bin(t, secretID), nil, job.UpdatedAt, nil, bin(t, job.ID)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO key_rotation_failures").
		WithArgs(bin(t, failure.ID), bin(t, job.ID), bin(t, secretID), failure.Error, failure.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM key_rotation_failures").
		WithArgs(bin(t, job.ID)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_id", "secret_id", "error", "created_at"}).
			AddRow(bin(t, failure.ID), bin(t, job.ID), bin(t, secretID), failure.Error, failure.CreatedAt))

	repo := NewMySQLRotationJobRepository(db)
	require.NoError(t, repo.Update(ctx, job))
	require.NoError(t, repo.RecordFailure(ctx, failure))

	failures, err := repo.ListFailures(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, secretID, failures[0].SecretID)
}
