package dto

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
	rotationUseCase "github.com/allisson/envsafe/internal/rotation/usecase"
)

func TestMapJobToResponse(t *testing.T) {
	job := rotationDomain.NewRotationJob(uuid.Must(uuid.NewV7()), 10)

	t.Run("pending job has null cursor", func(t *testing.T) {
		body, err := json.Marshal(MapJobToResponse(job))
		require.NoError(t, err)
		assert.Contains(t, string(body), `"last_processed_secret_id":null`)
		assert.Contains(t, string(body), `"status":"pending"`)
	})

	t.Run("advanced job carries cursor", func(t *testing.T) {
		advanced := *job
		cursor := uuid.Must(uuid.NewV7())
		advanced.Advance(cursor, 4, 1)

		response := MapJobToResponse(&advanced)

		require.NotNil(t, response.LastProcessedSecretID)
		assert.Equal(t, cursor.String(), *response.LastProcessedSecretID)
		assert.Equal(t, int64(4), response.ProcessedSecrets)
		assert.Equal(t, int64(1), response.FailedSecrets)
		assert.Equal(t, "processing", response.Status)
	})
}

func TestMapResultToResponse(t *testing.T) {
	t.Run("cleanup", func(t *testing.T) {
		response := MapResultToResponse(&rotationUseCase.Result{
			Cleanup: &rotationUseCase.CleanupResult{DeletedKeys: 2, DeletedJobs: 1},
		})

		assert.Nil(t, response.Job)
		require.NotNil(t, response.Cleanup)
		assert.Equal(t, 2, response.Cleanup.DeletedKeys)
		assert.Equal(t, 1, response.Cleanup.DeletedJobs)
	})

	t.Run("job", func(t *testing.T) {
		job := rotationDomain.NewRotationJob(uuid.Must(uuid.NewV7()), 0)

		response := MapResultToResponse(&rotationUseCase.Result{Job: job})

		require.NotNil(t, response.Job)
		assert.Equal(t, job.ID.String(), response.Job.ID)
		assert.Nil(t, response.Cleanup)
	})
}

func TestMapJobStatusToResponse(t *testing.T) {
	job := rotationDomain.NewRotationJob(uuid.Must(uuid.NewV7()), 5)
	failures := make([]*rotationDomain.RowFailure, 0, 5)
	for range 5 {
		failures = append(failures, rotationDomain.NewRowFailure(job.ID, uuid.Must(uuid.NewV7()), errors.New("boom")))
	}

	t.Run("middle page", func(t *testing.T) {
		response := MapJobStatusToResponse(job, failures, 1, 2)

		require.Len(t, response.Failures, 2)
		assert.Equal(t, failures[1].SecretID.String(), response.Failures[0].SecretID)
		assert.Equal(t, failures[2].SecretID.String(), response.Failures[1].SecretID)
		assert.Equal(t, 5, response.TotalFailures)
	})

	t.Run("past the end is empty", func(t *testing.T) {
		response := MapJobStatusToResponse(job, failures, 10, 50)

		assert.NotNil(t, response.Failures)
		assert.Empty(t, response.Failures)
	})
}
