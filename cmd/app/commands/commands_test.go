package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authService "github.com/allisson/envsafe/internal/auth/service"
	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	cryptoMocks "github.com/allisson/envsafe/internal/crypto/usecase/mocks"
	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
	"github.com/allisson/envsafe/internal/rotation/http/dto"
	rotationUseCase "github.com/allisson/envsafe/internal/rotation/usecase"
	rotationMocks "github.com/allisson/envsafe/internal/rotation/usecase/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunBootstrapKey(t *testing.T) {
	ctx := context.Background()
	key := &cryptoDomain.EncryptionKey{ID: uuid.Must(uuid.NewV7()), Status: cryptoDomain.KeyStatusActive}

	t.Run("created", func(t *testing.T) {
		registry := cryptoMocks.NewMockKeyRegistry(t)
		registry.On("Bootstrap", ctx).Return(key, true, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunBootstrapKey(ctx, registry, discardLogger(), &out))
		assert.Contains(t, out.String(), "Created active encryption key "+key.ID.String())
	})

	t.Run("already exists", func(t *testing.T) {
		registry := cryptoMocks.NewMockKeyRegistry(t)
		registry.On("Bootstrap", ctx).Return(key, false, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunBootstrapKey(ctx, registry, discardLogger(), &out))
		assert.Contains(t, out.String(), "already exists")
	})

	t.Run("error", func(t *testing.T) {
		registry := cryptoMocks.NewMockKeyRegistry(t)
		registry.On("Bootstrap", ctx).Return(nil, false, errors.New("db down")).Once()

		err := RunBootstrapKey(ctx, registry, discardLogger(), &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to bootstrap encryption key")
	})
}

func TestRunCreateAdminToken(t *testing.T) {
	tokenService := authService.NewAdminTokenService()

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunCreateAdminToken(tokenService, &out, "text"))

		var token, hash string
		for _, line := range strings.Split(out.String(), "\n") {
			if v, ok := strings.CutPrefix(line, "Token: "); ok {
				token = v
			}
			if v, ok := strings.CutPrefix(line, "ADMIN_TOKEN_HASH="); ok {
				hash = strings.Trim(v, "'")
			}
		}
		require.NotEmpty(t, token)
		require.NotEmpty(t, hash)
		assert.True(t, tokenService.VerifyToken(token, hash))
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunCreateAdminToken(tokenService, &out, "json"))

		var payload map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
		assert.True(t, tokenService.VerifyToken(payload["token"], payload["admin_token_hash"]))
	})

	t.Run("invalid format", func(t *testing.T) {
		err := RunCreateAdminToken(tokenService, &bytes.Buffer{}, "yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
	})
}

func TestRunRotateKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("starts rotation", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)
		job := rotationDomain.NewRotationJob(uuid.Must(uuid.NewV7()), 10)
		useCase.On("Invoke", ctx, rotationUseCase.Request{}).
			Return(&rotationUseCase.Result{Job: job}, nil).
			Once()

		var out bytes.Buffer
		require.NoError(t, RunRotateKeys(ctx, useCase, discardLogger(), &out, "", false, false, "text"))
		assert.Contains(t, out.String(), job.ID.String())
		assert.Contains(t, out.String(), "--wait")
	})

	t.Run("waits for completion", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)
		job := rotationDomain.NewRotationJob(uuid.Must(uuid.NewV7()), 2)
		done := *job
		done.Complete()
		useCase.On("Invoke", ctx, rotationUseCase.Request{}).
			Return(&rotationUseCase.Result{Job: job}, nil).
			Once()
		useCase.On("ProcessChunk", ctx, job.ID).Return(&done, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunRotateKeys(ctx, useCase, discardLogger(), &out, "", false, true, "json"))

		var response dto.TriggerRotationResponse
		require.NoError(t, json.Unmarshal(out.Bytes(), &response))
		require.NotNil(t, response.Job)
		assert.Equal(t, "completed", response.Job.Status)
	})

	t.Run("processes chunk of job", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)
		job := rotationDomain.NewRotationJob(uuid.Must(uuid.NewV7()), 2)
		jobID := job.ID
		useCase.On("Invoke", ctx, rotationUseCase.Request{JobID: &jobID}).
			Return(&rotationUseCase.Result{Job: job}, nil).
			Once()

		require.NoError(t, RunRotateKeys(ctx, useCase, discardLogger(), &bytes.Buffer{}, jobID.String(), false, false, "text"))
	})

	t.Run("cleanup only", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)
		useCase.On("Invoke", ctx, rotationUseCase.Request{CleanupOnly: true}).
			Return(&rotationUseCase.Result{Cleanup: &rotationUseCase.CleanupResult{DeletedKeys: 1, DeletedJobs: 2}}, nil).
			Once()

		var out bytes.Buffer
		require.NoError(t, RunRotateKeys(ctx, useCase, discardLogger(), &out, "", true, false, "text"))
		assert.Contains(t, out.String(), "deleted 1 keys")
	})

	t.Run("cleanup with job id", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)

		err := RunRotateKeys(ctx, useCase, discardLogger(), &bytes.Buffer{}, uuid.NewString(), true, false, "text")
		require.Error(t, err)
	})

	t.Run("invalid job id", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)

		err := RunRotateKeys(ctx, useCase, discardLogger(), &bytes.Buffer{}, "abc", false, false, "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid job id")
	})

	t.Run("rotation in progress", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)
		useCase.On("Invoke", ctx, mock.Anything).Return(nil, rotationDomain.ErrRotationInProgress).Once()

		err := RunRotateKeys(ctx, useCase, discardLogger(), &bytes.Buffer{}, "", false, false, "text")
		require.ErrorIs(t, err, rotationDomain.ErrRotationInProgress)
	})
}

func TestRunRotationStatus(t *testing.T) {
	ctx := context.Background()
	job := rotationDomain.NewRotationJob(uuid.Must(uuid.NewV7()), 2)
	failure := rotationDomain.NewRowFailure(job.ID, uuid.Must(uuid.NewV7()), errors.New("unknown key"))

	t.Run("text", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)
		useCase.On("Status", ctx, job.ID).Return(job, []*rotationDomain.RowFailure{failure}, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunRotationStatus(ctx, useCase, &out, job.ID.String(), "text"))
		assert.Contains(t, out.String(), failure.SecretID.String())
	})

	t.Run("json", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)
		useCase.On("Status", ctx, job.ID).Return(job, []*rotationDomain.RowFailure{failure}, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunRotationStatus(ctx, useCase, &out, job.ID.String(), "json"))

		var response dto.JobStatusResponse
		require.NoError(t, json.Unmarshal(out.Bytes(), &response))
		assert.Equal(t, 1, response.TotalFailures)
		require.Len(t, response.Failures, 1)
	})

	t.Run("unknown job", func(t *testing.T) {
		useCase := rotationMocks.NewMockRotationUseCase(t)
		unknown := uuid.Must(uuid.NewV7())
		useCase.On("Status", ctx, unknown).Return(nil, nil, rotationDomain.ErrJobNotFound).Once()

		err := RunRotationStatus(ctx, useCase, &bytes.Buffer{}, unknown.String(), "text")
		require.ErrorIs(t, err, rotationDomain.ErrJobNotFound)
	})
}
