package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/envsafe/internal/metrics"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
	"github.com/allisson/envsafe/internal/secrets/usecase"
	"github.com/allisson/envsafe/internal/secrets/usecase/mocks"
)

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *mockBusinessMetrics) RecordReadRepair(ctx context.Context, outcome string) {
	m.Called(ctx, outcome)
}

func (m *mockBusinessMetrics) RecordRotationFinished(ctx context.Context, status string, processed, failed int64) {
	m.Called(ctx, status, processed, failed)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

func expectRecorded(ctx context.Context, m *mockBusinessMetrics, operation, status string) {
	m.On("RecordOperation", ctx, "secrets", operation, status).Return().Once()
	m.On("RecordDuration", ctx, "secrets", operation, mock.AnythingOfType("time.Duration"), status).
		Return().
		Once()
}

func TestMetricsDecorator_Create(t *testing.T) {
	ctx := context.Background()
	userID, projectID := uuid.New(), uuid.New()
	value := []byte("postgres://db")

	t.Run("Success_RecordsSuccessMetrics", func(t *testing.T) {
		uc := mocks.NewMockSecretUseCase(t)
		m := &mockBusinessMetrics{}
		secret := &secretsDomain.Secret{ID: uuid.New(), ProjectID: projectID, Key: "DATABASE_URL"}

		uc.On("Create", ctx, userID, projectID, "DATABASE_URL", value).Return(secret, nil).Once()
		expectRecorded(ctx, m, "secret_create", "success")

		result, err := usecase.NewSecretUseCaseWithMetrics(uc, m).
			Create(ctx, userID, projectID, "DATABASE_URL", value)

		assert.NoError(t, err)
		assert.Equal(t, secret, result)
		m.AssertExpectations(t)
	})

	t.Run("Error_RecordsErrorMetrics", func(t *testing.T) {
		uc := mocks.NewMockSecretUseCase(t)
		m := &mockBusinessMetrics{}

		uc.On("Create", ctx, userID, projectID, "DATABASE_URL", value).
			Return(nil, secretsDomain.ErrSecretKeyExists).
			Once()
		expectRecorded(ctx, m, "secret_create", "error")

		result, err := usecase.NewSecretUseCaseWithMetrics(uc, m).
			Create(ctx, userID, projectID, "DATABASE_URL", value)

		assert.ErrorIs(t, err, secretsDomain.ErrSecretKeyExists)
		assert.Nil(t, result)
		m.AssertExpectations(t)
	})
}

func TestMetricsDecorator_Operations(t *testing.T) {
	ctx := context.Background()
	userID, secretID := uuid.New(), uuid.New()
	failure := errors.New("boom")

	tests := []struct {
		name      string
		operation string
		setup     func(uc *mocks.MockSecretUseCase)
		call      func(uc usecase.SecretUseCase) error
	}{
		{
			name:      "update",
			operation: "secret_update",
			setup: func(uc *mocks.MockSecretUseCase) {
				uc.On("Update", ctx, userID, secretID, []byte("v2")).Return(nil, failure).Once()
			},
			call: func(uc usecase.SecretUseCase) error {
				_, err := uc.Update(ctx, userID, secretID, []byte("v2"))
				return err
			},
		},
		{
			name:      "get",
			operation: "secret_get",
			setup: func(uc *mocks.MockSecretUseCase) {
				uc.On("Get", ctx, userID, secretID).Return(nil, failure).Once()
			},
			call: func(uc usecase.SecretUseCase) error {
				_, err := uc.Get(ctx, userID, secretID)
				return err
			},
		},
		{
			name:      "list",
			operation: "secret_list",
			setup: func(uc *mocks.MockSecretUseCase) {
				uc.On("ListByProject", ctx, userID, secretID).Return(nil, failure).Once()
			},
			call: func(uc usecase.SecretUseCase) error {
				_, err := uc.ListByProject(ctx, userID, secretID)
				return err
			},
		},
		{
			name:      "delete",
			operation: "secret_delete",
			setup: func(uc *mocks.MockSecretUseCase) {
				uc.On("Delete", ctx, userID, secretID).Return(failure).Once()
			},
			call: func(uc usecase.SecretUseCase) error {
				return uc.Delete(ctx, userID, secretID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := mocks.NewMockSecretUseCase(t)
			m := &mockBusinessMetrics{}
			tt.setup(uc)
			expectRecorded(ctx, m, tt.operation, "error")

			err := tt.call(usecase.NewSecretUseCaseWithMetrics(uc, m))

			assert.ErrorIs(t, err, failure)
			m.AssertExpectations(t)
		})
	}
}
