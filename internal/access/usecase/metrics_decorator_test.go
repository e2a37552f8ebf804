package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	"github.com/allisson/envsafe/internal/access/usecase"
	"github.com/allisson/envsafe/internal/access/usecase/mocks"
)

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

func expectRecorded(ctx context.Context, m *mockBusinessMetrics, operation, status string) {
	m.On("RecordOperation", ctx, "access", operation, status).Once()
	m.On("RecordDuration", ctx, "access", operation, mock.AnythingOfType("time.Duration"), status).Once()
}

func TestAccessMetricsDecorator(t *testing.T) {
	ctx := context.Background()
	actor, project, user := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())

	t.Run("approve success", func(t *testing.T) {
		inner := mocks.NewMockAccessUseCase(t)
		m := &mockBusinessMetrics{}
		requestID := uuid.Must(uuid.NewV7())
		member := &accessDomain.Membership{ProjectID: project, UserID: user, Role: accessDomain.RoleViewer}

		inner.On("ApproveRequest", ctx, actor, project, requestID).Return(member, nil).Once()
		expectRecorded(ctx, m, "access_approve", "success")

		got, err := usecase.NewAccessUseCaseWithMetrics(inner, m).ApproveRequest(ctx, actor, project, requestID)
		assert.NoError(t, err)
		assert.Equal(t, member, got)
		m.AssertExpectations(t)
	})

	t.Run("remove member error", func(t *testing.T) {
		inner := mocks.NewMockAccessUseCase(t)
		m := &mockBusinessMetrics{}
		expected := errors.New("boom")

		inner.On("RemoveMember", ctx, actor, project, user).Return(expected).Once()
		expectRecorded(ctx, m, "member_remove", "error")

		err := usecase.NewAccessUseCaseWithMetrics(inner, m).RemoveMember(ctx, actor, project, user)
		assert.ErrorIs(t, err, expected)
		m.AssertExpectations(t)
	})

	t.Run("role lookups are not recorded", func(t *testing.T) {
		inner := mocks.NewMockAccessUseCase(t)
		m := &mockBusinessMetrics{}

		inner.On("RoleFor", ctx, user, project).Return(accessDomain.RoleEditor, nil).Once()

		role, err := usecase.NewAccessUseCaseWithMetrics(inner, m).RoleFor(ctx, user, project)
		assert.NoError(t, err)
		assert.Equal(t, accessDomain.RoleEditor, role)
		m.AssertNotCalled(t, "RecordOperation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
