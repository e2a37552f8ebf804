// Package mocks provides testify mocks for the rotation use case interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
	"github.com/allisson/envsafe/internal/rotation/usecase"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

func expectOnCleanup(t mock.TestingT, m interface{ AssertExpectations(mock.TestingT) bool }) {
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(func() { m.AssertExpectations(t) })
	}
}

func job(args mock.Arguments, i int) *rotationDomain.RotationJob {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*rotationDomain.RotationJob)
}

// MockRotationJobRepository is a mock implementation of RotationJobRepository.
type MockRotationJobRepository struct {
	mock.Mock
}

// NewMockRotationJobRepository creates a mock that asserts its expectations on cleanup.
func NewMockRotationJobRepository(t mock.TestingT) *MockRotationJobRepository {
	m := &MockRotationJobRepository{}
	m.Test(t)
	expectOnCleanup(t, m)
	return m
}

func (m *MockRotationJobRepository) Create(ctx context.Context, j *rotationDomain.RotationJob) error {
	return m.Called(ctx, j).Error(0)
}

func (m *MockRotationJobRepository) Get(ctx context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, error) {
	args := m.Called(ctx, jobID)
	return job(args, 0), args.Error(1)
}

func (m *MockRotationJobRepository) GetForUpdate(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, error) {
	args := m.Called(ctx, jobID)
	return job(args, 0), args.Error(1)
}

func (m *MockRotationJobRepository) GetInFlight(ctx context.Context) (*rotationDomain.RotationJob, error) {
	args := m.Called(ctx)
	return job(args, 0), args.Error(1)
}

func (m *MockRotationJobRepository) Update(ctx context.Context, j *rotationDomain.RotationJob) error {
	return m.Called(ctx, j).Error(0)
}

func (m *MockRotationJobRepository) ListByStatus(
	ctx context.Context,
	status rotationDomain.JobStatus,
) ([]*rotationDomain.RotationJob, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rotationDomain.RotationJob), args.Error(1)
}

func (m *MockRotationJobRepository) Delete(ctx context.Context, jobID uuid.UUID) error {
	return m.Called(ctx, jobID).Error(0)
}

func (m *MockRotationJobRepository) RecordFailure(ctx context.Context, failure *rotationDomain.RowFailure) error {
	return m.Called(ctx, failure).Error(0)
}

func (m *MockRotationJobRepository) ListFailures(
	ctx context.Context,
	jobID uuid.UUID,
) ([]*rotationDomain.RowFailure, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rotationDomain.RowFailure), args.Error(1)
}

// MockSecretRepository is a mock implementation of SecretRepository.
type MockSecretRepository struct {
	mock.Mock
}

// NewMockSecretRepository creates a mock that asserts its expectations on cleanup.
func NewMockSecretRepository(t mock.TestingT) *MockSecretRepository {
	m := &MockSecretRepository{}
	m.Test(t)
	expectOnCleanup(t, m)
	return m
}

func (m *MockSecretRepository) ListAfter(
	ctx context.Context,
	after *uuid.UUID,
	limit int,
) ([]*secretsDomain.Secret, error) {
	args := m.Called(ctx, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*secretsDomain.Secret), args.Error(1)
}

func (m *MockSecretRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSecretRepository) CountByKeyID(ctx context.Context, keyID uuid.UUID) (int64, error) {
	args := m.Called(ctx, keyID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSecretRepository) UpdateValues(
	ctx context.Context,
	updates []secretsDomain.ValueUpdate,
) (int64, error) {
	args := m.Called(ctx, updates)
	return args.Get(0).(int64), args.Error(1)
}

// MockRotationUseCase is a mock implementation of RotationUseCase.
type MockRotationUseCase struct {
	mock.Mock
}

// NewMockRotationUseCase creates a mock that asserts its expectations on cleanup.
func NewMockRotationUseCase(t mock.TestingT) *MockRotationUseCase {
	m := &MockRotationUseCase{}
	m.Test(t)
	expectOnCleanup(t, m)
	return m
}

func (m *MockRotationUseCase) Start(ctx context.Context) (*rotationDomain.RotationJob, error) {
	args := m.Called(ctx)
	return job(args, 0), args.Error(1)
}

func (m *MockRotationUseCase) ProcessChunk(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, error) {
	args := m.Called(ctx, jobID)
	return job(args, 0), args.Error(1)
}

func (m *MockRotationUseCase) Cleanup(ctx context.Context) (*usecase.CleanupResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.CleanupResult), args.Error(1)
}

func (m *MockRotationUseCase) Fail(
	ctx context.Context,
	jobID uuid.UUID,
	reason string,
) (*rotationDomain.RotationJob, error) {
	args := m.Called(ctx, jobID, reason)
	return job(args, 0), args.Error(1)
}

func (m *MockRotationUseCase) Invoke(ctx context.Context, req usecase.Request) (*usecase.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.Result), args.Error(1)
}

func (m *MockRotationUseCase) Status(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, []*rotationDomain.RowFailure, error) {
	args := m.Called(ctx, jobID)
	var failures []*rotationDomain.RowFailure
	if args.Get(1) != nil {
		failures = args.Get(1).([]*rotationDomain.RowFailure)
	}
	return job(args, 0), failures, args.Error(2)
}

func (m *MockRotationUseCase) InFlight(ctx context.Context) (*rotationDomain.RotationJob, error) {
	args := m.Called(ctx)
	return job(args, 0), args.Error(1)
}

// MockScheduler is a mock implementation of Scheduler.
type MockScheduler struct {
	mock.Mock
}

// NewMockScheduler creates a mock that asserts its expectations on cleanup.
func NewMockScheduler(t mock.TestingT) *MockScheduler {
	m := &MockScheduler{}
	m.Test(t)
	expectOnCleanup(t, m)
	return m
}

func (m *MockScheduler) Enqueue(jobID uuid.UUID) {
	m.Called(jobID)
}
