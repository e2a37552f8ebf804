// Package mocks provides testify mocks for the secret use case interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
	"github.com/allisson/envsafe/internal/secrets/usecase"
)

// MockSecretUseCase is a mock implementation of SecretUseCase.
type MockSecretUseCase struct {
	mock.Mock
}

// NewMockSecretUseCase creates a mock that asserts its expectations on cleanup.
func NewMockSecretUseCase(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSecretUseCase {
	m := &MockSecretUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSecretUseCase) Create(
	ctx context.Context,
	userID, projectID uuid.UUID,
	key string,
	plaintext []byte,
) (*secretsDomain.Secret, error) {
	args := m.Called(ctx, userID, projectID, key, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsDomain.Secret), args.Error(1)
}

func (m *MockSecretUseCase) Update(
	ctx context.Context,
	userID, secretID uuid.UUID,
	plaintext []byte,
) (*secretsDomain.Secret, error) {
	args := m.Called(ctx, userID, secretID, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsDomain.Secret), args.Error(1)
}

func (m *MockSecretUseCase) Get(
	ctx context.Context,
	userID, secretID uuid.UUID,
) (*secretsDomain.DecryptedSecret, error) {
	args := m.Called(ctx, userID, secretID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsDomain.DecryptedSecret), args.Error(1)
}

func (m *MockSecretUseCase) ListByProject(
	ctx context.Context,
	userID, projectID uuid.UUID,
) ([]*secretsDomain.DecryptedSecret, error) {
	args := m.Called(ctx, userID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*secretsDomain.DecryptedSecret), args.Error(1)
}

func (m *MockSecretUseCase) Delete(ctx context.Context, userID, secretID uuid.UUID) error {
	return m.Called(ctx, userID, secretID).Error(0)
}

// MockRepairer records scheduled read-repair batches.
type MockRepairer struct {
	mock.Mock
}

func (m *MockRepairer) Schedule(ctx context.Context, items []usecase.RepairItem) {
	m.Called(ctx, items)
}

var (
	_ usecase.SecretUseCase = (*MockSecretUseCase)(nil)
	_ usecase.Repairer      = (*MockRepairer)(nil)
)
