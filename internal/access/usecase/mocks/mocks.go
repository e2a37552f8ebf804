// Package mocks provides testify mocks for the access use case interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	"github.com/allisson/envsafe/internal/access/usecase"
)

func expectOnCleanup(t mock.TestingT, m interface{ AssertExpectations(mock.TestingT) bool }) {
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(func() { m.AssertExpectations(t) })
	}
}

func role(args mock.Arguments, i int) accessDomain.Role {
	if args.Get(i) == nil {
		return accessDomain.RoleNone
	}
	return args.Get(i).(accessDomain.Role)
}

// MockAccessRepository is a mock implementation of AccessRepository.
type MockAccessRepository struct {
	mock.Mock
}

// NewMockAccessRepository creates a mock that asserts its expectations on cleanup.
func NewMockAccessRepository(t mock.TestingT) *MockAccessRepository {
	m := &MockAccessRepository{}
	m.Test(t)
	expectOnCleanup(t, m)
	return m
}

func (m *MockAccessRepository) CreateProject(ctx context.Context, project *accessDomain.Project) error {
	return m.Called(ctx, project).Error(0)
}

func (m *MockAccessRepository) GetProject(ctx context.Context, projectID uuid.UUID) (*accessDomain.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accessDomain.Project), args.Error(1)
}

func (m *MockAccessRepository) UpdateOwner(ctx context.Context, projectID, ownerID uuid.UUID) error {
	return m.Called(ctx, projectID, ownerID).Error(0)
}

func (m *MockAccessRepository) GetMemberRole(
	ctx context.Context,
	projectID, userID uuid.UUID,
) (accessDomain.Role, error) {
	args := m.Called(ctx, projectID, userID)
	return role(args, 0), args.Error(1)
}

func (m *MockAccessRepository) UpsertMember(ctx context.Context, member *accessDomain.Membership) error {
	return m.Called(ctx, member).Error(0)
}

func (m *MockAccessRepository) DeleteMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return m.Called(ctx, projectID, userID).Error(0)
}

func (m *MockAccessRepository) GetSecretProject(ctx context.Context, secretID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, secretID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAccessRepository) GetShareRole(
	ctx context.Context,
	secretID, userID uuid.UUID,
) (accessDomain.Role, error) {
	args := m.Called(ctx, secretID, userID)
	return role(args, 0), args.Error(1)
}

func (m *MockAccessRepository) UpsertShare(ctx context.Context, share *accessDomain.SecretShare) error {
	return m.Called(ctx, share).Error(0)
}

func (m *MockAccessRepository) DeleteShare(ctx context.Context, secretID, userID uuid.UUID) error {
	return m.Called(ctx, secretID, userID).Error(0)
}

func (m *MockAccessRepository) CreateRequest(ctx context.Context, request *accessDomain.AccessRequest) error {
	return m.Called(ctx, request).Error(0)
}

func (m *MockAccessRepository) GetRequestForUpdate(
	ctx context.Context,
	requestID uuid.UUID,
) (*accessDomain.AccessRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accessDomain.AccessRequest), args.Error(1)
}

func (m *MockAccessRepository) UpdateRequest(ctx context.Context, request *accessDomain.AccessRequest) error {
	return m.Called(ctx, request).Error(0)
}

// MockAccessUseCase is a mock implementation of AccessUseCase. It also satisfies Resolver.
type MockAccessUseCase struct {
	mock.Mock
}

// NewMockAccessUseCase creates a mock that asserts its expectations on cleanup.
func NewMockAccessUseCase(t mock.TestingT) *MockAccessUseCase {
	m := &MockAccessUseCase{}
	m.Test(t)
	expectOnCleanup(t, m)
	return m
}

func (m *MockAccessUseCase) RoleFor(ctx context.Context, userID, projectID uuid.UUID) (accessDomain.Role, error) {
	args := m.Called(ctx, userID, projectID)
	return role(args, 0), args.Error(1)
}

func (m *MockAccessUseCase) SecretAccess(
	ctx context.Context,
	userID, secretID uuid.UUID,
) (accessDomain.SecretAccess, error) {
	args := m.Called(ctx, userID, secretID)
	return args.Get(0).(accessDomain.SecretAccess), args.Error(1)
}

func (m *MockAccessUseCase) CreateProject(
	ctx context.Context,
	ownerID uuid.UUID,
	name string,
) (*accessDomain.Project, error) {
	args := m.Called(ctx, ownerID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accessDomain.Project), args.Error(1)
}

func (m *MockAccessUseCase) RequestAccess(
	ctx context.Context,
	userID, projectID uuid.UUID,
	r accessDomain.Role,
) (*accessDomain.AccessRequest, error) {
	args := m.Called(ctx, userID, projectID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accessDomain.AccessRequest), args.Error(1)
}

func (m *MockAccessUseCase) ApproveRequest(
	ctx context.Context,
	actorID, projectID, requestID uuid.UUID,
) (*accessDomain.Membership, error) {
	args := m.Called(ctx, actorID, projectID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accessDomain.Membership), args.Error(1)
}

func (m *MockAccessUseCase) AddMember(
	ctx context.Context,
	actorID, projectID, userID uuid.UUID,
	r accessDomain.Role,
) error {
	return m.Called(ctx, actorID, projectID, userID, r).Error(0)
}

func (m *MockAccessUseCase) ChangeMemberRole(
	ctx context.Context,
	actorID, projectID, userID uuid.UUID,
	r accessDomain.Role,
) error {
	return m.Called(ctx, actorID, projectID, userID, r).Error(0)
}

func (m *MockAccessUseCase) RemoveMember(ctx context.Context, actorID, projectID, userID uuid.UUID) error {
	return m.Called(ctx, actorID, projectID, userID).Error(0)
}

func (m *MockAccessUseCase) TransferOwnership(ctx context.Context, actorID, projectID, newOwnerID uuid.UUID) error {
	return m.Called(ctx, actorID, projectID, newOwnerID).Error(0)
}

func (m *MockAccessUseCase) GrantSecretShare(
	ctx context.Context,
	actorID, secretID, userID uuid.UUID,
	r accessDomain.Role,
) error {
	return m.Called(ctx, actorID, secretID, userID, r).Error(0)
}

func (m *MockAccessUseCase) RevokeSecretShare(ctx context.Context, actorID, secretID, userID uuid.UUID) error {
	return m.Called(ctx, actorID, secretID, userID).Error(0)
}

var (
	_ usecase.AccessRepository = (*MockAccessRepository)(nil)
	_ usecase.AccessUseCase    = (*MockAccessUseCase)(nil)
)
