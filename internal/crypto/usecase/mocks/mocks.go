// Package mocks provides testify mocks for the crypto use case interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
)

// MockEncryptionKeyRepository is a mock implementation of EncryptionKeyRepository.
type MockEncryptionKeyRepository struct {
	mock.Mock
}

// NewMockEncryptionKeyRepository creates a mock that asserts its expectations on cleanup.
func NewMockEncryptionKeyRepository(t mock.TestingT) *MockEncryptionKeyRepository {
	m := &MockEncryptionKeyRepository{}
	m.Test(t)
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(func() { m.AssertExpectations(t) })
	}
	return m
}

func (m *MockEncryptionKeyRepository) Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockEncryptionKeyRepository) Get(
	ctx context.Context,
	keyID uuid.UUID,
) (*cryptoDomain.EncryptionKey, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.EncryptionKey), args.Error(1)
}

func (m *MockEncryptionKeyRepository) GetActive(ctx context.Context) (*cryptoDomain.EncryptionKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.EncryptionKey), args.Error(1)
}

func (m *MockEncryptionKeyRepository) ListByStatus(
	ctx context.Context,
	status cryptoDomain.KeyStatus,
) ([]*cryptoDomain.EncryptionKey, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.EncryptionKey), args.Error(1)
}

func (m *MockEncryptionKeyRepository) UpdateStatus(
	ctx context.Context,
	keyID uuid.UUID,
	status cryptoDomain.KeyStatus,
) error {
	args := m.Called(ctx, keyID, status)
	return args.Error(0)
}

func (m *MockEncryptionKeyRepository) Delete(ctx context.Context, keyID uuid.UUID) error {
	args := m.Called(ctx, keyID)
	return args.Error(0)
}

// MockKeyRegistry is a mock implementation of KeyRegistry.
type MockKeyRegistry struct {
	mock.Mock
}

// NewMockKeyRegistry creates a mock that asserts its expectations on cleanup.
func NewMockKeyRegistry(t mock.TestingT) *MockKeyRegistry {
	m := &MockKeyRegistry{}
	m.Test(t)
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(func() { m.AssertExpectations(t) })
	}
	return m
}

// ActiveKey returns a copy of the configured key so callers may zero it.
func (m *MockKeyRegistry) ActiveKey(ctx context.Context) (uuid.UUID, []byte, error) {
	args := m.Called(ctx)
	if args.Get(1) == nil {
		return args.Get(0).(uuid.UUID), nil, args.Error(2)
	}
	return args.Get(0).(uuid.UUID), clone(args.Get(1).([]byte)), args.Error(2)
}

// DataKey returns a copy of the configured key so callers may zero it.
func (m *MockKeyRegistry) DataKey(ctx context.Context, keyID uuid.UUID) ([]byte, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return clone(args.Get(0).([]byte)), args.Error(1)
}

func (m *MockKeyRegistry) Keyring(
	ctx context.Context,
	keyIDs []uuid.UUID,
) (cryptoDomain.Keyring, map[uuid.UUID]error) {
	args := m.Called(ctx, keyIDs)
	ring := cryptoDomain.Keyring{}
	if configured, ok := args.Get(0).(cryptoDomain.Keyring); ok {
		for id, key := range configured {
			ring[id] = clone(key)
		}
	}
	failures, _ := args.Get(1).(map[uuid.UUID]error)
	return ring, failures
}

func (m *MockKeyRegistry) CreateKey(
	ctx context.Context,
	status cryptoDomain.KeyStatus,
) (*cryptoDomain.EncryptionKey, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.EncryptionKey), args.Error(1)
}

func (m *MockKeyRegistry) Bootstrap(ctx context.Context) (*cryptoDomain.EncryptionKey, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*cryptoDomain.EncryptionKey), args.Bool(1), args.Error(2)
}

func (m *MockKeyRegistry) InvalidateActiveKey(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockKeyRegistry) MigratingKeyID(ctx context.Context) (uuid.UUID, error) {
	args := m.Called(ctx)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// MockEngine is a mock implementation of Engine.
type MockEngine struct {
	mock.Mock
}

// NewMockEngine creates a mock that asserts its expectations on cleanup.
func NewMockEngine(t mock.TestingT) *MockEngine {
	m := &MockEngine{}
	m.Test(t)
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(func() { m.AssertExpectations(t) })
	}
	return m
}

func (m *MockEngine) Encrypt(ctx context.Context, plaintext []byte) (cryptoDomain.Envelope, error) {
	args := m.Called(ctx, plaintext)
	return args.Get(0).(cryptoDomain.Envelope), args.Error(1)
}

func (m *MockEngine) EncryptWithKey(
	ctx context.Context,
	keyID uuid.UUID,
	plaintext []byte,
) (cryptoDomain.Envelope, error) {
	args := m.Called(ctx, keyID, plaintext)
	return args.Get(0).(cryptoDomain.Envelope), args.Error(1)
}

func (m *MockEngine) Decrypt(ctx context.Context, value string) ([]byte, error) {
	args := m.Called(ctx, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return clone(args.Get(0).([]byte)), args.Error(1)
}

func (m *MockEngine) DecryptWithKeyring(value string, ring cryptoDomain.Keyring) ([]byte, error) {
	args := m.Called(value, ring)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return clone(args.Get(0).([]byte)), args.Error(1)
}

func (m *MockEngine) ActiveKeyID(ctx context.Context) (uuid.UUID, error) {
	args := m.Called(ctx)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockEngine) MigratingKeyID(ctx context.Context) (uuid.UUID, error) {
	args := m.Called(ctx)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
