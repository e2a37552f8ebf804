package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
)

type MockKMSService struct {
	mock.Mock
}

func (m *MockKMSService) OpenKeeper(ctx context.Context, uri string) (cryptoDomain.KMSKeeper, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(cryptoDomain.KMSKeeper), args.Error(1)
}

type MockKMSKeeper struct {
	mock.Mock
}

func (m *MockKMSKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Close() error {
	return m.Called().Error(0)
}

func TestRunCreateRootKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("plain hex", func(t *testing.T) {
		var out bytes.Buffer
		err := RunCreateRootKey(ctx, nil, logger, &out, "")
		require.NoError(t, err)

		match := regexp.MustCompile(`ROOT_KEY="([0-9a-f]+)"`).FindStringSubmatch(out.String())
		require.Len(t, match, 2)
		rootKey, err := cryptoDomain.ParseRootKey(match[1])
		require.NoError(t, err)
		assert.Len(t, rootKey.Key, cryptoDomain.RootKeySize)
	})

	t.Run("sealed with kms", func(t *testing.T) {
		mockService := &MockKMSService{}
		mockKeeper := &MockKMSKeeper{}

		mockService.On("OpenKeeper", ctx, "base64key://...").Return(mockKeeper, nil)
		mockKeeper.On("Encrypt", ctx, mock.MatchedBy(func(plaintext []byte) bool {
			return len(plaintext) == 64
		})).Return([]byte("encrypted"), nil)
		mockKeeper.On("Close").Return(nil)

		var out bytes.Buffer
		err := RunCreateRootKey(ctx, mockService, logger, &out, "base64key://...")
		require.NoError(t, err)
		assert.Contains(t, out.String(), `KMS_KEY_URI="base64key://..."`)
		assert.Contains(t, out.String(), `ROOT_KEY="`+base64.StdEncoding.EncodeToString([]byte("encrypted"))+`"`)

		mockService.AssertExpectations(t)
		mockKeeper.AssertExpectations(t)
	})

	t.Run("kms error", func(t *testing.T) {
		mockService := &MockKMSService{}
		mockService.On("OpenKeeper", ctx, "invalid").Return(nil, errors.New("kms error"))

		err := RunCreateRootKey(ctx, mockService, logger, &bytes.Buffer{}, "invalid")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to open KMS keeper")
	})

	t.Run("encrypt error", func(t *testing.T) {
		mockService := &MockKMSService{}
		mockKeeper := &MockKMSKeeper{}
		mockService.On("OpenKeeper", ctx, "base64key://...").Return(mockKeeper, nil)
		mockKeeper.On("Encrypt", ctx, mock.Anything).Return([]byte(nil), errors.New("denied"))
		mockKeeper.On("Close").Return(nil)

		err := RunCreateRootKey(ctx, mockService, logger, &bytes.Buffer{}, "base64key://...")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to encrypt root key")
		mockKeeper.AssertExpectations(t)
	})
}
