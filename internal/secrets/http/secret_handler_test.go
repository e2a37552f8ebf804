package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	authHTTP "github.com/allisson/envsafe/internal/auth/http"
	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	"github.com/allisson/envsafe/internal/httputil"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
	"github.com/allisson/envsafe/internal/secrets/http/dto"
	"github.com/allisson/envsafe/internal/secrets/usecase/mocks"
)

func setupTestRouter(t *testing.T, callerID uuid.UUID) (*gin.Engine, *mocks.MockSecretUseCase) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	useCase := mocks.NewMockSecretUseCase(t)
	handler := NewSecretHandler(useCase, slog.New(slog.NewTextHandler(io.Discard, nil)))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if callerID != uuid.Nil {
			c.Request = c.Request.WithContext(authHTTP.WithUserID(c.Request.Context(), callerID))
		}
		c.Next()
	})
	router.POST("/v1/projects/:project_id/secrets", handler.CreateHandler)
	router.GET("/v1/projects/:project_id/secrets", handler.ListHandler)
	router.GET("/v1/secrets/:secret_id", handler.GetHandler)
	router.PUT("/v1/secrets/:secret_id", handler.UpdateHandler)
	router.DELETE("/v1/secrets/:secret_id", handler.DeleteHandler)

	return router, useCase
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var response httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestSecretHandler_Create(t *testing.T) {
	caller := uuid.Must(uuid.NewV7())
	projectID := uuid.Must(uuid.NewV7())
	path := fmt.Sprintf("/v1/projects/%s/secrets", projectID)

	t.Run("created without value", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		now := time.Now().UTC()
		secret := &secretsDomain.Secret{
			ID:        uuid.Must(uuid.NewV7()),
			ProjectID: projectID,
			Key:       "DATABASE_URL",
			Value:     "v1:" + uuid.NewString() + ":AAAA",
			CreatedAt: now,
			UpdatedAt: now,
		}
		useCase.On("Create", mock.Anything, caller, projectID, "DATABASE_URL", []byte("postgres://db")).
			Return(secret, nil).
			Once()

		w := do(router, http.MethodPost, path, `{"key":"DATABASE_URL","value":"postgres://db"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		var response dto.SecretResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, secret.ID.String(), response.ID)
		assert.Equal(t, "DATABASE_URL", response.Key)
		assert.NotContains(t, w.Body.String(), "postgres://db")
		assert.NotContains(t, w.Body.String(), "v1:")
	})

	t.Run("empty value is allowed", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("Create", mock.Anything, caller, projectID, "EMPTY", []byte{}).
			Return(&secretsDomain.Secret{ID: uuid.New(), ProjectID: projectID, Key: "EMPTY"}, nil).
			Once()

		w := do(router, http.MethodPost, path, `{"key":"EMPTY","value":""}`)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("invalid key", func(t *testing.T) {
		router, _ := setupTestRouter(t, caller)

		w := do(router, http.MethodPost, path, `{"key":"not-valid","value":"x"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		router, _ := setupTestRouter(t, caller)

		w := do(router, http.MethodPost, path, `{`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid project id", func(t *testing.T) {
		router, _ := setupTestRouter(t, caller)

		w := do(router, http.MethodPost, "/v1/projects/nope/secrets", `{"key":"A","value":"x"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("viewer is forbidden", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("Create", mock.Anything, caller, projectID, "A", []byte("x")).
			Return(nil, accessDomain.ErrForbidden).
			Once()

		w := do(router, http.MethodPost, path, `{"key":"A","value":"x"}`)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("duplicate key", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("Create", mock.Anything, caller, projectID, "A", []byte("x")).
			Return(nil, secretsDomain.ErrSecretKeyExists).
			Once()

		w := do(router, http.MethodPost, path, `{"key":"A","value":"x"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("no identity", func(t *testing.T) {
		router, _ := setupTestRouter(t, uuid.Nil)

		w := do(router, http.MethodPost, path, `{"key":"A","value":"x"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSecretHandler_List(t *testing.T) {
	caller := uuid.Must(uuid.NewV7())
	projectID := uuid.Must(uuid.NewV7())

	t.Run("returns decrypted values and failures", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("ListByProject", mock.Anything, caller, projectID).
			Return([]*secretsDomain.DecryptedSecret{
				{ID: uuid.New(), ProjectID: projectID, Key: "A", Value: "alpha"},
				{
					ID:        uuid.New(),
					ProjectID: projectID,
					Key:       "B",
					Value:     secretsDomain.DecryptionFailedValue,
					Failed:    true,
				},
			}, nil).
			Once()

		w := do(router, http.MethodGet, fmt.Sprintf("/v1/projects/%s/secrets", projectID), "")

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.ListSecretsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 2)
		assert.Equal(t, "alpha", response.Data[0].Value)
		assert.True(t, response.Data[1].DecryptionFailed)
	})

	t.Run("no role", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("ListByProject", mock.Anything, caller, projectID).
			Return(nil, accessDomain.ErrForbidden).
			Once()

		w := do(router, http.MethodGet, fmt.Sprintf("/v1/projects/%s/secrets", projectID), "")

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSecretHandler_Get(t *testing.T) {
	caller := uuid.Must(uuid.NewV7())
	secretID := uuid.Must(uuid.NewV7())
	path := "/v1/secrets/" + secretID.String()

	t.Run("ok", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("Get", mock.Anything, caller, secretID).
			Return(&secretsDomain.DecryptedSecret{ID: secretID, Key: "A", Value: "alpha"}, nil).
			Once()

		w := do(router, http.MethodGet, path, "")

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.DecryptedSecretResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "alpha", response.Value)
	})

	t.Run("undecryptable is generic", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("Get", mock.Anything, caller, secretID).
			Return(nil, fmt.Errorf("secret %s: %w", secretID, cryptoDomain.ErrAuthTagMismatch)).
			Once()

		w := do(router, http.MethodGet, path, "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		response := decodeError(t, w)
		assert.Equal(t, "secret_unavailable", response.Error)
		assert.NotContains(t, w.Body.String(), "tag")
	})

	t.Run("not found", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("Get", mock.Anything, caller, secretID).
			Return(nil, secretsDomain.ErrSecretNotFound).
			Once()

		w := do(router, http.MethodGet, path, "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		router, _ := setupTestRouter(t, caller)

		w := do(router, http.MethodGet, "/v1/secrets/123", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSecretHandler_Update(t *testing.T) {
	caller := uuid.Must(uuid.NewV7())
	secretID := uuid.Must(uuid.NewV7())
	path := "/v1/secrets/" + secretID.String()

	t.Run("ok", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("Update", mock.Anything, caller, secretID, []byte("rotated")).
			Return(&secretsDomain.Secret{ID: secretID, Key: "A"}, nil).
			Once()

		w := do(router, http.MethodPut, path, `{"value":"rotated"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "rotated")
	})

	t.Run("missing value", func(t *testing.T) {
		router, _ := setupTestRouter(t, caller)

		w := do(router, http.MethodPut, path, `{}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestSecretHandler_Delete(t *testing.T) {
	caller := uuid.Must(uuid.NewV7())
	secretID := uuid.Must(uuid.NewV7())
	path := "/v1/secrets/" + secretID.String()

	t.Run("no content", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("Delete", mock.Anything, caller, secretID).Return(nil).Once()

		w := do(router, http.MethodDelete, path, "")

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("forbidden", func(t *testing.T) {
		router, useCase := setupTestRouter(t, caller)
		useCase.On("Delete", mock.Anything, caller, secretID).Return(accessDomain.ErrForbidden).Once()

		w := do(router, http.MethodDelete, path, "")

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
