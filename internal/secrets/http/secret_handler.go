// Package http provides HTTP handlers for secret management operations.
// Values are encrypted at rest and returned in plaintext only to callers with access.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authHTTP "github.com/allisson/envsafe/internal/auth/http"
	apperrors "github.com/allisson/envsafe/internal/errors"
	"github.com/allisson/envsafe/internal/httputil"
	"github.com/allisson/envsafe/internal/secrets/http/dto"
	secretsUseCase "github.com/allisson/envsafe/internal/secrets/usecase"
	customValidation "github.com/allisson/envsafe/internal/validation"
)

// SecretHandler handles HTTP requests for secret management operations. Every route
// requires IdentityMiddleware.
type SecretHandler struct {
	secretUseCase secretsUseCase.SecretUseCase
	logger        *slog.Logger
}

// NewSecretHandler creates a new secret handler with required dependencies.
func NewSecretHandler(secretUseCase secretsUseCase.SecretUseCase, logger *slog.Logger) *SecretHandler {
	return &SecretHandler{
		secretUseCase: secretUseCase,
		logger:        logger,
	}
}

// CreateHandler creates a secret in a project.
// POST /v1/projects/:project_id/secrets - Requires owner or editor.
// Returns 201 Created with secret metadata (excludes the value).
func (h *SecretHandler) CreateHandler(c *gin.Context) {
	userID, projectID, ok := h.callerAnd(c, "project_id")
	if !ok {
		return
	}

	var req dto.CreateSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	secret, err := h.secretUseCase.Create(c.Request.Context(), userID, projectID, req.Key, []byte(*req.Value))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapSecretToResponse(secret))
}

// ListHandler returns every secret of a project with decrypted values.
// GET /v1/projects/:project_id/secrets - Requires any role on the project.
// Values that cannot be decrypted are returned as "[DECRYPTION_FAILED]".
func (h *SecretHandler) ListHandler(c *gin.Context) {
	userID, projectID, ok := h.callerAnd(c, "project_id")
	if !ok {
		return
	}

	secrets, err := h.secretUseCase.ListByProject(c.Request.Context(), userID, projectID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretsToListResponse(secrets))
}

// GetHandler retrieves and decrypts a secret.
// GET /v1/secrets/:secret_id - Requires any access to the secret.
func (h *SecretHandler) GetHandler(c *gin.Context) {
	userID, secretID, ok := h.callerAnd(c, "secret_id")
	if !ok {
		return
	}

	secret, err := h.secretUseCase.Get(c.Request.Context(), userID, secretID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDecryptedSecretToResponse(secret))
}

// UpdateHandler replaces the value of a secret.
// PUT /v1/secrets/:secret_id - Requires owner or editor.
func (h *SecretHandler) UpdateHandler(c *gin.Context) {
	userID, secretID, ok := h.callerAnd(c, "secret_id")
	if !ok {
		return
	}

	var req dto.UpdateSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	secret, err := h.secretUseCase.Update(c.Request.Context(), userID, secretID, []byte(*req.Value))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSecretToResponse(secret))
}

// DeleteHandler removes a secret.
// DELETE /v1/secrets/:secret_id - Requires owner or editor. Returns 204 No Content.
func (h *SecretHandler) DeleteHandler(c *gin.Context) {
	userID, secretID, ok := h.callerAnd(c, "secret_id")
	if !ok {
		return
	}

	if err := h.secretUseCase.Delete(c.Request.Context(), userID, secretID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// callerAnd returns the authenticated user and the UUID path parameter name.
func (h *SecretHandler) callerAnd(c *gin.Context, name string) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := authHTTP.GetUserID(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return uuid.Nil, uuid.Nil, false
	}

	id, err := httputil.ParseUUIDParam(c, name)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}
