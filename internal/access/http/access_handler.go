// Package http provides HTTP handlers for projects, memberships, access requests and
// secret shares.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	"github.com/allisson/envsafe/internal/access/http/dto"
	accessUseCase "github.com/allisson/envsafe/internal/access/usecase"
	authHTTP "github.com/allisson/envsafe/internal/auth/http"
	apperrors "github.com/allisson/envsafe/internal/errors"
	"github.com/allisson/envsafe/internal/httputil"
	customValidation "github.com/allisson/envsafe/internal/validation"
)

// AccessHandler handles project and sharing requests. Every route requires
// IdentityMiddleware; authorization is decided by the AccessUseCase.
type AccessHandler struct {
	accessUseCase accessUseCase.AccessUseCase
	logger        *slog.Logger
}

// NewAccessHandler creates a new access handler.
func NewAccessHandler(accessUseCase accessUseCase.AccessUseCase, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{
		accessUseCase: accessUseCase,
		logger:        logger,
	}
}

// CreateProjectHandler creates a project owned by the caller.
// POST /v1/projects - Returns 201 Created.
func (h *AccessHandler) CreateProjectHandler(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	var req dto.CreateProjectRequest
	if !h.bind(c, &req, req.Validate) {
		return
	}

	project, err := h.accessUseCase.CreateProject(c.Request.Context(), callerID, req.Name)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapProjectToResponse(project))
}

// GetRoleHandler returns the caller's role on a project.
// GET /v1/projects/:project_id/role - Returns 200 OK with a null role when the caller has
// no access.
func (h *AccessHandler) GetRoleHandler(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	projectID, ok := h.uuidParam(c, "project_id")
	if !ok {
		return
	}

	role, err := h.accessUseCase.RoleFor(c.Request.Context(), callerID, projectID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRoleToResponse(role))
}

// RequestAccessHandler records the caller's request to join a project.
// POST /v1/projects/:project_id/requests - Returns 201 Created.
func (h *AccessHandler) RequestAccessHandler(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	projectID, ok := h.uuidParam(c, "project_id")
	if !ok {
		return
	}

	var req dto.RoleRequest
	if !h.bind(c, &req, req.Validate) {
		return
	}

	request, err := h.accessUseCase.RequestAccess(
		c.Request.Context(),
		callerID,
		projectID,
		accessDomain.Role(req.Role),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapAccessRequestToResponse(request))
}

// ApproveRequestHandler approves a pending access request. Owner only.
// POST /v1/projects/:project_id/requests/:request_id/approve - Returns 200 OK.
func (h *AccessHandler) ApproveRequestHandler(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	projectID, ok := h.uuidParam(c, "project_id")
	if !ok {
		return
	}
	requestID, ok := h.uuidParam(c, "request_id")
	if !ok {
		return
	}

	member, err := h.accessUseCase.ApproveRequest(c.Request.Context(), callerID, projectID, requestID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapMembershipToResponse(member))
}

// PutMemberHandler grants or replaces a membership. Owner only.
// PUT /v1/projects/:project_id/members/:user_id - Returns 204 No Content.
func (h *AccessHandler) PutMemberHandler(c *gin.Context) {
	h.writeMember(c, h.accessUseCase.AddMember)
}

// PatchMemberHandler changes the role of an existing member. Owner only.
// PATCH /v1/projects/:project_id/members/:user_id - Returns 204 No Content.
func (h *AccessHandler) PatchMemberHandler(c *gin.Context) {
	h.writeMember(c, h.accessUseCase.ChangeMemberRole)
}

// DeleteMemberHandler removes a membership. Owner only.
// DELETE /v1/projects/:project_id/members/:user_id - Returns 204 No Content.
func (h *AccessHandler) DeleteMemberHandler(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	projectID, ok := h.uuidParam(c, "project_id")
	if !ok {
		return
	}
	userID, ok := h.uuidParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.accessUseCase.RemoveMember(c.Request.Context(), callerID, projectID, userID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// TransferOwnershipHandler hands the project to another user. Owner only.
// POST /v1/projects/:project_id/transfer - Returns 204 No Content.
func (h *AccessHandler) TransferOwnershipHandler(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	projectID, ok := h.uuidParam(c, "project_id")
	if !ok {
		return
	}

	var req dto.TransferOwnershipRequest
	if !h.bind(c, &req, req.Validate) {
		return
	}
	newOwnerID := uuid.MustParse(req.NewOwnerID)

	if err := h.accessUseCase.TransferOwnership(c.Request.Context(), callerID, projectID, newOwnerID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// PutShareHandler shares a secret with a user. Owners and editors only.
// PUT /v1/secrets/:secret_id/shares/:user_id - Returns 204 No Content.
func (h *AccessHandler) PutShareHandler(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	secretID, ok := h.uuidParam(c, "secret_id")
	if !ok {
		return
	}
	userID, ok := h.uuidParam(c, "user_id")
	if !ok {
		return
	}

	var req dto.RoleRequest
	if !h.bind(c, &req, req.Validate) {
		return
	}

	err := h.accessUseCase.GrantSecretShare(
		c.Request.Context(),
		callerID,
		secretID,
		userID,
		accessDomain.Role(req.Role),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// DeleteShareHandler revokes a secret share. Owners and editors only.
// DELETE /v1/secrets/:secret_id/shares/:user_id - Returns 204 No Content.
func (h *AccessHandler) DeleteShareHandler(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	secretID, ok := h.uuidParam(c, "secret_id")
	if !ok {
		return
	}
	userID, ok := h.uuidParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.accessUseCase.RevokeSecretShare(c.Request.Context(), callerID, secretID, userID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

type memberWriter func(ctx context.Context, actorID, projectID, userID uuid.UUID, role accessDomain.Role) error

func (h *AccessHandler) writeMember(c *gin.Context, write memberWriter) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	projectID, ok := h.uuidParam(c, "project_id")
	if !ok {
		return
	}
	userID, ok := h.uuidParam(c, "user_id")
	if !ok {
		return
	}

	var req dto.RoleRequest
	if !h.bind(c, &req, req.Validate) {
		return
	}

	if err := write(c.Request.Context(), callerID, projectID, userID, accessDomain.Role(req.Role)); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

func (h *AccessHandler) caller(c *gin.Context) (uuid.UUID, bool) {
	callerID, ok := authHTTP.GetUserID(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return uuid.Nil, false
	}
	return callerID, true
}

func (h *AccessHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := httputil.ParseUUIDParam(c, name)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes the JSON body into req and runs its validation.
func (h *AccessHandler) bind(c *gin.Context, req any, validate func() error) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return false
	}
	if err := validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return false
	}
	return true
}
