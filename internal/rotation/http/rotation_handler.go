// Package http exposes the key rotation trigger to operators. Routes are mounted behind
// AdminMiddleware.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/envsafe/internal/httputil"
	"github.com/allisson/envsafe/internal/rotation/http/dto"
	rotationUseCase "github.com/allisson/envsafe/internal/rotation/usecase"
	customValidation "github.com/allisson/envsafe/internal/validation"
)

// RotationHandler handles key rotation admin requests.
type RotationHandler struct {
	rotationUseCase rotationUseCase.RotationUseCase
	logger          *slog.Logger
}

// NewRotationHandler creates a new rotation handler.
func NewRotationHandler(rotationUseCase rotationUseCase.RotationUseCase, logger *slog.Logger) *RotationHandler {
	return &RotationHandler{
		rotationUseCase: rotationUseCase,
		logger:          logger,
	}
}

// TriggerHandler invokes the rotation trigger.
// POST /v1/admin/key-rotation - Returns 202 Accepted when a new job starts (chunks are
// processed in the background), 200 OK for a processed chunk or a cleanup pass and 409
// Conflict when a rotation is already in flight.
func (h *RotationHandler) TriggerHandler(c *gin.Context) {
	var req dto.TriggerRotationRequest
	// An empty body starts a rotation.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	invocation := rotationUseCase.Request{CleanupOnly: req.CleanupOnly}
	if req.JobID != nil {
		jobID := uuid.MustParse(*req.JobID)
		invocation.JobID = &jobID
	}

	result, err := h.rotationUseCase.Invoke(c.Request.Context(), invocation)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	status := http.StatusOK
	if invocation.JobID == nil && !invocation.CleanupOnly {
		status = http.StatusAccepted
	}
	c.JSON(status, dto.MapResultToResponse(result))
}

// StatusHandler returns a job with a page of its row failures.
// GET /v1/admin/key-rotation/:job_id?offset=0&limit=50
func (h *RotationHandler) StatusHandler(c *gin.Context) {
	jobID, err := httputil.ParseUUIDParam(c, "job_id")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	job, failures, err := h.rotationUseCase.Status(c.Request.Context(), jobID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobStatusToResponse(job, failures, offset, limit))
}

// FailHandler aborts an in-flight job and releases its migrating key.
// POST /v1/admin/key-rotation/:job_id/fail - Returns 409 Conflict for a finished job.
func (h *RotationHandler) FailHandler(c *gin.Context) {
	jobID, err := httputil.ParseUUIDParam(c, "job_id")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	var req dto.FailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	job, err := h.rotationUseCase.Fail(c.Request.Context(), jobID, req.Reason)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}
