package dto

import (
	"time"

	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
	rotationUseCase "github.com/allisson/envsafe/internal/rotation/usecase"
)

// RotationJobResponse represents a rotation job in API responses.
type RotationJobResponse struct {
	ID                    string     `json:"id"`
	NewKeyID              string     `json:"new_key_id"`
	Status                string     `json:"status"`
	TotalSecrets          int64      `json:"total_secrets"`
	ProcessedSecrets      int64      `json:"processed_secrets"`
	FailedSecrets         int64      `json:"failed_secrets"`
	LastProcessedSecretID *string    `json:"last_processed_secret_id"`
	ErrorMessage          *string    `json:"error_message,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// MapJobToResponse converts a domain job to an API response.
func MapJobToResponse(job *rotationDomain.RotationJob) RotationJobResponse {
	response := RotationJobResponse{
		ID:               job.ID.String(),
		NewKeyID:         job.NewKeyID.String(),
		Status:           string(job.Status),
		TotalSecrets:     job.TotalSecrets,
		ProcessedSecrets: job.ProcessedSecrets,
		FailedSecrets:    job.FailedSecrets,
		ErrorMessage:     job.ErrorMessage,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
		CompletedAt:      job.CompletedAt,
	}
	if job.LastProcessedSecretID != nil {
		cursor := job.LastProcessedSecretID.String()
		response.LastProcessedSecretID = &cursor
	}
	return response
}

// CleanupResponse reports a history cleanup pass.
type CleanupResponse struct {
	DeletedKeys  int `json:"deleted_keys"`
	RetainedKeys int `json:"retained_keys"`
	DemotedKeys  int `json:"demoted_keys"`
	DeletedJobs  int `json:"deleted_jobs"`
}

// TriggerRotationResponse is the outcome of a trigger invocation. Exactly one of Job and
// Cleanup is set.
type TriggerRotationResponse struct {
	Job     *RotationJobResponse `json:"job,omitempty"`
	Cleanup *CleanupResponse     `json:"cleanup,omitempty"`
}

// MapResultToResponse converts a trigger result to an API response.
func MapResultToResponse(result *rotationUseCase.Result) TriggerRotationResponse {
	var response TriggerRotationResponse
	if result.Job != nil {
		job := MapJobToResponse(result.Job)
		response.Job = &job
	}
	if result.Cleanup != nil {
		response.Cleanup = &CleanupResponse{
			DeletedKeys:  result.Cleanup.DeletedKeys,
			RetainedKeys: result.Cleanup.RetainedKeys,
			DemotedKeys:  result.Cleanup.DemotedKeys,
			DeletedJobs:  result.Cleanup.DeletedJobs,
		}
	}
	return response
}

// RowFailureResponse is a secret a job could not re-encrypt.
type RowFailureResponse struct {
	SecretID  string    `json:"secret_id"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStatusResponse is a job with one page of its row failures.
type JobStatusResponse struct {
	Job           RotationJobResponse  `json:"job"`
	Failures      []RowFailureResponse `json:"failures"`
	TotalFailures int                  `json:"total_failures"`
	Offset        int                  `json:"offset"`
	Limit         int                  `json:"limit"`
}

// MapJobStatusToResponse converts a job and the failures page starting at offset.
func MapJobStatusToResponse(
	job *rotationDomain.RotationJob,
	failures []*rotationDomain.RowFailure,
	offset, limit int,
) JobStatusResponse {
	page := make([]RowFailureResponse, 0, limit)
	for i := offset; i < len(failures) && i < offset+limit; i++ {
		page = append(page, RowFailureResponse{
			SecretID:  failures[i].SecretID.String(),
			Error:     failures[i].Error,
			CreatedAt: failures[i].CreatedAt,
		})
	}

	return JobStatusResponse{
		Job:           MapJobToResponse(job),
		Failures:      page,
		TotalFailures: len(failures),
		Offset:        offset,
		Limit:         limit,
	}
}
