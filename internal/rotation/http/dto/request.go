// Package dto provides data transfer objects for the key rotation admin API.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/envsafe/internal/validation"
)

// TriggerRotationRequest invokes the rotation trigger. An empty body starts a new
// rotation, job_id processes the next chunk of that job and cleanup_only prunes history.
type TriggerRotationRequest struct {
	JobID       *string `json:"job_id"`
	CleanupOnly bool    `json:"cleanup_only"`
}

// Validate checks if the trigger request is valid.
func (r *TriggerRotationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.JobID,
			validation.When(r.CleanupOnly, validation.Nil.Error("must be empty when cleanup_only is set")),
			customValidation.UUID,
		),
	)
}

// FailJobRequest aborts an in-flight job.
type FailJobRequest struct {
	Reason string `json:"reason"`
}

// Validate checks if the fail request is valid.
func (r *FailJobRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 1024),
		),
	)
}
