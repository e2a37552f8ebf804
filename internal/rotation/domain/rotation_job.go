// Package domain defines key rotation jobs and the per-secret failures they record.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of a rotation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further chunk will be processed for a job in this status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// RotationJob tracks the re-encryption of every secret under NewKeyID.
//
// LastProcessedSecretID is the resume cursor: secrets are walked in ascending id order and
// the cursor only moves forward. It is nil until the first chunk has been processed.
type RotationJob struct {
	ID                    uuid.UUID
	NewKeyID              uuid.UUID
	Status                JobStatus
	TotalSecrets          int64
	ProcessedSecrets      int64
	FailedSecrets         int64
	LastProcessedSecretID *uuid.UUID
	ErrorMessage          *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
}

// NewRotationJob creates a pending job targeting newKeyID.
func NewRotationJob(newKeyID uuid.UUID, totalSecrets int64) *RotationJob {
	now := time.Now().UTC()
	return &RotationJob{
		ID:           uuid.Must(uuid.NewV7()),
		NewKeyID:     newKeyID,
		Status:       JobStatusPending,
		TotalSecrets: totalSecrets,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Advance records a processed chunk and moves the cursor to lastID.
func (j *RotationJob) Advance(lastID uuid.UUID, attempted, failed int) {
	cursor := lastID
	j.LastProcessedSecretID = &cursor
	j.ProcessedSecrets += int64(attempted)
	j.FailedSecrets += int64(failed)
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now().UTC()
}

// Complete marks the job completed.
func (j *RotationJob) Complete() {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// Fail marks the job failed with reason.
func (j *RotationJob) Fail(reason string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.ErrorMessage = &reason
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// RowFailure is a secret that could not be re-encrypted by a job. Failed rows are never
// retried automatically; they stay on their previous key until an operator intervenes.
type RowFailure struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	SecretID  uuid.UUID
	Error     string
	CreatedAt time.Time
}

// NewRowFailure creates a failure record for secretID.
func NewRowFailure(jobID, secretID uuid.UUID, cause error) *RowFailure {
	return &RowFailure{
		ID:        uuid.Must(uuid.NewV7()),
		JobID:     jobID,
		SecretID:  secretID,
		Error:     cause.Error(),
		CreatedAt: time.Now().UTC(),
	}
}
