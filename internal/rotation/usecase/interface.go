// Package usecase runs key rotation jobs: starting a rotation, re-encrypting secrets in
// bounded chunks, promoting the new key and pruning history.
package usecase

import (
	"context"

	"github.com/google/uuid"

	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// RotationJobRepository persists jobs and their row failures.
//
// Available implementations:
//   - PostgreSQLRotationJobRepository
//   - MySQLRotationJobRepository
type RotationJobRepository interface {
	// Create stores a new job. Returns ErrRotationInProgress when another job is pending
	// or processing.
	Create(ctx context.Context, job *rotationDomain.RotationJob) error

	Get(ctx context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, error)

	// GetForUpdate is Get with a row lock held until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, error)

	// GetInFlight returns the pending or processing job, or ErrJobNotFound.
	GetInFlight(ctx context.Context) (*rotationDomain.RotationJob, error)

	Update(ctx context.Context, job *rotationDomain.RotationJob) error

	// ListByStatus returns jobs newest first.
	ListByStatus(ctx context.Context, status rotationDomain.JobStatus) ([]*rotationDomain.RotationJob, error)

	Delete(ctx context.Context, jobID uuid.UUID) error

	RecordFailure(ctx context.Context, failure *rotationDomain.RowFailure) error

	ListFailures(ctx context.Context, jobID uuid.UUID) ([]*rotationDomain.RowFailure, error)
}

// SecretRepository is the part of the secret store a rotation walks and rewrites.
type SecretRepository interface {
	// ListAfter returns up to limit secrets with id greater than after, ascending by id.
	// A nil cursor starts from the first secret.
	ListAfter(ctx context.Context, after *uuid.UUID, limit int) ([]*secretsDomain.Secret, error)

	Count(ctx context.Context) (int64, error)

	CountByKeyID(ctx context.Context, keyID uuid.UUID) (int64, error)

	// UpdateValues applies compare-and-swap rewrites and returns how many rows changed.
	UpdateValues(ctx context.Context, updates []secretsDomain.ValueUpdate) (int64, error)
}

// Scheduler queues "process the next chunk of job J" as an independent unit of work.
type Scheduler interface {
	Enqueue(jobID uuid.UUID)
}

// Request is a trigger invocation. With no JobID a new rotation starts; with a JobID one
// chunk of that job is processed. CleanupOnly prunes history and ignores JobID.
type Request struct {
	JobID       *uuid.UUID
	CleanupOnly bool
}

// Result reports the outcome of an invocation. Job is nil for cleanup-only requests.
type Result struct {
	Job     *rotationDomain.RotationJob
	Cleanup *CleanupResult
}

// CleanupResult counts what a cleanup pass removed or kept.
type CleanupResult struct {
	DeletedKeys  int
	RetainedKeys int
	DemotedKeys  int
	DeletedJobs  int
}

// RotationUseCase drives key rotation.
type RotationUseCase interface {
	// Start creates a migrating key and a pending job, then schedules the first chunk.
	// Returns ErrRotationInProgress when a job is already in flight and ErrNoActiveKey when
	// there is nothing to rotate from.
	Start(ctx context.Context) (*rotationDomain.RotationJob, error)

	// ProcessChunk re-encrypts the next chunk of a job, or promotes its key when no secrets
	// remain. A completed or failed job is returned unchanged.
	ProcessChunk(ctx context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, error)

	// Cleanup prunes retired keys and completed jobs beyond the retention window and
	// resolves migrating keys left behind by aborted jobs.
	Cleanup(ctx context.Context) (*CleanupResult, error)

	// Fail aborts an in-flight job.
	Fail(ctx context.Context, jobID uuid.UUID, reason string) (*rotationDomain.RotationJob, error)

	// Invoke is the trigger contract shared by the admin API and the CLI.
	Invoke(ctx context.Context, req Request) (*Result, error)

	// Status returns a job and its row failures.
	Status(ctx context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, []*rotationDomain.RowFailure, error)

	// InFlight returns the pending or processing job, or ErrJobNotFound.
	InFlight(ctx context.Context) (*rotationDomain.RotationJob, error)
}
