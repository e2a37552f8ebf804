package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/envsafe/internal/metrics"
	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
)

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (r *rotationUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordOperation(ctx, "rotation", operation, status)
	r.metrics.RecordDuration(ctx, "rotation", operation, time.Since(start), status)
}

// finished reports a job the call moved into a terminal state.
func (r *rotationUseCaseWithMetrics) finished(ctx context.Context, job *rotationDomain.RotationJob, err error) {
	if err != nil || job == nil || !job.Status.IsTerminal() {
		return
	}
	r.metrics.RecordRotationFinished(ctx, string(job.Status), job.ProcessedSecrets, job.FailedSecrets)
}

// Start records metrics for rotation start.
func (r *rotationUseCaseWithMetrics) Start(ctx context.Context) (*rotationDomain.RotationJob, error) {
	start := time.Now()
	job, err := r.next.Start(ctx)
	r.record(ctx, "rotation_start", start, err)
	r.finished(ctx, job, err)
	return job, err
}

// ProcessChunk records metrics for chunk processing.
func (r *rotationUseCaseWithMetrics) ProcessChunk(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, error) {
	start := time.Now()
	job, err := r.next.ProcessChunk(ctx, jobID)
	r.record(ctx, "rotation_chunk", start, err)
	r.finished(ctx, job, err)
	return job, err
}

// Cleanup records metrics for history cleanup.
func (r *rotationUseCaseWithMetrics) Cleanup(ctx context.Context) (*CleanupResult, error) {
	start := time.Now()
	result, err := r.next.Cleanup(ctx)
	r.record(ctx, "rotation_cleanup", start, err)
	return result, err
}

// Fail records metrics for aborted jobs.
func (r *rotationUseCaseWithMetrics) Fail(
	ctx context.Context,
	jobID uuid.UUID,
	reason string,
) (*rotationDomain.RotationJob, error) {
	start := time.Now()
	job, err := r.next.Fail(ctx, jobID, reason)
	r.record(ctx, "rotation_fail", start, err)
	r.finished(ctx, job, err)
	return job, err
}

// Invoke records metrics for trigger invocations.
func (r *rotationUseCaseWithMetrics) Invoke(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, err := r.next.Invoke(ctx, req)
	r.record(ctx, "rotation_invoke", start, err)
	if result != nil {
		r.finished(ctx, result.Job, err)
	}
	return result, err
}

// Status delegates without recording metrics.
func (r *rotationUseCaseWithMetrics) Status(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, []*rotationDomain.RowFailure, error) {
	return r.next.Status(ctx, jobID)
}

// InFlight delegates without recording metrics.
func (r *rotationUseCaseWithMetrics) InFlight(ctx context.Context) (*rotationDomain.RotationJob, error) {
	return r.next.InFlight(ctx)
}
