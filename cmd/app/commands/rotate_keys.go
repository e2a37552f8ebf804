package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
	"github.com/allisson/envsafe/internal/rotation/http/dto"
	rotationUseCase "github.com/allisson/envsafe/internal/rotation/usecase"
)

// RunRotateKeys invokes the rotation trigger.
//
// With no job id a new rotation starts; with one, a single chunk of that job is processed.
// cleanupOnly prunes retired keys and old jobs and cannot be combined with a job id. wait
// keeps processing chunks in this process until the job completes or fails; without it
// the server's rotation runner picks the job up.
func RunRotateKeys(
	ctx context.Context,
	useCase rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	jobIDStr string,
	cleanupOnly, wait bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if cleanupOnly && jobIDStr != "" {
		return fmt.Errorf("--job-id cannot be combined with --cleanup-only")
	}

	req := rotationUseCase.Request{CleanupOnly: cleanupOnly}
	if jobIDStr != "" {
		jobID, err := uuid.Parse(jobIDStr)
		if err != nil {
			return fmt.Errorf("invalid job id: %w", err)
		}
		req.JobID = &jobID
	}

	result, err := useCase.Invoke(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to invoke key rotation: %w", err)
	}

	if wait && result.Job != nil && !result.Job.Status.IsTerminal() {
		logger.Info("processing rotation until completion", slog.String("job_id", result.Job.ID.String()))
		job, err := rotationUseCase.RunToCompletion(ctx, useCase, result.Job.ID)
		if err != nil {
			return fmt.Errorf("failed to complete key rotation: %w", err)
		}
		result.Job = job
	}

	if format == "json" {
		return writeJSON(writer, dto.MapResultToResponse(result))
	}

	if result.Cleanup != nil {
		_, _ = fmt.Fprintf(writer, "Cleanup: deleted %d keys, retained %d, demoted %d, deleted %d jobs\n",
			result.Cleanup.DeletedKeys,
			result.Cleanup.RetainedKeys,
			result.Cleanup.DemotedKeys,
			result.Cleanup.DeletedJobs,
		)
		return nil
	}

	writeJobText(writer, result.Job)
	if !result.Job.Status.IsTerminal() {
		_, _ = fmt.Fprintln(writer, "Chunks are processed by the server; use --wait to process them here.")
	}
	return nil
}

// RunRotationStatus prints a job and every row it failed to re-encrypt.
func RunRotationStatus(
	ctx context.Context,
	useCase rotationUseCase.RotationUseCase,
	writer io.Writer,
	jobIDStr string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}

	job, failures, err := useCase.Status(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get rotation status: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, dto.MapJobStatusToResponse(job, failures, 0, len(failures)))
	}

	writeJobText(writer, job)
	for _, failure := range failures {
		_, _ = fmt.Fprintf(writer, "  failed secret %s: %s\n", failure.SecretID, failure.Error)
	}
	return nil
}

func writeJobText(writer io.Writer, job *rotationDomain.RotationJob) {
	_, _ = fmt.Fprintf(writer, "Job:        %s\n", job.ID)
	_, _ = fmt.Fprintf(writer, "New key:    %s\n", job.NewKeyID)
	_, _ = fmt.Fprintf(writer, "Status:     %s\n", job.Status)
	_, _ = fmt.Fprintf(writer, "Progress:   %d/%d (%d failed)\n",
		job.ProcessedSecrets, job.TotalSecrets, job.FailedSecrets)
	if job.ErrorMessage != nil {
		_, _ = fmt.Fprintf(writer, "Error:      %s\n", *job.ErrorMessage)
	}
}
