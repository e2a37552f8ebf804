package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
)

// ChunkQueue is an in-process Scheduler. A job id is held at most once, so repeated
// enqueues of the same job while it waits collapse into one unit of work.
type ChunkQueue struct {
	ch      chan uuid.UUID
	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	logger  *slog.Logger
}

// NewChunkQueue creates a queue holding up to size distinct jobs.
func NewChunkQueue(size int, logger *slog.Logger) *ChunkQueue {
	if size < 1 {
		size = 1
	}
	return &ChunkQueue{
		ch:      make(chan uuid.UUID, size),
		pending: make(map[uuid.UUID]struct{}),
		logger:  logger,
	}
}

// Enqueue implements Scheduler. It never blocks: when the queue is full the chunk is left
// for the runner's next poll, which resumes from the persisted cursor.
func (q *ChunkQueue) Enqueue(jobID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[jobID]; ok {
		return
	}

	select {
	case q.ch <- jobID:
		q.pending[jobID] = struct{}{}
	default:
		q.logger.Warn("rotation queue full, chunk deferred to next poll", slog.String("job_id", jobID.String()))
	}
}

// Len returns the number of queued jobs.
func (q *ChunkQueue) Len() int {
	return len(q.ch)
}

func (q *ChunkQueue) next() <-chan uuid.UUID {
	return q.ch
}

func (q *ChunkQueue) done(jobID uuid.UUID) {
	q.mu.Lock()
	delete(q.pending, jobID)
	q.mu.Unlock()
}

// Runner is the background worker that processes queued chunks. A poll ticker picks up
// in-flight jobs from the database, so work queued by another process or lost in a
// restart is resumed.
type Runner struct {
	useCase  RotationUseCase
	queue    *ChunkQueue
	interval time.Duration
	logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(useCase RotationUseCase, queue *ChunkQueue, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		useCase:  useCase,
		queue:    queue,
		interval: interval,
		logger:   logger,
	}
}

// Start processes chunks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info("starting key rotation runner", slog.Duration("poll_interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping key rotation runner")
			return ctx.Err()
		case jobID := <-r.queue.next():
			r.queue.done(jobID)
			r.process(ctx, jobID)
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Runner) process(ctx context.Context, jobID uuid.UUID) {
	job, err := r.useCase.ProcessChunk(ctx, jobID)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("failed to process rotation chunk",
				slog.String("job_id", jobID.String()),
				slog.Any("error", err),
			)
		}
		return
	}

	r.logger.Debug("rotation chunk processed",
		slog.String("job_id", job.ID.String()),
		slog.String("status", string(job.Status)),
		slog.Int64("processed_secrets", job.ProcessedSecrets),
		slog.Int64("total_secrets", job.TotalSecrets),
	)
}

func (r *Runner) poll(ctx context.Context) {
	job, err := r.useCase.InFlight(ctx)
	if err != nil {
		if !errors.Is(err, rotationDomain.ErrJobNotFound) && ctx.Err() == nil {
			r.logger.Error("failed to look up in-flight rotation", slog.Any("error", err))
		}
		return
	}
	r.queue.Enqueue(job.ID)
}

// RunToCompletion processes chunks of a job in the calling goroutine until it is
// completed or failed.
func RunToCompletion(
	ctx context.Context,
	useCase RotationUseCase,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		job, err := useCase.ProcessChunk(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
	}
}
