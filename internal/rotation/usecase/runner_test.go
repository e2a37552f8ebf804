package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
	"github.com/allisson/envsafe/internal/rotation/usecase"
	usecaseMocks "github.com/allisson/envsafe/internal/rotation/usecase/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runRunner(t *testing.T, runner *usecase.Runner) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- runner.Start(ctx)
	}()
	return cancel, errCh
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for runner")
	}
}

func TestChunkQueue_Enqueue(t *testing.T) {
	queue := usecase.NewChunkQueue(2, discardLogger())
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	queue.Enqueue(a)
	queue.Enqueue(a)
	assert.Equal(t, 1, queue.Len())

	queue.Enqueue(b)
	queue.Enqueue(c)
	assert.Equal(t, 2, queue.Len())
}

func TestRunner_ProcessesQueuedChunks(t *testing.T) {
	defer goleak.VerifyNone(t)

	uc := usecaseMocks.NewMockRotationUseCase(t)
	queue := usecase.NewChunkQueue(8, discardLogger())
	jobID := uuid.New()
	processed := make(chan struct{})

	uc.On("InFlight", mock.Anything).Return(nil, rotationDomain.ErrJobNotFound).Maybe()
	uc.On("ProcessChunk", mock.Anything, jobID).
		Return(&rotationDomain.RotationJob{ID: jobID, Status: rotationDomain.JobStatusCompleted}, nil).
		Run(func(mock.Arguments) { close(processed) }).
		Once()

	queue.Enqueue(jobID)
	cancel, errCh := runRunner(t, usecase.NewRunner(uc, queue, time.Hour, discardLogger()))

	waitFor(t, processed)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Zero(t, queue.Len())
}

func TestRunner_PollResumesInFlightJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	uc := usecaseMocks.NewMockRotationUseCase(t)
	queue := usecase.NewChunkQueue(8, discardLogger())
	job := &rotationDomain.RotationJob{ID: uuid.New(), Status: rotationDomain.JobStatusProcessing}
	processed := make(chan struct{})

	uc.On("InFlight", mock.Anything).Return(job, nil).Once()
	uc.On("InFlight", mock.Anything).Return(nil, rotationDomain.ErrJobNotFound).Maybe()
	uc.On("ProcessChunk", mock.Anything, job.ID).
		Return(job, nil).
		Run(func(mock.Arguments) { close(processed) }).
		Once()

	cancel, errCh := runRunner(t, usecase.NewRunner(uc, queue, time.Hour, discardLogger()))

	waitFor(t, processed)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunner_ChunkErrorKeepsRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	uc := usecaseMocks.NewMockRotationUseCase(t)
	queue := usecase.NewChunkQueue(8, discardLogger())
	failing, healthy := uuid.New(), uuid.New()
	processed := make(chan struct{})

	uc.On("InFlight", mock.Anything).Return(nil, rotationDomain.ErrJobNotFound).Maybe()
	uc.On("ProcessChunk", mock.Anything, failing).Return(nil, errors.New("database is down")).Once()
	uc.On("ProcessChunk", mock.Anything, healthy).
		Return(&rotationDomain.RotationJob{ID: healthy, Status: rotationDomain.JobStatusCompleted}, nil).
		Run(func(mock.Arguments) { close(processed) }).
		Once()

	queue.Enqueue(failing)
	queue.Enqueue(healthy)
	cancel, errCh := runRunner(t, usecase.NewRunner(uc, queue, time.Hour, discardLogger()))

	waitFor(t, processed)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunToCompletion(t *testing.T) {
	ctx := context.Background()
	jobID := uuid.New()

	t.Run("loops until terminal", func(t *testing.T) {
		uc := usecaseMocks.NewMockRotationUseCase(t)
		uc.On("ProcessChunk", ctx, jobID).
			Return(&rotationDomain.RotationJob{ID: jobID, Status: rotationDomain.JobStatusProcessing}, nil).
			Twice()
		uc.On("ProcessChunk", ctx, jobID).
			Return(&rotationDomain.RotationJob{ID: jobID, Status: rotationDomain.JobStatusCompleted}, nil).
			Once()

		job, err := usecase.RunToCompletion(ctx, uc, jobID)
		require.NoError(t, err)
		assert.Equal(t, rotationDomain.JobStatusCompleted, job.Status)
	})

	t.Run("stops on error", func(t *testing.T) {
		uc := usecaseMocks.NewMockRotationUseCase(t)
		uc.On("ProcessChunk", ctx, jobID).Return(nil, rotationDomain.ErrJobNotFound).Once()

		_, err := usecase.RunToCompletion(ctx, uc, jobID)
		assert.ErrorIs(t, err, rotationDomain.ErrJobNotFound)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		uc := usecaseMocks.NewMockRotationUseCase(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := usecase.RunToCompletion(cancelled, uc, jobID)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
