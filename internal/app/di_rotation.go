package app

import (
	"context"
	"fmt"

	"github.com/allisson/envsafe/internal/database"
	rotationHTTP "github.com/allisson/envsafe/internal/rotation/http"
	rotationRepository "github.com/allisson/envsafe/internal/rotation/repository"
	rotationUseCase "github.com/allisson/envsafe/internal/rotation/usecase"
)

// rotationQueueSize bounds distinct jobs waiting for the runner. Only one job is in flight
// at a time, so a small queue is enough.
const rotationQueueSize = 8

// RotationJobRepository returns the rotation job repository for the configured driver.
func (c *Container) RotationJobRepository() (rotationUseCase.RotationJobRepository, error) {
	var err error
	c.rotationJobRepositoryInit.Do(func() {
		c.rotationJobRepository, err = c.initRotationJobRepository()
		if err != nil {
			c.initErrors["rotationJobRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationJobRepository"]; exists {
		return nil, storedErr
	}
	return c.rotationJobRepository, nil
}

// ChunkQueue returns the in-process queue of rotation chunks.
func (c *Container) ChunkQueue() *rotationUseCase.ChunkQueue {
	c.chunkQueueInit.Do(func() {
		c.chunkQueue = rotationUseCase.NewChunkQueue(rotationQueueSize, c.Logger())
	})
	return c.chunkQueue
}

// RotationUseCase returns the key rotation use case.
func (c *Container) RotationUseCase(ctx context.Context) (rotationUseCase.RotationUseCase, error) {
	var err error
	c.rotationUseCaseInit.Do(func() {
		c.rotationUseCase, err = c.initRotationUseCase(ctx)
		if err != nil {
			c.initErrors["rotationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationUseCase"]; exists {
		return nil, storedErr
	}
	return c.rotationUseCase, nil
}

// RotationRunner returns the background worker draining the chunk queue.
func (c *Container) RotationRunner(ctx context.Context) (*rotationUseCase.Runner, error) {
	var err error
	c.rotationRunnerInit.Do(func() {
		var useCase rotationUseCase.RotationUseCase
		useCase, err = c.RotationUseCase(ctx)
		if err != nil {
			err = fmt.Errorf("failed to get rotation use case for rotation runner: %w", err)
			c.initErrors["rotationRunner"] = err
			return
		}
		c.rotationRunner = rotationUseCase.NewRunner(
			useCase,
			c.ChunkQueue(),
			c.config.RotationPollInterval,
			c.Logger(),
		)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationRunner"]; exists {
		return nil, storedErr
	}
	return c.rotationRunner, nil
}

// RotationHandler returns the admin rotation HTTP handler.
func (c *Container) RotationHandler(ctx context.Context) (*rotationHTTP.RotationHandler, error) {
	var err error
	c.rotationHandlerInit.Do(func() {
		var useCase rotationUseCase.RotationUseCase
		useCase, err = c.RotationUseCase(ctx)
		if err != nil {
			err = fmt.Errorf("failed to get rotation use case for rotation handler: %w", err)
			c.initErrors["rotationHandler"] = err
			return
		}
		c.rotationHandler = rotationHTTP.NewRotationHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationHandler"]; exists {
		return nil, storedErr
	}
	return c.rotationHandler, nil
}

func (c *Container) initRotationJobRepository() (rotationUseCase.RotationJobRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for rotation job repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return rotationRepository.NewMySQLRotationJobRepository(db), nil
	case database.DriverPostgres:
		return rotationRepository.NewPostgreSQLRotationJobRepository(db), nil
	default:
		return nil, fmt.Errorf("%w: %s", database.ErrUnsupportedDriver, c.config.DBDriver)
	}
}

func (c *Container) initRotationUseCase(ctx context.Context) (rotationUseCase.RotationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for rotation use case: %w", err)
	}

	jobRepo, err := c.RotationJobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation job repository for rotation use case: %w", err)
	}

	keyRepo, err := c.EncryptionKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption key repository for rotation use case: %w", err)
	}

	secretRepo, err := c.sharedSecretRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret repository for rotation use case: %w", err)
	}

	registry, err := c.KeyRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get key registry for rotation use case: %w", err)
	}

	engine, err := c.Engine(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get engine for rotation use case: %w", err)
	}

	useCase := rotationUseCase.NewRotationUseCase(
		rotationUseCase.Config{
			ChunkSize:   c.config.RotationChunkSize,
			HistorySize: c.config.RotationHistorySize,
		},
		txManager,
		jobRepo,
		keyRepo,
		secretRepo,
		registry,
		engine,
		c.KeyManager(),
		c.ChunkQueue(),
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for rotation use case: %w", err)
		}
		return rotationUseCase.NewRotationUseCaseWithMetrics(useCase, businessMetrics), nil
	}

	return useCase, nil
}
