package app

import (
	"context"
	"fmt"

	"github.com/allisson/envsafe/internal/database"
	rotationUseCase "github.com/allisson/envsafe/internal/rotation/usecase"
	secretsHTTP "github.com/allisson/envsafe/internal/secrets/http"
	secretsRepository "github.com/allisson/envsafe/internal/secrets/repository"
	secretsUseCase "github.com/allisson/envsafe/internal/secrets/usecase"
)

// secretStore is the secret repository seen by both the secrets and rotation use cases.
type secretStore interface {
	secretsUseCase.SecretRepository
	rotationUseCase.SecretRepository
}

// SecretRepository returns the secret repository for the configured driver.
func (c *Container) SecretRepository() (secretsUseCase.SecretRepository, error) {
	return c.sharedSecretRepository()
}

// ReadRepairer returns the background re-encrypter for stale values, or nil when
// READ_REPAIR_ENABLED is false.
func (c *Container) ReadRepairer(ctx context.Context) (*secretsUseCase.ReadRepairer, error) {
	var err error
	c.readRepairerInit.Do(func() {
		c.readRepairer, err = c.initReadRepairer(ctx)
		if err != nil {
			c.initErrors["readRepairer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["readRepairer"]; exists {
		return nil, storedErr
	}
	return c.readRepairer, nil
}

// SecretUseCase returns the secret use case.
func (c *Container) SecretUseCase(ctx context.Context) (secretsUseCase.SecretUseCase, error) {
	var err error
	c.secretUseCaseInit.Do(func() {
		c.secretUseCase, err = c.initSecretUseCase(ctx)
		if err != nil {
			c.initErrors["secretUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretUseCase"]; exists {
		return nil, storedErr
	}
	return c.secretUseCase, nil
}

// SecretHandler returns the secret HTTP handler.
func (c *Container) SecretHandler(ctx context.Context) (*secretsHTTP.SecretHandler, error) {
	var err error
	c.secretHandlerInit.Do(func() {
		var useCase secretsUseCase.SecretUseCase
		useCase, err = c.SecretUseCase(ctx)
		if err != nil {
			err = fmt.Errorf("failed to get secret use case for secret handler: %w", err)
			c.initErrors["secretHandler"] = err
			return
		}
		c.secretHandler = secretsHTTP.NewSecretHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretHandler"]; exists {
		return nil, storedErr
	}
	return c.secretHandler, nil
}

func (c *Container) sharedSecretRepository() (secretStore, error) {
	var err error
	c.secretRepositoryInit.Do(func() {
		c.secretRepository, err = c.initSecretRepository()
		if err != nil {
			c.initErrors["secretRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretRepository"]; exists {
		return nil, storedErr
	}
	return c.secretRepository, nil
}

func (c *Container) initSecretRepository() (secretStore, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for secret repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return secretsRepository.NewMySQLSecretRepository(db), nil
	case database.DriverPostgres:
		return secretsRepository.NewPostgreSQLSecretRepository(db), nil
	default:
		return nil, fmt.Errorf("%w: %s", database.ErrUnsupportedDriver, c.config.DBDriver)
	}
}

func (c *Container) initReadRepairer(ctx context.Context) (*secretsUseCase.ReadRepairer, error) {
	if !c.config.ReadRepairEnabled {
		return nil, nil
	}

	engine, err := c.Engine(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get engine for read repairer: %w", err)
	}

	repo, err := c.sharedSecretRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret repository for read repairer: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for read repairer: %w", err)
	}

	return secretsUseCase.NewReadRepairer(
		secretsUseCase.ReadRepairConfig{},
		engine,
		repo,
		businessMetrics,
		c.Logger(),
	), nil
}

func (c *Container) initSecretUseCase(ctx context.Context) (secretsUseCase.SecretUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for secret use case: %w", err)
	}

	repo, err := c.sharedSecretRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret repository for secret use case: %w", err)
	}

	resolver, err := c.AccessUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get access resolver for secret use case: %w", err)
	}

	engine, err := c.Engine(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get engine for secret use case: %w", err)
	}

	repairer, err := c.ReadRepairer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get read repairer for secret use case: %w", err)
	}

	var scheduler secretsUseCase.Repairer = secretsUseCase.NopRepairer{}
	if repairer != nil {
		scheduler = repairer
	}

	useCase := secretsUseCase.NewSecretUseCase(txManager, repo, resolver, engine, scheduler, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for secret use case: %w", err)
		}
		return secretsUseCase.NewSecretUseCaseWithMetrics(useCase, businessMetrics), nil
	}

	return useCase, nil
}
