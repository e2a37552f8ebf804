package app

import (
	"fmt"

	accessHTTP "github.com/allisson/envsafe/internal/access/http"
	accessRepository "github.com/allisson/envsafe/internal/access/repository"
	accessUseCase "github.com/allisson/envsafe/internal/access/usecase"
	"github.com/allisson/envsafe/internal/database"
)

// AccessRepository returns the project and sharing repository for the configured driver.
func (c *Container) AccessRepository() (accessUseCase.AccessRepository, error) {
	var err error
	c.accessRepositoryInit.Do(func() {
		c.accessRepository, err = c.initAccessRepository()
		if err != nil {
			c.initErrors["accessRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accessRepository"]; exists {
		return nil, storedErr
	}
	return c.accessRepository, nil
}

// AccessUseCase returns the access use case. It is also the Resolver used by secrets.
func (c *Container) AccessUseCase() (accessUseCase.AccessUseCase, error) {
	var err error
	c.accessUseCaseInit.Do(func() {
		c.accessUseCase, err = c.initAccessUseCase()
		if err != nil {
			c.initErrors["accessUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accessUseCase"]; exists {
		return nil, storedErr
	}
	return c.accessUseCase, nil
}

// AccessHandler returns the access HTTP handler.
func (c *Container) AccessHandler() (*accessHTTP.AccessHandler, error) {
	var err error
	c.accessHandlerInit.Do(func() {
		var useCase accessUseCase.AccessUseCase
		useCase, err = c.AccessUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get access use case for access handler: %w", err)
			c.initErrors["accessHandler"] = err
			return
		}
		c.accessHandler = accessHTTP.NewAccessHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["accessHandler"]; exists {
		return nil, storedErr
	}
	return c.accessHandler, nil
}

func (c *Container) initAccessRepository() (accessUseCase.AccessRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for access repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return accessRepository.NewMySQLAccessRepository(db), nil
	case database.DriverPostgres:
		return accessRepository.NewPostgreSQLAccessRepository(db), nil
	default:
		return nil, fmt.Errorf("%w: %s", database.ErrUnsupportedDriver, c.config.DBDriver)
	}
}

func (c *Container) initAccessUseCase() (accessUseCase.AccessUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for access use case: %w", err)
	}

	repo, err := c.AccessRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get access repository for access use case: %w", err)
	}

	cacheClient, err := c.CacheClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache for access use case: %w", err)
	}

	useCase := accessUseCase.NewAccessUseCase(txManager, repo, cacheClient, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for access use case: %w", err)
		}
		return accessUseCase.NewAccessUseCaseWithMetrics(useCase, businessMetrics), nil
	}

	return useCase, nil
}
