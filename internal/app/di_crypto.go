package app

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	cryptoRepository "github.com/allisson/envsafe/internal/crypto/repository"
	cryptoService "github.com/allisson/envsafe/internal/crypto/service"
	cryptoUseCase "github.com/allisson/envsafe/internal/crypto/usecase"
	"github.com/allisson/envsafe/internal/database"
)

// RootKey returns the root key, unsealed through KMS_KEY_URI when it is set.
func (c *Container) RootKey(ctx context.Context) (*cryptoDomain.RootKey, error) {
	var err error
	c.rootKeyInit.Do(func() {
		c.rootKey, err = c.initRootKey(ctx)
		if err != nil {
			c.initErrors["rootKey"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rootKey"]; exists {
		return nil, storedErr
	}
	return c.rootKey, nil
}

// KeyManager returns the key manager service.
func (c *Container) KeyManager() cryptoService.KeyManager {
	c.keyManagerInit.Do(func() {
		c.keyManager = cryptoService.NewKeyManager()
	})
	return c.keyManager
}

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// EncryptionKeyRepository returns the key registry repository for the configured driver.
func (c *Container) EncryptionKeyRepository() (cryptoUseCase.EncryptionKeyRepository, error) {
	var err error
	c.encryptionKeyRepositoryInit.Do(func() {
		c.encryptionKeyRepository, err = c.initEncryptionKeyRepository()
		if err != nil {
			c.initErrors["encryptionKeyRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["encryptionKeyRepository"]; exists {
		return nil, storedErr
	}
	return c.encryptionKeyRepository, nil
}

// KeyRegistry returns the key registry.
func (c *Container) KeyRegistry(ctx context.Context) (cryptoUseCase.KeyRegistry, error) {
	var err error
	c.keyRegistryInit.Do(func() {
		c.keyRegistry, err = c.initKeyRegistry(ctx)
		if err != nil {
			c.initErrors["keyRegistry"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRegistry"]; exists {
		return nil, storedErr
	}
	return c.keyRegistry, nil
}

// Engine returns the envelope encryption engine.
func (c *Container) Engine(ctx context.Context) (cryptoUseCase.Engine, error) {
	var err error
	c.engineInit.Do(func() {
		c.engine, err = c.initEngine(ctx)
		if err != nil {
			c.initErrors["engine"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["engine"]; exists {
		return nil, storedErr
	}
	return c.engine, nil
}

// initRootKey loads ROOT_KEY, opening a KMS keeper first when KMS_KEY_URI is set.
func (c *Container) initRootKey(ctx context.Context) (*cryptoDomain.RootKey, error) {
	if c.config.KMSKeyURI == "" {
		rootKey, err := cryptoDomain.ParseRootKey(c.config.RootKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load root key: %w", err)
		}
		return rootKey, nil
	}

	keeper, err := c.KMSService().OpenKeeper(ctx, c.config.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open kms keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			c.Logger().Warn("failed to close kms keeper", slog.Any("error", closeErr))
		}
	}()

	rootKey, err := cryptoDomain.LoadRootKey(ctx, c.config.RootKey, keeper)
	if err != nil {
		return nil, fmt.Errorf("failed to load root key: %w", err)
	}
	c.Logger().Info("root key unsealed with kms")
	return rootKey, nil
}

// initEncryptionKeyRepository selects the repository based on the database driver.
func (c *Container) initEncryptionKeyRepository() (cryptoUseCase.EncryptionKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for encryption key repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return cryptoRepository.NewMySQLEncryptionKeyRepository(db), nil
	case database.DriverPostgres:
		return cryptoRepository.NewPostgreSQLEncryptionKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("%w: %s", database.ErrUnsupportedDriver, c.config.DBDriver)
	}
}

// initKeyRegistry creates the key registry with all its dependencies.
func (c *Container) initKeyRegistry(ctx context.Context) (cryptoUseCase.KeyRegistry, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for key registry: %w", err)
	}

	repo, err := c.EncryptionKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption key repository for key registry: %w", err)
	}

	rootKey, err := c.RootKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get root key for key registry: %w", err)
	}

	cacheClient, err := c.CacheClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache for key registry: %w", err)
	}

	return cryptoUseCase.NewKeyRegistry(txManager, repo, c.KeyManager(), rootKey, cacheClient, c.Logger()), nil
}

// initEngine creates the engine over the key registry.
func (c *Container) initEngine(ctx context.Context) (cryptoUseCase.Engine, error) {
	registry, err := c.KeyRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get key registry for engine: %w", err)
	}

	rootKey, err := c.RootKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get root key for engine: %w", err)
	}

	return cryptoUseCase.NewEngine(registry, c.KeyManager(), rootKey), nil
}
