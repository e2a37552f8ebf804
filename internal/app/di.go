// Package app wires envsafe together. Every component is built lazily on first access and
// the first construction error is remembered for later callers.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	accessHTTP "github.com/allisson/envsafe/internal/access/http"
	accessUseCase "github.com/allisson/envsafe/internal/access/usecase"
	authService "github.com/allisson/envsafe/internal/auth/service"
	"github.com/allisson/envsafe/internal/cache"
	"github.com/allisson/envsafe/internal/config"
	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	cryptoService "github.com/allisson/envsafe/internal/crypto/service"
	cryptoUseCase "github.com/allisson/envsafe/internal/crypto/usecase"
	"github.com/allisson/envsafe/internal/database"
	"github.com/allisson/envsafe/internal/http"
	"github.com/allisson/envsafe/internal/metrics"
	rotationHTTP "github.com/allisson/envsafe/internal/rotation/http"
	rotationUseCase "github.com/allisson/envsafe/internal/rotation/usecase"
	secretsHTTP "github.com/allisson/envsafe/internal/secrets/http"
	secretsUseCase "github.com/allisson/envsafe/internal/secrets/usecase"
)

// Container owns every long-lived dependency of the process.
type Container struct {
	config *config.Config

	logger          *slog.Logger
	db              *sql.DB
	cacheClient     cache.Client
	redisClient     *cache.RedisClient
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	txManager database.TxManager

	// Crypto
	rootKey                 *cryptoDomain.RootKey
	keyManager              cryptoService.KeyManager
	kmsService              cryptoService.KMSService
	encryptionKeyRepository cryptoUseCase.EncryptionKeyRepository
	keyRegistry             cryptoUseCase.KeyRegistry
	engine                  cryptoUseCase.Engine

	// Access
	accessRepository accessUseCase.AccessRepository
	accessUseCase    accessUseCase.AccessUseCase
	accessHandler    *accessHTTP.AccessHandler

	// Secrets
	secretRepository secretStore
	readRepairer     *secretsUseCase.ReadRepairer
	secretUseCase    secretsUseCase.SecretUseCase
	secretHandler    *secretsHTTP.SecretHandler

	// Rotation
	rotationJobRepository rotationUseCase.RotationJobRepository
	chunkQueue            *rotationUseCase.ChunkQueue
	rotationUseCase       rotationUseCase.RotationUseCase
	rotationRunner        *rotationUseCase.Runner
	rotationHandler       *rotationHTTP.RotationHandler

	// Auth
	adminTokenService authService.AdminTokenService

	httpServer    *http.Server
	metricsServer *http.MetricsServer

	mu                          sync.Mutex
	loggerInit                  sync.Once
	dbInit                      sync.Once
	txManagerInit               sync.Once
	cacheClientInit             sync.Once
	metricsProviderInit         sync.Once
	businessMetricsInit         sync.Once
	rootKeyInit                 sync.Once
	keyManagerInit              sync.Once
	kmsServiceInit              sync.Once
	encryptionKeyRepositoryInit sync.Once
	keyRegistryInit             sync.Once
	engineInit                  sync.Once
	accessRepositoryInit        sync.Once
	accessUseCaseInit           sync.Once
	accessHandlerInit           sync.Once
	secretRepositoryInit        sync.Once
	readRepairerInit            sync.Once
	secretUseCaseInit           sync.Once
	secretHandlerInit           sync.Once
	rotationJobRepositoryInit   sync.Once
	chunkQueueInit              sync.Once
	rotationUseCaseInit         sync.Once
	rotationRunnerInit          sync.Once
	rotationHandlerInit         sync.Once
	adminTokenServiceInit       sync.Once
	httpServerInit              sync.Once
	metricsServerInit           sync.Once
	initErrors                  map[string]error
}

// NewContainer returns an empty container. Nothing is connected until first use.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// CacheClient returns the shared cache. Without REDIS_HOST it is cache.Disabled and
// every lookup falls through to the database.
func (c *Container) CacheClient() (cache.Client, error) {
	var err error
	c.cacheClientInit.Do(func() {
		c.cacheClient, err = c.initCacheClient()
		if err != nil {
			c.initErrors["cacheClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cacheClient"]; exists {
		return nil, storedErr
	}
	return c.cacheClient, nil
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when metrics
// are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the HTTP server with its router set up.
func (c *Container) HTTPServer(ctx context.Context) (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer(ctx)
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown stops servers first, then drains read repairs, then closes the cache, metrics,
// database and root key in that order. Components never built are skipped.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Pending repairs write to the database, so they drain before it closes.
	if c.readRepairer != nil {
		c.readRepairer.Close()
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("cache close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if c.rootKey != nil {
		c.rootKey.Close()
	}

	return errors.Join(shutdownErrors...)
}

// initLogger builds the JSON logger. LOG_LEVEL accepts any slog level name
// (debug, info, warn, error) and falls back to info.
func (c *Container) initLogger() *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(c.config.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initCacheClient connects to Redis when configured. The connection is lazy, so an
// unreachable server at startup only degrades to database lookups.
func (c *Container) initCacheClient() (cache.Client, error) {
	if !c.config.CacheEnabled() {
		c.Logger().Info("cache disabled: REDIS_HOST not set")
		return cache.Disabled{}, nil
	}

	client, err := cache.NewRedisClient(cache.Options{
		Host:     c.config.RedisHost,
		Port:     c.config.RedisPort,
		Username: c.config.RedisUsername,
		Password: c.config.RedisPassword,
		DB:       c.config.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	c.redisClient = client
	return client, nil
}

// initMetricsProvider creates the metrics provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the HTTP server and registers every handler.
func (c *Container) initHTTPServer(ctx context.Context) (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	accessHandler, err := c.AccessHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get access handler for http server: %w", err)
	}

	secretHandler, err := c.SecretHandler(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get secret handler for http server: %w", err)
	}

	rotationHandler, err := c.RotationHandler(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation handler for http server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	if provider != nil {
		server.SetupRouter(ctx, c.config, accessHandler, secretHandler, rotationHandler,
			c.AdminTokenService(), provider.MeterProvider())
	} else {
		server.SetupRouter(ctx, c.config, accessHandler, secretHandler, rotationHandler,
			c.AdminTokenService(), nil)
	}

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
