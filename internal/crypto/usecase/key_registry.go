package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/allisson/envsafe/internal/cache"
	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	cryptoService "github.com/allisson/envsafe/internal/crypto/service"
	"github.com/allisson/envsafe/internal/database"
)

type keyRegistry struct {
	txManager  database.TxManager
	repo       EncryptionKeyRepository
	keyManager cryptoService.KeyManager
	rootKey    *cryptoDomain.RootKey
	cache      cache.Client
	logger     *slog.Logger
	group      singleflight.Group
}

// ActiveKey implements KeyRegistry.
func (r *keyRegistry) ActiveKey(ctx context.Context) (uuid.UUID, []byte, error) {
	// The fill is shared by every waiter, so one caller's cancellation must not fail it.
	v, err, _ := r.group.Do(cache.ActiveKeyKey, func() (any, error) {
		return r.loadActive(context.WithoutCancel(ctx))
	})
	if err != nil {
		return uuid.Nil, nil, err
	}

	keyID, key, err := parseActiveEntry(v.(string))
	if err != nil {
		return uuid.Nil, nil, err
	}
	return keyID, key, nil
}

// DataKey implements KeyRegistry.
func (r *keyRegistry) DataKey(ctx context.Context, keyID uuid.UUID) ([]byte, error) {
	cacheKey := cache.DataKeyKey(keyID)

	v, err, _ := r.group.Do(cacheKey, func() (any, error) {
		return r.loadDataKey(context.WithoutCancel(ctx), keyID)
	})
	if err != nil {
		return nil, err
	}

	return hex.DecodeString(v.(string))
}

// Keyring implements KeyRegistry.
func (r *keyRegistry) Keyring(
	ctx context.Context,
	keyIDs []uuid.UUID,
) (cryptoDomain.Keyring, map[uuid.UUID]error) {
	ring := cryptoDomain.Keyring{}
	failures := map[uuid.UUID]error{}

	for _, keyID := range keyIDs {
		if _, ok := ring[keyID]; ok {
			continue
		}
		if _, ok := failures[keyID]; ok {
			continue
		}

		key, err := r.DataKey(ctx, keyID)
		if err != nil {
			failures[keyID] = err
			continue
		}
		ring[keyID] = key
	}

	return ring, failures
}

// CreateKey implements KeyRegistry.
func (r *keyRegistry) CreateKey(
	ctx context.Context,
	status cryptoDomain.KeyStatus,
) (*cryptoDomain.EncryptionKey, error) {
	key, material, err := r.keyManager.GenerateKey(r.rootKey)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(material)

	key.Status = status
	if err := r.repo.Create(ctx, key); err != nil {
		return nil, err
	}

	return key, nil
}

// Bootstrap implements KeyRegistry.
func (r *keyRegistry) Bootstrap(ctx context.Context) (*cryptoDomain.EncryptionKey, bool, error) {
	var (
		active  *cryptoDomain.EncryptionKey
		created bool
	)

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, err := r.repo.GetActive(ctx)
		if err == nil {
			active = existing
			return nil
		}
		if !errors.Is(err, cryptoDomain.ErrNoActiveKey) {
			return err
		}

		active, err = r.CreateKey(ctx, cryptoDomain.KeyStatusActive)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, cryptoDomain.ErrKeyConflict) {
		// Another instance bootstrapped concurrently.
		active, err = r.repo.GetActive(ctx)
		return active, false, err
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		r.logger.Info("bootstrapped active encryption key", slog.String("key_id", active.ID.String()))
		r.InvalidateActiveKey(ctx)
	}
	return active, created, nil
}

// InvalidateActiveKey implements KeyRegistry.
func (r *keyRegistry) InvalidateActiveKey(ctx context.Context) {
	if err := r.cache.Delete(ctx, cache.ActiveKeyKey); err != nil {
		r.logger.Warn("failed to invalidate cached active key", slog.Any("error", err))
	}
}

// MigratingKeyID implements KeyRegistry.
func (r *keyRegistry) MigratingKeyID(ctx context.Context) (uuid.UUID, error) {
	keys, err := r.repo.ListByStatus(ctx, cryptoDomain.KeyStatusMigrating)
	if err != nil {
		return uuid.Nil, err
	}
	if len(keys) == 0 {
		return uuid.Nil, nil
	}
	return keys[0].ID, nil
}

func (r *keyRegistry) loadActive(ctx context.Context) (string, error) {
	cached, found, err := r.cache.Get(ctx, cache.ActiveKeyKey)
	switch {
	case err != nil:
		r.logger.Warn("cache read failed, falling back to database",
			slog.String("cache_key", cache.ActiveKeyKey), slog.Any("error", err))
	case found:
		if _, _, parseErr := parseActiveEntry(cached); parseErr == nil {
			return cached, nil
		}
		r.logger.Warn("discarding malformed cached active key")
	}

	active, err := r.repo.GetActive(ctx)
	if err != nil {
		return "", err
	}

	material, err := r.keyManager.UnwrapKey(active, r.rootKey)
	if err != nil {
		return "", err
	}
	encoded := hex.EncodeToString(material)
	cryptoDomain.Zero(material)

	entry := fmt.Sprintf("%s:%s", active.ID, encoded)
	r.store(ctx, cache.ActiveKeyKey, entry, cache.ActiveKeyTTL)
	r.store(ctx, cache.DataKeyKey(active.ID), encoded, cache.DataKeyTTL)

	return entry, nil
}

func (r *keyRegistry) loadDataKey(ctx context.Context, keyID uuid.UUID) (string, error) {
	cacheKey := cache.DataKeyKey(keyID)

	cached, found, err := r.cache.Get(ctx, cacheKey)
	switch {
	case err != nil:
		r.logger.Warn("cache read failed, falling back to database",
			slog.String("cache_key", cacheKey), slog.Any("error", err))
	case found:
		if isKeyHex(cached) {
			return cached, nil
		}
		r.logger.Warn("discarding malformed cached data key", slog.String("key_id", keyID.String()))
	}

	key, err := r.repo.Get(ctx, keyID)
	if err != nil {
		if errors.Is(err, cryptoDomain.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: %s", cryptoDomain.ErrUnknownKey, keyID)
		}
		return "", err
	}

	material, err := r.keyManager.UnwrapKey(key, r.rootKey)
	if err != nil {
		return "", err
	}
	encoded := hex.EncodeToString(material)
	cryptoDomain.Zero(material)

	r.store(ctx, cacheKey, encoded, cache.DataKeyTTL)
	return encoded, nil
}

func (r *keyRegistry) store(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.cache.Set(ctx, key, value, ttl); err != nil {
		r.logger.Warn("cache write failed", slog.String("cache_key", key), slog.Any("error", err))
	}
}

func parseActiveEntry(entry string) (uuid.UUID, []byte, error) {
	idPart, keyPart, ok := strings.Cut(entry, ":")
	if !ok {
		return uuid.Nil, nil, errors.New("malformed active key entry")
	}

	keyID, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("malformed active key id: %w", err)
	}

	if !isKeyHex(keyPart) {
		return uuid.Nil, nil, errors.New("malformed active key material")
	}
	key, _ := hex.DecodeString(keyPart)

	return keyID, key, nil
}

func isKeyHex(s string) bool {
	if len(s) != hex.EncodedLen(32) {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// NewKeyRegistry creates a KeyRegistry. Pass cache.Disabled{} when no cache is configured.
func NewKeyRegistry(
	txManager database.TxManager,
	repo EncryptionKeyRepository,
	keyManager cryptoService.KeyManager,
	rootKey *cryptoDomain.RootKey,
	cacheClient cache.Client,
	logger *slog.Logger,
) KeyRegistry {
	return &keyRegistry{
		txManager:  txManager,
		repo:       repo,
		keyManager: keyManager,
		rootKey:    rootKey,
		cache:      cacheClient,
		logger:     logger,
	}
}
