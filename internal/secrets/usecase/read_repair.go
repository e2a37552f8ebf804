package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/envsafe/internal/crypto/usecase"
	"github.com/allisson/envsafe/internal/metrics"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// Read-repair outcomes recorded as the status of the "read_repair" operation.
const (
	RepairRepaired = "repaired"
	RepairSkipped  = "skipped"
	RepairConflict = "conflict"
	RepairDropped  = "dropped"
	RepairError    = "error"
)

// ValueUpdater is the write side of SecretRepository used by the repairer.
type ValueUpdater interface {
	UpdateValues(ctx context.Context, updates []secretsDomain.ValueUpdate) (int64, error)
}

// ReadRepairConfig bounds background repair work.
type ReadRepairConfig struct {
	// Timeout caps a single repair batch.
	Timeout time.Duration
	// MaxInFlight is how many batches may run at once. Batches beyond it are dropped.
	MaxInFlight int64
}

// ReadRepairer re-encrypts stale secrets under the active key in the background.
//
// A value is stale when it is legacy or sealed under any key other than the active key
// and the target of the rotation in flight. Writes are compare-and-set on the value that was read, so a user update racing with a
// repair always wins.
type ReadRepairer struct {
	engine  cryptoUseCase.Engine
	repo    ValueUpdater
	metrics metrics.BusinessMetrics
	logger  *slog.Logger
	timeout time.Duration
	slots   *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Schedule implements Repairer. It copies the plaintexts, so callers may reuse or zero
// them as soon as it returns.
func (r *ReadRepairer) Schedule(ctx context.Context, items []RepairItem) {
	if len(items) == 0 {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	if !r.slots.TryAcquire(1) {
		r.metrics.RecordReadRepair(ctx, RepairDropped)
		r.logger.Debug("read repair saturated, batch dropped", slog.Int("items", len(items)))
		return
	}

	batch := make([]RepairItem, len(items))
	for i, item := range items {
		plaintext := make([]byte, len(item.Plaintext))
		copy(plaintext, item.Plaintext)
		batch[i] = RepairItem{Secret: item.Secret, Plaintext: plaintext}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.slots.Release(1)

		repairCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		r.repair(repairCtx, batch)
	}()
}

// Close stops accepting batches and waits for the running ones.
func (r *ReadRepairer) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *ReadRepairer) repair(ctx context.Context, items []RepairItem) {
	defer func() {
		for _, item := range items {
			clear(item.Plaintext)
		}
	}()

	activeKeyID, err := r.engine.ActiveKeyID(ctx)
	if err != nil {
		r.metrics.RecordReadRepair(ctx, RepairError)
		r.logger.Warn("read repair could not resolve active key", slog.Any("error", err))
		return
	}

	migratingKeyID, err := r.migratingKeyID(ctx, activeKeyID, items)
	if err != nil {
		r.metrics.RecordReadRepair(ctx, RepairError)
		r.logger.Warn("read repair could not resolve migrating key", slog.Any("error", err))
		return
	}

	updates := make([]secretsDomain.ValueUpdate, 0, len(items))
	for _, item := range items {
		update, stale, err := r.reseal(ctx, activeKeyID, migratingKeyID, item)
		if err != nil {
			r.metrics.RecordReadRepair(ctx, RepairError)
			r.logger.Warn("read repair could not re-encrypt secret",
				slog.String("secret_id", item.Secret.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		if !stale {
			r.metrics.RecordReadRepair(ctx, RepairSkipped)
			continue
		}
		updates = append(updates, update)
	}

	if len(updates) == 0 {
		return
	}

	changed, err := r.repo.UpdateValues(ctx, updates)
	if err != nil {
		r.metrics.RecordReadRepair(ctx, RepairError)
		r.logger.Warn("read repair write failed",
			slog.Int("secrets", len(updates)),
			slog.Any("error", err),
		)
		return
	}

	for i := int64(0); i < changed; i++ {
		r.metrics.RecordReadRepair(ctx, RepairRepaired)
	}
	for i := changed; i < int64(len(updates)); i++ {
		r.metrics.RecordReadRepair(ctx, RepairConflict)
	}

	r.logger.Debug("read repair applied",
		slog.String("active_key_id", activeKeyID.String()),
		slog.Int("stale", len(updates)),
		slog.Int64("repaired", changed),
	)
}

// migratingKeyID reads the rotation target only when some item is sealed under a
// non-active key.
func (r *ReadRepairer) migratingKeyID(
	ctx context.Context,
	activeKeyID uuid.UUID,
	items []RepairItem,
) (uuid.UUID, error) {
	for _, item := range items {
		envelope, err := cryptoDomain.ParseEnvelope(item.Secret.Value)
		if err != nil || envelope.IsLegacy() || envelope.KeyID == activeKeyID {
			continue
		}
		return r.engine.MigratingKeyID(ctx)
	}
	return uuid.Nil, nil
}

// reseal returns the rewrite for a stale item, or stale=false when it is already current.
func (r *ReadRepairer) reseal(
	ctx context.Context,
	activeKeyID, migratingKeyID uuid.UUID,
	item RepairItem,
) (secretsDomain.ValueUpdate, bool, error) {
	current, err := cryptoDomain.ParseEnvelope(item.Secret.Value)
	if err != nil {
		return secretsDomain.ValueUpdate{}, false, err
	}
	if !current.IsStale(activeKeyID, migratingKeyID) {
		return secretsDomain.ValueUpdate{}, false, nil
	}

	envelope, err := r.engine.EncryptWithKey(ctx, activeKeyID, item.Plaintext)
	if err != nil {
		return secretsDomain.ValueUpdate{}, false, err
	}

	return secretsDomain.ValueUpdate{
		ID:            item.Secret.ID,
		PreviousValue: item.Secret.Value,
		Value:         envelope.String(),
		KeyID:         activeKeyID,
	}, true, nil
}

// NewReadRepairer creates a ReadRepairer. Zero config values fall back to a 10 second
// timeout and 32 concurrent batches.
func NewReadRepairer(
	config ReadRepairConfig,
	engine cryptoUseCase.Engine,
	repo ValueUpdater,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *ReadRepairer {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = 32
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &ReadRepairer{
		engine:  engine,
		repo:    repo,
		metrics: businessMetrics,
		logger:  logger,
		timeout: config.Timeout,
		slots:   semaphore.NewWeighted(config.MaxInFlight),
	}
}

// NopRepairer discards every batch. It is used when read repair is disabled.
type NopRepairer struct{}

// Schedule implements Repairer.
func (NopRepairer) Schedule(context.Context, []RepairItem) {}
