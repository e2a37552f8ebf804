package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/envsafe/internal/crypto/domain"
	cryptoService "github.com/allisson/envsafe/internal/crypto/service"
	cryptoUseCase "github.com/allisson/envsafe/internal/crypto/usecase"
	"github.com/allisson/envsafe/internal/database"
	rotationDomain "github.com/allisson/envsafe/internal/rotation/domain"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// Config holds rotation use case configuration.
type Config struct {
	// ChunkSize is the number of secrets re-encrypted per chunk.
	ChunkSize int
	// HistorySize is how many retired keys and completed jobs are retained.
	HistorySize int
}

type rotationUseCase struct {
	config      Config
	txManager   database.TxManager
	jobRepo     RotationJobRepository
	keyRepo     cryptoUseCase.EncryptionKeyRepository
	secretRepo  SecretRepository
	keyRegistry cryptoUseCase.KeyRegistry
	engine      cryptoUseCase.Engine
	keyManager  cryptoService.KeyManager
	scheduler   Scheduler
	logger      *slog.Logger
}

// Start implements RotationUseCase.
func (r *rotationUseCase) Start(ctx context.Context) (*rotationDomain.RotationJob, error) {
	var job *rotationDomain.RotationJob

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		inFlight, err := r.jobRepo.GetInFlight(ctx)
		if err == nil {
			return fmt.Errorf("%w: job %s", rotationDomain.ErrRotationInProgress, inFlight.ID)
		}
		if !errors.Is(err, rotationDomain.ErrJobNotFound) {
			return err
		}

		if _, err := r.keyRepo.GetActive(ctx); err != nil {
			return err
		}

		// A migrating key without a job is left over from an aborted start.
		if _, err := r.resolveOrphanKeys(ctx, nil); err != nil {
			return err
		}

		key, err := r.keyRegistry.CreateKey(ctx, cryptoDomain.KeyStatusMigrating)
		if err != nil {
			if errors.Is(err, cryptoDomain.ErrKeyConflict) {
				return rotationDomain.ErrRotationInProgress
			}
			return err
		}

		total, err := r.secretRepo.Count(ctx)
		if err != nil {
			return err
		}

		job = rotationDomain.NewRotationJob(key.ID, total)
		return r.jobRepo.Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("key rotation started",
		slog.String("job_id", job.ID.String()),
		slog.String("new_key_id", job.NewKeyID.String()),
		slog.Int64("total_secrets", job.TotalSecrets),
	)

	r.scheduler.Enqueue(job.ID)
	return job, nil
}

// ProcessChunk implements RotationUseCase.
func (r *rotationUseCase) ProcessChunk(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, error) {
	var (
		job       *rotationDomain.RotationJob
		completed bool
	)

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		job, err = r.jobRepo.GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return nil
		}

		secrets, err := r.secretRepo.ListAfter(ctx, job.LastProcessedSecretID, r.config.ChunkSize)
		if err != nil {
			return err
		}

		if len(secrets) == 0 {
			completed = true
			return r.complete(ctx, job)
		}
		return r.reencrypt(ctx, job, secrets)
	})
	if err != nil {
		return nil, err
	}

	switch {
	case completed:
		r.keyRegistry.InvalidateActiveKey(ctx)
		r.logger.Info("key rotation completed",
			slog.String("job_id", job.ID.String()),
			slog.String("active_key_id", job.NewKeyID.String()),
			slog.Int64("processed_secrets", job.ProcessedSecrets),
			slog.Int64("failed_secrets", job.FailedSecrets),
		)
		if _, err := r.Cleanup(ctx); err != nil {
			r.logger.Error("history cleanup after rotation failed", slog.Any("error", err))
		}
	case !job.Status.IsTerminal():
		r.scheduler.Enqueue(job.ID)
	}

	return job, nil
}

// reencrypt moves one chunk of secrets to the job's key. Rows that cannot be decrypted are
// recorded and skipped; the cursor still advances past them. A key that fails to resolve
// for any reason other than being absent from the registry aborts the chunk, so it is
// retried from the same cursor.
func (r *rotationUseCase) reencrypt(
	ctx context.Context,
	job *rotationDomain.RotationJob,
	secrets []*secretsDomain.Secret,
) error {
	ring, missing := r.keyRegistry.Keyring(ctx, referencedKeys(secrets))
	defer ring.Close()
	for keyID, err := range missing {
		if !errors.Is(err, cryptoDomain.ErrUnknownKey) {
			return fmt.Errorf("failed to resolve key %s for rotation chunk: %w", keyID, err)
		}
		r.logger.Warn("rotation chunk references unknown key",
			slog.String("job_id", job.ID.String()),
			slog.String("key_id", keyID.String()),
		)
	}

	newKey, err := r.keyRegistry.DataKey(ctx, job.NewKeyID)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(newKey)

	updates := make([]secretsDomain.ValueUpdate, 0, len(secrets))
	failed := 0

	for _, secret := range secrets {
		value, err := r.seal(secret.Value, ring, job.NewKeyID, newKey)
		if err != nil {
			failed++
			r.logger.Error("failed to re-encrypt secret",
				slog.String("job_id", job.ID.String()),
				slog.String("secret_id", secret.ID.String()),
				slog.Any("error", err),
			)
			if err := r.jobRepo.RecordFailure(ctx, rotationDomain.NewRowFailure(job.ID, secret.ID, err)); err != nil {
				return err
			}
			continue
		}

		updates = append(updates, secretsDomain.ValueUpdate{
			ID:            secret.ID,
			PreviousValue: secret.Value,
			Value:         value,
			KeyID:         job.NewKeyID,
		})
	}

	updated, err := r.secretRepo.UpdateValues(ctx, updates)
	if err != nil {
		return err
	}
	if skipped := int64(len(updates)) - updated; skipped > 0 {
		r.logger.Debug("secrets changed during rotation chunk",
			slog.String("job_id", job.ID.String()),
			slog.Int64("skipped", skipped),
		)
	}

	job.Advance(secrets[len(secrets)-1].ID, len(secrets), failed)
	return r.jobRepo.Update(ctx, job)
}

func (r *rotationUseCase) seal(
	value string,
	ring cryptoDomain.Keyring,
	newKeyID uuid.UUID,
	newKey []byte,
) (string, error) {
	plaintext, err := r.engine.DecryptWithKeyring(value, ring)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(plaintext)

	envelope, err := r.keyManager.SealEnvelope(newKeyID, newKey, plaintext)
	if err != nil {
		return "", err
	}
	return envelope.String(), nil
}

// complete promotes the job's key: the old active key is retired before the new one is
// activated so the single active key rule holds after every statement.
func (r *rotationUseCase) complete(ctx context.Context, job *rotationDomain.RotationJob) error {
	active, err := r.keyRepo.GetActive(ctx)
	switch {
	case err == nil:
		if active.ID != job.NewKeyID {
			if err := r.keyRepo.UpdateStatus(ctx, active.ID, cryptoDomain.KeyStatusRetired); err != nil {
				return err
			}
		}
	case !errors.Is(err, cryptoDomain.ErrNoActiveKey):
		return err
	}

	if err := r.keyRepo.UpdateStatus(ctx, job.NewKeyID, cryptoDomain.KeyStatusActive); err != nil {
		return err
	}

	job.Complete()
	return r.jobRepo.Update(ctx, job)
}

// Cleanup implements RotationUseCase.
func (r *rotationUseCase) Cleanup(ctx context.Context) (*CleanupResult, error) {
	result := &CleanupResult{}

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		*result = CleanupResult{}

		inFlight, err := r.jobRepo.GetInFlight(ctx)
		if err != nil && !errors.Is(err, rotationDomain.ErrJobNotFound) {
			return err
		}

		var keep *uuid.UUID
		if inFlight != nil {
			keep = &inFlight.NewKeyID
		}
		orphans, err := r.resolveOrphanKeys(ctx, keep)
		if err != nil {
			return err
		}
		result.add(orphans)

		retired, err := r.keyRepo.ListByStatus(ctx, cryptoDomain.KeyStatusRetired)
		if err != nil {
			return err
		}
		for _, key := range beyond(retired, r.config.HistorySize) {
			references, err := r.secretRepo.CountByKeyID(ctx, key.ID)
			if err != nil {
				return err
			}
			if references > 0 {
				result.RetainedKeys++
				r.logger.Warn("retired key still referenced, keeping it",
					slog.String("key_id", key.ID.String()),
					slog.Int64("secrets", references),
				)
				continue
			}
			if err := r.keyRepo.Delete(ctx, key.ID); err != nil {
				return err
			}
			result.DeletedKeys++
		}

		jobs, err := r.jobRepo.ListByStatus(ctx, rotationDomain.JobStatusCompleted)
		if err != nil {
			return err
		}
		for _, job := range beyond(jobs, r.config.HistorySize) {
			if err := r.jobRepo.Delete(ctx, job.ID); err != nil {
				return err
			}
			result.DeletedJobs++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("rotation history cleaned up",
		slog.Int("deleted_keys", result.DeletedKeys),
		slog.Int("retained_keys", result.RetainedKeys),
		slog.Int("demoted_keys", result.DemotedKeys),
		slog.Int("deleted_jobs", result.DeletedJobs),
	)
	return result, nil
}

// resolveOrphanKeys drops every migrating key other than keep.
func (r *rotationUseCase) resolveOrphanKeys(ctx context.Context, keep *uuid.UUID) (*CleanupResult, error) {
	result := &CleanupResult{}

	migrating, err := r.keyRepo.ListByStatus(ctx, cryptoDomain.KeyStatusMigrating)
	if err != nil {
		return nil, err
	}
	for _, key := range migrating {
		if keep != nil && key.ID == *keep {
			continue
		}
		deleted, err := r.dropMigratingKey(ctx, key.ID)
		if err != nil {
			return nil, err
		}
		if deleted {
			result.DeletedKeys++
		} else {
			result.DemotedKeys++
		}
	}
	return result, nil
}

// dropMigratingKey deletes a migrating key nobody references, or retires it so the
// secrets already moved to it stay readable.
func (r *rotationUseCase) dropMigratingKey(ctx context.Context, keyID uuid.UUID) (bool, error) {
	references, err := r.secretRepo.CountByKeyID(ctx, keyID)
	if err != nil {
		return false, err
	}

	if references == 0 {
		r.logger.Info("deleting unused migrating key", slog.String("key_id", keyID.String()))
		return true, r.keyRepo.Delete(ctx, keyID)
	}

	r.logger.Warn("retiring partially used migrating key",
		slog.String("key_id", keyID.String()),
		slog.Int64("secrets", references),
	)
	return false, r.keyRepo.UpdateStatus(ctx, keyID, cryptoDomain.KeyStatusRetired)
}

// Fail implements RotationUseCase.
func (r *rotationUseCase) Fail(
	ctx context.Context,
	jobID uuid.UUID,
	reason string,
) (*rotationDomain.RotationJob, error) {
	var job *rotationDomain.RotationJob

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		job, err = r.jobRepo.GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return rotationDomain.ErrJobFinished
		}

		job.Fail(reason)
		if err := r.jobRepo.Update(ctx, job); err != nil {
			return err
		}

		key, err := r.keyRepo.Get(ctx, job.NewKeyID)
		if errors.Is(err, cryptoDomain.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if key.Status != cryptoDomain.KeyStatusMigrating {
			return nil
		}
		_, err = r.dropMigratingKey(ctx, key.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Warn("key rotation aborted",
		slog.String("job_id", job.ID.String()),
		slog.String("reason", reason),
	)
	return job, nil
}

// Invoke implements RotationUseCase.
func (r *rotationUseCase) Invoke(ctx context.Context, req Request) (*Result, error) {
	if req.CleanupOnly {
		cleanup, err := r.Cleanup(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Cleanup: cleanup}, nil
	}

	if req.JobID == nil {
		job, err := r.Start(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Job: job}, nil
	}

	job, err := r.ProcessChunk(ctx, *req.JobID)
	if err != nil {
		return nil, err
	}
	return &Result{Job: job}, nil
}

// Status implements RotationUseCase.
func (r *rotationUseCase) Status(
	ctx context.Context,
	jobID uuid.UUID,
) (*rotationDomain.RotationJob, []*rotationDomain.RowFailure, error) {
	job, err := r.jobRepo.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	failures, err := r.jobRepo.ListFailures(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, failures, nil
}

// InFlight implements RotationUseCase.
func (r *rotationUseCase) InFlight(ctx context.Context) (*rotationDomain.RotationJob, error) {
	return r.jobRepo.GetInFlight(ctx)
}

func (c *CleanupResult) add(other *CleanupResult) {
	c.DeletedKeys += other.DeletedKeys
	c.RetainedKeys += other.RetainedKeys
	c.DemotedKeys += other.DemotedKeys
	c.DeletedJobs += other.DeletedJobs
}

// beyond returns the items past the first keep, for newest-first lists.
func beyond[T any](items []T, keep int) []T {
	if keep < 0 {
		keep = 0
	}
	if len(items) <= keep {
		return nil
	}
	return items[keep:]
}

// referencedKeys returns the distinct key ids of the versioned envelopes in secrets.
func referencedKeys(secrets []*secretsDomain.Secret) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, secret := range secrets {
		envelope, err := cryptoDomain.ParseEnvelope(secret.Value)
		if err != nil || envelope.IsLegacy() {
			continue
		}
		if _, ok := seen[envelope.KeyID]; ok {
			continue
		}
		seen[envelope.KeyID] = struct{}{}
		ids = append(ids, envelope.KeyID)
	}
	return ids
}

// NewRotationUseCase creates a RotationUseCase.
func NewRotationUseCase(
	config Config,
	txManager database.TxManager,
	jobRepo RotationJobRepository,
	keyRepo cryptoUseCase.EncryptionKeyRepository,
	secretRepo SecretRepository,
	keyRegistry cryptoUseCase.KeyRegistry,
	engine cryptoUseCase.Engine,
	keyManager cryptoService.KeyManager,
	scheduler Scheduler,
	logger *slog.Logger,
) RotationUseCase {
	return &rotationUseCase{
		config:      config,
		txManager:   txManager,
		jobRepo:     jobRepo,
		keyRepo:     keyRepo,
		secretRepo:  secretRepo,
		keyRegistry: keyRegistry,
		engine:      engine,
		keyManager:  keyManager,
		scheduler:   scheduler,
		logger:      logger,
	}
}
