package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
	accessUseCase "github.com/allisson/envsafe/internal/access/usecase"
	cryptoUseCase "github.com/allisson/envsafe/internal/crypto/usecase"
	"github.com/allisson/envsafe/internal/database"
	apperrors "github.com/allisson/envsafe/internal/errors"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

type secretUseCase struct {
	txManager  database.TxManager
	secretRepo SecretRepository
	resolver   accessUseCase.Resolver
	engine     cryptoUseCase.Engine
	repairer   Repairer
	logger     *slog.Logger
}

// Create implements SecretUseCase.
func (s *secretUseCase) Create(
	ctx context.Context,
	userID, projectID uuid.UUID,
	key string,
	plaintext []byte,
) (*secretsDomain.Secret, error) {
	role, err := s.resolver.RoleFor(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !role.CanWrite() {
		return nil, accessDomain.ErrForbidden
	}

	envelope, err := s.engine.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt secret")
	}

	keyID := envelope.KeyID
	now := time.Now().UTC()
	secret := &secretsDomain.Secret{
		ID:        uuid.Must(uuid.NewV7()),
		ProjectID: projectID,
		Key:       key,
		Value:     envelope.String(),
		KeyID:     &keyID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.secretRepo.Create(ctx, secret); err != nil {
		return nil, err
	}

	s.logger.Info("secret created",
		slog.String("secret_id", secret.ID.String()),
		slog.String("project_id", projectID.String()),
		slog.String("user_id", userID.String()),
	)
	return secret, nil
}

// Update implements SecretUseCase.
func (s *secretUseCase) Update(
	ctx context.Context,
	userID, secretID uuid.UUID,
	plaintext []byte,
) (*secretsDomain.Secret, error) {
	if err := s.requireWriter(ctx, userID, secretID); err != nil {
		return nil, err
	}

	envelope, err := s.engine.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt secret")
	}

	var secret *secretsDomain.Secret
	err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		secret, err = s.secretRepo.Get(ctx, secretID)
		if err != nil {
			return err
		}

		keyID := envelope.KeyID
		secret.Value = envelope.String()
		secret.KeyID = &keyID
		secret.UpdatedAt = time.Now().UTC()
		return s.secretRepo.Update(ctx, secret)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("secret updated",
		slog.String("secret_id", secretID.String()),
		slog.String("user_id", userID.String()),
	)
	return secret, nil
}

// Get implements SecretUseCase.
func (s *secretUseCase) Get(
	ctx context.Context,
	userID, secretID uuid.UUID,
) (*secretsDomain.DecryptedSecret, error) {
	access, err := s.resolver.SecretAccess(ctx, userID, secretID)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess {
		return nil, accessDomain.ErrForbidden
	}

	secret, err := s.secretRepo.Get(ctx, secretID)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.engine.Decrypt(ctx, secret.Value)
	if err != nil {
		s.logger.Error("secret decryption failed",
			slog.String("secret_id", secretID.String()),
			slog.Any("error", err),
		)
		return nil, apperrors.Wrapf(err, "secret %s", secretID)
	}

	result := decrypted(secret, string(plaintext), false)
	s.repairer.Schedule(ctx, []RepairItem{{Secret: secret, Plaintext: plaintext}})
	clear(plaintext)

	return result, nil
}

// ListByProject implements SecretUseCase.
func (s *secretUseCase) ListByProject(
	ctx context.Context,
	userID, projectID uuid.UUID,
) ([]*secretsDomain.DecryptedSecret, error) {
	role, err := s.resolver.RoleFor(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !role.HasAccess() {
		return nil, accessDomain.ErrForbidden
	}

	secrets, err := s.secretRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	results := make([]*secretsDomain.DecryptedSecret, 0, len(secrets))
	repairs := make([]RepairItem, 0, len(secrets))
	for _, secret := range secrets {
		plaintext, err := s.engine.Decrypt(ctx, secret.Value)
		if err != nil {
			s.logger.Error("secret decryption failed",
				slog.String("secret_id", secret.ID.String()),
				slog.String("project_id", projectID.String()),
				slog.Any("error", err),
			)
			results = append(results, decrypted(secret, secretsDomain.DecryptionFailedValue, true))
			continue
		}
		results = append(results, decrypted(secret, string(plaintext), false))
		repairs = append(repairs, RepairItem{Secret: secret, Plaintext: plaintext})
	}

	s.repairer.Schedule(ctx, repairs)
	for _, item := range repairs {
		clear(item.Plaintext)
	}

	return results, nil
}

// Delete implements SecretUseCase.
func (s *secretUseCase) Delete(ctx context.Context, userID, secretID uuid.UUID) error {
	if err := s.requireWriter(ctx, userID, secretID); err != nil {
		return err
	}
	if err := s.secretRepo.Delete(ctx, secretID); err != nil {
		return err
	}

	s.logger.Info("secret deleted",
		slog.String("secret_id", secretID.String()),
		slog.String("user_id", userID.String()),
	)
	return nil
}

func (s *secretUseCase) requireWriter(ctx context.Context, userID, secretID uuid.UUID) error {
	access, err := s.resolver.SecretAccess(ctx, userID, secretID)
	if err != nil {
		return err
	}
	if !access.HasAccess || !access.Role.CanWrite() {
		return accessDomain.ErrForbidden
	}
	return nil
}

func decrypted(secret *secretsDomain.Secret, value string, failed bool) *secretsDomain.DecryptedSecret {
	return &secretsDomain.DecryptedSecret{
		ID:        secret.ID,
		ProjectID: secret.ProjectID,
		Key:       secret.Key,
		Value:     value,
		Failed:    failed,
		CreatedAt: secret.CreatedAt,
		UpdatedAt: secret.UpdatedAt,
	}
}

// NewSecretUseCase creates a new SecretUseCase. A nil repairer disables read repair.
func NewSecretUseCase(
	txManager database.TxManager,
	secretRepo SecretRepository,
	resolver accessUseCase.Resolver,
	engine cryptoUseCase.Engine,
	repairer Repairer,
	logger *slog.Logger,
) SecretUseCase {
	if repairer == nil {
		repairer = NopRepairer{}
	}
	return &secretUseCase{
		txManager:  txManager,
		secretRepo: secretRepo,
		resolver:   resolver,
		engine:     engine,
		repairer:   repairer,
		logger:     logger,
	}
}
