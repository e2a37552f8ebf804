package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/envsafe/internal/metrics"
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// secretUseCaseWithMetrics decorates SecretUseCase with metrics instrumentation.
type secretUseCaseWithMetrics struct {
	next    SecretUseCase
	metrics metrics.BusinessMetrics
}

// NewSecretUseCaseWithMetrics wraps a SecretUseCase with metrics recording.
func NewSecretUseCaseWithMetrics(useCase SecretUseCase, m metrics.BusinessMetrics) SecretUseCase {
	return &secretUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Create records metrics for secret creation.
func (s *secretUseCaseWithMetrics) Create(
	ctx context.Context,
	userID, projectID uuid.UUID,
	key string,
	plaintext []byte,
) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Create(ctx, userID, projectID, key, plaintext)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "secrets", "secret_create", status)
	s.metrics.RecordDuration(ctx, "secrets", "secret_create", time.Since(start), status)

	return secret, err
}

// Update records metrics for secret updates.
func (s *secretUseCaseWithMetrics) Update(
	ctx context.Context,
	userID, secretID uuid.UUID,
	plaintext []byte,
) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Update(ctx, userID, secretID, plaintext)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "secrets", "secret_update", status)
	s.metrics.RecordDuration(ctx, "secrets", "secret_update", time.Since(start), status)

	return secret, err
}

// Get records metrics for secret retrieval.
func (s *secretUseCaseWithMetrics) Get(
	ctx context.Context,
	userID, secretID uuid.UUID,
) (*secretsDomain.DecryptedSecret, error) {
	start := time.Now()
	secret, err := s.next.Get(ctx, userID, secretID)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "secrets", "secret_get", status)
	s.metrics.RecordDuration(ctx, "secrets", "secret_get", time.Since(start), status)

	return secret, err
}

// ListByProject records metrics for project listings.
func (s *secretUseCaseWithMetrics) ListByProject(
	ctx context.Context,
	userID, projectID uuid.UUID,
) ([]*secretsDomain.DecryptedSecret, error) {
	start := time.Now()
	secrets, err := s.next.ListByProject(ctx, userID, projectID)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "secrets", "secret_list", status)
	s.metrics.RecordDuration(ctx, "secrets", "secret_list", time.Since(start), status)

	return secrets, err
}

// Delete records metrics for secret deletion.
func (s *secretUseCaseWithMetrics) Delete(ctx context.Context, userID, secretID uuid.UUID) error {
	start := time.Now()
	err := s.next.Delete(ctx, userID, secretID)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "secrets", "secret_delete", status)
	s.metrics.RecordDuration(ctx, "secrets", "secret_delete", time.Since(start), status)

	return err
}
