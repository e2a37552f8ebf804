package dto

import (
	"time"

	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// SecretResponse is secret metadata returned by writes. It never carries the value.
type SecretResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapSecretToResponse converts a stored secret to an API response.
func MapSecretToResponse(secret *secretsDomain.Secret) SecretResponse {
	return SecretResponse{
		ID:        secret.ID.String(),
		ProjectID: secret.ProjectID.String(),
		Key:       secret.Key,
		CreatedAt: secret.CreatedAt,
		UpdatedAt: secret.UpdatedAt,
	}
}

// DecryptedSecretResponse is a secret with its plaintext value.
// SECURITY: Must be transmitted over HTTPS in production.
type DecryptedSecretResponse struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	Key              string    `json:"key"`
	Value            string    `json:"value"`
	DecryptionFailed bool      `json:"decryption_failed,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MapDecryptedSecretToResponse converts a decrypted secret to an API response.
func MapDecryptedSecretToResponse(secret *secretsDomain.DecryptedSecret) DecryptedSecretResponse {
	return DecryptedSecretResponse{
		ID:               secret.ID.String(),
		ProjectID:        secret.ProjectID.String(),
		Key:              secret.Key,
		Value:            secret.Value,
		DecryptionFailed: secret.Failed,
		CreatedAt:        secret.CreatedAt,
		UpdatedAt:        secret.UpdatedAt,
	}
}
