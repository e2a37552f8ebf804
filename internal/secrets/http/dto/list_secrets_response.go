package dto

import (
	secretsDomain "github.com/allisson/envsafe/internal/secrets/domain"
)

// ListSecretsResponse represents the decrypted secrets of a project.
type ListSecretsResponse struct {
	Data []DecryptedSecretResponse `json:"data"`
}

// MapSecretsToListResponse converts decrypted secrets to a list response. An empty
// project yields an empty array, never null.
func MapSecretsToListResponse(secrets []*secretsDomain.DecryptedSecret) ListSecretsResponse {
	data := make([]DecryptedSecretResponse, 0, len(secrets))
	for _, secret := range secrets {
		data = append(data, MapDecryptedSecretToResponse(secret))
	}

	return ListSecretsResponse{
		Data: data,
	}
}
