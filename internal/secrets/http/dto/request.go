// Package dto provides data transfer objects for the secret API.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/envsafe/internal/validation"
)

// MaxValueLength is the largest accepted secret value in bytes.
const MaxValueLength = 64 * 1024

// CreateSecretRequest contains the parameters for creating a secret. The project is taken
// from the URL.
type CreateSecretRequest struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// Validate checks if the create secret request is valid. An empty value is allowed.
func (r *CreateSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Key,
			validation.Required,
			customValidation.SecretKey,
			validation.Length(1, 255),
		),
		validation.Field(&r.Value,
			validation.NotNil,
			validation.Length(0, MaxValueLength),
		),
	)
}

// UpdateSecretRequest replaces the value of a secret.
type UpdateSecretRequest struct {
	Value *string `json:"value"`
}

// Validate checks if the update secret request is valid.
func (r *UpdateSecretRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Value,
			validation.NotNil,
			validation.Length(0, MaxValueLength),
		),
	)
}
