// Package dto provides data transfer objects for the project access API.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/envsafe/internal/validation"
)

// CreateProjectRequest creates a project owned by the caller.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// Validate checks if the create project request is valid.
func (r *CreateProjectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 255),
		),
	)
}

// RoleRequest carries the role of an access request, membership or share.
type RoleRequest struct {
	Role string `json:"role"`
}

// Validate checks if the role request is valid.
func (r *RoleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Role, validation.Required, customValidation.GrantableRole),
	)
}

// TransferOwnershipRequest names the new owner of a project.
type TransferOwnershipRequest struct {
	NewOwnerID string `json:"new_owner_id"`
}

// Validate checks if the transfer request is valid.
func (r *TransferOwnershipRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.NewOwnerID, validation.Required, customValidation.UUID),
	)
}
