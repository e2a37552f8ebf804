// Package domain defines projects, memberships, secret shares and the roles they grant.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a caller's permission level on a project or secret.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	// RoleNone means no access. It is cached as "null" so negative lookups are remembered.
	RoleNone Role = ""
)

// IsValid reports whether r is a role that can be granted. Ownership is transferred, never
// granted, so owner is not valid here.
func (r Role) IsValid() bool {
	return r == RoleEditor || r == RoleViewer
}

// CanWrite reports whether r may create, update or delete secrets.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleEditor
}

// HasAccess reports whether r grants any access.
func (r Role) HasAccess() bool {
	return r != RoleNone
}

// Project owns secrets. Exactly one user owns a project.
type Project struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Membership grants a user a role on every secret of a project.
type Membership struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Role      Role
	CreatedAt time.Time
}

// SecretShare grants a user a role on a single secret.
type SecretShare struct {
	SecretID  uuid.UUID
	UserID    uuid.UUID
	Role      Role
	CreatedAt time.Time
}

// SecretAccess is the resolved access of a user to a secret.
type SecretAccess struct {
	HasAccess bool
	Role      Role
}

// RequestStatus is the state of an access request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
)

// AccessRequest is a user's request to join a project with a role.
type AccessRequest struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Role      Role
	Status    RequestStatus
	CreatedAt time.Time
	DecidedAt *time.Time
}

// Approve marks the request approved.
func (r *AccessRequest) Approve() {
	now := time.Now().UTC()
	r.Status = RequestStatusApproved
	r.DecidedAt = &now
}
