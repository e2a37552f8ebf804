// Package usecase resolves a caller's role on projects and secrets and applies the
// membership, ownership and share mutations that change it.
//
// Resolved roles are cached for ten minutes, negative results included. Every mutation
// deletes exactly the cache entries it affects once its transaction commits, so a revoked
// role never outlives the write that revoked it.
package usecase

import (
	"context"

	"github.com/google/uuid"

	accessDomain "github.com/allisson/envsafe/internal/access/domain"
)

// AccessRepository persists projects, memberships, shares and access requests.
//
// Available implementations:
//   - PostgreSQLAccessRepository
//   - MySQLAccessRepository
type AccessRepository interface {
	CreateProject(ctx context.Context, project *accessDomain.Project) error
	GetProject(ctx context.Context, projectID uuid.UUID) (*accessDomain.Project, error)
	UpdateOwner(ctx context.Context, projectID, ownerID uuid.UUID) error

	// GetMemberRole returns RoleNone when the user is not a member.
	GetMemberRole(ctx context.Context, projectID, userID uuid.UUID) (accessDomain.Role, error)
	UpsertMember(ctx context.Context, member *accessDomain.Membership) error
	DeleteMember(ctx context.Context, projectID, userID uuid.UUID) error

	// GetSecretProject returns the project a secret belongs to, or ErrSecretNotFound.
	GetSecretProject(ctx context.Context, secretID uuid.UUID) (uuid.UUID, error)

	// GetShareRole returns RoleNone when the secret is not shared with the user.
	GetShareRole(ctx context.Context, secretID, userID uuid.UUID) (accessDomain.Role, error)
	UpsertShare(ctx context.Context, share *accessDomain.SecretShare) error
	DeleteShare(ctx context.Context, secretID, userID uuid.UUID) error

	CreateRequest(ctx context.Context, request *accessDomain.AccessRequest) error
	// GetRequestForUpdate locks the request row for the surrounding transaction.
	GetRequestForUpdate(ctx context.Context, requestID uuid.UUID) (*accessDomain.AccessRequest, error)
	UpdateRequest(ctx context.Context, request *accessDomain.AccessRequest) error
}

// Resolver answers "what may this user do". It is what the secret use case depends on.
type Resolver interface {
	// RoleFor resolves a user's role on a project: cache, then ownership, then membership.
	RoleFor(ctx context.Context, userID, projectID uuid.UUID) (accessDomain.Role, error)

	// SecretAccess resolves a user's access to a secret: the role on its project, then a
	// per-secret share. Returns ErrSecretNotFound for an unknown secret.
	SecretAccess(ctx context.Context, userID, secretID uuid.UUID) (accessDomain.SecretAccess, error)
}

// AccessUseCase is the Resolver plus the mutations that invalidate it. The actor of every
// mutation must own the project, except share changes which editors may also make.
type AccessUseCase interface {
	Resolver

	CreateProject(ctx context.Context, ownerID uuid.UUID, name string) (*accessDomain.Project, error)

	RequestAccess(
		ctx context.Context,
		userID, projectID uuid.UUID,
		role accessDomain.Role,
	) (*accessDomain.AccessRequest, error)

	// ApproveRequest grants the requested role and invalidates the requester's cached role.
	ApproveRequest(ctx context.Context, actorID, projectID, requestID uuid.UUID) (*accessDomain.Membership, error)

	// AddMember grants or replaces a membership.
	AddMember(ctx context.Context, actorID, projectID, userID uuid.UUID, role accessDomain.Role) error

	// ChangeMemberRole changes an existing membership. Returns ErrMemberNotFound otherwise.
	ChangeMemberRole(ctx context.Context, actorID, projectID, userID uuid.UUID, role accessDomain.Role) error

	RemoveMember(ctx context.Context, actorID, projectID, userID uuid.UUID) error

	// TransferOwnership makes newOwnerID the owner; the previous owner stays on as editor.
	TransferOwnership(ctx context.Context, actorID, projectID, newOwnerID uuid.UUID) error

	GrantSecretShare(ctx context.Context, actorID, secretID, userID uuid.UUID, role accessDomain.Role) error

	RevokeSecretShare(ctx context.Context, actorID, secretID, userID uuid.UUID) error
}
