package domain

import (
	"github.com/allisson/envsafe/internal/errors"
)

var (
	ErrProjectNotFound = errors.Wrap(errors.ErrNotFound, "project not found")
	ErrMemberNotFound  = errors.Wrap(errors.ErrNotFound, "project member not found")
	ErrShareNotFound   = errors.Wrap(errors.ErrNotFound, "secret share not found")
	ErrRequestNotFound = errors.Wrap(errors.ErrNotFound, "access request not found")

	// ErrRequestNotPending indicates the request was already decided.
	ErrRequestNotPending = errors.Wrap(errors.ErrConflict, "access request is not pending")

	// ErrInvalidRole indicates a role that cannot be granted.
	ErrInvalidRole = errors.Wrap(errors.ErrInvalidInput, "role must be editor or viewer")

	// ErrOwnerMembership indicates an attempt to grant the owner a membership or transfer a
	// project to its current owner.
	ErrOwnerMembership = errors.Wrap(errors.ErrInvalidInput, "user already owns the project")
)

// ErrForbidden indicates the caller's role does not permit the operation.
var ErrForbidden = errors.Wrap(errors.ErrForbidden, "insufficient role")
