package domain

import (
	"github.com/allisson/envsafe/internal/errors"
)

var (
	// ErrSecretNotFound indicates the secret does not exist.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "secret not found")

	// ErrSecretKeyExists indicates the project already has a secret with that key.
	ErrSecretKeyExists = errors.Wrap(errors.ErrConflict, "secret key already exists in project")
)
