package domain

import (
	"github.com/allisson/envsafe/internal/errors"
)

var (
	// ErrJobNotFound indicates the rotation job does not exist.
	ErrJobNotFound = errors.Wrap(errors.ErrNotFound, "rotation job not found")

	// ErrRotationInProgress indicates a pending or processing job already exists.
	ErrRotationInProgress = errors.Wrap(errors.ErrConflict, "key rotation already in progress")

	// ErrJobFinished indicates the job is completed or failed and cannot change state.
	ErrJobFinished = errors.Wrap(errors.ErrConflict, "rotation job already finished")
)
