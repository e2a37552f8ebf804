package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type driverError struct {
	code string
}

func (e *driverError) Error() string { return "driver: " + e.code }

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Nil(t, Wrapf(nil, "ignored %d", 1))

	wrapped := Wrap(ErrNotFound, "secret not found")
	assert.EqualError(t, wrapped, "secret not found: not found")
	assert.True(t, Is(wrapped, ErrNotFound))

	formatted := Wrapf(ErrInvalidInput, "key %q", "DB_URL")
	assert.EqualError(t, formatted, `key "DB_URL": invalid input`)
	assert.True(t, Is(formatted, ErrInvalidInput))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrConflict,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrForbidden,
		ErrUnavailable,
		ErrConfig,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			assert.Equal(t, i == j, Is(a, b), "%v vs %v", a, b)
		}
	}
}

func TestDomainErrorChain(t *testing.T) {
	domainErr := Wrap(ErrUnavailable, "authentication tag mismatch")
	err := fmt.Errorf("decrypt secret %s: %w", "API_KEY", domainErr)

	assert.True(t, Is(err, domainErr))
	assert.True(t, Is(err, ErrUnavailable))
	assert.False(t, Is(err, ErrNotFound))
}

func TestAs(t *testing.T) {
	err := Wrap(&driverError{code: "23505"}, "insert secret")

	var target *driverError
	assert.True(t, As(err, &target))
	assert.Equal(t, "23505", target.code)

	assert.False(t, As(New("plain"), &target))
}

func TestJoin(t *testing.T) {
	assert.Nil(t, Join(nil, nil))

	rollback := errors.New("rollback failed")
	joined := Join(ErrConflict, nil, rollback)
	assert.True(t, Is(joined, ErrConflict))
	assert.True(t, Is(joined, rollback))
}
