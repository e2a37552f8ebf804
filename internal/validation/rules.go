// Package validation provides custom validation rules for request DTOs.
package validation

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/envsafe/internal/errors"
)

var (
	// secretKeyRegex matches environment variable names.
	secretKeyRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// SecretKey validates that a string is a usable environment variable name
var SecretKey = validation.NewStringRuleWithError(
	func(s string) bool {
		return secretKeyRegex.MatchString(s)
	},
	validation.NewError(
		"validation_secret_key",
		"must start with a letter or underscore and contain only letters, digits and underscores",
	),
)

// UUID validates that a string is a UUID
var UUID = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	validation.NewError("validation_uuid", "must be a valid UUID"),
)

// GrantableRole validates that a string is a role that can be granted
var GrantableRole = validation.In("editor", "viewer").
	ErrorObject(validation.NewError("validation_role", "must be editor or viewer"))

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
