// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/courier/internal/errors"
)

var (
	// identifierRegex matches topic, consumer and task names
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:\-]*$`)

	// clockTimeRegex matches a 24h wall-clock time such as 07:30
	clockTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Identifier validates topic, consumer group and task names: an alphanumeric first character
// followed by letters, digits, '_', '.', ':' or '-'
var Identifier = validation.NewStringRuleWithError(
	func(s string) bool {
		return identifierRegex.MatchString(s)
	},
	validation.NewError("validation_identifier", "must start with a letter or digit and contain only letters, digits, '_', '.', ':' or '-'"),
)

// ClockTime validates a 24h HH:MM wall-clock time
var ClockTime = validation.NewStringRuleWithError(
	func(s string) bool {
		return clockTimeRegex.MatchString(s)
	},
	validation.NewError("validation_clock_time", "must be a time of day in HH:MM format"),
)

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
