package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrorKind represents the category of a configuration error
type ErrorKind string

const (
	ErrorKindMissingRequiredVariable ErrorKind = "missing_required_variable"
	ErrorKindInvalidValue            ErrorKind = "invalid_value"
)

// Error is a fatal configuration problem. Field is always the name of the
// environment variable the operator has to fix.
type Error struct {
	Kind    ErrorKind
	Field   string
	Value   string
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Kind == ErrorKindInvalidValue:
		return fmt.Sprintf("%s: %s has invalid value %q", e.Kind, e.Field, e.Value)
	default:
		return fmt.Sprintf("%s: %s is required", e.Kind, e.Field)
	}
}

// Is matches errors of the same kind, so errors.Is(err, ErrInvalidValue)
// works for any field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrMissingRequiredVariable = &Error{Kind: ErrorKindMissingRequiredVariable}
	ErrInvalidValue            = &Error{Kind: ErrorKindInvalidValue}
)

// MissingRequiredVariable creates an error for an unset variable
func MissingRequiredVariable(field, reason string) *Error {
	msg := ""
	if reason != "" {
		msg = fmt.Sprintf("%s is required %s", field, reason)
	}
	return &Error{
		Kind:    ErrorKindMissingRequiredVariable,
		Field:   field,
		Message: msg,
	}
}

// InvalidValue creates an error for a value that could not be accepted
func InvalidValue(field, value, reason string) *Error {
	msg := ""
	if reason != "" {
		msg = fmt.Sprintf("%s has invalid value %q: %s", field, value, reason)
	}
	return &Error{
		Kind:    ErrorKindInvalidValue,
		Field:   field,
		Value:   value,
		Message: msg,
	}
}

// IsMissingRequiredVariable checks if err holds a missing variable error
func IsMissingRequiredVariable(err error) bool {
	return errors.Is(err, ErrMissingRequiredVariable)
}

// IsInvalidValue checks if err holds an invalid value error
func IsInvalidValue(err error) bool {
	return errors.Is(err, ErrInvalidValue)
}

// Fields returns the names of all offending variables in err, in the order
// they were reported.
func Fields(err error) []string {
	var fields []string
	for _, e := range multierr.Errors(err) {
		var cfgErr *Error
		if errors.As(e, &cfgErr) {
			fields = append(fields, cfgErr.Field)
		}
	}
	return fields
}
