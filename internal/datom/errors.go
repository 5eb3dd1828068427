package datom

import (
	"errors"
	"fmt"
)

// Error represents a failure detected by the store.
//
// Errors fall into four groups:
//   - Configuration: invalid schema, duplicate ident, unregistered attribute.
//     These are programmer errors and are never recovered.
//   - Integrity: uniqueness and cascade violations, missing required values.
//     The enclosing transaction fails as a whole.
//   - Context misuse: reading through a poisoned or closed DbContext.
//   - Lookup: an entity that was expected to exist does not.
//
// Error includes structured fields for diagnostics.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Entity identifies the affected entity, if any.
	Entity EID

	// Attribute identifies the affected attribute, if any.
	Attribute Attribute

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates an invalid schema or registration.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeUniqueness indicates a unique value is already held by another entity.
	ErrCodeUniqueness ErrorCode = "UNIQUENESS_VIOLATION"

	// ErrCodeCascade indicates a post-retract callback wrote a reference into
	// a just-deleted closure.
	ErrCodeCascade ErrorCode = "CASCADE_VIOLATION"

	// ErrCodeRequiredMissing indicates a required attribute has no value.
	ErrCodeRequiredMissing ErrorCode = "REQUIRED_MISSING"

	// ErrCodeEntityNotFound indicates a referenced entity does not exist.
	ErrCodeEntityNotFound ErrorCode = "ENTITY_NOT_FOUND"

	// ErrCodeContextPoisoned indicates a DbContext was used after it failed or closed.
	ErrCodeContextPoisoned ErrorCode = "CONTEXT_POISONED"

	// ErrCodeNotMutable indicates a write through a read-only pipeline.
	ErrCodeNotMutable ErrorCode = "NOT_MUTABLE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Entity != 0 {
		msg += fmt.Sprintf(" (entity=%s)", e.Entity)
	}
	if e.Attribute != 0 {
		msg += fmt.Sprintf(" (attribute=%s)", e.Attribute)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return CodeOf(err) == ErrCodeConfiguration
}

// IsUniquenessError reports whether err is a uniqueness violation.
func IsUniquenessError(err error) bool {
	return CodeOf(err) == ErrCodeUniqueness
}

// IsCascadeError reports whether err is a cascade violation.
func IsCascadeError(err error) bool {
	return CodeOf(err) == ErrCodeCascade
}

// IsRequiredMissing reports whether err is a missing required attribute.
func IsRequiredMissing(err error) bool {
	return CodeOf(err) == ErrCodeRequiredMissing
}

// IsEntityNotFound reports whether err is a missing entity.
func IsEntityNotFound(err error) bool {
	return CodeOf(err) == ErrCodeEntityNotFound
}

// IsContextPoisoned reports whether err came from a poisoned DbContext.
func IsContextPoisoned(err error) bool {
	return CodeOf(err) == ErrCodeContextPoisoned
}

// IsNotMutable reports whether err came from writing through a read-only
// pipeline.
func IsNotMutable(err error) bool {
	return CodeOf(err) == ErrCodeNotMutable
}

// NewConfigurationError creates an Error for an invalid schema or registration.
func NewConfigurationError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewUniquenessError creates an Error for a unique value held by another entity.
func NewUniquenessError(attr Attribute, value Value, holder, claimant EID) *Error {
	return &Error{
		Code:      ErrCodeUniqueness,
		Message:   fmt.Sprintf("value %s is already held by entity %s", FormatValue(value), holder),
		Entity:    claimant,
		Attribute: attr,
	}
}

// NewEntityNotFoundError creates an Error for a missing entity.
func NewEntityNotFoundError(e EID) *Error {
	return &Error{
		Code:    ErrCodeEntityNotFound,
		Message: "entity does not exist",
		Entity:  e,
	}
}

// NewRequiredMissingError creates an Error for a required attribute without a value.
func NewRequiredMissingError(e EID, attr Attribute) *Error {
	return &Error{
		Code:      ErrCodeRequiredMissing,
		Message:   "required attribute has no value",
		Entity:    e,
		Attribute: attr,
	}
}

// NewCascadeError creates an Error for a write that would resurrect or
// reference an entity being deleted.
func NewCascadeError(e EID, attr Attribute, message string) *Error {
	return &Error{
		Code:      ErrCodeCascade,
		Message:   message,
		Entity:    e,
		Attribute: attr,
	}
}
