package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	ErrAlreadySampled   = errors.New("submission already sampled")
	ErrAlreadyVerified  = errors.New("sampling record already verified")
	ErrGatewayNotPassed = errors.New("gateway not passed")
	ErrTransient        = errors.New("store did not acknowledge in time")
	ErrForbidden        = errors.New("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// IsValidation matches both our ValidationError and the validator's ValidationErrors.
func IsValidation(err error) bool {
	switch errors.Cause(err).(type) {
	case *ValidationError, validator.ValidationErrors:
		return true
	}
	return false
}

// NotFoundError is returned when a referenced entity does not exist or is not visible to the caller.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", err.Entity, err.ID)
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// StateTransitionError is returned when a workflow move is not permitted from the current state.
type StateTransitionError struct {
	Entity string
	From   string
	Action string
}

func NewStateTransitionError(entity, from, action string) error {
	return &StateTransitionError{Entity: entity, From: from, Action: action}
}

func (err StateTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from status %q", err.Entity, err.Action, err.From)
}

func IsInvalidTransition(err error) bool {
	_, ok := errors.Cause(err).(*StateTransitionError)
	return ok
}

// ConflictError is returned when a concurrent mutation has been detected.
type ConflictError struct {
	Entity string
	ID     string
	Reason string
}

func NewConflictError(entity, id, reason string) error {
	return &ConflictError{Entity: entity, ID: id, Reason: reason}
}

func (err ConflictError) Error() string {
	return fmt.Sprintf("%s %q: conflict: %s", err.Entity, err.ID, err.Reason)
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsTransient(err error) bool {
	return errors.Cause(err) == ErrTransient
}

// shutdown is returned when the app can no longer serve requests (e.g. its store is gone).
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
