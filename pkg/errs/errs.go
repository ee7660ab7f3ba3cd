// Package errs defines the error taxonomy shared by the vigil services.
// Handlers map these onto HTTP status codes; repositories and services wrap
// lower-level failures into them so callers can branch without string checks.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError marks input rejected before persistence: a score, severity,
// or status value outside its allowed domain.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks an unknown session, handoff, or review identifier.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NotFound builds a NotFoundError for the given resource and identifier.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConcurrencyError marks a failed optimistic precondition or lock contention.
// Callers must re-fetch the record and retry the transition.
type ConcurrencyError struct {
	Msg string
}

func (e *ConcurrencyError) Error() string { return e.Msg }

// Concurrency builds a ConcurrencyError from a format string.
func Concurrency(format string, args ...interface{}) error {
	return &ConcurrencyError{Msg: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a storage or transaction failure. The enclosing
// transaction has been rolled back; no partial writes survive.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError for the named operation.
func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// HTTPStatus maps an error to the HTTP status code handlers should return.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return 400
	case IsNotFound(err):
		return 404
	case IsConcurrency(err):
		return 409
	default:
		return 500
	}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConcurrency(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
