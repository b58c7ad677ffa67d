package core

import "github.com/pkg/errors"

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

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ConflictError is returned when a write would break a uniqueness or referential rule.
// Flag, when set, is rendered as a `true` field of the error response.
type ConflictError struct {
	Err  error
	Flag string
}

func NewConflictError(err error, flag ...string) error {
	cErr := &ConflictError{Err: err}
	if len(flag) > 0 {
		cErr.Flag = flag[0]
	}
	return cErr
}

func (err ConflictError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ConflictError) Unwrap() error { return err.Err }

type NotFoundError struct {
	Err error
}

func NewNotFoundError(err error) error {
	return &NotFoundError{Err: err}
}

func (err NotFoundError) Error() string {
	if err.Err == nil {
		return "not found"
	}
	return err.Err.Error()
}

func (err NotFoundError) Unwrap() error { return err.Err }

// IsNotFound reports whether the cause of err is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// IsConflict reports whether the cause of err is a ConflictError.
func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

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
