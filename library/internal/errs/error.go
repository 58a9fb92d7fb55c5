package errs

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrAuthorization = errors.New("not authorized")
)

// Error is a domain error of one of the kinds above with a message meant for the client.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Is(target error) bool {
	return target == e.kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func DuplicateKey(format string, args ...any) error {
	return newError(ErrDuplicateKey, format, args...)
}

func Authorization(format string, args ...any) error {
	return newError(ErrAuthorization, format, args...)
}
