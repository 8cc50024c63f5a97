// Package apperr holds the error taxonomy shared by the store, the
// services and the transport layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrInvalidAction   = errors.New("invalid action")
	ErrAlreadyResolved = errors.New("alert already resolved")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInternal        = errors.New("internal error")
)

func BadRequest(format string, args ...any) error {
	return wrap(ErrBadRequest, format, args...)
}

func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func InvalidAction(format string, args ...any) error {
	return wrap(ErrInvalidAction, format, args...)
}

// Internal marks err as a store/infrastructure failure. Errors that already
// carry a kind are returned unchanged.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

var kinds = []error{
	ErrBadRequest, ErrValidation, ErrNotFound, ErrInvalidAction,
	ErrAlreadyResolved, ErrUnauthorized, ErrForbidden, ErrInternal,
}

// Kind returns the taxonomy sentinel carried by err, or nil.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// HTTPStatus maps err to a response code. Unclassified errors are 500.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case ErrBadRequest, ErrInvalidAction:
		return http.StatusBadRequest
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrNotFound:
		return http.StatusNotFound
	case ErrAlreadyResolved:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
