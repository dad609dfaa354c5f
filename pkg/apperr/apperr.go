// Package apperr holds the error categories surfaced to API callers.
// Services wrap a category with context, e.g.
//
//	fmt.Errorf("%w: subscription %s not found", apperr.ErrNotFound, id)
//
// and handlers map the category with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("conflict")
)

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func BadRequest(format string, args ...any) error {
	return wrap(ErrBadRequest, format, args...)
}

func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// categoryError keeps the caller's message as-is while still matching its category.
type categoryError struct {
	category error
	msg      string
}

func (e *categoryError) Error() string { return e.msg }

func (e *categoryError) Unwrap() error { return e.category }

func wrap(category error, format string, args ...any) error {
	return &categoryError{category: category, msg: fmt.Sprintf(format, args...)}
}
