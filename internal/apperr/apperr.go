// Package apperr defines the error taxonomy the HTTP layer maps onto
// status codes: validation failures, missing resources, and storage
// faults. All handlers convert errors through HTTPStatus; nothing
// crashes the process.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type kind int

const (
	kindValidation kind = iota
	kindNotFound
	kindStorage
)

// Error is an application error carrying its HTTP-facing kind.
type Error struct {
	kind kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Validation reports a missing or malformed request field.
func Validation(msg string) error {
	return &Error{kind: kindValidation, msg: msg}
}

// NotFound reports an absent resource where auto-create does not apply.
func NotFound(msg string) error {
	return &Error{kind: kindNotFound, msg: msg}
}

// Storage wraps an underlying query failure. The wrapped error is logged
// server-side; clients only see the generic message.
func Storage(err error) error {
	return &Error{kind: kindStorage, msg: "storage failure", err: err}
}

func is(err error, k kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.kind == k
}

func IsValidation(err error) bool { return is(err, kindValidation) }
func IsNotFound(err error) bool   { return is(err, kindNotFound) }
func IsStorage(err error) bool    { return is(err, kindStorage) }

// HTTPStatus maps an error to its response status. Unclassified errors
// are treated as internal faults.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.kind {
	case kindValidation:
		return http.StatusBadRequest
	case kindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-safe message for an error.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.msg
	}
	return "internal error"
}
