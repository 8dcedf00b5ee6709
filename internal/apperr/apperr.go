// Package apperr carries HTTP-facing failures from the domain packages up to the
// response writer. Only Status, Message and Metadata ever reach a client.
package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Kind names a failure class independently of its status code.
type Kind string

const (
	KindInvalidCredentials        Kind = "invalid_credentials"
	KindUnprocessableRegistration Kind = "unprocessable_registration"
	KindRegistrationFailed        Kind = "registration_failed"
	KindRefreshFailed             Kind = "refresh_failed"
	KindUnauthorized              Kind = "unauthorized"
	KindForbidden                 Kind = "forbidden"
	KindNotFound                  Kind = "not_found"
	KindMalformedRequest          Kind = "malformed_request"
	KindBadRequest                Kind = "bad_request"
	KindInternal                  Kind = "internal"
)

// Error is a classified failure.
type Error struct {
	Kind     Kind
	Status   int
	Message  string
	Metadata any
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, apperr.Forbidden()) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, status int, msg string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Err: cause}
}

func InvalidCredentials(cause error) *Error {
	return newError(KindInvalidCredentials, http.StatusUnauthorized, "Invalid credentials", cause)
}

func UnprocessableRegistration(cause error) *Error {
	return newError(KindUnprocessableRegistration, http.StatusUnprocessableEntity, "Unable to register with the provided credentials", cause)
}

func RegistrationFailed() *Error {
	return newError(KindRegistrationFailed, http.StatusBadRequest, "Registration failed", nil)
}

func RefreshFailed() *Error {
	return newError(KindRefreshFailed, http.StatusBadRequest, "Token refresh failed", nil)
}

func Unauthorized(cause error) *Error {
	return newError(KindUnauthorized, http.StatusUnauthorized, "Unauthorized", cause)
}

func Forbidden() *Error {
	return newError(KindForbidden, http.StatusForbidden, "Insufficient permissions", nil)
}

func NotFound(msg string) *Error {
	if msg == "" {
		msg = "Not found"
	}
	return newError(KindNotFound, http.StatusNotFound, msg, nil)
}

// MalformedRequest reports a schema or syntax failure; metadata is returned to the client.
func MalformedRequest(msg string, metadata any) *Error {
	if msg == "" {
		msg = "Malformed request"
	}
	e := newError(KindMalformedRequest, http.StatusBadRequest, msg, nil)
	e.Metadata = metadata
	return e
}

// BadRequest is a 400 for rejected operations whose input was well formed.
func BadRequest(msg string, cause error) *Error {
	return newError(KindBadRequest, http.StatusBadRequest, msg, cause)
}

func Internal(cause error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, "Internal server error", cause)
}

// From classifies err. Already-classified errors are returned as is, JSON decoding
// failures become MalformedRequest and everything else is Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &syntaxErr):
		e := MalformedRequest("Malformed JSON body", map[string]any{"offset": syntaxErr.Offset})
		e.Err = err
		return e
	case errors.As(err, &typeErr):
		e := MalformedRequest("Invalid field type", map[string]any{"field": typeErr.Field, "expected": typeErr.Type.String()})
		e.Err = err
		return e
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		e := MalformedRequest("Request body is empty or truncated", nil)
		e.Err = err
		return e
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindInternal, http.StatusGatewayTimeout, "Upstream timeout", err)
	}
	return Internal(err)
}
