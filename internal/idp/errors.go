package idp

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("idp: invalid credentials")
	ErrWeakPassword       = errors.New("idp: weak password")
	ErrSessionMissing     = errors.New("idp: session missing")
	ErrUserExists         = errors.New("idp: user already registered")
	ErrRetryableFetch     = errors.New("idp: retryable fetch failure")
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("idp: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("idp: %d: %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel matching the provider error code, if any.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "invalid_credentials", "invalid_grant", "email_not_confirmed":
		return ErrInvalidCredentials
	case "weak_password":
		return ErrWeakPassword
	case "session_not_found", "session_expired", "refresh_token_not_found", "refresh_token_already_used", "bad_jwt", "no_authorization":
		return ErrSessionMissing
	case "user_already_exists", "email_exists":
		return ErrUserExists
	}
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrRetryableFetch
	}
	return nil
}

// IsAuthAPIError reports whether err is a provider rejection rather than a transport failure.
func IsAuthAPIError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return !errors.Is(apiErr, ErrRetryableFetch)
}

// providerError covers both error shapes GoTrue emits.
type providerError struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p providerError) toAPIError(status int) *APIError {
	e := &APIError{Status: status}
	switch {
	case p.ErrorCode != "":
		e.Code = p.ErrorCode
	case p.Error != "":
		e.Code = p.Error
	}
	if s, ok := p.Code.(string); ok && e.Code == "" {
		e.Code = s
	}
	for _, m := range []string{p.Msg, p.Message, p.ErrorDescription} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
