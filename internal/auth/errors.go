package auth

import "errors"

var (
	ErrNotFound       = errors.New("auth: not found")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrMissingToken   = errors.New("auth: missing token")
	ErrRevokedToken   = errors.New("auth: revoked token")
	ErrAlreadyRevoked = errors.New("auth: token already revoked")
	ErrInvalidInput   = errors.New("auth: invalid input")
)
