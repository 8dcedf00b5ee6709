package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenMode selects how Authenticate treats incoming access tokens.
type TokenMode string

const (
	// TokenModeDecode trusts the provider's signature and only parses claims.
	TokenModeDecode TokenMode = "decode"
	// TokenModeVerify checks the HS256 signature and expiry against the provider's JWT secret.
	TokenModeVerify TokenMode = "verify"
)

// ParseTokenMode maps a config string to a mode; empty means decode.
func ParseTokenMode(s string) (TokenMode, error) {
	switch TokenMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", TokenModeDecode:
		return TokenModeDecode, nil
	case TokenModeVerify:
		return TokenModeVerify, nil
	}
	return "", fmt.Errorf("auth: unknown token mode %q", s)
}

// UserMetadata is the profile block the provider stores with the account.
type UserMetadata struct {
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
	IsAdmin   bool   `json:"isAdmin,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Claims is the payload of a provider-issued access token.
type Claims struct {
	Email        string       `json:"email,omitempty"`
	Role         string       `json:"role,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// VerifyOptions tunes Verify.
type VerifyOptions struct {
	IgnoreExpiration bool
}

// TokenCodec decodes and verifies provider tokens. It holds no mutable state.
type TokenCodec struct {
	mode   TokenMode
	secret []byte
	leeway time.Duration
}

// NewTokenCodec builds a codec. Verify mode requires a non-empty secret.
func NewTokenCodec(mode TokenMode, secret string) (*TokenCodec, error) {
	if mode == "" {
		mode = TokenModeDecode
	}
	if mode == TokenModeVerify && strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: verify mode requires a jwt secret")
	}
	return &TokenCodec{mode: mode, secret: []byte(secret), leeway: 5 * time.Second}, nil
}

// Mode returns the configured mode.
func (c *TokenCodec) Mode() TokenMode { return c.mode }

// Decode parses the token without checking its signature.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims, nil
}

// Verify checks an HS256 signature with key, then expiry unless opts says otherwise.
func (c *TokenCodec) Verify(token string, key []byte, opts VerifyOptions) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: no verification key", ErrInvalidToken)
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(c.leeway),
	}
	if opts.IgnoreExpiration {
		parserOpts = append(parserOpts, jwt.WithoutClaimsValidation())
	} else {
		parserOpts = append(parserOpts, jwt.WithExpirationRequired())
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, parserOpts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate is the single trust boundary for request-time token reads.
// In decode mode the signature is assumed checked by the provider at issuance.
func (c *TokenCodec) Authenticate(token string) (*Claims, error) {
	if c.mode == TokenModeVerify {
		return c.Verify(token, c.secret, VerifyOptions{})
	}
	return c.Decode(token)
}
