package auth

import (
	"context"
	"errors"

	"myapp.dev/internal/apperr"
	"myapp.dev/internal/idp"
	"myapp.dev/internal/obs"
)

// IdentityProvider is the subset of the GoTrue client the gateway drives.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*idp.AuthResponse, error)
	SignInWithPassword(ctx context.Context, email, password string) (*idp.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*idp.Session, error)
	AdminSignOut(ctx context.Context, accessToken, scope string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, accessToken string, attrs idp.UserAttributes) (*idp.User, error)
}

// Metadata is stored with the provider account and echoed back in token claims.
type Metadata struct {
	Firstname string
	Lastname  string
	IsAdmin   bool
}

func (m Metadata) toMap() map[string]any {
	return map[string]any{
		"firstname": m.Firstname,
		"lastname":  m.Lastname,
		"isAdmin":   m.IsAdmin,
	}
}

// Gateway maps provider calls to classified errors and keeps the ledger in step.
type Gateway struct {
	provider IdentityProvider
	ledger   *Ledger
}

// NewGateway wires a provider and ledger.
func NewGateway(provider IdentityProvider, ledger *Ledger) *Gateway {
	return &Gateway{provider: provider, ledger: ledger}
}

// Register creates an account. A nil session with a nil error means the account awaits confirmation.
func (g *Gateway) Register(ctx context.Context, email, password string, md Metadata) (*idp.Session, error) {
	resp, err := g.provider.SignUp(ctx, email, password, md.toMap())
	if err != nil {
		if errors.Is(err, idp.ErrRetryableFetch) {
			return nil, apperr.Internal(err)
		}
		return nil, apperr.UnprocessableRegistration(err)
	}
	return resp.Session, nil
}

// Login exchanges credentials for a session.
func (g *Gateway) Login(ctx context.Context, email, password string) (*idp.Session, error) {
	session, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, idp.ErrRetryableFetch) {
			return nil, apperr.Internal(err)
		}
		return nil, apperr.InvalidCredentials(err)
	}
	return session, nil
}

// Logout ends the provider session and records accessToken in the ledger.
// The ledger write happens even when the provider call fails; the provider error is returned.
func (g *Gateway) Logout(ctx context.Context, accessToken string) error {
	log := obs.From(ctx)
	providerErr := g.provider.AdminSignOut(ctx, accessToken, "local")
	if providerErr != nil {
		log.Error("provider sign-out failed", obs.Component("auth.gateway"), obs.Err(providerErr))
	}
	if err := g.ledger.Revoke(ctx, accessToken); err != nil {
		log.Error("revoke access token failed", obs.Component("auth.gateway"), obs.Err(err))
	}
	return providerErr
}

// Refresh spends refreshToken in the ledger, then asks the provider for a new session.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (*idp.Session, error) {
	if err := g.ledger.Revoke(ctx, refreshToken); err != nil {
		obs.From(ctx).Error("revoke refresh token failed", obs.Component("auth.gateway"), obs.Err(err))
	}
	session, err := g.provider.RefreshSession(ctx, refreshToken)
	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, idp.ErrRetryableFetch):
		return nil, apperr.Internal(err)
	case idp.IsAuthAPIError(err):
		return nil, apperr.Unauthorized(err)
	default:
		return nil, err
	}
}

// ResetPassword sends a recovery mail.
func (g *Gateway) ResetPassword(ctx context.Context, email, redirectTo string) error {
	if err := g.provider.ResetPasswordForEmail(ctx, email, redirectTo); err != nil {
		if errors.Is(err, idp.ErrRetryableFetch) {
			return apperr.Internal(err)
		}
		return apperr.BadRequest("Unable to send the password reset email", err)
	}
	return nil
}

// UpdatePassword sets a new password on the account owning accessToken.
func (g *Gateway) UpdatePassword(ctx context.Context, accessToken, email, password string) error {
	_, err := g.provider.UpdateUser(ctx, accessToken, idp.UserAttributes{Email: email, Password: password})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, idp.ErrRetryableFetch):
		return apperr.Internal(err)
	case errors.Is(err, idp.ErrWeakPassword):
		return apperr.BadRequest("Password is too weak", err)
	case errors.Is(err, idp.ErrSessionMissing):
		return apperr.Unauthorized(err)
	default:
		return apperr.BadRequest("Unable to update the password", err)
	}
}
