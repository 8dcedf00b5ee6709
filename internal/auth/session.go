package auth

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"myapp.dev/internal/apperr"
	"myapp.dev/internal/idp"
	"myapp.dev/internal/obs"
)

const minPasswordLength = 6

// SignUpInput is the registration form.
type SignUpInput struct {
	Email     string
	Password  string
	Firstname string
	Lastname  string
}

// SessionResult is returned by every flow that issues a session.
type SessionResult struct {
	User    idp.User
	Session *idp.Session
	Cookies []*http.Cookie
}

// AuthenticatedUser is the subject behind a request's access token.
type AuthenticatedUser struct {
	Principal Principal
	Claims    *Claims
}

// SessionManager drives sign-in, sign-up, sign-out and refresh and issues cookies.
type SessionManager struct {
	gateway       *Gateway
	ledger        *Ledger
	codec         *TokenCodec
	resolver      *Resolver
	users         UserStore
	cookies       CookieIssuer
	now           func() time.Time
	rejectRevoked bool
}

// SessionOption configures SessionManager.
type SessionOption func(*SessionManager)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithCookies replaces the cookie issuer.
func WithCookies(c CookieIssuer) SessionOption {
	return func(m *SessionManager) { m.cookies = c }
}

// WithRevocationCheck makes AuthenticatedUser reject tokens present in the ledger.
func WithRevocationCheck(on bool) SessionOption {
	return func(m *SessionManager) { m.rejectRevoked = on }
}

// NewSessionManager wires the collaborators.
func NewSessionManager(gateway *Gateway, ledger *Ledger, codec *TokenCodec, resolver *Resolver, users UserStore, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		gateway:  gateway,
		ledger:   ledger,
		codec:    codec,
		resolver: resolver,
		users:    users,
		cookies:  NewCookieIssuer(DefaultCookieConfig()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cookies exposes the issuer so the HTTP layer reads the same cookie names.
func (m *SessionManager) Cookies() CookieIssuer { return m.cookies }

// SignIn authenticates with the provider and issues session cookies.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (*SessionResult, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	session, err := m.gateway.Login(ctx, email, password)
	if err != nil {
		obs.AuthEvent("signin", "rejected")
		return nil, err
	}
	obs.AuthEvent("signin", "ok")
	return &SessionResult{User: session.User, Session: session, Cookies: m.cookies.Issue(session, m.now(), 0)}, nil
}

// SignUp registers the account, provisions the local subject and issues cookies.
func (m *SessionManager) SignUp(ctx context.Context, in SignUpInput) (*SessionResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return nil, err
	}
	session, err := m.gateway.Register(ctx, in.Email, in.Password, Metadata{Firstname: in.Firstname, Lastname: in.Lastname})
	if err != nil {
		obs.AuthEvent("signup", "rejected")
		return nil, err
	}
	if session == nil {
		obs.AuthEvent("signup", "no_session")
		return nil, apperr.RegistrationFailed()
	}
	m.provision(ctx, session.User, in)
	obs.AuthEvent("signup", "ok")
	return &SessionResult{User: session.User, Session: session, Cookies: m.cookies.Issue(session, m.now(), 0)}, nil
}

func (m *SessionManager) provision(ctx context.Context, pu idp.User, in SignUpInput) {
	if m.users == nil || pu.ID == "" {
		return
	}
	email := pu.Email
	if email == "" {
		email = in.Email
	}
	created, err := m.users.Provision(ctx, &User{
		UUID:      pu.ID,
		Firstname: in.Firstname,
		Lastname:  in.Lastname,
		Email:     email,
		Status:    StatusInitialized,
	})
	log := obs.From(ctx)
	if err != nil {
		log.Error("provision subject failed", obs.Component("auth.session"), obs.UserID(pu.ID), obs.Err(err))
		return
	}
	if created {
		log.Info("subject provisioned", obs.Component("auth.session"), obs.UserID(pu.ID))
	}
}

// SignOut ends the provider session when an access token is present. It always succeeds
// and returns expired cookies for both names.
func (m *SessionManager) SignOut(ctx context.Context, accessToken, refreshToken string) []*http.Cookie {
	if strings.TrimSpace(accessToken) != "" {
		// Failures are already logged by the gateway.
		_ = m.gateway.Logout(ctx, accessToken)
	}
	obs.AuthEvent("signout", "ok")
	return m.cookies.Clear()
}

// Refresh rotates the session. The old refresh token is spent even when the exchange fails.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*SessionResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperr.Unauthorized(ErrMissingToken)
	}
	session, err := m.gateway.Refresh(ctx, refreshToken)
	if err != nil {
		obs.AuthEvent("refresh", "rejected")
		return nil, err
	}
	if session == nil {
		obs.AuthEvent("refresh", "no_session")
		return nil, apperr.RefreshFailed()
	}
	obs.AuthEvent("refresh", "ok")
	return &SessionResult{User: session.User, Session: session, Cookies: m.cookies.Issue(session, m.now(), RefreshCookieTTL)}, nil
}

// AuthenticatedUser resolves the subject and permissions behind accessToken.
func (m *SessionManager) AuthenticatedUser(ctx context.Context, accessToken string) (*AuthenticatedUser, error) {
	claims, err := m.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	principal, err := m.resolver.Principal(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return &AuthenticatedUser{Principal: principal, Claims: claims}, nil
}

// Authenticate applies the codec's trust boundary and, when enabled, the ledger check.
// Every failure is Unauthorized, including a subject that is not a UUID.
func (m *SessionManager) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, apperr.Unauthorized(ErrMissingToken)
	}
	claims, err := m.codec.Authenticate(accessToken)
	if err != nil {
		return nil, apperr.Unauthorized(err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, apperr.Unauthorized(ErrInvalidToken)
	}
	if m.rejectRevoked {
		revoked, err := m.ledger.IsRevoked(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, apperr.Unauthorized(ErrRevokedToken)
		}
	}
	return claims, nil
}

// Resolver returns the permission resolver used by this manager.
func (m *SessionManager) Resolver() *Resolver { return m.resolver }

// ResetPassword sends a recovery mail.
func (m *SessionManager) ResetPassword(ctx context.Context, email, redirectTo string) error {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.MalformedRequest("Invalid email", map[string]string{"email": "must be a valid address"})
	}
	return m.gateway.ResetPassword(ctx, email, redirectTo)
}

// UpdatePassword changes the password of the account owning accessToken.
func (m *SessionManager) UpdatePassword(ctx context.Context, accessToken, email, password string) error {
	if strings.TrimSpace(accessToken) == "" {
		return apperr.Unauthorized(ErrMissingToken)
	}
	if err := validateCredentials(strings.TrimSpace(email), password); err != nil {
		return err
	}
	return m.gateway.UpdatePassword(ctx, accessToken, strings.TrimSpace(email), password)
}

func validateCredentials(email, password string) error {
	fields := map[string]string{}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fields["email"] = "must be a valid address"
	}
	if len(password) < minPasswordLength {
		fields["password"] = "must be at least 6 characters"
	}
	if len(fields) > 0 {
		return apperr.MalformedRequest("Invalid credentials format", fields)
	}
	return nil
}
