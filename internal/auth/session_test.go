package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"myapp.dev/internal/apperr"
	"myapp.dev/internal/idp"
)

type fixture struct {
	provider *stubProvider
	tokens   *memTokens
	graph    *memGraph
	manager  *SessionManager
	now      time.Time
}

func newFixture(t *testing.T, opts ...SessionOption) *fixture {
	t.Helper()
	f := &fixture{
		provider: &stubProvider{},
		tokens:   newMemTokens(),
		graph:    newMemGraph(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	codec, err := NewTokenCodec(TokenModeDecode, "")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	ledger := NewLedger(f.tokens)
	opts = append([]SessionOption{WithClock(func() time.Time { return f.now })}, opts...)
	f.manager = NewSessionManager(
		NewGateway(f.provider, ledger),
		ledger,
		codec,
		NewResolver(f.graph, f.graph),
		f.graph,
		opts...,
	)
	return f
}

func statusOf(err error) int {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignUpThenSignIn(t *testing.T) {
	f := newFixture(t)
	accounts := map[string]string{}
	f.provider.signUp = func(_ context.Context, email, password string, md map[string]any) (*idp.AuthResponse, error) {
		accounts[email] = password
		s := testSession("u-new", f.now)
		s.User.Email = email
		return &idp.AuthResponse{User: s.User, Session: s}, nil
	}
	f.provider.signIn = func(_ context.Context, email, password string) (*idp.Session, error) {
		if accounts[email] != password {
			return nil, &idp.APIError{Status: 400, Code: "invalid_credentials"}
		}
		return testSession("u-new", f.now), nil
	}

	up, err := f.manager.SignUp(context.Background(), SignUpInput{Email: "new@example.com", Password: "secret1", Firstname: "Ada"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	in, err := f.manager.SignIn(context.Background(), "new@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if in.Session.User.ID != up.Session.User.ID {
		t.Fatalf("subject mismatch: %s vs %s", in.Session.User.ID, up.Session.User.ID)
	}
	if len(f.graph.provisioned) != 1 || f.graph.provisioned[0].UUID != "u-new" || f.graph.provisioned[0].Firstname != "Ada" {
		t.Fatalf("subject not provisioned: %+v", f.graph.provisioned)
	}

	_, err = f.manager.SignIn(context.Background(), "new@example.com", "wrong-password")
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindInvalidCredentials || ae.Status != http.StatusUnauthorized {
		t.Fatalf("wrong password must be InvalidCredentials, got %v", err)
	}
}

func TestSignInCookies(t *testing.T) {
	f := newFixture(t)
	f.provider.signIn = func(context.Context, string, string) (*idp.Session, error) {
		return testSession("u1", f.now), nil
	}

	res, err := f.manager.SignIn(context.Background(), "u1@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	access := cookieByName(res.Cookies, DefaultAccessCookie)
	refresh := cookieByName(res.Cookies, DefaultRefreshCookie)
	if access == nil || refresh == nil {
		t.Fatalf("expected both cookies, got %+v", res.Cookies)
	}
	if access.Value != "at-u1" || !access.Secure || access.SameSite != http.SameSiteNoneMode || access.MaxAge != 900 {
		t.Fatalf("unexpected access cookie %+v", access)
	}
	if refresh.Value != "rt-u1" || !refresh.Secure || refresh.MaxAge != 0 {
		t.Fatalf("unexpected refresh cookie %+v", refresh)
	}
}

func TestSignInRejectsMalformedCredentials(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.SignIn(context.Background(), "not-an-email", "x")
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindMalformedRequest {
		t.Fatalf("expected MalformedRequest, got %v", err)
	}
	fields, _ := ae.Metadata.(map[string]string)
	if fields["email"] == "" || fields["password"] == "" {
		t.Fatalf("expected both fields flagged, got %v", ae.Metadata)
	}
}

func TestSignUpWithoutSessionFails(t *testing.T) {
	f := newFixture(t)
	f.provider.signUp = func(context.Context, string, string, map[string]any) (*idp.AuthResponse, error) {
		return &idp.AuthResponse{User: idp.User{ID: "u2"}}, nil
	}
	_, err := f.manager.SignUp(context.Background(), SignUpInput{Email: "b@example.com", Password: "secret1"})
	if !errors.Is(err, apperr.RegistrationFailed()) || statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected RegistrationFailed, got %v", err)
	}
	if len(f.graph.provisioned) != 0 {
		t.Fatalf("no subject should be provisioned without a session")
	}
}

func TestSignUpProviderRejection(t *testing.T) {
	f := newFixture(t)
	f.provider.signUp = func(context.Context, string, string, map[string]any) (*idp.AuthResponse, error) {
		return nil, &idp.APIError{Status: 422, Code: "weak_password"}
	}
	_, err := f.manager.SignUp(context.Background(), SignUpInput{Email: "b@example.com", Password: "secret1"})
	if statusOf(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestSignOutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.provider.adminSignOut = func(context.Context, string, string) error {
		calls++
		if calls > 1 {
			return errors.New("session already gone")
		}
		return nil
	}

	for i := 0; i < 2; i++ {
		cookies := f.manager.SignOut(context.Background(), "at-u1", "rt-u1")
		if len(cookies) != 2 {
			t.Fatalf("expected two clearing cookies, got %d", len(cookies))
		}
		for _, c := range cookies {
			if c.MaxAge >= 0 || c.Value != "" {
				t.Fatalf("cookie %s not cleared: %+v", c.Name, c)
			}
		}
	}
	if f.tokens.count("at-u1") != 1 {
		t.Fatalf("access token must be recorded exactly once, got %d", f.tokens.count("at-u1"))
	}
}

func TestRefreshRotatesAndResetsRefreshWindow(t *testing.T) {
	f := newFixture(t)
	f.provider.refresh = func(_ context.Context, rt string) (*idp.Session, error) {
		s := testSession("u1", f.now)
		s.AccessToken, s.RefreshToken = "at-2", "rt-2"
		return s, nil
	}

	res, err := f.manager.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if f.tokens.count("rt-1") != 1 {
		t.Fatalf("old refresh token must be spent")
	}
	refresh := cookieByName(res.Cookies, DefaultRefreshCookie)
	if refresh == nil || refresh.Value != "rt-2" || refresh.MaxAge != int(RefreshCookieTTL.Seconds()) {
		t.Fatalf("unexpected refresh cookie %+v", refresh)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	f := newFixture(t)
	f.provider.refresh = func(context.Context, string) (*idp.Session, error) { return nil, nil }

	res, err := f.manager.Refresh(context.Background(), "rt-1")
	if !errors.Is(err, apperr.RefreshFailed()) || res != nil {
		t.Fatalf("expected RefreshFailed and no cookies, got %v %+v", err, res)
	}
	if f.tokens.count("rt-1") != 1 {
		t.Fatalf("refresh token must be recorded exactly once, got %d", f.tokens.count("rt-1"))
	}
}

func TestRefreshProviderFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"auth api rejection", &idp.APIError{Status: 400, Code: "refresh_token_already_used"}, http.StatusUnauthorized},
		{"retryable", &idp.APIError{Status: 503}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.refresh = func(context.Context, string) (*idp.Session, error) { return nil, tc.err }
			_, err := f.manager.Refresh(context.Background(), "rt-x")
			if statusOf(err) != tc.want {
				t.Fatalf("got %v, want status %d", err, tc.want)
			}
			if f.tokens.count("rt-x") != 1 {
				t.Fatalf("refresh token must be spent even on failure")
			}
		})
	}
}

const (
	subjectAda   = "0b6f7c52-1f5e-4a55-9d0a-3c1b2a9f1e01"
	subjectGhost = "7d1f6b0e-4c3a-4f8e-8a51-2b9c0d7e6f02"
)

func TestAuthenticatedUser(t *testing.T) {
	f := newFixture(t)
	f.graph.users[subjectAda] = &User{ID: 1, UUID: subjectAda, Email: "ada@example.com"}
	f.graph.grant(subjectAda, PermReadClients)
	tok := signToken(t, "k", subjectAda, time.Now().Add(time.Hour))

	got, err := f.manager.AuthenticatedUser(context.Background(), tok)
	if err != nil {
		t.Fatalf("AuthenticatedUser: %v", err)
	}
	if got.Principal.User.UUID != subjectAda || !got.Principal.HasPermission(PermReadClients) {
		t.Fatalf("unexpected principal %+v", got.Principal)
	}

	if _, err := f.manager.AuthenticatedUser(context.Background(), ""); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("missing token must be 401, got %v", err)
	}
	if _, err := f.manager.AuthenticatedUser(context.Background(), "garbage"); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("malformed token must be 401, got %v", err)
	}
	unknown := signToken(t, "k", subjectGhost, time.Now().Add(time.Hour))
	if _, err := f.manager.AuthenticatedUser(context.Background(), unknown); statusOf(err) != http.StatusNotFound {
		t.Fatalf("unknown subject must be 404, got %v", err)
	}
}

func TestAuthenticateRejectsNonUUIDSubject(t *testing.T) {
	f := newFixture(t)
	f.graph.users["u1"] = &User{ID: 1, UUID: "u1"}
	tok := signToken(t, "k", "u1", time.Now().Add(time.Hour))

	_, err := f.manager.Authenticate(context.Background(), tok)
	if statusOf(err) != http.StatusUnauthorized || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("non-UUID subject must be 401 invalid token, got %v", err)
	}
	if _, err := f.manager.AuthenticatedUser(context.Background(), tok); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("AuthenticatedUser must not look up a non-UUID subject, got %v", err)
	}
}

func TestAuthenticateRejectsRevokedWhenEnabled(t *testing.T) {
	f := newFixture(t, WithRevocationCheck(true))
	f.graph.users[subjectAda] = &User{ID: 1, UUID: subjectAda}
	tok := signToken(t, "k", subjectAda, time.Now().Add(time.Hour))

	if _, err := f.manager.Authenticate(context.Background(), tok); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	f.manager.SignOut(context.Background(), tok, "")
	_, err := f.manager.Authenticate(context.Background(), tok)
	if !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected revoked, got %v", err)
	}
}

func TestUpdatePasswordWeak(t *testing.T) {
	f := newFixture(t)
	f.provider.updateUser = func(context.Context, string, idp.UserAttributes) (*idp.User, error) {
		return nil, &idp.APIError{Status: 422, Code: "weak_password"}
	}
	err := f.manager.UpdatePassword(context.Background(), "at", "a@example.com", "123456")
	if statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	var got string
	f.provider.resetPassword = func(_ context.Context, email, _ string) error {
		got = email
		return nil
	}
	if err := f.manager.ResetPassword(context.Background(), " a@example.com ", ""); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if got != "a@example.com" {
		t.Fatalf("unexpected email %q", got)
	}
	if err := f.manager.ResetPassword(context.Background(), "nope", ""); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
