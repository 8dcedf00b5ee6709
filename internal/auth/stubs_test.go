package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"myapp.dev/internal/idp"
)

type stubProvider struct {
	signUp        func(ctx context.Context, email, password string, md map[string]any) (*idp.AuthResponse, error)
	signIn        func(ctx context.Context, email, password string) (*idp.Session, error)
	refresh       func(ctx context.Context, rt string) (*idp.Session, error)
	adminSignOut  func(ctx context.Context, at, scope string) error
	resetPassword func(ctx context.Context, email, redirectTo string) error
	updateUser    func(ctx context.Context, at string, attrs idp.UserAttributes) (*idp.User, error)
}

func (s *stubProvider) SignUp(ctx context.Context, email, password string, md map[string]any) (*idp.AuthResponse, error) {
	return s.signUp(ctx, email, password, md)
}

func (s *stubProvider) SignInWithPassword(ctx context.Context, email, password string) (*idp.Session, error) {
	return s.signIn(ctx, email, password)
}

func (s *stubProvider) RefreshSession(ctx context.Context, rt string) (*idp.Session, error) {
	return s.refresh(ctx, rt)
}

func (s *stubProvider) AdminSignOut(ctx context.Context, at, scope string) error {
	if s.adminSignOut == nil {
		return nil
	}
	return s.adminSignOut(ctx, at, scope)
}

func (s *stubProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return s.resetPassword(ctx, email, redirectTo)
}

func (s *stubProvider) UpdateUser(ctx context.Context, at string, attrs idp.UserAttributes) (*idp.User, error) {
	return s.updateUser(ctx, at, attrs)
}

// memTokens is an in-memory ExpiredTokenStore with a unique constraint.
type memTokens struct {
	mu      sync.Mutex
	tokens  map[string]int
	inserts int
	failErr error
}

func newMemTokens() *memTokens { return &memTokens{tokens: map[string]int{}} }

func (m *memTokens) Insert(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.failErr != nil {
		return m.failErr
	}
	if _, ok := m.tokens[token]; ok {
		return ErrAlreadyRevoked
	}
	m.tokens[token] = 1
	return nil
}

func (m *memTokens) Exists(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[token]
	return ok, nil
}

func (m *memTokens) count(token string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[token]
}

// memGraph holds subjects and a subject→codes mapping.
type memGraph struct {
	mu          sync.Mutex
	users       map[string]*User
	codes       map[string][]string
	provisioned []*User
	lastActive  bool
}

func newMemGraph() *memGraph {
	return &memGraph{users: map[string]*User{}, codes: map[string][]string{}}
}

func (g *memGraph) FindByUUID(_ context.Context, uuid string) (*User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[uuid]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (g *memGraph) FindByID(_ context.Context, id int64) (*User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, u := range g.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (g *memGraph) Provision(_ context.Context, u *User) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[u.UUID]; ok {
		return false, nil
	}
	u.ID = int64(len(g.users) + 1)
	g.users[u.UUID] = u
	g.provisioned = append(g.provisioned, u)
	return true, nil
}

func (g *memGraph) CodesForSubject(_ context.Context, uuid string, activeOnly bool) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastActive = activeOnly
	return append([]string(nil), g.codes[uuid]...), nil
}

func (g *memGraph) grant(uuid string, codes ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.codes[uuid] = append(g.codes[uuid], codes...)
}

func signToken(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Email:        sub + "@example.com",
		UserMetadata: UserMetadata{Firstname: "Ada", Lastname: "Lovelace"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(exp.Add(-15 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func testSession(sub string, now time.Time) *idp.Session {
	return &idp.Session{
		AccessToken:  "at-" + sub,
		RefreshToken: "rt-" + sub,
		ExpiresIn:    900,
		ExpiresAt:    now.Add(15 * time.Minute).Unix(),
		User:         idp.User{ID: sub, Email: sub + "@example.com"},
	}
}
