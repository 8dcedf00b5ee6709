package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"myapp.dev/internal/auth"
	"myapp.dev/internal/cache"
	"myapp.dev/internal/clients"
	"myapp.dev/internal/idp"
	"myapp.dev/internal/mail"
)

const (
	testSecret   = "test-secret"
	subjectU1    = "0b6f7c52-1f5e-4a55-9d0a-3c1b2a9f1e01"
	subjectOther = "7d1f6b0e-4c3a-4f8e-8a51-2b9c0d7e6f02"
)

// fakeProvider accepts one account and issues deterministic sessions.
type fakeProvider struct {
	mu        sync.Mutex
	email     string
	password  string
	subject   string
	signOuts  []string
	refreshed []string
}

func (p *fakeProvider) session(t string) *idp.Session {
	return &idp.Session{
		AccessToken:  t,
		RefreshToken: "rt-" + p.subject,
		TokenType:    "bearer",
		ExpiresIn:    900,
		ExpiresAt:    time.Now().Add(15 * time.Minute).Unix(),
		User:         idp.User{ID: p.subject, Email: p.email, UserMetadata: map[string]any{"firstname": "Ada"}},
	}
}

func (p *fakeProvider) SignUp(_ context.Context, email, password string, _ map[string]any) (*idp.AuthResponse, error) {
	if email == p.email {
		return nil, &idp.APIError{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}
	return &idp.AuthResponse{User: idp.User{ID: p.subject, Email: email}, Session: p.session("at-new")}, nil
}

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*idp.Session, error) {
	if email != p.email || password != p.password {
		return nil, &idp.APIError{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}
	return p.session("at-" + p.subject), nil
}

func (p *fakeProvider) RefreshSession(_ context.Context, rt string) (*idp.Session, error) {
	p.mu.Lock()
	p.refreshed = append(p.refreshed, rt)
	p.mu.Unlock()
	if rt != "rt-"+p.subject {
		return nil, &idp.APIError{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token"}
	}
	return p.session("at-rotated"), nil
}

func (p *fakeProvider) AdminSignOut(_ context.Context, at, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts = append(p.signOuts, at)
	return nil
}

func (p *fakeProvider) ResetPasswordForEmail(context.Context, string, string) error { return nil }

func (p *fakeProvider) UpdateUser(_ context.Context, _ string, attrs idp.UserAttributes) (*idp.User, error) {
	if len(attrs.Password) < 8 {
		return nil, idp.ErrWeakPassword
	}
	return &idp.User{ID: p.subject, Email: attrs.Email}, nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func (m *memTokens) Insert(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens[token] {
		return auth.ErrAlreadyRevoked
	}
	m.tokens[token] = true
	return nil
}

func (m *memTokens) Exists(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[token], nil
}

// memGraph models User -> UserProfile -> Profile -> ProfilePermission -> Permission.
type memGraph struct {
	mu       sync.Mutex
	users    map[string]*auth.User
	profiles map[string][]string
	assigned map[string][]string
}

func newMemGraph() *memGraph {
	return &memGraph{users: map[string]*auth.User{}, profiles: map[string][]string{}, assigned: map[string][]string{}}
}

func (g *memGraph) addUser(uuid string) *auth.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	u := &auth.User{ID: int64(len(g.users) + 1), UUID: uuid, Email: uuid[:8] + "@example.com", Status: auth.StatusValidated}
	g.users[uuid] = u
	return u
}

func (g *memGraph) defineProfile(code string, perms ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profiles[code] = perms
}

func (g *memGraph) assign(uuid, profile string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assigned[uuid] = append(g.assigned[uuid], profile)
}

func (g *memGraph) FindByUUID(_ context.Context, uuid string) (*auth.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if u, ok := g.users[uuid]; ok {
		return u, nil
	}
	return nil, auth.ErrNotFound
}

func (g *memGraph) FindByID(_ context.Context, id int64) (*auth.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, u := range g.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (g *memGraph) Provision(ctx context.Context, u *auth.User) (bool, error) {
	if _, err := g.FindByUUID(ctx, u.UUID); err == nil {
		return false, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	u.ID = int64(len(g.users) + 1)
	g.users[u.UUID] = u
	return true, nil
}

func (g *memGraph) CodesForSubject(_ context.Context, uuid string, _ bool) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[uuid]; !ok {
		return nil, nil
	}
	var out []string
	for _, p := range g.assigned[uuid] {
		out = append(out, g.profiles[p]...)
	}
	return out, nil
}

// memClients is a clients.Store over a map.
type memClients struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]*clients.Client
	contracts map[int64][]clients.Contract
}

func newMemClients() *memClients {
	return &memClients{items: map[int64]*clients.Client{}, contracts: map[int64][]clients.Contract{}}
}

func (m *memClients) CreateClient(_ context.Context, c *clients.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	c.Created = time.Now().UTC()
	c.LastModified = c.Created
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *memClients) GetClient(_ context.Context, id int64) (*clients.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memClients) sorted() []clients.Client {
	out := make([]clients.Client, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memClients) ListClients(_ context.Context, afterID int64, limit int) ([]clients.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []clients.Client
	for _, c := range m.sorted() {
		if c.ID > afterID && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memClients) SearchClients(_ context.Context, q clients.SearchQuery) ([]clients.Client, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []clients.Client
	needle := strings.ToLower(q.Text)
	for _, c := range m.sorted() {
		if strings.Contains(strings.ToLower(c.Label), needle) || strings.Contains(strings.ToLower(c.Description), needle) {
			matched = append(matched, c)
		}
	}
	total := len(matched)
	if q.Offset < len(matched) {
		matched = matched[q.Offset:]
	} else {
		matched = nil
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func (m *memClients) UpdateClient(_ context.Context, id int64, label, description string) (*clients.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	c.Label, c.Description = label, description
	cp := *c
	return &cp, nil
}

func (m *memClients) SetClientStatus(_ context.Context, id int64, status auth.Status) (*clients.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	c.Status = status
	cp := *c
	return &cp, nil
}

func (m *memClients) DestroyClient(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return clients.ErrNotFound
	}
	if len(m.contracts[id]) > 0 {
		return clients.ErrHasContracts
	}
	delete(m.items, id)
	return nil
}

func (m *memClients) ClientContracts(_ context.Context, clientID int64) ([]clients.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]clients.Contract(nil), m.contracts[clientID]...), nil
}

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type testEnv struct {
	api      *API
	provider *fakeProvider
	graph    *memGraph
	tokens   *memTokens
	clients  *memClients
	mailer   *recordingMailer
	cache    cache.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		provider: &fakeProvider{email: "ada@example.com", password: "correct-horse", subject: subjectU1},
		graph:    newMemGraph(),
		tokens:   &memTokens{tokens: map[string]bool{}},
		clients:  newMemClients(),
		mailer:   &recordingMailer{},
		cache:    cache.NewMemory("test"),
	}
	codec, err := auth.NewTokenCodec(auth.TokenModeDecode, "")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	ledger := auth.NewLedger(env.tokens)
	resolver := auth.NewResolver(env.graph, env.graph)
	sessions := auth.NewSessionManager(auth.NewGateway(env.provider, ledger), ledger, codec, resolver, env.graph)

	env.api = New(Deps{
		Sessions: sessions,
		Clients:  clients.NewService(env.clients),
		Cache:    env.cache,
		Mailer:   env.mailer,
	}, Options{Version: "test", RatePerSec: 1000, RateBurst: 1000})
	return env
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	claims := auth.Claims{
		Email:        "user@example.com",
		UserMetadata: auth.UserMetadata{Sub: sub},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:1234"
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rr, req)
	return rr
}

func accessCookie(token string) *http.Cookie {
	return &http.Cookie{Name: auth.DefaultAccessCookie, Value: token}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
