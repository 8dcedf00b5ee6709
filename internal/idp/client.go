// Package idp is a client for the Supabase GoTrue REST API.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Config wires a Client to a GoTrue deployment.
type Config struct {
	// BaseURL is the project URL; "/auth/v1" is appended.
	BaseURL string
	// APIKey is the anon key sent on user-facing calls.
	APIKey string
	// ServiceKey is the service-role key used on admin calls. Falls back to APIKey.
	ServiceKey string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to GoTrue. Safe for concurrent use.
type Client struct {
	base       string
	apiKey     string
	serviceKey string
	http       *http.Client
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("idp: base url required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("idp: parse base url: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("idp: api key required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	service := cfg.ServiceKey
	if service == "" {
		service = cfg.APIKey
	}
	return &Client{
		base:       strings.TrimRight(cfg.BaseURL, "/") + "/auth/v1",
		apiKey:     cfg.APIKey,
		serviceKey: service,
		http:       hc,
	}, nil
}

type credentials struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// signUpResponse is a session when the project auto-confirms, otherwise a bare user.
type signUpResponse struct {
	Session
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// SignUp registers a new account with metadata stored as user_metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthResponse, error) {
	var out signUpResponse
	err := c.do(ctx, http.MethodPost, "/signup", nil, c.apiKey, "", credentials{Email: email, Password: password, Data: metadata}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return &AuthResponse{User: User{ID: out.ID, Email: out.Email, UserMetadata: out.UserMetadata}}, nil
	}
	session := out.Session
	return &AuthResponse{User: session.User, Session: &session}, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var out Session
	q := url.Values{"grant_type": {"password"}}
	if err := c.do(ctx, http.MethodPost, "/token", q, c.apiKey, "", credentials{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshSession exchanges a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var out Session
	q := url.Values{"grant_type": {"refresh_token"}}
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token", q, c.apiKey, "", body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, nil
	}
	return &out, nil
}

// AdminSignOut revokes the session identified by accessToken. scope is "local", "global" or "others".
func (c *Client) AdminSignOut(ctx context.Context, accessToken, scope string) error {
	if scope == "" {
		scope = "local"
	}
	q := url.Values{"scope": {scope}}
	err := c.do(ctx, http.MethodPost, "/logout", q, c.serviceKey, accessToken, nil, nil)
	// Already gone upstream.
	if errors.Is(err, ErrSessionMissing) {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusUnauthorized) {
		return nil
	}
	return err
}

// ResetPasswordForEmail sends a recovery mail.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, http.MethodPost, "/recover", q, c.apiKey, "", map[string]string{"email": email}, nil)
}

// UpdateUser changes attributes of the account owning accessToken.
func (c *Client) UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPut, "/user", nil, c.apiKey, accessToken, attrs, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, key, bearer string, in, out any) error {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("idp: encode %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("idp: build %s: %w", path, err)
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = key
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrRetryableFetch, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrRetryableFetch, path, err)
	}

	if resp.StatusCode/100 != 2 {
		var pe providerError
		_ = json.Unmarshal(raw, &pe)
		return pe.toAPIError(resp.StatusCode)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("idp: decode %s: %w", path, err)
	}
	return nil
}
