package idp

import "time"

// User is the identity-provider account attached to a session.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Session is the credential pair returned by sign-up, sign-in and refresh.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	// ExpiresAt is a unix timestamp in seconds.
	ExpiresAt int64 `json:"expires_at"`
	User      User  `json:"user"`
}

// Expiry returns the absolute expiry, deriving it from ExpiresIn when the provider omits expires_at.
func (s *Session) Expiry(now time.Time) time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return now.Add(time.Duration(s.ExpiresIn) * time.Second)
}

// AuthResponse is the sign-up result. Session is nil while the account awaits email confirmation.
type AuthResponse struct {
	User    User
	Session *Session
}

// UserAttributes are the mutable account fields accepted by UpdateUser.
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}
