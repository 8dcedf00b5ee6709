package auth

import "context"

// UserStore loads and provisions local subjects.
type UserStore interface {
	FindByUUID(ctx context.Context, uuid string) (*User, error)
	// FindByID resolves creator back-references.
	FindByID(ctx context.Context, id int64) (*User, error)
	// Provision inserts u unless a subject with the same UUID exists. It reports whether a row was created.
	Provision(ctx context.Context, u *User) (bool, error)
}

// PermissionStore answers permission-graph queries.
type PermissionStore interface {
	// CodesForSubject returns the distinct permission codes reachable from the subject
	// through any assigned profile. activeOnly drops del/arc rows on every joined table.
	CodesForSubject(ctx context.Context, uuid string, activeOnly bool) ([]string, error)
}

// ExpiredTokenStore persists revoked credentials.
type ExpiredTokenStore interface {
	// Insert returns ErrAlreadyRevoked when the token is already recorded.
	Insert(ctx context.Context, token string) error
	Exists(ctx context.Context, token string) (bool, error)
}
