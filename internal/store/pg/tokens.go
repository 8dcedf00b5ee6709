package pg

import (
	"context"

	"myapp.dev/internal/auth"
)

var _ auth.ExpiredTokenStore = (*Store)(nil)

// Insert records a revoked token; a duplicate maps to auth.ErrAlreadyRevoked.
func (s *Store) Insert(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `insert into "ExpiredToken" (token) values ($1)`, token)
	if isUniqueViolation(err) {
		return auth.ErrAlreadyRevoked
	}
	return err
}

func (s *Store) Exists(ctx context.Context, token string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `select exists(select 1 from "ExpiredToken" where token = $1)`, token).Scan(&ok)
	return ok, err
}
