package auth

import (
	"context"
	"errors"
	"strings"

	"myapp.dev/internal/obs"
)

// Ledger records spent and revoked credentials.
type Ledger struct {
	store ExpiredTokenStore
}

// NewLedger wraps store.
func NewLedger(store ExpiredTokenStore) *Ledger {
	return &Ledger{store: store}
}

// Revoke records token. A token that is already recorded is logged and ignored.
// Other store errors are returned; callers log them and carry on.
func (l *Ledger) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	err := l.store.Insert(ctx, token)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyRevoked):
		obs.From(ctx).Warn("token already revoked", obs.Component("auth.ledger"), obs.Op("revoke"))
		return nil
	default:
		return err
	}
}

// IsRevoked reports whether token was recorded.
func (l *Ledger) IsRevoked(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	return l.store.Exists(ctx, token)
}
