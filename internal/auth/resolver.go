package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"myapp.dev/internal/apperr"
)

// Resolver computes effective permissions through the User→Profile→Permission graph.
type Resolver struct {
	users      UserStore
	perms      PermissionStore
	activeOnly bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithActiveGrantsOnly drops deleted and archived rows from resolution.
func WithActiveGrantsOnly(on bool) ResolverOption {
	return func(r *Resolver) { r.activeOnly = on }
}

// NewResolver wires the stores.
func NewResolver(users UserStore, perms PermissionStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{users: users, perms: perms}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolvePermissions returns the sorted distinct codes held by the subject.
// Results are read through on every call.
func (r *Resolver) ResolvePermissions(ctx context.Context, externalID string) ([]string, error) {
	codes, err := r.perms.CodesForSubject(ctx, externalID, r.activeOnly)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	return dedupe(codes), nil
}

// HasAll reports whether the subject holds every required code.
func (r *Resolver) HasAll(ctx context.Context, externalID string, required []string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}
	codes, err := r.ResolvePermissions(ctx, externalID)
	if err != nil {
		return false, err
	}
	return NewPrincipal(nil, codes).HasAll(required...), nil
}

// Principal loads the subject and its permissions.
func (r *Resolver) Principal(ctx context.Context, externalID string) (Principal, error) {
	user, err := r.users.FindByUUID(ctx, externalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, apperr.NotFound("User not found")
		}
		return Principal{}, fmt.Errorf("load subject: %w", err)
	}
	codes, err := r.ResolvePermissions(ctx, externalID)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(user, codes), nil
}

// Creator resolves the subject who provisioned u, or nil.
func (r *Resolver) Creator(ctx context.Context, u *User) (*User, error) {
	if u == nil || u.CreatorID == nil {
		return nil, nil
	}
	creator, err := r.users.FindByID(ctx, *u.CreatorID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return creator, err
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
