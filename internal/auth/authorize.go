package auth

import "sort"

// Principal is a subject with its resolved permission set.
type Principal struct {
	User        *User
	Permissions map[string]struct{}
}

// NewPrincipal builds a principal from a list of codes; duplicates collapse.
func NewPrincipal(user *User, codes []string) Principal {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return Principal{User: user, Permissions: set}
}

// HasPermission reports whether the principal holds code.
func (p Principal) HasPermission(code string) bool {
	_, ok := p.Permissions[code]
	return ok
}

// HasAll reports whether every required code is held. An empty requirement is always met.
func (p Principal) HasAll(required ...string) bool {
	for _, code := range required {
		if !p.HasPermission(code) {
			return false
		}
	}
	return true
}

// Codes returns the permission set sorted.
func (p Principal) Codes() []string {
	out := make([]string, 0, len(p.Permissions))
	for c := range p.Permissions {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
