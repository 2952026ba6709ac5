package auth

import (
	"context"
)

var identityCtxKey = &contextKey{"identity"}

// Identity is the authenticated subject bound to a request. Roles are the
// current role records of the account, loaded when the token was resolved.
type Identity struct {
	Account *UserAccount `json:"account"`
	User    *User        `json:"user"`
	Roles   []*Role      `json:"roles"`
	Token   string       `json:"-"`
}

// RoleNames returns the names of the bound roles
func (i *Identity) RoleNames() []string {
	if i == nil {
		return nil
	}
	return roleNames(i.Roles)
}

// Claims returns every claim granted by the bound roles, in role order
func (i *Identity) Claims() []Claim {
	if i == nil {
		return nil
	}
	claims := []Claim{}
	for _, r := range i.Roles {
		claims = append(claims, r.Claims...)
	}
	return claims
}

// WithIdentity binds the identity to the context
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the identity bound to the context
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityCtxKey).(*Identity)
	return identity, ok && identity != nil
}

// IsAuthenticated reports whether an identity is bound to the context
func IsAuthenticated(ctx context.Context) bool {
	_, ok := IdentityFromContext(ctx)
	return ok
}

// RequireAuthenticated returns the bound identity or ErrNotAuthenticated
func RequireAuthenticated(ctx context.Context) (*Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return identity, nil
}

// HasAnyRole reports whether the bound identity holds at least one of names
func HasAnyRole(ctx context.Context, names ...string) bool {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return false
	}
	held := identity.roleSet()
	for _, n := range names {
		if _, ok := held[n]; ok {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the bound identity holds every one of names
func HasAllRoles(ctx context.Context, names ...string) bool {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return false
	}
	held := identity.roleSet()
	for _, n := range names {
		if _, ok := held[n]; !ok {
			return false
		}
	}
	return true
}

// Can reports whether any claim of the bound identity allows
// action under scope on resource
func Can(ctx context.Context, action ClaimAction, scope ClaimScope, resource string) bool {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return false
	}
	for _, c := range identity.Claims() {
		if c.Allows(action, scope, resource) {
			return true
		}
	}
	return false
}

func (i *Identity) roleSet() map[string]struct{} {
	held := make(map[string]struct{}, len(i.Roles))
	for _, r := range i.Roles {
		held[r.Name] = struct{}{}
	}
	return held
}
