package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsDecorator adds extension claims to a session token before it is
// signed. Only Metadata may be changed, touching any registered or
// identity claim fails the issue with ErrImmutableClaimMutation.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, account *UserAccount, user *User, claims *SessionClaims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator
type ClaimsDecoratorFunc func(ctx context.Context, account *UserAccount, user *User, claims *SessionClaims) error

// Decorate implements ClaimsDecorator
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, account *UserAccount, user *User, claims *SessionClaims) error {
	if f == nil {
		return nil
	}
	return f(ctx, account, user, claims)
}

// decorateClaims runs d over claims and rejects changes outside Metadata
func decorateClaims(ctx context.Context, d ClaimsDecorator, account *UserAccount, user *User, claims *SessionClaims) error {
	if d == nil {
		return nil
	}

	frozen := *claims
	frozen.Audience = slices.Clone(claims.Audience)
	frozen.Roles = slices.Clone(claims.Roles)
	frozen.IssuedAt = cloneDate(claims.IssuedAt)
	frozen.NotBefore = cloneDate(claims.NotBefore)
	frozen.ExpiresAt = cloneDate(claims.ExpiresAt)

	if err := d.Decorate(ctx, account, user, claims); err != nil {
		return err
	}

	if field := changedClaim(&frozen, claims); field != "" {
		return immutableClaimViolation(field)
	}
	return nil
}

// changedClaim names the first guarded claim that differs between a and b
func changedClaim(a, b *SessionClaims) string {
	checks := []struct {
		name  string
		equal bool
	}{
		{"jti", a.ID == b.ID},
		{"sub", a.Subject == b.Subject},
		{"iss", a.Issuer == b.Issuer},
		{"aud", slices.Equal(a.Audience, b.Audience)},
		{"iat", sameDate(a.IssuedAt, b.IssuedAt)},
		{"nbf", sameDate(a.NotBefore, b.NotBefore)},
		{"exp", sameDate(a.ExpiresAt, b.ExpiresAt)},
		{"email", a.Email == b.Email},
		{"username", a.Username == b.Username},
		{"roles", slices.Equal(a.Roles, b.Roles)},
	}
	for _, check := range checks {
		if !check.equal {
			return check.name
		}
	}
	return ""
}

func cloneDate(d *jwt.NumericDate) *jwt.NumericDate {
	if d == nil {
		return nil
	}
	return jwt.NewNumericDate(d.Time)
}

func sameDate(a, b *jwt.NumericDate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Time.Equal(b.Time)
}

func immutableClaimViolation(claim string) error {
	err := ErrImmutableClaimMutation.Clone()
	err.Message = fmt.Sprintf("decorator changed the %s claim", claim)
	err.Source = ErrImmutableClaimMutation
	return err.WithMetadata(map[string]any{"claim": claim})
}
