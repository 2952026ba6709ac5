package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the person behind one or more accounts
type User struct {
	bun.BaseModel         `bun:"table:users"`
	ID                    uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email                 string    `bun:"email,notnull,unique" json:"email"`
	Username              string    `bun:"username,notnull,unique" json:"username"`
	FirstName             string    `bun:"first_name" json:"first_name,omitempty"`
	LastName              string    `bun:"last_name" json:"last_name,omitempty"`
	Phone                 string    `bun:"phone_number" json:"phone_number,omitempty"`
	ProfilePicture        string    `bun:"profile_picture" json:"profile_picture,omitempty"`
	Enabled               bool      `bun:"enabled,notnull" json:"enabled"`
	EmailValidated        bool      `bun:"is_email_validated,notnull" json:"is_email_validated"`
	AcceptedTerms         bool      `bun:"accepted_terms,notnull" json:"accepted_terms"`
	AcceptedPrivacyPolicy bool      `bun:"accepted_privacy_policy,notnull" json:"accepted_privacy_policy"`
	CreatedAt             time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt             time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// CredentialType identifies how a credential authenticates
type CredentialType = string

const (
	CredentialPassword CredentialType = "password"
	CredentialGoogle   CredentialType = "google"
)

// Credential belongs to exactly one user. At most one of each type per user.
type Credential struct {
	bun.BaseModel `bun:"table:credentials"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID      `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Type          CredentialType `bun:"type,notnull" json:"type"`
	PasswordHash  string         `bun:"password_hash,nullzero" json:"-"`
	GoogleID      string         `bun:"google_id,nullzero" json:"google_id,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull" json:"updated_at"`
}

// Role is a named, ordered set of claims
type Role struct {
	bun.BaseModel `bun:"table:roles"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name,notnull,unique" json:"name"`
	Description   string    `bun:"description" json:"description,omitempty"`
	Claims        []Claim   `bun:"claims" json:"claims"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// ClaimStrings returns the claims in their canonical string form
func (r *Role) ClaimStrings() []string {
	out := make([]string, 0, len(r.Claims))
	for _, c := range r.Claims {
		out = append(out, c.String())
	}
	return out
}

// Organisation is the top level tenant
type Organisation struct {
	bun.BaseModel `bun:"table:organisations"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name,notnull,unique" json:"name"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Establishment belongs to one organisation. Its name is unique within it.
type Establishment struct {
	bun.BaseModel  `bun:"table:establishments"`
	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	OrganisationID uuid.UUID `bun:"organisation_id,notnull,type:uuid" json:"organisation_id"`
	Name           string    `bun:"name,notnull" json:"name"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// UserAccount binds a user to a tenant pairing and a role set.
// It is the subject sessions and claims resolve through.
type UserAccount struct {
	bun.BaseModel   `bun:"table:user_accounts"`
	ID              uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID          uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	OrganisationID  uuid.UUID `bun:"organisation_id,notnull,type:uuid" json:"organisation_id"`
	EstablishmentID uuid.UUID `bun:"establishment_id,notnull,type:uuid" json:"establishment_id"`
	Roles           []string  `bun:"roles" json:"roles"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// ActionToken is a single use token keyed by its opaque value
type ActionToken struct {
	bun.BaseModel   `bun:"table:action_tokens"`
	Token           string     `bun:"token,pk" json:"token"`
	Type            ActionType `bun:"type,notnull" json:"type"`
	Email           string     `bun:"email,notnull" json:"email"`
	UserID          *uuid.UUID `bun:"user_id,type:uuid" json:"user_id,omitempty"`
	OrganisationID  *uuid.UUID `bun:"organisation_id,type:uuid" json:"organisation_id,omitempty"`
	EstablishmentID *uuid.UUID `bun:"establishment_id,type:uuid" json:"establishment_id,omitempty"`
	Roles           []string   `bun:"roles" json:"roles,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt       *time.Time `bun:"expires_at" json:"expires_at,omitempty"`
}

// IsExpired reports whether the token has an expiry at or before now
func (t *ActionToken) IsExpired(now time.Time) bool {
	if t == nil || t.ExpiresAt == nil {
		return false
	}
	return !t.ExpiresAt.After(now)
}

// MatchesEmail compares emails case insensitively
func (t *ActionToken) MatchesEmail(email string) bool {
	return t != nil && strings.EqualFold(strings.TrimSpace(email), t.Email)
}

// Session pairs a bearer token with the identity it authenticates
type Session struct {
	bun.BaseModel  `bun:"table:sessions"`
	Token          string    `bun:"token,pk" json:"token"`
	IdentityID     uuid.UUID `bun:"identity_id,notnull,type:uuid" json:"identity_id"`
	LoginDate      time.Time `bun:"login_date,notnull" json:"login_date"`
	ExpirationDate time.Time `bun:"expiration_date,notnull" json:"expiration_date"`
}

// IsActive reports whether the session expires after now
func (s *Session) IsActive(now time.Time) bool {
	return s != nil && s.ExpirationDate.After(now)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
