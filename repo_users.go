package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users stores users
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
}

// Credentials stores password and google credentials
type Credentials interface {
	FindByUser(ctx context.Context, userID uuid.UUID, typ CredentialType) (*Credential, error)
	FindByGoogleID(ctx context.Context, googleID string) (*Credential, error)
	Create(ctx context.Context, credential *Credential) (*Credential, error)
	Update(ctx context.Context, credential *Credential) (*Credential, error)
}

type users struct {
	modelStore[*User]
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	return &users{
		modelStore: newModelStore(db, "user",
			func() *User { return &User{} },
			func(u *User) *uuid.UUID {
				if u == nil {
					return nil
				}
				return &u.ID
			},
		),
	}
}

func (r *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, id)
}

func (r *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.find(ctx, where("LOWER(?TableAlias.email) = ?", normalizeEmail(email)))
}

func (r *users) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.find(ctx, where("?TableAlias.username = ?", username))
}

func (r *users) Create(ctx context.Context, user *User) (*User, error) {
	return r.create(ctx, user)
}

func (r *users) Update(ctx context.Context, user *User) (*User, error) {
	return r.update(ctx, user)
}

type credentials struct {
	modelStore[*Credential]
}

var _ Credentials = (*credentials)(nil)

func NewCredentialsRepository(db *bun.DB) Credentials {
	return &credentials{
		modelStore: newModelStore(db, "credential",
			func() *Credential { return &Credential{} },
			func(c *Credential) *uuid.UUID {
				if c == nil {
					return nil
				}
				return &c.ID
			},
		),
	}
}

func (r *credentials) FindByUser(ctx context.Context, userID uuid.UUID, typ CredentialType) (*Credential, error) {
	return r.find(ctx, where("?TableAlias.user_id = ? AND ?TableAlias.type = ?", userID, typ))
}

func (r *credentials) FindByGoogleID(ctx context.Context, googleID string) (*Credential, error) {
	return r.find(ctx, where("?TableAlias.type = ? AND ?TableAlias.google_id = ?", CredentialGoogle, googleID))
}

func (r *credentials) Create(ctx context.Context, credential *Credential) (*Credential, error) {
	return r.create(ctx, credential)
}

func (r *credentials) Update(ctx context.Context, credential *Credential) (*Credential, error) {
	return r.update(ctx, credential)
}
