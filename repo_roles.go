package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles stores roles by their unique name
type Roles interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	FindByNames(ctx context.Context, names []string) ([]*Role, error)
	Create(ctx context.Context, role *Role) (*Role, error)
	Update(ctx context.Context, role *Role) (*Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, name string, page Pagination) ([]*Role, int, error)
}

type roles struct {
	modelStore[*Role]
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	return &roles{
		modelStore: newModelStore(db, "role",
			func() *Role { return &Role{} },
			func(r *Role) *uuid.UUID {
				if r == nil {
					return nil
				}
				return &r.ID
			},
		),
	}
}

func (r *roles) GetByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	return r.get(ctx, id)
}

func (r *roles) FindByName(ctx context.Context, name string) (*Role, error) {
	return r.find(ctx, where("?TableAlias.name = ?", name))
}

// FindByNames returns the roles named in names ordered by name
func (r *roles) FindByNames(ctx context.Context, names []string) ([]*Role, error) {
	if len(names) == 0 {
		return []*Role{}, nil
	}
	records, _, err := r.list(ctx,
		where("?TableAlias.name IN (?)", bun.In(names)),
		orderBy("?TableAlias.name ASC"),
	)
	return records, err
}

func (r *roles) Create(ctx context.Context, role *Role) (*Role, error) {
	return r.create(ctx, role)
}

func (r *roles) Update(ctx context.Context, role *Role) (*Role, error) {
	return r.update(ctx, role)
}

func (r *roles) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, id)
}

func (r *roles) Search(ctx context.Context, name string, page Pagination) ([]*Role, int, error) {
	return r.list(ctx,
		nameContains(name),
		orderBy("LOWER(?TableAlias.name) ASC"),
		paginate(page),
	)
}
