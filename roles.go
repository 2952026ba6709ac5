package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleInput carries the editable fields of a role. Claims use the
// action:scope:resource string form and keep their order.
type RoleInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Claims      []string `json:"claims"`
}

// RoleRegistry manages named roles and their claims
type RoleRegistry struct {
	repo   RepositoryManager
	clock  Clock
	logger Logger
}

// NewRoleRegistry creates a new role registry
func NewRoleRegistry(repo RepositoryManager) *RoleRegistry {
	return &RoleRegistry{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger sets the logger
func (r *RoleRegistry) WithLogger(logger Logger) *RoleRegistry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithClock sets the clock used for timestamps
func (r *RoleRegistry) WithClock(clock Clock) *RoleRegistry {
	r.clock = clock
	return r
}

// Create stores a new role. Names are unique.
func (r *RoleRegistry) Create(ctx context.Context, input RoleInput) (*Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, badRequest(TextCodeValidation, "role name is required")
	}

	claims, err := ParseClaims(input.Claims)
	if err != nil {
		return nil, err
	}

	var role *Role
	err = r.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		existing, err := r.repo.Roles().FindByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return alreadyExists("role %q already exists", name)
		}

		now := r.clock.now()
		role, err = r.repo.Roles().Create(ctx, &Role{
			Name:        name,
			Description: input.Description,
			Claims:      claims,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// Get returns the role with id
func (r *RoleRegistry) Get(ctx context.Context, id uuid.UUID) (*Role, error) {
	return r.repo.Roles().GetByID(ctx, id)
}

// GetByName returns the role named name
func (r *RoleRegistry) GetByName(ctx context.Context, name string) (*Role, error) {
	role, err := r.repo.Roles().FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, notFound("role %q not found", name)
	}
	return role, nil
}

// Update replaces the name, description and claims of a role
func (r *RoleRegistry) Update(ctx context.Context, id uuid.UUID, input RoleInput) (*Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, badRequest(TextCodeValidation, "role name is required")
	}

	claims, err := ParseClaims(input.Claims)
	if err != nil {
		return nil, err
	}

	var role *Role
	err = r.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		current, err := r.repo.Roles().GetByID(ctx, id)
		if err != nil {
			return err
		}

		if name != current.Name {
			existing, err := r.repo.Roles().FindByName(ctx, name)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != id {
				return alreadyExists("role %q already exists", name)
			}
		}

		current.Name = name
		current.Description = input.Description
		current.Claims = claims
		current.UpdatedAt = r.clock.now()
		role, err = r.repo.Roles().Update(ctx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// Delete removes the role with id
func (r *RoleRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	return r.repo.Roles().Delete(ctx, id)
}

// Search lists roles whose name contains name, alphabetically
func (r *RoleRegistry) Search(ctx context.Context, name string, page Pagination) (Page[*Role], error) {
	page = page.normalize()
	records, total, err := r.repo.Roles().Search(ctx, name, page)
	if err != nil {
		return Page[*Role]{}, err
	}
	return NewPage(records, page.Page, page.Limit, total), nil
}

// ResolveNames loads every named role. It fails when any name does not
// resolve, returning no partial result.
func (r *RoleRegistry) ResolveNames(ctx context.Context, names []string) ([]*Role, error) {
	unique := uniqueNames(names)
	if len(unique) == 0 {
		return []*Role{}, nil
	}

	roles, err := r.repo.Roles().FindByNames(ctx, unique)
	if err != nil {
		return nil, err
	}

	if len(roles) != len(unique) {
		r.logger.Debug("resolved %d of %d roles: %v", len(roles), len(unique), unique)
		return nil, ErrRolesNotFound
	}

	return roles, nil
}

// uniqueNames trims, drops empty entries and removes duplicates keeping order
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func roleNames(roles []*Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Name)
	}
	return out
}
