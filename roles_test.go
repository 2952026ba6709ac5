package auth_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-tenant-auth"
)

func TestRoleRegistryCreate(t *testing.T) {
	f := newFixture(t)

	role, err := f.Roles.Create(f.ctx, auth.RoleInput{
		Name:        " manager ",
		Description: "Manages invoices",
		Claims:      []string{"read:organisation:invoices", "update:own:invoices"},
	})
	require.NoError(t, err)
	assert.Equal(t, "manager", role.Name)

	stored, err := f.Roles.Get(f.ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "Manages invoices", stored.Description)
	assert.Equal(t, []string{"read:organisation:invoices", "update:own:invoices"}, stored.ClaimStrings())

	_, err = f.Roles.Create(f.ctx, auth.RoleInput{Name: "manager"})
	assert.Equal(t, auth.TextCodeAlreadyExists, auth.TextCode(err))

	_, err = f.Roles.Create(f.ctx, auth.RoleInput{Name: "  "})
	assert.Equal(t, auth.TextCodeValidation, auth.TextCode(err))

	_, err = f.Roles.Create(f.ctx, auth.RoleInput{Name: "broken", Claims: []string{"fly:own:invoices"}})
	assert.ErrorIs(t, err, auth.ErrInvalidClaimAction)
}

func TestRoleRegistryUpdate(t *testing.T) {
	f := newFixture(t)
	manager := f.seedRole(t, "manager", "read:own:invoices")
	f.seedRole(t, "user")

	updated, err := f.Roles.Update(f.ctx, manager.ID, auth.RoleInput{
		Name:   "supervisor",
		Claims: []string{"admin:organisation:invoices"},
	})
	require.NoError(t, err)
	assert.Equal(t, "supervisor", updated.Name)

	stored, err := f.Roles.GetByName(f.ctx, "supervisor")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin:organisation:invoices"}, stored.ClaimStrings())

	_, err = f.Roles.Update(f.ctx, manager.ID, auth.RoleInput{Name: "user"})
	assert.Equal(t, auth.TextCodeAlreadyExists, auth.TextCode(err))

	_, err = f.Roles.Update(f.ctx, uuid.New(), auth.RoleInput{Name: "ghost"})
	assert.Equal(t, http.StatusNotFound, auth.HTTPStatus(err))

	_, err = f.Roles.GetByName(f.ctx, "manager")
	assert.Equal(t, http.StatusNotFound, auth.HTTPStatus(err))
}

func TestRoleRegistrySearch(t *testing.T) {
	f := newFixture(t)
	f.seedRole(t, "admin")
	f.seedRole(t, "user")
	f.seedRole(t, "super_user")

	page, err := f.Roles.Search(f.ctx, "USER", auth.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, auth.DefaultPageLimit, page.Limit)

	names := make([]string, 0, len(page.Items))
	for _, r := range page.Items {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"user", "super_user"}, names)

	page, err = f.Roles.Search(f.ctx, "", auth.Pagination{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 1)
}

func TestRoleRegistryResolveNames(t *testing.T) {
	f := newFixture(t)
	f.seedRole(t, "admin")
	f.seedRole(t, "user")

	roles, err := f.Roles.ResolveNames(f.ctx, []string{"user", " user ", "admin", ""})
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	roles, err = f.Roles.ResolveNames(f.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, roles)

	roles, err = f.Roles.ResolveNames(f.ctx, []string{"user", "ghost"})
	assert.ErrorIs(t, err, auth.ErrRolesNotFound)
	assert.Nil(t, roles)
}

func TestRoleRegistryDelete(t *testing.T) {
	f := newFixture(t)
	role := f.seedRole(t, "temp")

	require.NoError(t, f.Roles.Delete(f.ctx, role.ID))

	err := f.Roles.Delete(f.ctx, role.ID)
	assert.Equal(t, http.StatusNotFound, auth.HTTPStatus(err))
}
