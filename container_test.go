package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-tenant-auth"
)

func bootstrapConfig(cfg *auth.Config) {
	cfg.AdminEmail = "root@example.com"
	cfg.AdminPassword = "super-secret"
	cfg.SeedOrganisations = []string{"Acme", "Globex"}
	cfg.SeedEstablishments = []string{"Acme:HQ", "Acme:Branch", "Initech:Lab"}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SigningKey = ""

	_, err := auth.New(newTestDB(t), cfg)
	assert.Equal(t, auth.TextCodeValidation, auth.TextCode(err))
}

func TestModuleBootstrap(t *testing.T) {
	f := newFixture(t, bootstrapConfig)

	require.NoError(t, f.Bootstrap(f.ctx))
	require.NoError(t, f.Bootstrap(f.ctx), "bootstrap must be idempotent")

	orgs, err := f.Tenants.SearchOrganisations(f.ctx, "", auth.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, orgs.Total)

	ests, err := f.Tenants.SearchEstablishments(f.ctx, nil, "", auth.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, ests.Total)

	roles, err := f.Roles.Search(f.ctx, "", auth.Pagination{})
	require.NoError(t, err)
	names := make([]string, 0, len(roles.Items))
	for _, r := range roles.Items {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"user", "admin"}, names)

	admin, err := f.Users.GetByEmail(f.ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, admin.Enabled)
	assert.True(t, admin.EmailValidated)

	accounts, err := f.Accounts.ListByUser(f.ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, []string{"admin"}, accounts[0].Roles)

	token, err := f.Auth.SignIn(f.ctx, auth.SignInRequest{Email: "root@example.com", Password: "super-secret"})
	require.NoError(t, err)

	ctx, _, err := f.Authenticator.IdentityFromToken(f.ctx, token.AccessToken)
	require.NoError(t, err)
	assert.True(t, auth.HasAnyRole(ctx, "admin"))
}

func TestModuleBootstrapWithoutAdmin(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.Bootstrap(f.ctx))

	role, err := f.Roles.GetByName(f.ctx, "user")
	require.NoError(t, err)
	assert.Empty(t, role.Claims)
}
