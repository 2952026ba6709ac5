package auth_test

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-tenant-auth"
)

func fieldErrors(t *testing.T, err error) map[string]any {
	t.Helper()

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr), "expected a rich error, got %v", err)
	fields, _ := richErr.Metadata["fields"].(map[string]any)
	return fields
}

func TestDefaultConfig(t *testing.T) {
	cfg := auth.DefaultConfig()

	assert.Equal(t, 24, cfg.TokenExpiration)
	assert.Equal(t, []string{"user"}, cfg.DefaultSignUpRoles)
	assert.Equal(t, []string{"user"}, cfg.DefaultInvitationRoles)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, auth.DefaultPhoneRegion, cfg.DefaultPhoneRegion)
	assert.Len(t, cfg.ActionRoutes, len(auth.AllActionTypes))

	// a signing key is the only value without a default
	assert.Error(t, cfg.Validate())
	cfg.SigningKey = testSigningKey
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Run("short signing key", func(t *testing.T) {
		cfg := testConfig()
		cfg.SigningKey = "short"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Equal(t, auth.TextCodeValidation, auth.TextCode(err))
		assert.Contains(t, fieldErrors(t, err), "signing_key")
	})

	t.Run("token expiration", func(t *testing.T) {
		cfg := testConfig()
		cfg.TokenExpiration = 0
		assert.Contains(t, fieldErrors(t, cfg.Validate()), "token_expiration")
	})

	t.Run("admin password required with admin email", func(t *testing.T) {
		cfg := testConfig()
		cfg.AdminEmail = "root@example.com"
		assert.Contains(t, fieldErrors(t, cfg.Validate()), "admin_password")

		cfg.AdminPassword = "super-secret"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("admin email format", func(t *testing.T) {
		cfg := testConfig()
		cfg.AdminEmail = "not-an-email"
		cfg.AdminPassword = "super-secret"
		assert.Contains(t, fieldErrors(t, cfg.Validate()), "admin_email")
	})

	t.Run("seed pairs", func(t *testing.T) {
		cfg := testConfig()
		cfg.SeedEstablishments = []string{"Acme:HQ", "broken"}
		assert.Contains(t, fieldErrors(t, cfg.Validate()), "seed_establishments")
	})

	t.Run("negative sweep interval", func(t *testing.T) {
		cfg := testConfig()
		cfg.SweepInterval = -time.Second
		err := cfg.Validate()
		assert.Equal(t, auth.TextCodeInvalidConfig, auth.TextCode(err))
	})

	t.Run("negative route validity", func(t *testing.T) {
		cfg := testConfig()
		cfg.ActionRoutes = map[auth.ActionType]auth.ActionRoute{
			auth.ActionInvite: {Path: "/join", ValidForHours: -1},
		}
		err := cfg.Validate()
		assert.Equal(t, auth.TextCodeInvalidConfig, auth.TextCode(err))
	})
}

func TestConfigRouteFor(t *testing.T) {
	cfg := testConfig()

	route, ok := cfg.RouteFor(auth.ActionResetPassword)
	require.True(t, ok)
	assert.Equal(t, "/reset-password", route.Path)
	assert.Equal(t, 1, route.ValidForHours)

	// the first flag with a route wins
	route, ok = cfg.RouteFor(auth.ActionsOf(auth.ActionValidateEmail, auth.ActionAcceptTerms))
	require.True(t, ok)
	assert.Equal(t, "/validate-email", route.Path)

	cfg.ActionRoutes = nil
	_, ok = cfg.RouteFor(auth.ActionInvite)
	assert.False(t, ok)
}

func TestConfigSeedPairs(t *testing.T) {
	cfg := testConfig()
	cfg.SeedEstablishments = []string{" Acme : HQ ", "Acme:Branch", "nope"}

	assert.Equal(t, [][2]string{{"Acme", "HQ"}, {"Acme", "Branch"}}, cfg.SeedPairs())
}
