package auth_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-tenant-auth"
)

func TestParseClaim(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for _, raw := range []string{
			"read:own:profile",
			"admin:admin:users",
			"create:organisation:invoices",
			"delete:establishment:orders",
			"execute:any:reports",
		} {
			c, err := auth.ParseClaim(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, raw, c.String())

			again, err := auth.ParseClaim(c.String())
			require.NoError(t, err)
			assert.Equal(t, c, again)
		}
	})

	t.Run("extra segments are ignored", func(t *testing.T) {
		c, err := auth.ParseClaim("read:any:users:extra:parts")
		require.NoError(t, err)
		assert.Equal(t, "read:any:users", c.String())
		assert.Equal(t, "users", c.GetResource())
	})

	t.Run("rejections", func(t *testing.T) {
		cases := map[string]error{
			"read:any":     auth.ErrInvalidClaimFormat,
			"":             auth.ErrInvalidClaimFormat,
			":any:x":       auth.ErrInvalidClaimFormat,
			"read::x":      auth.ErrInvalidClaimFormat,
			"read:any:":    auth.ErrInvalidClaimFormat,
			"bogus:any:x":  auth.ErrInvalidClaimAction,
			"read:bogus:x": auth.ErrInvalidClaimScope,
		}
		for raw, want := range cases {
			_, err := auth.ParseClaim(raw)
			assert.ErrorIs(t, err, want, raw)
		}
	})

	t.Run("rejections are bad requests", func(t *testing.T) {
		_, err := auth.ParseClaim("read:bogus:x")
		assert.Equal(t, 400, auth.HTTPStatus(err))
		assert.Equal(t, auth.TextCodeInvalidClaimScope, auth.TextCode(err))
	})
}

func TestClaimFrom(t *testing.T) {
	c, err := auth.ClaimFrom(auth.Claim{Action: auth.ClaimActionUpdate, Scope: auth.ClaimScopeOwn, Resource: "profile"})
	require.NoError(t, err)
	assert.Equal(t, "update:own:profile", c.String())

	_, err = auth.ClaimFrom(nil)
	assert.ErrorIs(t, err, auth.ErrInvalidClaimFormat)
}

func TestParseClaimsKeepsOrder(t *testing.T) {
	claims, err := auth.ParseClaims([]string{"read:own:a", "delete:any:b", "read:own:a"})
	require.NoError(t, err)
	require.Len(t, claims, 3)
	assert.Equal(t, "read:own:a", claims[0].String())
	assert.Equal(t, "delete:any:b", claims[1].String())

	_, err = auth.ParseClaims([]string{"read:own:a", "nope"})
	assert.ErrorIs(t, err, auth.ErrInvalidClaimFormat)
}

func TestClaimJSON(t *testing.T) {
	in := []auth.Claim{
		{Action: auth.ClaimActionRead, Scope: auth.ClaimScopeAny, Resource: "users"},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `["read:any:users"]`, string(data))

	var out []auth.Claim
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`["read:any"]`), &out))
}

func TestClaimAllows(t *testing.T) {
	read := auth.Claim{Action: auth.ClaimActionRead, Scope: auth.ClaimScopeOrganisation, Resource: "orders"}

	assert.True(t, read.Allows(auth.ClaimActionRead, auth.ClaimScopeOrganisation, "orders"))
	assert.True(t, read.Allows(auth.ClaimActionRead, auth.ClaimScopeEstablishment, "orders"))
	assert.True(t, read.Allows(auth.ClaimActionRead, auth.ClaimScopeOwn, "orders"))
	assert.False(t, read.Allows(auth.ClaimActionRead, auth.ClaimScopeAny, "orders"))
	assert.False(t, read.Allows(auth.ClaimActionUpdate, auth.ClaimScopeOwn, "orders"))
	assert.False(t, read.Allows(auth.ClaimActionRead, auth.ClaimScopeOwn, "invoices"))

	admin := auth.Claim{Action: auth.ClaimActionAdmin, Scope: auth.ClaimScopeAdmin, Resource: "orders"}
	assert.True(t, admin.Allows(auth.ClaimActionDelete, auth.ClaimScopeAny, "orders"))
	assert.True(t, admin.Allows(auth.ClaimActionCreate, auth.ClaimScopeAdmin, "orders"))
	assert.False(t, admin.Allows(auth.ClaimActionDelete, auth.ClaimScopeAny, "users"))
	assert.False(t, admin.Allows(auth.ClaimActionDelete, auth.ClaimScope("bogus"), "orders"))

	readAdmin := auth.Claim{Action: auth.ClaimActionRead, Scope: auth.ClaimScopeAdmin, Resource: "users"}
	assert.True(t, readAdmin.Allows(auth.ClaimActionDelete, auth.ClaimScopeAny, "users"))
	assert.True(t, readAdmin.Allows(auth.ClaimActionUpdate, auth.ClaimScopeOwn, "users"))
	assert.True(t, readAdmin.Allows(auth.ClaimActionAdmin, auth.ClaimScopeAdmin, "users"))
	assert.False(t, readAdmin.Allows(auth.ClaimActionDelete, auth.ClaimScopeAny, "orders"))
}
