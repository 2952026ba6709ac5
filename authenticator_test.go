package auth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-tenant-auth"
)

type authSetup struct {
	*fixture
	user    *auth.User
	account *auth.UserAccount
}

func newAuthSetup(t *testing.T) *authSetup {
	t.Helper()

	f := newFixture(t)
	f.seedRole(t, "user", "read:own:profile")
	org, est := f.seedTenant(t, "Acme", "HQ")
	user := f.seedUser(t, "a@x.com", "secret-password")
	account := f.seedAccount(t, user, org, est, "user")

	return &authSetup{fixture: f, user: user, account: account}
}

func TestAuthenticatorAuthenticate(t *testing.T) {
	s := newAuthSetup(t)

	token, err := s.Authenticator.Authenticate(s.ctx, s.account, "secret-password")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64((24 * time.Hour).Seconds()), token.ExpiresIn)
	assert.Equal(t, s.clock.Now().Add(24*time.Hour), token.ExpiresAt)

	session, err := s.Sessions.FindByToken(s.ctx, token.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, s.account.ID, session.IdentityID)

	event, ok := s.sink.Last(auth.ActivityEventLoginSuccess)
	require.True(t, ok)
	assert.Equal(t, s.account.ID.String(), event.AccountID)
}

func TestAuthenticatorRejects(t *testing.T) {
	s := newAuthSetup(t)

	_, err := s.Authenticator.Authenticate(s.ctx, s.account, "wrong-password")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, auth.HTTPStatus(err))

	event, ok := s.sink.Last(auth.ActivityEventLoginFailure)
	require.True(t, ok)
	assert.Equal(t, "invalid credentials", event.Metadata["reason"])

	_, err = s.Users.SetEnabled(s.ctx, s.user.ID, false)
	require.NoError(t, err)

	_, err = s.Authenticator.Authenticate(s.ctx, s.account, "secret-password")
	assert.Equal(t, http.StatusBadRequest, auth.HTTPStatus(err))
	assert.Equal(t, auth.TextCodeAccountDisabled, auth.TextCode(err))

	_, err = s.Authenticator.Authenticate(s.ctx, nil, "secret-password")
	assert.Equal(t, auth.TextCodeNoAccount, auth.TextCode(err))
}

func TestAuthenticatorIdentityFromToken(t *testing.T) {
	s := newAuthSetup(t)

	token, err := s.Authenticator.Authenticate(s.ctx, s.account, "secret-password")
	require.NoError(t, err)

	ctx, identity, err := s.Authenticator.IdentityFromToken(s.ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.account.ID, identity.Account.ID)
	assert.Equal(t, s.user.ID, identity.User.ID)
	assert.Equal(t, []string{"user"}, identity.RoleNames())
	assert.Equal(t, token.AccessToken, identity.Token)

	bound, ok := auth.IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, identity, bound)
	assert.True(t, auth.Can(ctx, auth.ClaimActionRead, auth.ClaimScopeOwn, "profile"))
}

func TestAuthenticatorRolesComeFromStore(t *testing.T) {
	s := newAuthSetup(t)
	s.seedRole(t, "admin")

	token, err := s.Authenticator.Authenticate(s.ctx, s.account, "secret-password")
	require.NoError(t, err)

	_, err = s.Accounts.Update(s.ctx, s.account.ID, auth.UpdateAccountRequest{Roles: []string{"admin"}})
	require.NoError(t, err)

	_, identity, err := s.Authenticator.IdentityFromToken(s.ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, identity.RoleNames())
}

func TestAuthenticatorSessionLifecycle(t *testing.T) {
	t.Run("new login replaces previous session", func(t *testing.T) {
		s := newAuthSetup(t)

		first, err := s.Authenticator.Authenticate(s.ctx, s.account, "secret-password")
		require.NoError(t, err)
		second, err := s.Authenticator.Authenticate(s.ctx, s.account, "secret-password")
		require.NoError(t, err)

		_, _, err = s.Authenticator.IdentityFromToken(s.ctx, first.AccessToken)
		assert.ErrorIs(t, err, auth.ErrUnauthorized)

		_, _, err = s.Authenticator.IdentityFromToken(s.ctx, second.AccessToken)
		assert.NoError(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		s := newAuthSetup(t)

		token, err := s.Authenticator.Authenticate(s.ctx, s.account, "secret-password")
		require.NoError(t, err)

		s.clock.Advance(24*time.Hour + time.Second)
		_, _, err = s.Authenticator.IdentityFromToken(s.ctx, token.AccessToken)
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("disabled user", func(t *testing.T) {
		s := newAuthSetup(t)

		token, err := s.Authenticator.Authenticate(s.ctx, s.account, "secret-password")
		require.NoError(t, err)

		_, err = s.Users.SetEnabled(s.ctx, s.user.ID, false)
		require.NoError(t, err)

		_, _, err = s.Authenticator.IdentityFromToken(s.ctx, token.AccessToken)
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("garbage token", func(t *testing.T) {
		s := newAuthSetup(t)

		ctx, identity, err := s.Authenticator.IdentityFromToken(s.ctx, "garbage")
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
		assert.Nil(t, identity)
		assert.False(t, auth.IsAuthenticated(ctx))

		_, _, err = s.Authenticator.IdentityFromToken(s.ctx, "")
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("logout", func(t *testing.T) {
		s := newAuthSetup(t)

		token, err := s.Authenticator.Authenticate(s.ctx, s.account, "secret-password")
		require.NoError(t, err)

		ctx, _, err := s.Authenticator.IdentityFromToken(s.ctx, token.AccessToken)
		require.NoError(t, err)

		require.NoError(t, s.Authenticator.Logout(ctx))
		assert.Contains(t, s.sink.Types(), auth.ActivityEventLogout)

		_, _, err = s.Authenticator.IdentityFromToken(s.ctx, token.AccessToken)
		assert.ErrorIs(t, err, auth.ErrUnauthorized)

		// logging out twice or without an identity is fine
		assert.NoError(t, s.Authenticator.Logout(ctx))
		assert.NoError(t, s.Authenticator.Logout(context.Background()))
	})
}
