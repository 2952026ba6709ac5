package auth_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-tenant-auth"
)

func TestCredentialStorePassword(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "a@x.com", "")

	credential, err := f.Credentials.CreatePassword(f.ctx, user.ID, "first-password")
	require.NoError(t, err)
	assert.Equal(t, auth.CredentialPassword, credential.Type)
	assert.NotEqual(t, "first-password", credential.PasswordHash)

	ok, err := f.Credentials.VerifyPassword(f.ctx, user.ID, "first-password")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Credentials.VerifyPassword(f.ctx, user.ID, "wrong-password")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.Credentials.CreatePassword(f.ctx, user.ID, "second-password")
	assert.Equal(t, http.StatusConflict, auth.HTTPStatus(err))
	assert.Equal(t, auth.TextCodeCredentialExists, auth.TextCode(err))

	_, err = f.Credentials.UpdatePassword(f.ctx, user.ID, "second-password")
	require.NoError(t, err)

	ok, err = f.Credentials.VerifyPassword(f.ctx, user.ID, "second-password")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.Credentials.CreatePassword(f.ctx, uuid.New(), "")
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
}

func TestCredentialStoreUpdateMissing(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "a@x.com", "")

	_, err := f.Credentials.UpdatePassword(f.ctx, user.ID, "new-password")
	assert.Equal(t, auth.TextCodeCredentialNotFound, auth.TextCode(err))

	// without a credential nothing matches
	ok, err := f.Credentials.VerifyPassword(f.ctx, user.ID, "new-password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialStoreSetPassword(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, "a@x.com", "")

	_, err := f.Credentials.SetPassword(f.ctx, user.ID, "first-password")
	require.NoError(t, err)
	_, err = f.Credentials.SetPassword(f.ctx, user.ID, "second-password")
	require.NoError(t, err)

	ok, err := f.Credentials.VerifyPassword(f.ctx, user.ID, "second-password")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCredentialStoreGoogle(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice@x.com", "")
	bob := f.seedUser(t, "bob@x.com", "")

	credential, err := f.Credentials.CreateGoogle(f.ctx, alice.ID, "google-123")
	require.NoError(t, err)
	assert.Equal(t, auth.CredentialGoogle, credential.Type)

	found, err := f.Credentials.FindGoogle(f.ctx, "google-123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, alice.ID, found.UserID)

	_, err = f.Credentials.CreateGoogle(f.ctx, alice.ID, "google-456")
	assert.Equal(t, auth.TextCodeCredentialExists, auth.TextCode(err))

	_, err = f.Credentials.CreateGoogle(f.ctx, bob.ID, "google-123")
	assert.Equal(t, auth.TextCodeCredentialExists, auth.TextCode(err))

	_, err = f.Credentials.CreateGoogle(f.ctx, bob.ID, "")
	assert.Equal(t, auth.TextCodeValidation, auth.TextCode(err))

	missing, err := f.Credentials.FindGoogle(f.ctx, "google-999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
