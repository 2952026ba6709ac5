package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-tenant-auth"
)

func newTestTokenService(clock *testClock) *auth.TokenService {
	return auth.NewTokenService([]byte(testSigningKey), 24, "test-issuer", "test-audience").
		WithClock(clock.Now)
}

func tokenSubjects() (*auth.UserAccount, *auth.User) {
	account := &auth.UserAccount{ID: uuid.New(), Roles: []string{"user"}}
	user := &auth.User{ID: uuid.New(), Email: "a@x.com", Username: "a"}
	return account, user
}

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	clock := newTestClock()
	ts := newTestTokenService(clock)
	account, user := tokenSubjects()

	signed, expiresAt, err := ts.Generate(context.Background(), account, user)
	require.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.Equal(t, clock.Now().Add(24*time.Hour), expiresAt)

	claims, err := ts.Validate(signed)
	require.NoError(t, err)

	accountID, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, account.ID, accountID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "a", claims.Username)
	assert.Equal(t, []string{"user"}, claims.Roles)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.Contains(t, claims.Audience, "test-audience")
	assert.NotEmpty(t, claims.ID)
}

func TestTokenServiceUniqueTokens(t *testing.T) {
	ts := newTestTokenService(newTestClock())
	account, user := tokenSubjects()

	first, _, err := ts.Generate(context.Background(), account, user)
	require.NoError(t, err)
	second, _, err := ts.Generate(context.Background(), account, user)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenServiceRejects(t *testing.T) {
	clock := newTestClock()
	ts := newTestTokenService(clock)
	account, user := tokenSubjects()

	signed, _, err := ts.Generate(context.Background(), account, user)
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		other := auth.NewTokenService([]byte("another-signing-key-0123456789"), 24, "test-issuer", "test-audience").
			WithClock(clock.Now)
		_, err := other.Validate(signed)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := auth.NewTokenService([]byte(testSigningKey), 24, "other-issuer", "test-audience").
			WithClock(clock.Now)
		_, err := other.Validate(signed)
		assert.Error(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := auth.NewTokenService([]byte(testSigningKey), 24, "test-issuer", "other-audience").
			WithClock(clock.Now)
		_, err := other.Validate(signed)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ts.Validate("not-a-token")
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := newTestClock()
		later.Advance(24*time.Hour + time.Second)
		expired := newTestTokenService(later)
		_, err := expired.Validate(signed)
		assert.Error(t, err)
	})

	t.Run("missing subjects", func(t *testing.T) {
		_, _, err := ts.Generate(context.Background(), nil, user)
		assert.Equal(t, auth.TextCodeValidation, auth.TextCode(err))
	})
}

func TestTokenServiceClaimsDecorator(t *testing.T) {
	account, user := tokenSubjects()

	t.Run("metadata is allowed", func(t *testing.T) {
		ts := newTestTokenService(newTestClock()).WithClaimsDecorator(auth.ClaimsDecoratorFunc(
			func(_ context.Context, account *auth.UserAccount, _ *auth.User, claims *auth.SessionClaims) error {
				claims.Metadata = map[string]any{"establishment": account.ID.String()}
				return nil
			},
		))

		signed, _, err := ts.Generate(context.Background(), account, user)
		require.NoError(t, err)

		claims, err := ts.Validate(signed)
		require.NoError(t, err)
		assert.Equal(t, account.ID.String(), claims.Metadata["establishment"])
	})

	t.Run("guarded claims cannot change", func(t *testing.T) {
		mutations := map[string]func(*auth.SessionClaims){
			"sub":      func(c *auth.SessionClaims) { c.Subject = uuid.NewString() },
			"email":    func(c *auth.SessionClaims) { c.Email = "evil@x.com" },
			"roles":    func(c *auth.SessionClaims) { c.Roles = append(c.Roles, "admin") },
			"audience": func(c *auth.SessionClaims) { c.Audience = nil },
			"exp in place": func(c *auth.SessionClaims) {
				c.ExpiresAt.Time = c.ExpiresAt.Time.Add(365 * 24 * time.Hour)
			},
			"nbf in place": func(c *auth.SessionClaims) {
				c.NotBefore.Time = c.NotBefore.Time.Add(-time.Hour)
			},
			"iat in place":   func(c *auth.SessionClaims) { c.IssuedAt.Time = time.Time{} },
			"roles in place": func(c *auth.SessionClaims) { c.Roles[0] = "admin" },
		}

		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				ts := newTestTokenService(newTestClock()).WithClaimsDecorator(auth.ClaimsDecoratorFunc(
					func(_ context.Context, _ *auth.UserAccount, _ *auth.User, claims *auth.SessionClaims) error {
						mutate(claims)
						return nil
					},
				))

				_, _, err := ts.Generate(context.Background(), account, user)
				assert.ErrorIs(t, err, auth.ErrImmutableClaimMutation)
				assert.Equal(t, auth.TextCodeImmutableClaim, auth.TextCode(err))
			})
		}
	})

	t.Run("decorator error", func(t *testing.T) {
		boom := errors.New("boom")
		ts := newTestTokenService(newTestClock()).WithClaimsDecorator(auth.ClaimsDecoratorFunc(
			func(context.Context, *auth.UserAccount, *auth.User, *auth.SessionClaims) error {
				return boom
			},
		))

		_, _, err := ts.Generate(context.Background(), account, user)
		assert.ErrorIs(t, err, boom)
	})
}
