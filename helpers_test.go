package auth_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap/zaptest"

	auth "github.com/goliatone/go-tenant-auth"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestDB opens a private in memory database with the schema applied.
// A single connection keeps the memory database alive and serialises
// transactions.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := auth.OpenDB(auth.DriverSQLite, ":memory:", false)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.Migrate(context.Background(), db))
	return db
}

// newFileTestDB opens a sqlite file with a connection pool. Writers take
// the database lock when their transaction begins and wait for each other.
func newFileTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db") + "?_pragma=busy_timeout(10000)&_txlock=immediate"
	db, err := auth.OpenDB(auth.DriverSQLite, dsn, false)
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.Migrate(context.Background(), db))
	return db
}

func testConfig() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.SigningKey = testSigningKey
	cfg.Issuer = "test-issuer"
	cfg.Audience = "test-audience"
	return cfg
}

type fixture struct {
	*auth.Module
	ctx      context.Context
	clock    *testClock
	notifier *recordingNotifier
	sink     *captureSink
}

func newFixture(t *testing.T, mutate ...func(*auth.Config)) *fixture {
	t.Helper()
	return newFixtureOn(t, newTestDB(t), mutate...)
}

func newFixtureOn(t *testing.T, db *bun.DB, mutate ...func(*auth.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	f := &fixture{
		ctx:      context.Background(),
		clock:    newTestClock(),
		notifier: &recordingNotifier{},
		sink:     &captureSink{},
	}

	module, err := auth.New(db, cfg,
		auth.WithLogger(auth.NewZapLogger(zaptest.NewLogger(t))),
		auth.WithClock(f.clock.Now),
		auth.WithNotificationService(f.notifier),
		auth.WithActivitySink(f.sink),
	)
	require.NoError(t, err)
	f.Module = module

	return f
}

func (f *fixture) seedRole(t *testing.T, name string, claims ...string) *auth.Role {
	t.Helper()
	role, err := f.Roles.Create(f.ctx, auth.RoleInput{Name: name, Claims: claims})
	require.NoError(t, err)
	return role
}

func (f *fixture) seedTenant(t *testing.T, organisation, establishment string) (*auth.Organisation, *auth.Establishment) {
	t.Helper()

	org, err := f.Repo.Organisations().FindByName(f.ctx, organisation)
	require.NoError(t, err)
	if org == nil {
		org, err = f.Tenants.CreateOrganisation(f.ctx, organisation)
		require.NoError(t, err)
	}

	est, err := f.Tenants.CreateEstablishment(f.ctx, org.ID, establishment)
	require.NoError(t, err)
	return org, est
}

func (f *fixture) seedUser(t *testing.T, email, password string) *auth.User {
	t.Helper()

	user, err := f.Users.Create(f.ctx, auth.UserInput{
		Email:                 email,
		Enabled:               true,
		AcceptedTerms:         true,
		AcceptedPrivacyPolicy: true,
	})
	require.NoError(t, err)

	if password != "" {
		_, err = f.Credentials.CreatePassword(f.ctx, user.ID, password)
		require.NoError(t, err)
	}
	return user
}

func (f *fixture) seedAccount(t *testing.T, user *auth.User, org *auth.Organisation, est *auth.Establishment, roles ...string) *auth.UserAccount {
	t.Helper()

	account, err := f.Accounts.Create(f.ctx, auth.CreateAccountRequest{
		UserID:          user.ID,
		OrganisationID:  org.ID,
		EstablishmentID: est.ID,
		Roles:           roles,
	})
	require.NoError(t, err)
	return account
}

func ptr[T any](v T) *T {
	return &v
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
