package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// Module holds every service wired over one database
type Module struct {
	Config        Config
	Repo          RepositoryManager
	Users         *UserDirectory
	Credentials   *CredentialStore
	Roles         *RoleRegistry
	Sessions      *SessionStore
	Tokens        *TokenService
	Authenticator *Authenticator
	ActionTokens  *ActionTokenService
	Tenants       *TenantDirectory
	Accounts      *AccountBinder
	Auth          *AuthService
	Sweeper       *ExpirySweeper

	logger Logger
}

type options struct {
	logger    Logger
	notifier  NotificationService
	sink      ActivitySink
	clock     Clock
	decorator ClaimsDecorator
}

// Option configures New
type Option func(*options)

// WithLogger sets the logger shared by every service
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNotificationService sets the service delivering action token links
func WithNotificationService(notifier NotificationService) Option {
	return func(o *options) {
		o.notifier = notifier
	}
}

// WithActivitySink sets the sink receiving audit events
func WithActivitySink(sink ActivitySink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithClock sets the clock shared by every service
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithClaimsDecorator sets the decorator adding extension claims to session tokens
func WithClaimsDecorator(decorator ClaimsDecorator) Option {
	return func(o *options) {
		o.decorator = decorator
	}
}

// New validates cfg and wires the services over db
func New(db *bun.DB, cfg Config, opts ...Option) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: defLogger{}}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = defLogger{}
	}
	if o.notifier == nil {
		o.notifier = ConsoleNotifier{Logger: o.logger}
	}

	repo := NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return nil, internalError(err, "invalid repository manager")
	}

	m := &Module{Config: cfg, Repo: repo, logger: o.logger}

	m.Users = NewUserDirectory(repo).
		WithLogger(o.logger).
		WithClock(o.clock).
		WithPhoneRegion(cfg.DefaultPhoneRegion).
		WithDeterministicIDs(cfg.DeterministicUserIDs)

	m.Credentials = NewCredentialStore(repo).WithLogger(o.logger).WithClock(o.clock)

	m.Roles = NewRoleRegistry(repo).WithLogger(o.logger).WithClock(o.clock)

	m.Sessions = NewSessionStore(repo, cfg.TokenExpiration).WithLogger(o.logger).WithClock(o.clock)

	m.Tokens = NewTokenService([]byte(cfg.SigningKey), cfg.TokenExpiration, cfg.Issuer, cfg.Audience).
		WithLogger(o.logger).
		WithClock(o.clock).
		WithClaimsDecorator(o.decorator)

	m.Authenticator = NewAuthenticator(repo, m.Tokens, m.Sessions, m.Credentials).
		WithLogger(o.logger).
		WithClock(o.clock).
		WithActivitySink(o.sink)

	m.ActionTokens = NewActionTokenService(repo, m.Roles).
		WithLogger(o.logger).
		WithClock(o.clock).
		WithActivitySink(o.sink)

	m.Tenants = NewTenantDirectory(repo).WithLogger(o.logger).WithClock(o.clock)

	m.Accounts = NewAccountBinder(repo, m.Roles).WithLogger(o.logger).WithClock(o.clock)

	m.Auth = NewAuthService(cfg, repo, m.Users, m.Credentials, m.ActionTokens, m.Authenticator, m.Accounts, m.Tenants).
		WithLogger(o.logger).
		WithNotificationService(o.notifier).
		WithActivitySink(o.sink).
		WithClock(o.clock)

	m.Sweeper = NewExpirySweeper(m.Sessions, m.ActionTokens, cfg.SweepInterval).WithLogger(o.logger)

	return m, nil
}

// Bootstrap creates the seed organisations, establishments, the default
// roles and the admin user when they are missing. It is safe to run on
// every start.
func (m *Module) Bootstrap(ctx context.Context) error {
	for _, name := range m.Config.SeedOrganisations {
		if _, err := m.ensureOrganisation(ctx, name); err != nil {
			return err
		}
	}

	for _, pair := range m.Config.SeedPairs() {
		org, err := m.ensureOrganisation(ctx, pair[0])
		if err != nil {
			return err
		}
		existing, err := m.Repo.Establishments().FindByName(ctx, org.ID, pair[1])
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := m.Tenants.CreateEstablishment(ctx, org.ID, pair[1]); err != nil {
			return err
		}
		m.logger.Info("seeded establishment %s:%s", pair[0], pair[1])
	}

	roles := uniqueNames(append(append(append([]string{},
		m.Config.DefaultSignUpRoles...),
		m.Config.DefaultInvitationRoles...),
		m.Config.AdminRoles...))
	for _, name := range roles {
		existing, err := m.Repo.Roles().FindByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := m.Roles.Create(ctx, RoleInput{Name: name}); err != nil {
			return err
		}
		m.logger.Info("seeded role %s", name)
	}

	return m.ensureAdmin(ctx)
}

func (m *Module) ensureOrganisation(ctx context.Context, name string) (*Organisation, error) {
	existing, err := m.Repo.Organisations().FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	org, err := m.Tenants.CreateOrganisation(ctx, name)
	if err != nil {
		return nil, err
	}
	m.logger.Info("seeded organisation %s", name)
	return org, nil
}

func (m *Module) ensureAdmin(ctx context.Context) error {
	if m.Config.AdminEmail == "" {
		return nil
	}

	existing, err := m.Users.FindByEmail(ctx, m.Config.AdminEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	return m.Repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		admin, err := m.Users.Create(ctx, UserInput{
			Email:                 m.Config.AdminEmail,
			Enabled:               true,
			EmailValidated:        true,
			AcceptedTerms:         true,
			AcceptedPrivacyPolicy: true,
		})
		if err != nil {
			return err
		}

		if _, err := m.Credentials.CreatePassword(ctx, admin.ID, m.Config.AdminPassword); err != nil {
			return err
		}

		pairs := m.Config.SeedPairs()
		if len(pairs) > 0 {
			org, est, err := m.Tenants.ResolvePair(ctx, pairs[0][0], pairs[0][1])
			if err != nil {
				return err
			}
			if _, err := m.Accounts.Create(ctx, CreateAccountRequest{
				UserID:          admin.ID,
				OrganisationID:  org.ID,
				EstablishmentID: est.ID,
				Roles:           m.Config.AdminRoles,
			}); err != nil {
				return err
			}
		}

		m.logger.Info("seeded admin user %s", admin.Email)
		return nil
	})
}
