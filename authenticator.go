package auth

import (
	"context"
	"time"
)

// AccessToken is the result of a successful authentication
type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator issues bearer tokens for accounts and resolves them back
// into identities. Every token is backed by a session, deleting the
// session revokes the token.
type Authenticator struct {
	repo        RepositoryManager
	tokens      *TokenService
	sessions    *SessionStore
	credentials *CredentialStore
	clock       Clock
	logger      Logger
	activity    activityEmitter
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokens *TokenService, sessions *SessionStore, credentials *CredentialStore) *Authenticator {
	return &Authenticator{
		repo:        repo,
		tokens:      tokens,
		sessions:    sessions,
		credentials: credentials,
		logger:      defLogger{},
		activity:    activityEmitter{logger: defLogger{}},
	}
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
		a.activity.logger = logger
	}
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activity.sink = sink
	return a
}

// WithClock sets the clock used for session checks and events
func (a *Authenticator) WithClock(clock Clock) *Authenticator {
	a.clock = clock
	a.activity.clock = clock
	return a
}

// Authenticate checks password against the account owner and opens a new
// session, replacing any previous session of the account.
func (a *Authenticator) Authenticate(ctx context.Context, account *UserAccount, password string) (*AccessToken, error) {
	if account == nil {
		return nil, badRequest(TextCodeNoAccount, "account is required")
	}

	user, err := a.repo.Users().GetByID(ctx, account.UserID)
	if err != nil {
		return nil, err
	}

	if !user.Enabled {
		a.loginFailed(ctx, account, "disabled")
		return nil, badRequest(TextCodeAccountDisabled, "account is disabled")
	}

	ok, err := a.credentials.VerifyPassword(ctx, user.ID, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.loginFailed(ctx, account, "invalid credentials")
		return nil, ErrUnauthorized
	}

	return a.Issue(ctx, account, user)
}

// Issue signs a token for account and stores its session without checking
// credentials. Callers must have authenticated the user already.
func (a *Authenticator) Issue(ctx context.Context, account *UserAccount, user *User) (*AccessToken, error) {
	signed, expiresAt, err := a.tokens.Generate(ctx, account, user)
	if err != nil {
		return nil, err
	}

	if _, err := a.sessions.Create(ctx, signed, account.ID); err != nil {
		return nil, err
	}

	a.activity.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID.String(),
		AccountID: account.ID.String(),
	})

	return &AccessToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresAt.Sub(a.clock.now()).Seconds()),
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify checks the token signature and registered claims.
// Every failure is reported as ErrUnauthorized.
func (a *Authenticator) Verify(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := a.tokens.Validate(token)
	if err != nil {
		a.logger.Debug("token verification failed: %v", err)
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// IdentityFromToken verifies token, requires an active session for it and
// an enabled user, then binds the resulting identity to the returned context.
// Roles are loaded from the store, never from the token.
func (a *Authenticator) IdentityFromToken(ctx context.Context, token string) (context.Context, *Identity, error) {
	claims, err := a.Verify(token)
	if err != nil {
		return ctx, nil, err
	}

	accountID, err := claims.AccountID()
	if err != nil {
		a.logger.Debug("token subject is not an account id: %v", err)
		return ctx, nil, ErrUnauthorized
	}

	session, err := a.sessions.FindByToken(ctx, token)
	if err != nil {
		return ctx, nil, err
	}
	if session == nil || !a.sessions.IsActive(session) || session.IdentityID != accountID {
		a.logger.Debug("no active session for account %s", accountID)
		return ctx, nil, ErrUnauthorized
	}

	account, err := a.repo.Accounts().GetByID(ctx, accountID)
	if err != nil {
		a.logger.Debug("session account %s could not be loaded: %v", accountID, err)
		return ctx, nil, ErrUnauthorized
	}

	user, err := a.repo.Users().GetByID(ctx, account.UserID)
	if err != nil {
		a.logger.Debug("session user %s could not be loaded: %v", account.UserID, err)
		return ctx, nil, ErrUnauthorized
	}
	if !user.Enabled {
		return ctx, nil, ErrUnauthorized
	}

	roles, err := a.repo.Roles().FindByNames(ctx, uniqueNames(account.Roles))
	if err != nil {
		return ctx, nil, err
	}
	if len(roles) != len(uniqueNames(account.Roles)) {
		a.logger.Warn("account %s references roles that no longer exist", account.ID)
	}

	identity := &Identity{
		Account: account,
		User:    user,
		Roles:   roles,
		Token:   token,
	}

	return WithIdentity(ctx, identity), identity, nil
}

// Logout deletes the session of the identity bound to ctx. A missing
// identity or session is not an error.
func (a *Authenticator) Logout(ctx context.Context) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.Token == "" {
		return nil
	}

	if err := a.sessions.DeleteByToken(ctx, identity.Token); err != nil {
		if !isNotFound(err) {
			a.logger.Warn("logout failed to delete session: %v", err)
		}
	}

	event := ActivityEvent{EventType: ActivityEventLogout}
	if identity.User != nil {
		event.UserID = identity.User.ID.String()
	}
	if identity.Account != nil {
		event.AccountID = identity.Account.ID.String()
	}
	a.activity.emit(ctx, event)

	return nil
}

func (a *Authenticator) loginFailed(ctx context.Context, account *UserAccount, reason string) {
	a.activity.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    account.UserID.String(),
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"reason": reason},
	})
}
