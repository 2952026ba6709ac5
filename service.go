package auth

import (
	"context"
	"net/url"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PreAction mutates the user an action token is about to be sent to.
// The user is saved after every pre action ran.
type PreAction func(ctx context.Context, user *User) error

// ResetEmailValidation marks the email as not validated
func ResetEmailValidation(_ context.Context, user *User) error {
	user.EmailValidated = false
	return nil
}

// AuthService composes the identity flows: sign up, sign in, invitations
// and every token gated lifecycle step. It never touches storage directly.
type AuthService struct {
	cfg           Config
	repo          repository.TransactionManager
	users         *UserDirectory
	credentials   *CredentialStore
	actionTokens  *ActionTokenService
	authenticator *Authenticator
	accounts      *AccountBinder
	tenants       *TenantDirectory
	notifier      NotificationService
	logger        Logger
	activity      activityEmitter
}

// NewAuthService creates the flow orchestrator
func NewAuthService(
	cfg Config,
	repo repository.TransactionManager,
	users *UserDirectory,
	credentials *CredentialStore,
	actionTokens *ActionTokenService,
	authenticator *Authenticator,
	accounts *AccountBinder,
	tenants *TenantDirectory,
) *AuthService {
	return &AuthService{
		cfg:           cfg,
		repo:          repo,
		users:         users,
		credentials:   credentials,
		actionTokens:  actionTokens,
		authenticator: authenticator,
		accounts:      accounts,
		tenants:       tenants,
		notifier:      ConsoleNotifier{},
		logger:        defLogger{},
		activity:      activityEmitter{logger: defLogger{}},
	}
}

// WithNotificationService sets the service delivering token links
func (s *AuthService) WithNotificationService(notifier NotificationService) *AuthService {
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// WithLogger sets the logger
func (s *AuthService) WithLogger(logger Logger) *AuthService {
	if logger != nil {
		s.logger = logger
		s.activity.logger = logger
	}
	if c, ok := s.notifier.(ConsoleNotifier); ok && c.Logger == nil {
		s.notifier = ConsoleNotifier{Logger: logger}
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting flow events.
func (s *AuthService) WithActivitySink(sink ActivitySink) *AuthService {
	s.activity.sink = sink
	return s
}

// WithClock sets the clock used for events
func (s *AuthService) WithClock(clock Clock) *AuthService {
	s.activity.clock = clock
	return s
}

// SignUp creates a user with its credentials in one unit of work. Terms and
// privacy policy must be accepted.
func (s *AuthService) SignUp(ctx context.Context, req SignUpRequest) (*User, error) {
	if !req.AcceptedTerms || !req.AcceptedPrivacyPolicy {
		return nil, badRequest(TextCodeTermsNotAccepted, "terms and privacy policy must be accepted")
	}

	if err := req.Validate(); err != nil {
		return nil, validationFailed(err)
	}

	var user *User
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		var err error
		user, err = s.users.Create(ctx, UserInput{
			Email:                 req.Email,
			Username:              req.Username,
			FirstName:             req.FirstName,
			LastName:              req.LastName,
			Phone:                 req.Phone,
			ProfilePicture:        req.ProfilePicture,
			Enabled:               req.Enabled,
			AcceptedTerms:         true,
			AcceptedPrivacyPolicy: true,
		})
		if err != nil {
			return err
		}

		if err := s.createCredentials(ctx, user, req.Password, req.GoogleID); err != nil {
			return err
		}

		if req.Organisation == "" {
			return nil
		}

		org, est, err := s.resolveTenant(ctx, req.Organisation, req.Establishment)
		if err != nil {
			return err
		}

		_, err = s.accounts.Create(ctx, CreateAccountRequest{
			UserID:          user.ID,
			OrganisationID:  org.ID,
			EstablishmentID: est.ID,
			Roles:           s.cfg.DefaultSignUpRoles,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.emit(ctx, ActivityEvent{
		EventType: ActivityEventSignUp,
		UserID:    user.ID.String(),
	})

	return user, nil
}

// SignIn authenticates the user behind email against one of its accounts
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest) (*AccessToken, error) {
	if err := req.Validate(); err != nil {
		return nil, validationFailed(err)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, badRequest(TextCodeNoAccount, "no user found for %s", normalizeEmail(req.Email))
	}

	account, err := s.selectAccount(ctx, user, req.OrganisationID, req.EstablishmentID)
	if err != nil {
		return nil, err
	}

	return s.authenticator.Authenticate(ctx, account, req.Password)
}

// SendActionToken creates an action token for the request and sends its
// link. Pre actions run against the loaded user before the token is created.
func (s *AuthService) SendActionToken(ctx context.Context, req SendActionTokenRequest, frontendURL string, preActions ...PreAction) (*ActionToken, error) {
	if strings.TrimSpace(frontendURL) == "" {
		return nil, badRequest(TextCodeMissingFrontendURL, "frontend url is required")
	}

	if err := req.Validate(); err != nil {
		return nil, validationFailed(err)
	}

	user, err := s.resolveRecipient(ctx, req)
	if err != nil {
		return nil, err
	}

	if user == nil && req.Email == "" {
		return nil, badRequest(TextCodeActionTokenRequest, "an email or a user is required")
	}

	if user != nil && len(preActions) > 0 {
		for _, pre := range preActions {
			if err := pre(ctx, user); err != nil {
				return nil, err
			}
		}
		if user, err = s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	create := CreateActionTokenRequest{
		Type:  req.Type,
		Email: req.Email,
	}
	if user != nil {
		create.UserID = &user.ID
		if create.Email == "" {
			create.Email = user.Email
		}
	}

	return s.issue(ctx, create, frontendURL)
}

// SendInvitation invites a new user into an organisation and establishment
func (s *AuthService) SendInvitation(ctx context.Context, req SendInvitationRequest, frontendURL string) (*ActionToken, error) {
	if strings.TrimSpace(frontendURL) == "" {
		return nil, badRequest(TextCodeMissingFrontendURL, "frontend url is required")
	}

	if err := req.Validate(); err != nil {
		return nil, validationFailed(err)
	}

	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, alreadyExists("user with email %s already exists", normalizeEmail(req.Email))
	}

	org, est, err := s.resolveTenant(ctx, req.Organisation, req.Establishment)
	if err != nil {
		return nil, err
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = s.cfg.DefaultInvitationRoles
	}

	token, err := s.issue(ctx, CreateActionTokenRequest{
		Type:            ActionInvite,
		Email:           req.Email,
		OrganisationID:  &org.ID,
		EstablishmentID: &est.ID,
		Roles:           roles,
	}, frontendURL)
	if err != nil {
		return nil, err
	}

	s.activity.emit(ctx, ActivityEvent{
		EventType: ActivityEventInvitationSent,
		Actor:     ActorRef{Type: "system"},
		Metadata: map[string]any{
			"email":            token.Email,
			"organisation_id":  org.ID.String(),
			"establishment_id": est.ID.String(),
		},
	})

	return token, nil
}

// SendResetPassword sends a reset link. An unknown email succeeds silently
// so callers cannot probe which emails are registered.
func (s *AuthService) SendResetPassword(ctx context.Context, req SendResetPasswordRequest, frontendURL string) error {
	if strings.TrimSpace(frontendURL) == "" {
		return badRequest(TextCodeMissingFrontendURL, "frontend url is required")
	}

	if err := req.Validate(); err != nil {
		return validationFailed(err)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Debug("reset password requested for unknown email")
		return nil
	}

	_, err = s.SendActionToken(ctx, SendActionTokenRequest{
		Type:   ActionResetPassword,
		UserID: &user.ID,
	}, frontendURL)
	return err
}

// AcceptInvitation consumes an invite token, creates the user and its
// account in the invited tenant and opens a session
func (s *AuthService) AcceptInvitation(ctx context.Context, req AcceptInvitationRequest) (*AccessToken, error) {
	if err := req.Validate(); err != nil {
		return nil, validationFailed(err)
	}

	// expired tokens are deleted outside the transaction below
	if _, err := s.actionTokens.Validate(ctx, req.ActionEnvelope, ActionInvite); err != nil {
		return nil, err
	}

	var (
		user        *User
		account     *UserAccount
		accessToken *AccessToken
	)
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		token, err := s.actionTokens.Consume(ctx, req.ActionEnvelope, ActionInvite)
		if err != nil {
			return err
		}

		if token.OrganisationID == nil || token.EstablishmentID == nil {
			return badRequest(TextCodeActionTokenRequest, "invitation is missing its organisation or establishment")
		}

		user, err = s.users.Create(ctx, UserInput{
			Email:                 token.Email,
			Username:              req.Username,
			FirstName:             req.FirstName,
			LastName:              req.LastName,
			Phone:                 req.Phone,
			ProfilePicture:        req.ProfilePicture,
			Enabled:               true,
			EmailValidated:        true,
			AcceptedTerms:         req.AcceptedTerms,
			AcceptedPrivacyPolicy: req.AcceptedPrivacyPolicy,
		})
		if err != nil {
			return err
		}

		if err := s.createCredentials(ctx, user, req.Password, req.GoogleID); err != nil {
			return err
		}

		account, err = s.accounts.Create(ctx, CreateAccountRequest{
			UserID:          user.ID,
			OrganisationID:  *token.OrganisationID,
			EstablishmentID: *token.EstablishmentID,
			Roles:           token.Roles,
		})
		if err != nil {
			return err
		}

		accessToken, err = s.authenticator.Issue(ctx, account, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.emit(ctx, ActivityEvent{
		EventType: ActivityEventInvitationAccepted,
		UserID:    user.ID.String(),
		AccountID: account.ID.String(),
	})

	return accessToken, nil
}

// AcceptEmailValidation marks the token owner email as validated
func (s *AuthService) AcceptEmailValidation(ctx context.Context, req AcceptActionRequest) (*User, error) {
	return s.acceptUserAction(ctx, req.ActionEnvelope, ActionValidateEmail, ActivityEventEmailValidated, func(_ context.Context, user *User) error {
		user.EmailValidated = true
		return nil
	})
}

// AcceptTerms records that the token owner accepted the terms
func (s *AuthService) AcceptTerms(ctx context.Context, req AcceptActionRequest) (*User, error) {
	return s.acceptUserAction(ctx, req.ActionEnvelope, ActionAcceptTerms, ActivityEventTermsAccepted, func(_ context.Context, user *User) error {
		user.AcceptedTerms = true
		return nil
	})
}

// AcceptPrivacyPolicy records that the token owner accepted the privacy policy
func (s *AuthService) AcceptPrivacyPolicy(ctx context.Context, req AcceptActionRequest) (*User, error) {
	return s.acceptUserAction(ctx, req.ActionEnvelope, ActionAcceptPrivacyPolicy, ActivityEventPrivacyPolicyAccepted, func(_ context.Context, user *User) error {
		user.AcceptedPrivacyPolicy = true
		return nil
	})
}

// AcceptChangePassword sets the new password of the token owner
func (s *AuthService) AcceptChangePassword(ctx context.Context, req AcceptPasswordRequest) (*User, error) {
	return s.acceptPassword(ctx, req, ActionChangePassword, ActivityEventPasswordChanged)
}

// AcceptResetPassword sets the new password of the token owner and signs
// out every session of the user
func (s *AuthService) AcceptResetPassword(ctx context.Context, req AcceptPasswordRequest) (*User, error) {
	return s.acceptPassword(ctx, req, ActionResetPassword, ActivityEventPasswordResetSuccess)
}

// SignOut deletes the session bound to ctx
func (s *AuthService) SignOut(ctx context.Context) error {
	return s.authenticator.Logout(ctx)
}

func (s *AuthService) acceptPassword(ctx context.Context, req AcceptPasswordRequest, flag ActionType, event ActivityEventType) (*User, error) {
	if req.Password == "" {
		return nil, badRequest(TextCodeEmptyPassword, "a new password is required")
	}

	if err := req.Validate(); err != nil {
		return nil, validationFailed(err)
	}

	return s.acceptUserAction(ctx, req.ActionEnvelope, flag, event, func(ctx context.Context, user *User) error {
		if _, err := s.credentials.SetPassword(ctx, user.ID, req.Password); err != nil {
			return err
		}
		if flag != ActionResetPassword {
			return nil
		}
		return s.signOutEverywhere(ctx, user)
	})
}

// acceptUserAction consumes a token for flag, applies mutate to the token
// owner and saves it, all in one transaction
func (s *AuthService) acceptUserAction(ctx context.Context, envelope ActionEnvelope, flag ActionType, event ActivityEventType, mutate PreAction) (*User, error) {
	if err := envelope.Validate(); err != nil {
		return nil, validationFailed(err)
	}

	// expired tokens are deleted outside the transaction below
	if _, err := s.actionTokens.Validate(ctx, envelope, flag); err != nil {
		return nil, err
	}

	var user *User
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		token, err := s.actionTokens.Consume(ctx, envelope, flag)
		if err != nil {
			return err
		}

		if token.UserID == nil {
			return badRequest(TextCodeActionTokenRequest, "action token has no user")
		}

		user, err = s.users.Get(ctx, *token.UserID)
		if err != nil {
			return err
		}

		if err := mutate(ctx, user); err != nil {
			return err
		}

		user, err = s.users.Update(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.emit(ctx, ActivityEvent{
		EventType: event,
		UserID:    user.ID.String(),
	})

	return user, nil
}

func (s *AuthService) signOutEverywhere(ctx context.Context, user *User) error {
	accounts, err := s.accounts.ListByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if _, err := s.authenticator.sessions.DeleteAllByIdentity(ctx, account.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) createCredentials(ctx context.Context, user *User, password, googleID string) error {
	if password != "" {
		if _, err := s.credentials.CreatePassword(ctx, user.ID, password); err != nil {
			return err
		}
	}
	if googleID != "" {
		if _, err := s.credentials.CreateGoogle(ctx, user.ID, googleID); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) resolveRecipient(ctx context.Context, req SendActionTokenRequest) (*User, error) {
	if req.UserID != nil {
		user, err := s.users.Get(ctx, *req.UserID)
		if err != nil {
			if isNotFound(err) {
				return nil, badRequest(TextCodeActionTokenRequest, "user %s not found", *req.UserID)
			}
			return nil, err
		}
		return user, nil
	}

	if req.Email == "" {
		return nil, nil
	}
	return s.users.FindByEmail(ctx, req.Email)
}

// resolveTenant maps unknown organisation or establishment names to bad requests
func (s *AuthService) resolveTenant(ctx context.Context, organisation, establishment string) (*Organisation, *Establishment, error) {
	org, est, err := s.tenants.ResolvePair(ctx, organisation, establishment)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, badRequest(TextCodeNotFound, "%s", err.Error())
		}
		return nil, nil, err
	}
	return org, est, nil
}

// selectAccount returns the account for the requested tenant, or the
// oldest account of the user when no tenant is given
func (s *AuthService) selectAccount(ctx context.Context, user *User, organisationID, establishmentID *uuid.UUID) (*UserAccount, error) {
	if organisationID != nil && establishmentID != nil {
		account, err := s.accounts.Find(ctx, user.ID, *organisationID, *establishmentID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, badRequest(TextCodeNoAccount, "user has no account in establishment %s", *establishmentID)
		}
		return account, nil
	}

	accounts, err := s.accounts.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, badRequest(TextCodeNoAccount, "user has no account")
	}
	return accounts[0], nil
}

// issue creates the token with the validity of its route and sends the link.
// Notification failures are logged and never undo the token.
func (s *AuthService) issue(ctx context.Context, req CreateActionTokenRequest, frontendURL string) (*ActionToken, error) {
	route, ok := s.cfg.RouteFor(req.Type)
	if !ok {
		s.logger.Warn("no route configured for actions %s", req.Type)
	}
	req.ExpiresIn = route.ValidForHours

	link, err := buildActionLink(frontendURL, route.Path)
	if err != nil {
		return nil, err
	}

	token, err := s.actionTokens.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	link = withTokenQuery(link, token)

	if err := s.notifier.SendActionTokenEmail(ctx, token, link.String()); err != nil {
		s.logger.Error("failed to send action token email to %s: %v", token.Email, err)
	}

	return token, nil
}

func buildActionLink(frontendURL, path string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimSpace(frontendURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, badRequest(TextCodeMissingFrontendURL, "invalid frontend url %q", frontendURL)
	}
	if path != "" {
		base = base.JoinPath(path)
	}
	return base, nil
}

func withTokenQuery(link *url.URL, token *ActionToken) *url.URL {
	q := link.Query()
	q.Set("token", token.Token)
	q.Set("email", token.Email)
	link.RawQuery = q.Encode()
	return link
}
