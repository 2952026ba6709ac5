package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActionEnvelope identifies an action token and the email it was issued to
type ActionEnvelope struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// CreateActionTokenRequest describes a new action token. ExpiresIn is in
// hours, zero means the token never expires.
type CreateActionTokenRequest struct {
	Type            ActionType `json:"type"`
	Email           string     `json:"email,omitempty"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	OrganisationID  *uuid.UUID `json:"organisation_id,omitempty"`
	EstablishmentID *uuid.UUID `json:"establishment_id,omitempty"`
	Roles           []string   `json:"roles,omitempty"`
	ExpiresIn       int        `json:"expires_in,omitempty"`
}

// ActionTokenService creates, validates and revokes single use action tokens
type ActionTokenService struct {
	repo     RepositoryManager
	roles    *RoleRegistry
	clock    Clock
	logger   Logger
	activity activityEmitter
}

// NewActionTokenService creates a new action token service
func NewActionTokenService(repo RepositoryManager, roles *RoleRegistry) *ActionTokenService {
	return &ActionTokenService{
		repo:     repo,
		roles:    roles,
		logger:   defLogger{},
		activity: activityEmitter{logger: defLogger{}},
	}
}

// WithLogger sets the logger
func (s *ActionTokenService) WithLogger(logger Logger) *ActionTokenService {
	if logger != nil {
		s.logger = logger
		s.activity.logger = logger
	}
	return s
}

// WithClock sets the clock used for creation and expiry
func (s *ActionTokenService) WithClock(clock Clock) *ActionTokenService {
	s.clock = clock
	s.activity.clock = clock
	return s
}

// WithActivitySink configures an ActivitySink for emitting token events.
func (s *ActionTokenService) WithActivitySink(sink ActivitySink) *ActionTokenService {
	s.activity.sink = sink
	return s
}

// Create stores a new action token
func (s *ActionTokenService) Create(ctx context.Context, req CreateActionTokenRequest) (*ActionToken, error) {
	if req.Email == "" && req.UserID == nil {
		return nil, badRequest(TextCodeActionTokenRequest, "an email or a user is required")
	}

	if req.Type.IsZero() {
		return nil, badRequest(TextCodeActionTokenRequest, "at least one action is required")
	}

	if req.ExpiresIn < 0 {
		return nil, badRequest(TextCodeActionTokenRequest, "expiration must be a positive number of hours")
	}

	var user *User
	if req.UserID != nil {
		found, err := s.repo.Users().GetByID(ctx, *req.UserID)
		if err != nil {
			if isNotFound(err) {
				return nil, badRequest(TextCodeActionTokenRequest, "user %s not found", *req.UserID)
			}
			return nil, err
		}
		user = found
	}

	if req.Type.Has(ActionInvite) && req.Type.HasAny(UserRequiredActions) {
		return nil, badRequest(TextCodeActionTokenRequest, "invite cannot be combined with %s", req.Type.Remove(ActionInvite))
	}

	if req.Type.HasAny(UserRequiredActions) && user == nil {
		return nil, badRequest(TextCodeActionTokenRequest, "actions %s require an existing user", req.Type)
	}

	roles, err := s.roles.ResolveNames(ctx, req.Roles)
	if err != nil {
		return nil, err
	}

	email := req.Email
	if email == "" {
		email = user.Email
	}

	now := s.clock.now()
	token := &ActionToken{
		Token:           uuid.NewString(),
		Type:            req.Type,
		Email:           normalizeEmail(email),
		OrganisationID:  req.OrganisationID,
		EstablishmentID: req.EstablishmentID,
		Roles:           roleNames(roles),
		CreatedAt:       now,
	}
	if user != nil {
		token.UserID = &user.ID
	}
	if req.ExpiresIn > 0 {
		expiresAt := now.Add(time.Duration(req.ExpiresIn) * time.Hour)
		token.ExpiresAt = &expiresAt
	}

	if _, err := s.repo.ActionTokens().Create(ctx, token); err != nil {
		return nil, err
	}

	event := ActivityEvent{
		EventType: ActivityEventActionTokenCreated,
		Metadata:  map[string]any{"actions": token.Type.String(), "email": token.Email},
	}
	if token.UserID != nil {
		event.UserID = token.UserID.String()
	}
	s.activity.emit(ctx, event)

	return token, nil
}

// Validate checks that the token exists, belongs to the envelope email,
// carries every required action and has not expired. Expired tokens are
// deleted before the error is returned. The token is not consumed.
func (s *ActionTokenService) Validate(ctx context.Context, envelope ActionEnvelope, required ActionType) (*ActionToken, error) {
	token, err := s.repo.ActionTokens().FindByToken(ctx, envelope.Token)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrInvalidActionToken
	}

	if !token.MatchesEmail(envelope.Email) {
		return nil, ErrActionTokenEmailMismatch
	}

	if !token.Type.HasAll(required) {
		return nil, ErrActionTokenMissingActions
	}

	if token.IsExpired(s.clock.now()) {
		if _, err := s.repo.ActionTokens().DeleteByToken(ctx, token.Token); err != nil {
			s.logger.Error("failed to delete expired action token: %v", err)
		}
		return nil, ErrActionTokenExpired
	}

	return token, nil
}

// Consume validates the token and deletes it in the same transaction, so a
// token can be used once even under concurrent requests.
func (s *ActionTokenService) Consume(ctx context.Context, envelope ActionEnvelope, required ActionType) (*ActionToken, error) {
	var token *ActionToken
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		found, err := s.Validate(ctx, envelope, required)
		if err != nil {
			return err
		}

		n, err := s.repo.ActionTokens().DeleteByToken(ctx, found.Token)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrInvalidActionToken
		}

		token = found
		return nil
	})

	if errors.Is(err, ErrActionTokenExpired) {
		// the rollback restored the expired row
		if _, inTx := txFromContext(ctx); !inTx {
			if _, delErr := s.repo.ActionTokens().DeleteByToken(ctx, envelope.Token); delErr != nil {
				s.logger.Error("failed to delete expired action token: %v", delErr)
			}
		}
	}

	if err != nil {
		return nil, err
	}

	event := ActivityEvent{
		EventType: ActivityEventActionTokenConsumed,
		Metadata:  map[string]any{"actions": token.Type.String(), "email": token.Email},
	}
	if token.UserID != nil {
		event.UserID = token.UserID.String()
	}
	s.activity.emit(ctx, event)

	return token, nil
}

// Revoke deletes the token
func (s *ActionTokenService) Revoke(ctx context.Context, token string) error {
	n, err := s.repo.ActionTokens().DeleteByToken(ctx, token)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("action token not found")
	}
	return nil
}

// Purge deletes every token past its expiry
func (s *ActionTokenService) Purge(ctx context.Context) (int, error) {
	n, err := s.repo.ActionTokens().DeleteExpired(ctx, s.clock.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purged %d expired action token(s)", n)
	}
	return n, nil
}

// Find returns the token or nil
func (s *ActionTokenService) Find(ctx context.Context, token string) (*ActionToken, error) {
	return s.repo.ActionTokens().FindByToken(ctx, token)
}
