package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionStore keeps at most one live session per identity
type SessionStore struct {
	repo            RepositoryManager
	tokenExpiration int
	clock           Clock
	logger          Logger
}

// NewSessionStore creates a session store whose sessions last
// tokenExpiration hours
func NewSessionStore(repo RepositoryManager, tokenExpiration int) *SessionStore {
	return &SessionStore{
		repo:            repo,
		tokenExpiration: tokenExpiration,
		logger:          defLogger{},
	}
}

// WithLogger sets the logger
func (s *SessionStore) WithLogger(logger Logger) *SessionStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock sets the clock used for login and expiration dates
func (s *SessionStore) WithClock(clock Clock) *SessionStore {
	s.clock = clock
	return s
}

// TTL is the lifetime of a new session
func (s *SessionStore) TTL() time.Duration {
	return time.Duration(s.tokenExpiration) * time.Hour
}

// Create deletes every session of identityID and stores a new one for token.
// Both steps run in one transaction.
func (s *SessionStore) Create(ctx context.Context, token string, identityID uuid.UUID) (*Session, error) {
	if token == "" {
		return nil, badRequest(TextCodeValidation, "session token is required")
	}

	var session *Session
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		deleted, err := s.repo.Sessions().DeleteByIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		if deleted > 0 {
			s.logger.Info("deleted %d previous session(s) for identity %s", deleted, identityID)
		}

		now := s.clock.now()
		session, err = s.repo.Sessions().Create(ctx, &Session{
			Token:          token,
			IdentityID:     identityID,
			LoginDate:      now,
			ExpirationDate: now.Add(s.TTL()),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// FindByToken returns the session for token or nil
func (s *SessionStore) FindByToken(ctx context.Context, token string) (*Session, error) {
	return s.repo.Sessions().FindByToken(ctx, token)
}

// GetByToken returns the session for token or a not found error
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	session, err := s.repo.Sessions().FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, notFound("session not found").WithTextCode(TextCodeSessionNotFound)
	}
	return session, nil
}

// DeleteByToken removes the session for token
func (s *SessionStore) DeleteByToken(ctx context.Context, token string) error {
	n, err := s.repo.Sessions().DeleteByToken(ctx, token)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("session not found").WithTextCode(TextCodeSessionNotFound)
	}
	return nil
}

// IsActive reports whether the session has not yet expired
func (s *SessionStore) IsActive(session *Session) bool {
	return session.IsActive(s.clock.now())
}

// DeleteExpired removes every session past its expiration date
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	n, err := s.repo.Sessions().DeleteExpired(ctx, s.clock.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("deleted %d expired session(s)", n)
	}
	return n, nil
}

// DeleteAllByIdentity removes every session of identityID
func (s *SessionStore) DeleteAllByIdentity(ctx context.Context, identityID uuid.UUID) (int, error) {
	return s.repo.Sessions().DeleteByIdentity(ctx, identityID)
}
