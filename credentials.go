package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialStore manages password and google credentials per user
type CredentialStore struct {
	repo   RepositoryManager
	clock  Clock
	logger Logger
}

// NewCredentialStore creates a new credential store
func NewCredentialStore(repo RepositoryManager) *CredentialStore {
	return &CredentialStore{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger sets the logger
func (s *CredentialStore) WithLogger(logger Logger) *CredentialStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock sets the clock used for timestamps
func (s *CredentialStore) WithClock(clock Clock) *CredentialStore {
	s.clock = clock
	return s
}

// CreatePassword stores a new password credential for the user
func (s *CredentialStore) CreatePassword(ctx context.Context, userID uuid.UUID, password string) (*Credential, error) {
	existing, err := s.repo.Credentials().FindByUser(ctx, userID, CredentialPassword)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflict(TextCodeCredentialExists, "user %s already has a password credential", userID)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	return s.repo.Credentials().Create(ctx, &Credential{
		UserID:       userID,
		Type:         CredentialPassword,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// UpdatePassword replaces the hash of the existing password credential
func (s *CredentialStore) UpdatePassword(ctx context.Context, userID uuid.UUID, password string) (*Credential, error) {
	existing, err := s.repo.Credentials().FindByUser(ctx, userID, CredentialPassword)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFound("user %s has no password credential", userID).
			WithTextCode(TextCodeCredentialNotFound)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	existing.PasswordHash = hash
	existing.UpdatedAt = s.clock.now()
	return s.repo.Credentials().Update(ctx, existing)
}

// SetPassword creates the password credential or updates it when present
func (s *CredentialStore) SetPassword(ctx context.Context, userID uuid.UUID, password string) (*Credential, error) {
	var credential *Credential
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		existing, err := s.repo.Credentials().FindByUser(ctx, userID, CredentialPassword)
		if err != nil {
			return err
		}
		if existing == nil {
			credential, err = s.CreatePassword(ctx, userID, password)
		} else {
			credential, err = s.UpdatePassword(ctx, userID, password)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return credential, nil
}

// VerifyPassword reports whether password matches the stored credential.
// A user without a password credential never matches.
func (s *CredentialStore) VerifyPassword(ctx context.Context, userID uuid.UUID, password string) (bool, error) {
	existing, err := s.repo.Credentials().FindByUser(ctx, userID, CredentialPassword)
	if err != nil {
		return false, err
	}
	if existing == nil || existing.PasswordHash == "" {
		return false, nil
	}

	ok, err := ComparePasswordAndHash(password, existing.PasswordHash)
	if err != nil {
		s.logger.Warn("password hash for user %s could not be compared: %v", userID, err)
		return false, nil
	}
	return ok, nil
}

// CreateGoogle links a google account id to the user
func (s *CredentialStore) CreateGoogle(ctx context.Context, userID uuid.UUID, googleID string) (*Credential, error) {
	if googleID == "" {
		return nil, badRequest(TextCodeValidation, "google id is required")
	}

	existing, err := s.repo.Credentials().FindByUser(ctx, userID, CredentialGoogle)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflict(TextCodeCredentialExists, "user %s already has a google credential", userID)
	}

	linked, err := s.repo.Credentials().FindByGoogleID(ctx, googleID)
	if err != nil {
		return nil, err
	}
	if linked != nil && linked.UserID != userID {
		return nil, conflict(TextCodeCredentialExists, "google account is already linked to another user")
	}

	now := s.clock.now()
	return s.repo.Credentials().Create(ctx, &Credential{
		UserID:    userID,
		Type:      CredentialGoogle,
		GoogleID:  googleID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// FindGoogle returns the google credential for googleID or nil
func (s *CredentialStore) FindGoogle(ctx context.Context, googleID string) (*Credential, error) {
	return s.repo.Credentials().FindByGoogleID(ctx, googleID)
}
