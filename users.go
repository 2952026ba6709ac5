package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// UserInput carries the profile of a new user
type UserInput struct {
	Email                 string `json:"email"`
	Username              string `json:"username,omitempty"`
	FirstName             string `json:"first_name,omitempty"`
	LastName              string `json:"last_name,omitempty"`
	Phone                 string `json:"phone_number,omitempty"`
	ProfilePicture        string `json:"profile_picture,omitempty"`
	Enabled               bool   `json:"enabled"`
	EmailValidated        bool   `json:"is_email_validated"`
	AcceptedTerms         bool   `json:"accepted_terms"`
	AcceptedPrivacyPolicy bool   `json:"accepted_privacy_policy"`
}

// Validate will validate the input
func (u UserInput) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&u.Username, validation.Length(0, 100)),
		validation.Field(&u.FirstName, validation.Length(0, 200)),
		validation.Field(&u.LastName, validation.Length(0, 200)),
	)
}

// UserDirectory creates and updates users. Emails are stored lower cased
// and are unique, as are usernames.
type UserDirectory struct {
	repo             RepositoryManager
	phoneRegion      string
	deterministicIDs bool
	clock            Clock
	logger           Logger
}

// NewUserDirectory creates a new user directory
func NewUserDirectory(repo RepositoryManager) *UserDirectory {
	return &UserDirectory{
		repo:        repo,
		phoneRegion: DefaultPhoneRegion,
		logger:      defLogger{},
	}
}

// WithLogger sets the logger
func (d *UserDirectory) WithLogger(logger Logger) *UserDirectory {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithClock sets the clock used for timestamps
func (d *UserDirectory) WithClock(clock Clock) *UserDirectory {
	d.clock = clock
	return d
}

// WithPhoneRegion sets the region used to parse numbers without a country prefix
func (d *UserDirectory) WithPhoneRegion(region string) *UserDirectory {
	if region != "" {
		d.phoneRegion = strings.ToUpper(region)
	}
	return d
}

// WithDeterministicIDs derives user ids from their email
func (d *UserDirectory) WithDeterministicIDs(enabled bool) *UserDirectory {
	d.deterministicIDs = enabled
	return d
}

// Create stores a new user
func (d *UserDirectory) Create(ctx context.Context, input UserInput) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, validationFailed(err)
	}

	email := normalizeEmail(input.Email)

	phone, err := NormalizePhone(input.Phone, d.phoneRegion)
	if err != nil {
		return nil, err
	}

	existing, err := d.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, alreadyExists("user with email %s already exists", email)
	}

	username, err := d.username(ctx, input.Username, email)
	if err != nil {
		return nil, err
	}

	now := d.clock.now()
	user := &User{
		Email:                 email,
		Username:              username,
		FirstName:             strings.TrimSpace(input.FirstName),
		LastName:              strings.TrimSpace(input.LastName),
		Phone:                 phone,
		ProfilePicture:        input.ProfilePicture,
		Enabled:               input.Enabled,
		EmailValidated:        input.EmailValidated,
		AcceptedTerms:         input.AcceptedTerms,
		AcceptedPrivacyPolicy: input.AcceptedPrivacyPolicy,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if d.deterministicIDs {
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		} else {
			d.logger.Warn("could not derive user id from email: %v", err)
		}
	}

	return d.repo.Users().Create(ctx, user)
}

// username returns the requested username when free. Without one it
// uses the local part of the email, or the full email if that is taken.
// Both candidates taken is a conflict.
func (d *UserDirectory) username(ctx context.Context, requested, email string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		taken, err := d.repo.Users().FindByUsername(ctx, requested)
		if err != nil {
			return "", err
		}
		if taken != nil {
			return "", alreadyExists("username %s already exists", requested)
		}
		return requested, nil
	}

	local := email
	if i := strings.Index(email, "@"); i > 0 {
		local = email[:i]
	}

	for _, candidate := range []string{local, email} {
		taken, err := d.repo.Users().FindByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken == nil {
			return candidate, nil
		}
	}
	return "", alreadyExists("username %s already exists", email)
}

// Get returns the user with id
func (d *UserDirectory) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return d.repo.Users().GetByID(ctx, id)
}

// FindByEmail returns the user with email or nil
func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	return d.repo.Users().FindByEmail(ctx, email)
}

// GetByEmail returns the user with email or a not found error
func (d *UserDirectory) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, err := d.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user with email %s not found", normalizeEmail(email))
	}
	return user, nil
}

// Update persists every field of user. Email and username stay unique.
func (d *UserDirectory) Update(ctx context.Context, user *User) (*User, error) {
	user.Email = normalizeEmail(user.Email)

	if other, err := d.repo.Users().FindByEmail(ctx, user.Email); err != nil {
		return nil, err
	} else if other != nil && other.ID != user.ID {
		return nil, alreadyExists("user with email %s already exists", user.Email)
	}

	if other, err := d.repo.Users().FindByUsername(ctx, user.Username); err != nil {
		return nil, err
	} else if other != nil && other.ID != user.ID {
		return nil, alreadyExists("username %s already exists", user.Username)
	}

	phone, err := NormalizePhone(user.Phone, d.phoneRegion)
	if err != nil {
		return nil, err
	}
	user.Phone = phone

	user.UpdatedAt = d.clock.now()
	return d.repo.Users().Update(ctx, user)
}

// SetEnabled enables or disables the user with id
func (d *UserDirectory) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*User, error) {
	user, err := d.repo.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Enabled = enabled
	user.UpdatedAt = d.clock.now()
	return d.repo.Users().Update(ctx, user)
}

// DefaultPhoneRegion is used for numbers given without a country prefix
const DefaultPhoneRegion = "US"

// NormalizePhone formats raw as E.164. An empty number stays empty.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", badRequest(TextCodeInvalidPhone, "invalid phone number %q", raw)
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", badRequest(TextCodeInvalidPhone, "invalid phone number %q", raw)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
