package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// Validate will validate the envelope
func (e ActionEnvelope) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

// SignUpRequest registers a new user. Naming an organisation and an
// establishment also binds an account with the default sign up roles.
type SignUpRequest struct {
	Email                 string `json:"email"`
	Username              string `json:"username,omitempty"`
	Password              string `json:"password,omitempty"`
	GoogleID              string `json:"google_id,omitempty"`
	FirstName             string `json:"first_name,omitempty"`
	LastName              string `json:"last_name,omitempty"`
	Phone                 string `json:"phone_number,omitempty"`
	ProfilePicture        string `json:"profile_picture,omitempty"`
	Enabled               bool   `json:"enabled"`
	AcceptedTerms         bool   `json:"accepted_terms"`
	AcceptedPrivacyPolicy bool   `json:"accepted_privacy_policy"`
	Organisation          string `json:"organisation,omitempty"`
	Establishment         string `json:"establishment,omitempty"`
}

// Validate will validate the request
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.By(requiredWith(oneOf(r.GoogleID, "password"))), validation.Length(8, 100)),
		validation.Field(&r.Establishment, validation.By(requiredWith(r.Organisation))),
		validation.Field(&r.Organisation, validation.By(requiredWith(r.Establishment))),
	)
}

// SignInRequest authenticates a user. Without a tenant the oldest
// account of the user is used.
type SignInRequest struct {
	Email           string     `json:"email"`
	Password        string     `json:"password"`
	OrganisationID  *uuid.UUID `json:"organisation_id,omitempty"`
	EstablishmentID *uuid.UUID `json:"establishment_id,omitempty"`
}

// Validate will validate the request
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// SendActionTokenRequest asks for an action token link to be sent
type SendActionTokenRequest struct {
	Type   ActionType `json:"type"`
	Email  string     `json:"email,omitempty"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

// Validate will validate the request
func (r SendActionTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required),
		validation.Field(&r.Email, is.Email),
	)
}

// SendInvitationRequest invites a new user into a tenant pairing
type SendInvitationRequest struct {
	Email         string   `json:"email"`
	Organisation  string   `json:"organisation"`
	Establishment string   `json:"establishment"`
	Roles         []string `json:"roles,omitempty"`
}

// Validate will validate the request
func (r SendInvitationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Organisation, validation.Required),
		validation.Field(&r.Establishment, validation.Required),
	)
}

// SendResetPasswordRequest asks for a password reset link
type SendResetPasswordRequest struct {
	Email string `json:"email"`
}

// Validate will validate the request
func (r SendResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// AcceptInvitationRequest completes an invitation with the new user profile
type AcceptInvitationRequest struct {
	ActionEnvelope
	Username              string `json:"username,omitempty"`
	Password              string `json:"password,omitempty"`
	GoogleID              string `json:"google_id,omitempty"`
	FirstName             string `json:"first_name,omitempty"`
	LastName              string `json:"last_name,omitempty"`
	Phone                 string `json:"phone_number,omitempty"`
	ProfilePicture        string `json:"profile_picture,omitempty"`
	AcceptedTerms         bool   `json:"accepted_terms"`
	AcceptedPrivacyPolicy bool   `json:"accepted_privacy_policy"`
}

// Validate will validate the request
func (r AcceptInvitationRequest) Validate() error {
	if err := r.ActionEnvelope.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.By(requiredWith(oneOf(r.GoogleID, "password"))), validation.Length(8, 100)),
	)
}

// AcceptActionRequest completes a flow that only needs the token
type AcceptActionRequest struct {
	ActionEnvelope
}

// AcceptPasswordRequest completes a password change or reset
type AcceptPasswordRequest struct {
	ActionEnvelope
	Password string `json:"password"`
}

// Validate will validate the request
func (r AcceptPasswordRequest) Validate() error {
	if err := r.ActionEnvelope.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Length(8, 100)),
	)
}

// oneOf returns marker when value is empty, so requiredWith demands the
// field only when the alternative is missing
func oneOf(value, marker string) string {
	if value != "" {
		return ""
	}
	return marker
}
