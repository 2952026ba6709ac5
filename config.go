package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// ActionRoute is the frontend path a token link points to and how many
// hours tokens for that action stay valid. Zero hours means no expiry.
type ActionRoute struct {
	Path          string `json:"path"`
	ValidForHours int    `json:"valid_for_hours"`
}

// Config holds the settings consumed by the module. Loading it from
// files or the environment is up to the host application.
type Config struct {
	SigningKey      string `json:"signing_key"`
	TokenExpiration int    `json:"token_expiration"`
	Issuer          string `json:"issuer"`
	Audience        string `json:"audience"`

	DefaultSignUpRoles     []string                   `json:"default_sign_up_roles"`
	DefaultInvitationRoles []string                   `json:"default_invitation_roles"`
	ActionRoutes           map[ActionType]ActionRoute `json:"action_routes"`

	AdminEmail    string   `json:"admin_email"`
	AdminPassword string   `json:"admin_password"`
	AdminRoles    []string `json:"admin_roles"`

	// SeedOrganisations are organisation names, SeedEstablishments are
	// "organisation:establishment" pairs
	SeedOrganisations  []string `json:"seed_organisations"`
	SeedEstablishments []string `json:"seed_establishments"`

	SweepInterval        time.Duration `json:"sweep_interval"`
	DefaultPhoneRegion   string        `json:"default_phone_region"`
	DeterministicUserIDs bool          `json:"deterministic_user_ids"`
}

// DefaultConfig returns a configuration with every optional value set
func DefaultConfig() Config {
	return Config{
		TokenExpiration:        24,
		Issuer:                 "go-tenant-auth",
		DefaultSignUpRoles:     []string{"user"},
		DefaultInvitationRoles: []string{"user"},
		ActionRoutes:           DefaultActionRoutes(),
		AdminRoles:             []string{"admin"},
		SweepInterval:          time.Hour,
		DefaultPhoneRegion:     DefaultPhoneRegion,
	}
}

// DefaultActionRoutes returns the default deep link routes
func DefaultActionRoutes() map[ActionType]ActionRoute {
	return map[ActionType]ActionRoute{
		ActionInvite:              {Path: "/accept-invitation", ValidForHours: 72},
		ActionValidateEmail:       {Path: "/validate-email", ValidForHours: 24},
		ActionResetPassword:       {Path: "/reset-password", ValidForHours: 1},
		ActionChangePassword:      {Path: "/change-password", ValidForHours: 1},
		ActionAcceptTerms:         {Path: "/accept-terms", ValidForHours: 168},
		ActionAcceptPrivacyPolicy: {Path: "/accept-privacy-policy", ValidForHours: 168},
		ActionChangeEmail:         {Path: "/change-email", ValidForHours: 24},
	}
}

// Validate will validate the configuration
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&c.AdminEmail, is.Email),
		validation.Field(&c.AdminPassword, validation.By(requiredWith(c.AdminEmail))),
		validation.Field(&c.SeedEstablishments, validation.By(validateSeedPairs)),
	)
	if err != nil {
		return validationFailed(err)
	}

	if c.SweepInterval < 0 {
		return badRequest(TextCodeInvalidConfig, "sweep interval must not be negative")
	}

	for flag, route := range c.ActionRoutes {
		if route.ValidForHours < 0 {
			return badRequest(TextCodeInvalidConfig, "route for %s has a negative validity", flag)
		}
	}

	return nil
}

// RouteFor returns the route of the first flag in mask with a configured route
func (c Config) RouteFor(mask ActionType) (ActionRoute, bool) {
	for _, flag := range mask.Flags() {
		if route, ok := c.ActionRoutes[flag]; ok {
			return route, true
		}
	}
	return ActionRoute{}, false
}

// SeedPairs splits SeedEstablishments into organisation and establishment names
func (c Config) SeedPairs() [][2]string {
	pairs := make([][2]string, 0, len(c.SeedEstablishments))
	for _, raw := range c.SeedEstablishments {
		if org, est, ok := splitSeedPair(raw); ok {
			pairs = append(pairs, [2]string{org, est})
		}
	}
	return pairs
}

func validateSeedPairs(value any) error {
	pairs, _ := value.([]string)
	for _, raw := range pairs {
		if _, _, ok := splitSeedPair(raw); !ok {
			return fmt.Errorf("%q must be organisation:establishment", raw)
		}
	}
	return nil
}

// requiredWith fails on an empty value when other is set
func requiredWith(other string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if other != "" && s == "" {
			return errors.New("cannot be blank")
		}
		return nil
	}
}

func splitSeedPair(raw string) (string, string, bool) {
	org, est, found := strings.Cut(raw, ":")
	org, est = strings.TrimSpace(org), strings.TrimSpace(est)
	if !found || org == "" || est == "" {
		return "", "", false
	}
	return org, est, true
}
