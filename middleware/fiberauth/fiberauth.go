package fiberauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-tenant-auth"
)

const (
	DefaultCookieName = "auth_token"
	DefaultContextKey = "identity"
)

var ErrTokenMissingOrMalformed = errors.New("missing or malformed token")

// IdentityResolver resolves a bearer token into an identity bound context.
// *auth.Authenticator implements it.
type IdentityResolver interface {
	IdentityFromToken(ctx context.Context, token string) (context.Context, *auth.Identity, error)
}

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	Resolver       IdentityResolver
	// ContextKey is the fiber Locals key holding the *auth.Identity
	ContextKey string
	// TokenLookup is a comma separated list of sources checked in order,
	// e.g. "cookie:auth_token,header:Authorization"
	TokenLookup string
	AuthScheme  string
	// RequiredRoles rejects identities holding none of the roles
	RequiredRoles []string
}

// New returns a middleware that authenticates the request and binds the
// identity to both the user context and the fiber locals
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	sources := parseTokenLookup(cfg.TokenLookup)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		token, err := tokenFrom(c, sources, cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		ctx, identity, err := cfg.Resolver.IdentityFromToken(c.UserContext(), token)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if len(cfg.RequiredRoles) > 0 && !auth.HasAnyRole(ctx, cfg.RequiredRoles...) {
			return cfg.ErrorHandler(c, forbidden("access denied: one of roles %s required", strings.Join(cfg.RequiredRoles, ", ")))
		}

		c.SetUserContext(ctx)
		c.Locals(cfg.ContextKey, identity)

		return cfg.SuccessHandler(c)
	}
}

// GetDefaultConfig fills the unset fields of config
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Resolver == nil {
		panic("AUTH: fiber middleware configuration: Resolver is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = ErrorHandler
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = "cookie:" + DefaultCookieName + ",header:" + fiber.HeaderAuthorization
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// ErrorHandler writes err as JSON using the status it carries
func ErrorHandler(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrTokenMissingOrMalformed) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrTokenMissingOrMalformed.Error(),
		})
	}

	body := fiber.Map{"error": err.Error()}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		body["error"] = richErr.Message
		if richErr.TextCode != "" {
			body["code"] = richErr.TextCode
		}
		if len(richErr.Metadata) > 0 {
			body["metadata"] = richErr.Metadata
		}
	}

	return c.Status(auth.HTTPStatus(err)).JSON(body)
}

// IdentityFrom returns the identity stored by the middleware
func IdentityFrom(c *fiber.Ctx, contextKey ...string) (*auth.Identity, bool) {
	key := DefaultContextKey
	if len(contextKey) > 0 && contextKey[0] != "" {
		key = contextKey[0]
	}
	identity, ok := c.Locals(key).(*auth.Identity)
	return identity, ok && identity != nil
}

// SetTokenCookie stores the access token in an HTTP only cookie expiring
// with the token
func SetTokenCookie(c *fiber.Ctx, name string, token *auth.AccessToken, secure bool) {
	if name == "" {
		name = DefaultCookieName
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    token.AccessToken,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearTokenCookie expires the token cookie
func ClearTokenCookie(c *fiber.Ctx, name string) {
	if name == "" {
		name = DefaultCookieName
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func forbidden(format string, args ...any) error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryAuthz).
		WithTextCode("FORBIDDEN").
		WithCode(goerrors.CodeForbidden)
}
