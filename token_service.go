package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the JWT payload. The subject is the account id.
// Email, username and roles are informational only, authorization
// always reloads the account roles.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email    string         `json:"email,omitempty"`
	Username string         `json:"username,omitempty"`
	Roles    []string       `json:"roles,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AccountID parses the subject as an account id
func (c *SessionClaims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenService signs and validates HS256 bearer tokens
type TokenService struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        string
	decorator       ClaimsDecorator
	clock           Clock
	logger          Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, tokenExpiration int, issuer, audience string) *TokenService {
	return &TokenService{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          defLogger{},
	}
}

// WithLogger sets the logger
func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock sets the clock used for issue and expiry checks
func (ts *TokenService) WithClock(clock Clock) *TokenService {
	ts.clock = clock
	return ts
}

// WithClaimsDecorator sets the decorator run before every token is signed
func (ts *TokenService) WithClaimsDecorator(decorator ClaimsDecorator) *TokenService {
	ts.decorator = decorator
	return ts
}

// Generate signs a token for account. It returns the signed token and its expiry.
func (ts *TokenService) Generate(ctx context.Context, account *UserAccount, user *User) (string, time.Time, error) {
	if account == nil || user == nil {
		return "", time.Time{}, badRequest(TextCodeValidation, "account and user are required")
	}

	now := ts.clock.now()
	expiresAt := now.Add(time.Duration(ts.tokenExpiration) * time.Hour)

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   account.ID.String(),
			Audience:  ts.audienceClaim(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:    user.Email,
		Username: user.Username,
		Roles:    append([]string{}, account.Roles...),
	}

	if err := decorateClaims(ctx, ts.decorator, account, user, claims); err != nil {
		ts.logger.Error("claims decorator rejected token for account %s: %v", account.ID, err)
		return "", time.Time{}, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, internalError(err, "failed to sign JWT")
	}

	return signed, expiresAt, nil
}

// Validate parses and validates a token string. Any failure is returned as is
// so callers can log the cause.
func (ts *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.clock.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if ts.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("unable to decode token claims")
	}

	return claims, nil
}

func (ts *TokenService) audienceClaim() jwt.ClaimStrings {
	if ts.audience == "" {
		return nil
	}
	return jwt.ClaimStrings{ts.audience}
}
