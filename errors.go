package auth

import (
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidClaimFormat = "CLAIM_INVALID_FORMAT"
	TextCodeInvalidClaimAction = "CLAIM_INVALID_ACTION"
	TextCodeInvalidClaimScope  = "CLAIM_INVALID_SCOPE"
	TextCodeValidation         = "VALIDATION_FAILED"
	TextCodeAlreadyExists      = "ALREADY_EXISTS"
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeRolesNotFound      = "ROLES_NOT_FOUND"
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeAccountDisabled    = "ACCOUNT_DISABLED"
	TextCodeNoAccount          = "NO_ACCOUNT"
	TextCodeInvalidActionToken = "INVALID_ACTION_TOKEN"
	TextCodeActionTokenEmail   = "ACTION_TOKEN_EMAIL_MISMATCH"
	TextCodeActionTokenActions = "ACTION_TOKEN_MISSING_ACTIONS"
	TextCodeActionTokenExpired = "ACTION_TOKEN_EXPIRED"
	TextCodeActionTokenRequest = "ACTION_TOKEN_BAD_REQUEST"
	TextCodeTenantMismatch     = "TENANT_MISMATCH"
	TextCodeTermsNotAccepted   = "TERMS_NOT_ACCEPTED"
	TextCodeCredentialExists   = "CREDENTIAL_EXISTS"
	TextCodeCredentialNotFound = "CREDENTIAL_NOT_FOUND"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeMissingFrontendURL = "MISSING_FRONTEND_URL"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeInvalidConfig      = "INVALID_CONFIG"
	TextCodeInvalidPhone       = "INVALID_PHONE"
	TextCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	TextCodeImmutableClaim     = "IMMUTABLE_CLAIM_MUTATION"
)

// ErrInvalidClaimFormat is returned for claims without three non empty segments
var ErrInvalidClaimFormat = goerrors.New("invalid claim format, expected action:scope:resource", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidClaimFormat).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidClaimAction is returned when the action segment is unknown
var ErrInvalidClaimAction = goerrors.New("invalid claim action", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidClaimAction).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidClaimScope is returned when the scope segment is unknown
var ErrInvalidClaimScope = goerrors.New("invalid claim scope", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidClaimScope).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthorized is the single error surfaced for any token or session failure.
// The underlying cause is logged, never returned.
var ErrUnauthorized = goerrors.New("unauthorized", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthenticated is returned when no identity is bound to the context
var ErrNotAuthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidActionToken is returned for unknown action tokens
var ErrInvalidActionToken = goerrors.New("Invalid action token", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInvalidActionToken).
	WithCode(goerrors.CodeForbidden)

// ErrActionTokenEmailMismatch is returned when the supplied email does not own the token
var ErrActionTokenEmailMismatch = goerrors.New("Action token does not belong to this email", goerrors.CategoryAuthz).
	WithTextCode(TextCodeActionTokenEmail).
	WithCode(goerrors.CodeForbidden)

// ErrActionTokenMissingActions is returned when the token mask lacks a required action
var ErrActionTokenMissingActions = goerrors.New("Token does not contain all required actions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeActionTokenActions).
	WithCode(goerrors.CodeForbidden)

// ErrActionTokenExpired is returned after an expired token has been deleted
var ErrActionTokenExpired = goerrors.New("Action token has expired", goerrors.CategoryAuthz).
	WithTextCode(TextCodeActionTokenExpired).
	WithCode(goerrors.CodeForbidden)

// ErrRolesNotFound is returned when a role name list does not fully resolve
var ErrRolesNotFound = goerrors.New("one or more roles not found", goerrors.CategoryBadInput).
	WithTextCode(TextCodeRolesNotFound).
	WithCode(goerrors.CodeBadRequest)

// ErrImmutableClaimMutation is returned when a claims decorator touches a guarded claim
var ErrImmutableClaimMutation = goerrors.New("immutable claim mutated", goerrors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim).
	WithCode(http.StatusInternalServerError)

func badRequest(textCode, format string, args ...any) *goerrors.Error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryBadInput).
		WithTextCode(textCode).
		WithCode(goerrors.CodeBadRequest)
}

func notFound(format string, args ...any) *goerrors.Error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryNotFound).
		WithTextCode(TextCodeNotFound).
		WithCode(goerrors.CodeNotFound)
}

func conflict(textCode, format string, args ...any) *goerrors.Error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryConflict).
		WithTextCode(textCode).
		WithCode(goerrors.CodeConflict)
}

func alreadyExists(format string, args ...any) *goerrors.Error {
	return badRequest(TextCodeAlreadyExists, format, args...)
}

// internalError keeps rich errors as they are and wraps anything else
func internalError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

// HTTPStatus returns the HTTP status code carried by err, 500 otherwise
func HTTPStatus(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

// TextCode returns the text code carried by err, empty otherwise
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func isNotFound(err error) bool {
	return err != nil && HTTPStatus(err) == http.StatusNotFound
}

// validationFailed turns ozzo validation errors into a bad request
// carrying the failing fields as metadata
func validationFailed(err error) error {
	if err == nil {
		return nil
	}

	richErr := badRequest(TextCodeValidation, "validation failed: %s", err.Error())

	var fields validation.Errors
	if errors.As(err, &fields) {
		meta := make(map[string]any, len(fields))
		for name, fieldErr := range fields {
			meta[name] = fieldErr.Error()
		}
		richErr = richErr.WithMetadata(map[string]any{"fields": meta})
	}

	return richErr
}
