package auth

import (
	"strings"
)

// ClaimAction is the verb of a claim
type ClaimAction string

const (
	ClaimActionAdmin   ClaimAction = "admin"
	ClaimActionCreate  ClaimAction = "create"
	ClaimActionRead    ClaimAction = "read"
	ClaimActionUpdate  ClaimAction = "update"
	ClaimActionEnable  ClaimAction = "enable"
	ClaimActionDisable ClaimAction = "disable"
	ClaimActionExecute ClaimAction = "execute"
	ClaimActionDelete  ClaimAction = "delete"
)

// ClaimScope is the reach of a claim
type ClaimScope string

const (
	ClaimScopeAdmin         ClaimScope = "admin"
	ClaimScopeAny           ClaimScope = "any"
	ClaimScopeOrganisation  ClaimScope = "organisation"
	ClaimScopeEstablishment ClaimScope = "establishment"
	ClaimScopeOwn           ClaimScope = "own"
)

const claimSeparator = ":"

// IsValid reports whether the action is one of the known actions
func (a ClaimAction) IsValid() bool {
	switch a {
	case ClaimActionAdmin, ClaimActionCreate, ClaimActionRead, ClaimActionUpdate,
		ClaimActionEnable, ClaimActionDisable, ClaimActionExecute, ClaimActionDelete:
		return true
	default:
		return false
	}
}

// IsValid reports whether the scope is one of the known scopes
func (s ClaimScope) IsValid() bool {
	switch s {
	case ClaimScopeAdmin, ClaimScopeAny, ClaimScopeOrganisation, ClaimScopeEstablishment, ClaimScopeOwn:
		return true
	default:
		return false
	}
}

// Claim is a permission triple written as action:scope:resource
type Claim struct {
	Action   ClaimAction
	Scope    ClaimScope
	Resource string
}

// ClaimLike is any value exposing the three claim parts
type ClaimLike interface {
	GetAction() string
	GetScope() string
	GetResource() string
}

// ParseClaim parses the canonical string form. Segments after the third are ignored.
func ParseClaim(raw string) (Claim, error) {
	parts := strings.Split(raw, claimSeparator)
	if len(parts) < 3 {
		return Claim{}, ErrInvalidClaimFormat
	}
	return NewClaim(parts[0], parts[1], parts[2])
}

// NewClaim builds a claim from its three parts
func NewClaim(action, scope, resource string) (Claim, error) {
	if action == "" || scope == "" || resource == "" {
		return Claim{}, ErrInvalidClaimFormat
	}

	claim := Claim{
		Action:   ClaimAction(action),
		Scope:    ClaimScope(scope),
		Resource: resource,
	}

	if !claim.Action.IsValid() {
		return Claim{}, ErrInvalidClaimAction
	}

	if !claim.Scope.IsValid() {
		return Claim{}, ErrInvalidClaimScope
	}

	return claim, nil
}

// ClaimFrom builds a claim from any ClaimLike value
func ClaimFrom(v ClaimLike) (Claim, error) {
	if v == nil {
		return Claim{}, ErrInvalidClaimFormat
	}
	return NewClaim(v.GetAction(), v.GetScope(), v.GetResource())
}

// ParseClaims parses a list of claim strings keeping their order
func ParseClaims(raw []string) ([]Claim, error) {
	claims := make([]Claim, 0, len(raw))
	for _, r := range raw {
		c, err := ParseClaim(r)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, nil
}

// String serializes the claim as action:scope:resource
func (c Claim) String() string {
	return string(c.Action) + claimSeparator + string(c.Scope) + claimSeparator + c.Resource
}

func (c Claim) GetAction() string   { return string(c.Action) }
func (c Claim) GetScope() string    { return string(c.Scope) }
func (c Claim) GetResource() string { return c.Resource }

// MarshalText implements encoding.TextMarshaler
func (c Claim) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Claim) UnmarshalText(text []byte) error {
	parsed, err := ParseClaim(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Allows reports whether the claim grants action under scope on resource.
// The admin action and the admin scope grant every action. Scopes nest as
// own < establishment < organisation < any < admin, so a wider scope
// satisfies a narrower request.
func (c Claim) Allows(action ClaimAction, scope ClaimScope, resource string) bool {
	if c.Resource != resource {
		return false
	}

	if c.Scope != ClaimScopeAdmin && c.Action != ClaimActionAdmin && c.Action != action {
		return false
	}

	return scopeRank[c.Scope] >= scopeRank[scope] && scopeRank[scope] > 0
}

var scopeRank = map[ClaimScope]int{
	ClaimScopeOwn:           1,
	ClaimScopeEstablishment: 2,
	ClaimScopeOrganisation:  3,
	ClaimScopeAny:           4,
	ClaimScopeAdmin:         5,
}

var _ ClaimLike = Claim{}
