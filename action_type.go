package auth

import (
	"strings"
)

// ActionType is a bitmask of lifecycle actions an action token authorizes
type ActionType uint32

const (
	ActionInvite ActionType = 1 << iota
	ActionValidateEmail
	ActionResetPassword
	ActionChangePassword
	ActionAcceptTerms
	ActionAcceptPrivacyPolicy
	ActionChangeEmail
)

// AllActionTypes is the universe of known flags in declaration order
var AllActionTypes = []ActionType{
	ActionInvite,
	ActionValidateEmail,
	ActionResetPassword,
	ActionChangePassword,
	ActionAcceptTerms,
	ActionAcceptPrivacyPolicy,
	ActionChangeEmail,
}

// UserRequiredActions are the flags that only make sense for an existing user
var UserRequiredActions = ActionsOf(
	ActionValidateEmail,
	ActionResetPassword,
	ActionChangePassword,
	ActionAcceptTerms,
	ActionAcceptPrivacyPolicy,
	ActionChangeEmail,
)

var actionTypeNames = map[ActionType]string{
	ActionInvite:              "invite",
	ActionValidateEmail:       "validate-email",
	ActionResetPassword:       "reset-password",
	ActionChangePassword:      "change-password",
	ActionAcceptTerms:         "accept-terms",
	ActionAcceptPrivacyPolicy: "accept-privacy-policy",
	ActionChangeEmail:         "change-email",
}

// ActionsOf combines flags into a single mask
func ActionsOf(flags ...ActionType) ActionType {
	var m ActionType
	for _, f := range flags {
		m |= f
	}
	return m
}

// ParseActionType resolves a flag by its name, e.g. "reset-password"
func ParseActionType(name string) (ActionType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for flag, n := range actionTypeNames {
		if n == name {
			return flag, true
		}
	}
	return 0, false
}

// Has reports whether every bit of flag is set. A zero flag is never contained.
func (m ActionType) Has(flag ActionType) bool {
	return flag != 0 && m&flag == flag
}

// Add returns the mask with flag set
func (m ActionType) Add(flag ActionType) ActionType {
	return m | flag
}

// Remove returns the mask with flag cleared
func (m ActionType) Remove(flag ActionType) ActionType {
	return m &^ flag
}

// HasAll reports whether every required bit is set. HasAll(0) is true.
func (m ActionType) HasAll(required ActionType) bool {
	return m&required == required
}

// HasAny reports whether at least one bit of set is present
func (m ActionType) HasAny(set ActionType) bool {
	return m&set != 0
}

// IsZero reports whether no flag is set
func (m ActionType) IsZero() bool {
	return m == 0
}

// Flags lists the set flags found in universe, AllActionTypes when empty
func (m ActionType) Flags(universe ...ActionType) []ActionType {
	if len(universe) == 0 {
		universe = AllActionTypes
	}
	flags := []ActionType{}
	for _, f := range universe {
		if m.Has(f) {
			flags = append(flags, f)
		}
	}
	return flags
}

func (m ActionType) String() string {
	if m == 0 {
		return "none"
	}
	names := make([]string, 0, len(AllActionTypes))
	for _, f := range m.Flags() {
		names = append(names, actionTypeNames[f])
	}
	return strings.Join(names, "|")
}
