package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-tenant-auth"
)

func TestActionTypeAlgebra(t *testing.T) {
	masks := []auth.ActionType{
		0,
		auth.ActionInvite,
		auth.ActionsOf(auth.ActionResetPassword, auth.ActionAcceptTerms),
		auth.ActionsOf(auth.AllActionTypes...),
	}

	for _, m := range masks {
		assert.True(t, m.HasAll(0))
		for _, f := range auth.AllActionTypes {
			added := m.Add(f)
			assert.True(t, added.Has(f))
			assert.False(t, added.Remove(f).Has(f))
			assert.Equal(t, added, added.Add(f))
		}
	}
}

func TestActionTypeQueries(t *testing.T) {
	m := auth.ActionsOf(auth.ActionValidateEmail, auth.ActionAcceptTerms)

	assert.True(t, m.HasAll(auth.ActionValidateEmail))
	assert.True(t, m.HasAll(auth.ActionsOf(auth.ActionValidateEmail, auth.ActionAcceptTerms)))
	assert.False(t, m.HasAll(auth.ActionsOf(auth.ActionValidateEmail, auth.ActionInvite)))
	assert.True(t, m.HasAny(auth.UserRequiredActions))
	assert.False(t, m.HasAny(auth.ActionInvite))
	assert.False(t, m.Has(0))
	assert.True(t, auth.ActionType(0).IsZero())

	assert.Equal(t, []auth.ActionType{auth.ActionValidateEmail, auth.ActionAcceptTerms}, m.Flags())
	assert.Equal(t, "validate-email|accept-terms", m.String())
	assert.Equal(t, "none", auth.ActionType(0).String())
}

func TestParseActionType(t *testing.T) {
	f, ok := auth.ParseActionType(" Reset-Password ")
	assert.True(t, ok)
	assert.Equal(t, auth.ActionResetPassword, f)

	_, ok = auth.ParseActionType("launch-rockets")
	assert.False(t, ok)
}

func TestUserRequiredActionsExcludeInvite(t *testing.T) {
	assert.False(t, auth.UserRequiredActions.Has(auth.ActionInvite))
	for _, f := range auth.AllActionTypes {
		if f != auth.ActionInvite {
			assert.True(t, auth.UserRequiredActions.Has(f), f.String())
		}
	}
}
