package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

func TestRolePolicyAdmin(t *testing.T) {
	policy := NewRolePolicy(false)
	pre := &models.Inspection{DocumentType: models.DocumentTypePre, OperatorID: 7}
	post := &models.Inspection{DocumentType: models.DocumentTypePost, OperatorID: 7}

	actions := policy.AllowedActions(adminClaims(), pre)
	require.True(t, actions.Has(ActionPublish))
	require.True(t, actions.Has(ActionReject))
	require.True(t, actions.Has(ActionRemove))
	require.False(t, actions.Has(ActionAcceptHSL))
	require.False(t, actions.Has(ActionAcceptOperator))

	actions = policy.AllowedActions(adminClaims(), post)
	require.True(t, actions.Has(ActionAcceptHSL))
	// Admins never hold the operator's seat.
	require.False(t, actions.Has(ActionAcceptOperator))
}

func TestRolePolicyHslStaff(t *testing.T) {
	policy := NewRolePolicy(false)
	pre := &models.Inspection{DocumentType: models.DocumentTypePre, OperatorID: 7}
	post := &models.Inspection{DocumentType: models.DocumentTypePost, OperatorID: 7}

	require.Empty(t, policy.AllowedActions(hslClaims(), pre))
	actions := policy.AllowedActions(hslClaims(), post)
	require.True(t, actions.Has(ActionAcceptHSL))
	require.False(t, actions.Has(ActionPublish))
	require.False(t, actions.Has(ActionSubmit))
}

func TestRolePolicyOperatorScoping(t *testing.T) {
	policy := NewRolePolicy(false)
	post := &models.Inspection{DocumentType: models.DocumentTypePost, OperatorID: 7}

	actions := policy.AllowedActions(operatorClaims(7), post)
	require.True(t, actions.Has(ActionUpdate))
	require.True(t, actions.Has(ActionSubmit))
	require.True(t, actions.Has(ActionMakeSanctionable))
	require.True(t, actions.Has(ActionAcceptOperator))
	require.False(t, actions.Has(ActionAcceptHSL))
	require.False(t, actions.Has(ActionPublish))
	require.False(t, actions.Has(ActionRemove))

	require.Empty(t, policy.AllowedActions(operatorClaims(8), post))
}

func TestRolePolicyTestUserOverride(t *testing.T) {
	post := &models.Inspection{DocumentType: models.DocumentTypePost, OperatorID: 7}
	pre := &models.Inspection{DocumentType: models.DocumentTypePre, OperatorID: 7}
	testUser := &models.JWTClaims{UserID: "e2e", Role: models.RoleHslStaff, TestUser: true}

	enabled := NewRolePolicy(true).AllowedActions(testUser, post)
	require.True(t, enabled.Has(ActionAcceptHSL))
	require.True(t, enabled.Has(ActionAcceptOperator))

	// Override is scoped to post acceptance and to deployments enabling it.
	require.False(t, NewRolePolicy(true).AllowedActions(testUser, pre).Has(ActionAcceptOperator))
	require.False(t, NewRolePolicy(false).AllowedActions(testUser, post).Has(ActionAcceptOperator))

	regular := &models.JWTClaims{UserID: "u", Role: models.RoleHslStaff}
	require.False(t, NewRolePolicy(true).AllowedActions(regular, post).Has(ActionAcceptOperator))
}

func TestRolePolicyCanCreate(t *testing.T) {
	policy := NewRolePolicy(false)
	require.True(t, policy.CanCreate(adminClaims(), 7))
	require.True(t, policy.CanCreate(operatorClaims(7), 7))
	require.False(t, policy.CanCreate(operatorClaims(8), 7))
	require.False(t, policy.CanCreate(hslClaims(), 7))
	require.False(t, policy.CanCreate(nil, 7))
}
