package service

import (
	"github.com/javandres/bultti-inspections-api/internal/models"
)

// Action enumerates the lifecycle actions an actor can invoke on an
// inspection.
type Action string

const (
	ActionUpdate            Action = "UPDATE"
	ActionSubmit            Action = "SUBMIT"
	ActionMakeSanctionable  Action = "MAKE_SANCTIONABLE"
	ActionAbandonSanctions  Action = "ABANDON_SANCTIONS"
	ActionAcceptHSL         Action = "ACCEPT_HSL"
	ActionAcceptOperator    Action = "ACCEPT_OPERATOR"
	ActionPublish           Action = "PUBLISH"
	ActionReject            Action = "REJECT"
	ActionRemove            Action = "REMOVE"
	ActionUpdateLinked      Action = "UPDATE_LINKED_INSPECTIONS"
)

// ActionSet is the permission set returned by the role policy.
type ActionSet map[Action]struct{}

// Has reports membership.
func (s ActionSet) Has(action Action) bool {
	_, ok := s[action]
	return ok
}

func (s ActionSet) add(actions ...Action) {
	for _, a := range actions {
		s[a] = struct{}{}
	}
}

// RolePolicy decides which lifecycle actions an actor may invoke on an
// inspection. Evaluation is a pure function of its inputs: no ambient
// context, no side effects. Whether an action is legal from the current
// status is the state machine's concern, not the policy's.
type RolePolicy struct {
	// testUserOverride grants a flagged test account both acceptance
	// parties so end-to-end tests can drive dual acceptance alone. Wired
	// from config, which forces it off in production.
	testUserOverride bool
}

// NewRolePolicy constructs the policy.
func NewRolePolicy(testUserOverride bool) RolePolicy {
	return RolePolicy{testUserOverride: testUserOverride}
}

// AllowedActions maps (actor, inspection) to the actor's permission set.
func (p RolePolicy) AllowedActions(claims *models.JWTClaims, insp *models.Inspection) ActionSet {
	actions := make(ActionSet)
	if claims == nil || insp == nil {
		return actions
	}

	switch claims.Role {
	case models.RoleAdmin:
		actions.add(
			ActionUpdate, ActionSubmit, ActionMakeSanctionable, ActionAbandonSanctions,
			ActionPublish, ActionReject, ActionRemove, ActionUpdateLinked,
		)
		if insp.IsPost() {
			actions.add(ActionAcceptHSL)
		}
	case models.RoleHslStaff:
		if insp.IsPost() {
			actions.add(ActionAcceptHSL)
		}
	case models.RoleOperator:
		if claims.CanActForOperator(insp.OperatorID) {
			actions.add(ActionUpdate, ActionSubmit)
			if insp.IsPost() {
				actions.add(ActionMakeSanctionable, ActionAbandonSanctions, ActionAcceptOperator)
			}
		}
	}

	if p.testUserOverride && claims.TestUser && insp.IsPost() {
		actions.add(ActionAcceptHSL, ActionAcceptOperator)
	}

	return actions
}

// CanCreate reports whether the actor may open a new inspection for the
// operator.
func (p RolePolicy) CanCreate(claims *models.JWTClaims, operatorID int64) bool {
	if claims == nil {
		return false
	}
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleOperator:
		return claims.CanActForOperator(operatorID)
	default:
		return false
	}
}

// acceptAction maps an acceptance party to its policy action.
func acceptAction(party models.AcceptanceParty) Action {
	if party == models.PartyHSL {
		return ActionAcceptHSL
	}
	return ActionAcceptOperator
}
