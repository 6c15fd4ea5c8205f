package service

import (
	"github.com/javandres/bultti-inspections-api/internal/models"
)

// ValidationGate classifies the validation errors attached to an
// inspection as blocking or advisory. The error set itself is computed
// upstream; the gate is a pure read over it. Blocking types come from
// configuration, not code, because the classification is a business rule
// that shifts per deployment.
type ValidationGate struct {
	blocking map[string]struct{}
}

// NewValidationGate builds a gate from the configured blocking types.
func NewValidationGate(blockingTypes []string) ValidationGate {
	blocking := make(map[string]struct{}, len(blockingTypes))
	for _, t := range blockingTypes {
		blocking[t] = struct{}{}
	}
	return ValidationGate{blocking: blocking}
}

// Blocked reports whether any error in the set prevents forward lifecycle
// transitions.
func (g ValidationGate) Blocked(errs []models.ValidationError) bool {
	for _, e := range errs {
		if _, ok := g.blocking[e.Type]; ok {
			return true
		}
	}
	return false
}

// BlockingErrors returns the subset of errors that gate transitions;
// advisory errors are excluded.
func (g ValidationGate) BlockingErrors(errs []models.ValidationError) []models.ValidationError {
	var out []models.ValidationError
	for _, e := range errs {
		if _, ok := g.blocking[e.Type]; ok {
			out = append(out, e)
		}
	}
	return out
}
