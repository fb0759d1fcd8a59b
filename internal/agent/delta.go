package agent

import (
	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// deltaFromMap builds a ContextDelta from loosely-typed params. Absent
// keys leave the corresponding field unchanged.
func deltaFromMap(m map[string]any) (*domain.ContextDelta, error) {
	delta := &domain.ContextDelta{}
	if name, ok := m["name"].(string); ok {
		delta.Name = &name
	}
	if desc, ok := m["description"].(string); ok {
		delta.Description = &desc
	}
	if phaseName, ok := m["phase"].(string); ok {
		phase, err := domain.ParsePhase(phaseName)
		if err != nil {
			return nil, err
		}
		delta.Phase = &phase
	}
	delta.AddTechStack = stringListParam(m, "add_tech_stack")
	delta.RemoveTechStack = stringListParam(m, "remove_tech_stack")
	delta.AddRequirements = stringListParam(m, "add_requirements")
	delta.AddGoals = stringListParam(m, "add_goals")
	delta.AddConstraints = stringListParam(m, "add_constraints")
	if score, ok := intParam(m, "maturity_score"); ok {
		delta.MaturityScore = &score
	}
	if delta.IsZero() {
		return nil, domain.NewError(domain.KindValidation, "delta changes nothing")
	}
	return delta, nil
}
