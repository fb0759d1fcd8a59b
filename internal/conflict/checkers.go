package conflict

import "github.com/fyrsmithlabs/tutord/internal/domain"

// TechStackChecker detects exclusive-layer clashes and incompatible
// pairs among proposed tech stack additions.
type TechStackChecker struct {
	rules TechStackRules
}

// NewTechStackChecker creates the tech stack checker.
func NewTechStackChecker(rules TechStackRules) *TechStackChecker {
	return &TechStackChecker{rules: rules}
}

// Category implements Checker.
func (c *TechStackChecker) Category() string { return "tech_stack" }

// Check implements Checker. Technologies the delta also removes are not
// counted as present, so a swap (remove postgres, add mongodb) passes.
func (c *TechStackChecker) Check(current *domain.ProjectContext, delta *domain.ContextDelta) []domain.ConflictInfo {
	if len(delta.AddTechStack) == 0 {
		return nil
	}
	remaining := withoutRemoved(current.TechStack, delta.RemoveTechStack)

	found := evalLayers("tech_stack", remaining, delta.AddTechStack, c.rules.Layers)
	found = append(found, evalPairs("tech_stack", remaining, delta.AddTechStack, c.rules.Incompatible)...)
	return found
}

func withoutRemoved(current, removed []string) []string {
	if len(removed) == 0 {
		return current
	}
	gone := make(map[string]struct{}, len(removed))
	for _, r := range removed {
		gone[domain.NormalizeTerm(r)] = struct{}{}
	}
	out := make([]string, 0, len(current))
	for _, c := range current {
		if _, ok := gone[domain.NormalizeTerm(c)]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// textChecker is the shared shape of the free-text checkers. The three
// categories differ only in which fields they read.
type textChecker struct {
	category string
	rules    TextRules
	current  func(*domain.ProjectContext) []string
	proposed func(*domain.ContextDelta) []string
}

func (c *textChecker) Category() string { return c.category }

func (c *textChecker) Check(current *domain.ProjectContext, delta *domain.ContextDelta) []domain.ConflictInfo {
	proposed := c.proposed(delta)
	if len(proposed) == 0 {
		return nil
	}
	found := evalNegations(c.category, c.category, c.current(current), proposed, c.rules.NegationPairs)
	return append(found, evalCrossPairs(c.category, current, proposed, c.rules.CrossPairs)...)
}

// NewRequirementsChecker checks proposed requirements against existing
// ones.
func NewRequirementsChecker(rules TextRules) Checker {
	return &textChecker{
		category: "requirements",
		rules:    rules,
		current:  func(p *domain.ProjectContext) []string { return p.Requirements },
		proposed: func(d *domain.ContextDelta) []string { return d.AddRequirements },
	}
}

// NewGoalsChecker checks proposed goals against existing ones.
func NewGoalsChecker(rules TextRules) Checker {
	return &textChecker{
		category: "goals",
		rules:    rules,
		current:  func(p *domain.ProjectContext) []string { return p.Goals },
		proposed: func(d *domain.ContextDelta) []string { return d.AddGoals },
	}
}

// NewConstraintsChecker checks proposed constraints against existing
// ones.
func NewConstraintsChecker(rules TextRules) Checker {
	return &textChecker{
		category: "constraints",
		rules:    rules,
		current:  func(p *domain.ProjectContext) []string { return p.Constraints },
		proposed: func(d *domain.ContextDelta) []string { return d.AddConstraints },
	}
}
