package conflict

import (
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// Checker examines one category of a proposed delta against the
// current context. Implementations are pure: no storage, no clock, no
// randomness. Identity, project, and detection time are stamped by the
// caller that persists the findings.
type Checker interface {
	// Category names the conflict category this checker owns.
	Category() string

	// Check returns every contradiction the delta would introduce.
	Check(current *domain.ProjectContext, delta *domain.ContextDelta) []domain.ConflictInfo
}

// Registry holds checkers in registration order. Each category may be
// registered once.
type Registry struct {
	checkers []Checker
	byName   map[string]Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Checker)}
}

// Register adds a checker. A duplicate category is a programming error.
func (r *Registry) Register(c Checker) error {
	if _, dup := r.byName[c.Category()]; dup {
		return fmt.Errorf("conflict checker %q already registered", c.Category())
	}
	r.byName[c.Category()] = c
	r.checkers = append(r.checkers, c)
	return nil
}

// Categories lists registered categories in registration order.
func (r *Registry) Categories() []string {
	out := make([]string, len(r.checkers))
	for i, c := range r.checkers {
		out[i] = c.Category()
	}
	return out
}

// CheckAll runs every checker and returns the combined findings in a
// canonical order, so identical inputs always yield an identical list.
func (r *Registry) CheckAll(current *domain.ProjectContext, delta *domain.ContextDelta) []domain.ConflictInfo {
	var all []domain.ConflictInfo
	for _, c := range r.checkers {
		all = append(all, c.Check(current, delta)...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Previous != b.Previous {
			return a.Previous < b.Previous
		}
		return a.Proposed < b.Proposed
	})
	return all
}

// DefaultRegistry wires the four standard checkers over a rule set.
func DefaultRegistry(rules *RuleSet) (*Registry, error) {
	r := NewRegistry()
	for _, c := range []Checker{
		NewTechStackChecker(rules.TechStack),
		NewRequirementsChecker(rules.Requirements),
		NewGoalsChecker(rules.Goals),
		NewConstraintsChecker(rules.Constraints),
	} {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}
