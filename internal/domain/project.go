package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Phase is an ordered project lifecycle stage. Phases only advance
// forward unless the owner issues an explicit revert.
type Phase int

const (
	PhaseDiscovery Phase = iota
	PhaseAnalysis
	PhaseDesign
	PhaseImplementation
	PhaseTesting
	PhaseDeployment
)

var phaseNames = [...]string{
	"discovery", "analysis", "design", "implementation", "testing", "deployment",
}

func (p Phase) String() string {
	if p < PhaseDiscovery || p > PhaseDeployment {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase parses a phase name (case-insensitive).
func ParsePhase(s string) (Phase, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range phaseNames {
		if n == name {
			return Phase(i), nil
		}
	}
	return PhaseDiscovery, Errorf(KindValidation, "unknown phase %q", s)
}

// MarshalText implements encoding.TextMarshaler so phases serialize by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	parsed, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MaxMaturity is the upper bound of a project's maturity score.
const MaxMaturity = 100

// ProjectContext is the accumulated structured understanding of a
// user's project. It is only mutated through the conflict-gated path;
// deletion is logical (Archived), never physical.
type ProjectContext struct {
	ID            string            `json:"id"`
	OwnerID       string            `json:"owner_id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Phase         Phase             `json:"phase"`
	TechStack     []string          `json:"tech_stack,omitempty"`
	Requirements  []string          `json:"requirements,omitempty"`
	Goals         []string          `json:"goals,omitempty"`
	Constraints   []string          `json:"constraints,omitempty"`
	MaturityScore int               `json:"maturity_score"`
	Collaborators map[string]string `json:"collaborators,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Archived      bool              `json:"archived"`
}

// Validate checks structural invariants.
func (p *ProjectContext) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewError(KindValidation, "project name is required")
	}
	if p.OwnerID == "" {
		return NewError(KindValidation, "project owner is required")
	}
	if p.MaturityScore < 0 || p.MaturityScore > MaxMaturity {
		return Errorf(KindValidation, "maturity score %d outside [0,%d]", p.MaturityScore, MaxMaturity)
	}
	return nil
}

// HasTech reports whether the tech stack contains name (case-insensitive).
func (p *ProjectContext) HasTech(name string) bool {
	name = NormalizeTerm(name)
	for _, t := range p.TechStack {
		if NormalizeTerm(t) == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. The orchestrator applies deltas to a copy
// so a rejected mutation never leaks partial state.
func (p *ProjectContext) Clone() *ProjectContext {
	cp := *p
	cp.TechStack = append([]string(nil), p.TechStack...)
	cp.Requirements = append([]string(nil), p.Requirements...)
	cp.Goals = append([]string(nil), p.Goals...)
	cp.Constraints = append([]string(nil), p.Constraints...)
	if p.Collaborators != nil {
		cp.Collaborators = make(map[string]string, len(p.Collaborators))
		for k, v := range p.Collaborators {
			cp.Collaborators[k] = v
		}
	}
	return &cp
}

// NormalizeTerm lowercases and trims a tech-stack or rule term so set
// membership and rule matching are case-insensitive.
func NormalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ContextDelta is a proposed change to a ProjectContext. Nil pointer
// fields mean "leave unchanged"; list fields are additive except
// RemoveTechStack.
type ContextDelta struct {
	Name            *string  `json:"name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Phase           *Phase   `json:"phase,omitempty"`
	AddTechStack    []string `json:"add_tech_stack,omitempty"`
	RemoveTechStack []string `json:"remove_tech_stack,omitempty"`
	AddRequirements []string `json:"add_requirements,omitempty"`
	AddGoals        []string `json:"add_goals,omitempty"`
	AddConstraints  []string `json:"add_constraints,omitempty"`
	MaturityScore   *int     `json:"maturity_score,omitempty"`

	// PhaseRevert permits a backwards phase move. Set only by the
	// project agent after verifying the actor owns the project.
	PhaseRevert bool `json:"-"`
}

// IsZero reports whether the delta changes nothing.
func (d *ContextDelta) IsZero() bool {
	return d == nil ||
		(d.Name == nil && d.Description == nil && d.Phase == nil &&
			len(d.AddTechStack) == 0 && len(d.RemoveTechStack) == 0 &&
			len(d.AddRequirements) == 0 && len(d.AddGoals) == 0 &&
			len(d.AddConstraints) == 0 && d.MaturityScore == nil)
}

// ApplyDelta returns a new ProjectContext with the delta applied, or a
// validation error. The input is never modified. The phase invariant is
// enforced here: backwards moves require PhaseRevert.
func ApplyDelta(current *ProjectContext, delta *ContextDelta, now time.Time) (*ProjectContext, error) {
	if current == nil {
		return nil, NewError(KindValidation, "no current project context")
	}
	if delta.IsZero() {
		return nil, NewError(KindValidation, "empty delta")
	}

	next := current.Clone()

	if delta.Name != nil {
		if strings.TrimSpace(*delta.Name) == "" {
			return nil, NewError(KindValidation, "project name cannot be empty")
		}
		next.Name = *delta.Name
	}
	if delta.Description != nil {
		next.Description = *delta.Description
	}
	if delta.Phase != nil {
		if *delta.Phase < current.Phase && !delta.PhaseRevert {
			return nil, Errorf(KindValidation,
				"phase cannot move backwards from %s to %s without an owner revert",
				current.Phase, *delta.Phase)
		}
		if *delta.Phase < PhaseDiscovery || *delta.Phase > PhaseDeployment {
			return nil, Errorf(KindValidation, "invalid phase %d", int(*delta.Phase))
		}
		next.Phase = *delta.Phase
	}

	if len(delta.AddTechStack) > 0 || len(delta.RemoveTechStack) > 0 {
		next.TechStack = applySet(next.TechStack, delta.AddTechStack, delta.RemoveTechStack)
	}
	next.Requirements = appendUnique(next.Requirements, delta.AddRequirements)
	next.Goals = appendUnique(next.Goals, delta.AddGoals)
	next.Constraints = appendUnique(next.Constraints, delta.AddConstraints)

	if delta.MaturityScore != nil {
		score := *delta.MaturityScore
		if score < 0 {
			score = 0
		}
		if score > MaxMaturity {
			score = MaxMaturity
		}
		next.MaturityScore = score
	}

	next.UpdatedAt = now
	return next, nil
}

// applySet adds and removes normalized members, keeping the result
// sorted so persisted state is order-independent. Only called when the
// delta touches the set; untouched fields keep their stored form.
func applySet(current, add, remove []string) []string {
	set := make(map[string]struct{}, len(current)+len(add))
	for _, s := range current {
		set[NormalizeTerm(s)] = struct{}{}
	}
	for _, s := range add {
		if n := NormalizeTerm(s); n != "" {
			set[n] = struct{}{}
		}
	}
	for _, s := range remove {
		delete(set, NormalizeTerm(s))
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func appendUnique(current, add []string) []string {
	seen := make(map[string]struct{}, len(current))
	for _, s := range current {
		seen[NormalizeTerm(s)] = struct{}{}
	}
	for _, s := range add {
		n := NormalizeTerm(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		current = append(current, strings.TrimSpace(s))
	}
	return current
}
