package conflict

import (
	"strings"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// evalLayers flags proposed members of an exclusive layer that clash
// with a different member already present, or with another member
// proposed in the same delta. Exclusive-layer clashes always block.
func evalLayers(field string, current, proposed []string, layers []Layer) []domain.ConflictInfo {
	var found []domain.ConflictInfo
	for _, layer := range layers {
		if !layer.Exclusive {
			continue
		}
		members := make(map[string]struct{}, len(layer.Members))
		for _, m := range layer.Members {
			members[m] = struct{}{}
		}

		var present []string
		for _, c := range current {
			if _, ok := members[domain.NormalizeTerm(c)]; ok {
				present = append(present, domain.NormalizeTerm(c))
			}
		}
		for _, p := range proposed {
			term := domain.NormalizeTerm(p)
			if _, ok := members[term]; !ok {
				continue
			}
			for _, existing := range present {
				if existing == term {
					continue
				}
				found = append(found, domain.ConflictInfo{
					Category: "tech_stack",
					Field:    field,
					Previous: existing,
					Proposed: term,
					Severity: domain.SeverityBlocking,
				})
			}
			// Later proposals in the same delta clash against this one
			// exactly as if it were already in the stack.
			present = append(present, term)
		}
	}
	return found
}

// evalPairs flags proposed terms that hit an incompatible pair against
// the current set or an earlier proposal in the same delta.
func evalPairs(field string, current, proposed []string, pairs []Pair) []domain.ConflictInfo {
	var found []domain.ConflictInfo
	seen := make([]string, 0, len(current)+len(proposed))
	for _, c := range current {
		seen = append(seen, domain.NormalizeTerm(c))
	}
	for _, p := range proposed {
		term := domain.NormalizeTerm(p)
		for _, pair := range pairs {
			other := pairOther(pair, term)
			if other == "" {
				continue
			}
			for _, existing := range seen {
				if existing != other {
					continue
				}
				found = append(found, domain.ConflictInfo{
					Category: "tech_stack",
					Field:    field,
					Previous: existing,
					Proposed: term,
					Severity: pair.Severity,
				})
			}
		}
		seen = append(seen, term)
	}
	return found
}

func pairOther(p Pair, term string) string {
	switch term {
	case p.A:
		return p.B
	case p.B:
		return p.A
	}
	return ""
}

// evalCrossPairs flags proposed items containing a rule's keyword when
// an accepted item in the rule's Against category contains the
// counterpart. Findings carry the proposing category and name the
// clashing category in Field.
func evalCrossPairs(category string, current *domain.ProjectContext, proposed []string, pairs []CrossPair) []domain.ConflictInfo {
	var found []domain.ConflictInfo
	for _, p := range proposed {
		lp := strings.ToLower(p)
		for _, pair := range pairs {
			if !strings.Contains(lp, pair.One) {
				continue
			}
			for _, accepted := range categoryItems(current, pair.Against) {
				if !strings.Contains(strings.ToLower(accepted), pair.Other) {
					continue
				}
				found = append(found, domain.ConflictInfo{
					Category: category,
					Field:    pair.Against,
					Previous: accepted,
					Proposed: p,
					Severity: pair.Severity,
				})
			}
		}
	}
	return found
}

// categoryItems resolves a category name to the project's accepted
// items for it.
func categoryItems(p *domain.ProjectContext, category string) []string {
	switch category {
	case "tech_stack":
		return p.TechStack
	case "requirements":
		return p.Requirements
	case "goals":
		return p.Goals
	case "constraints":
		return p.Constraints
	}
	return nil
}

// evalNegations flags proposed free-text items containing one keyword
// of a negation pair when an existing item contains the other.
func evalNegations(category, field string, current, proposed []string, pairs []NegationPair) []domain.ConflictInfo {
	var found []domain.ConflictInfo
	for _, p := range proposed {
		lp := strings.ToLower(p)
		for _, pair := range pairs {
			var want string
			switch {
			case strings.Contains(lp, pair.One):
				want = pair.Other
			case strings.Contains(lp, pair.Other):
				want = pair.One
			default:
				continue
			}
			for _, c := range current {
				if !strings.Contains(strings.ToLower(c), want) {
					continue
				}
				found = append(found, domain.ConflictInfo{
					Category: category,
					Field:    field,
					Previous: c,
					Proposed: p,
					Severity: pair.Severity,
				})
			}
		}
	}
	return found
}
