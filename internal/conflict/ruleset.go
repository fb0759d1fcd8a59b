// Package conflict detects contradictions between a proposed context
// delta and the current project state. Detection is pure and
// deterministic: checkers read rules and state, return findings, and
// never touch storage or clocks. What counts as a contradiction lives
// in declarative rule sets loaded from YAML, so tightening or loosening
// detection is a config change, not a code change.
package conflict

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// RuleSet is the full declarative rule configuration, one section per
// checker category.
type RuleSet struct {
	TechStack    TechStackRules `koanf:"tech_stack"`
	Requirements TextRules      `koanf:"requirements"`
	Goals        TextRules      `koanf:"goals"`
	Constraints  TextRules      `koanf:"constraints"`
}

// TechStackRules governs the tech_stack checker.
type TechStackRules struct {
	// Layers group technologies that play the same architectural role.
	// An exclusive layer admits at most one member per project.
	Layers []Layer `koanf:"layers"`

	// Incompatible lists technology pairs that clash regardless of
	// layer.
	Incompatible []Pair `koanf:"incompatible"`
}

// Layer is a named group of same-role technologies.
type Layer struct {
	Name      string   `koanf:"name"`
	Exclusive bool     `koanf:"exclusive"`
	Members   []string `koanf:"members"`
}

// Pair marks two technologies as incompatible.
type Pair struct {
	A        string          `koanf:"a"`
	B        string          `koanf:"b"`
	Severity domain.Severity `koanf:"severity"`
	Reason   string          `koanf:"reason"`
}

// TextRules governs the free-text checkers (requirements, goals,
// constraints). Matching is case-insensitive substring containment.
type TextRules struct {
	// NegationPairs flag an existing item containing one keyword against
	// a proposed item containing the other, in either direction.
	NegationPairs []NegationPair `koanf:"negation_pairs"`

	// CrossPairs flag a proposed item in this category against accepted
	// items in another category, so a rule like "a constraint forbidding
	// external services contradicts a goal naming one" stays declarative.
	CrossPairs []CrossPair `koanf:"cross_pairs"`
}

// NegationPair is a pair of keywords that contradict each other.
type NegationPair struct {
	One      string          `koanf:"one"`
	Other    string          `koanf:"other"`
	Severity domain.Severity `koanf:"severity"`
}

// CrossPair flags a proposed item containing One when an accepted item
// in the Against category contains Other. Unlike negation pairs the
// match is directional: the rule lives in the proposing category.
type CrossPair struct {
	Against  string          `koanf:"against"`
	One      string          `koanf:"one"`
	Other    string          `koanf:"other"`
	Severity domain.Severity `koanf:"severity"`
}

// LoadRules reads a YAML rule file.
func LoadRules(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading conflict rules %s: %w", path, err)
	}
	return ParseRules(raw)
}

// ParseRules parses YAML rule bytes and validates the result.
func ParseRules(raw []byte) (*RuleSet, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing conflict rules: %w", err)
	}
	var rs RuleSet
	if err := k.Unmarshal("", &rs); err != nil {
		return nil, fmt.Errorf("decoding conflict rules: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	rs.normalize()
	return &rs, nil
}

// Validate checks the rule set for structural mistakes.
func (rs *RuleSet) Validate() error {
	for _, l := range rs.TechStack.Layers {
		if l.Name == "" {
			return fmt.Errorf("tech_stack layer without a name")
		}
		if len(l.Members) < 2 {
			return fmt.Errorf("tech_stack layer %q needs at least two members", l.Name)
		}
	}
	for _, p := range rs.TechStack.Incompatible {
		if p.A == "" || p.B == "" {
			return fmt.Errorf("incompatible pair with an empty side")
		}
		if !domain.ValidSeverity(p.Severity) {
			return fmt.Errorf("incompatible pair %s/%s has unknown severity %q", p.A, p.B, p.Severity)
		}
	}
	for section, tr := range map[string]TextRules{
		"requirements": rs.Requirements,
		"goals":        rs.Goals,
		"constraints":  rs.Constraints,
	} {
		for _, np := range tr.NegationPairs {
			if np.One == "" || np.Other == "" {
				return fmt.Errorf("%s negation pair with an empty side", section)
			}
			if !domain.ValidSeverity(np.Severity) {
				return fmt.Errorf("%s negation pair %s/%s has unknown severity %q",
					section, np.One, np.Other, np.Severity)
			}
		}
		for _, cp := range tr.CrossPairs {
			if cp.One == "" || cp.Other == "" {
				return fmt.Errorf("%s cross pair with an empty side", section)
			}
			if !domain.ValidSeverity(cp.Severity) {
				return fmt.Errorf("%s cross pair %s/%s has unknown severity %q",
					section, cp.One, cp.Other, cp.Severity)
			}
			if !knownCategory(domain.NormalizeTerm(cp.Against)) {
				return fmt.Errorf("%s cross pair against unknown category %q", section, cp.Against)
			}
			if domain.NormalizeTerm(cp.Against) == section {
				return fmt.Errorf("%s cross pair against its own category, use a negation pair", section)
			}
		}
	}
	return nil
}

func knownCategory(name string) bool {
	switch name {
	case "tech_stack", "requirements", "goals", "constraints":
		return true
	}
	return false
}

// normalize lowercases every term so matching never depends on the
// casing used in the rule file.
func (rs *RuleSet) normalize() {
	for i := range rs.TechStack.Layers {
		for j, m := range rs.TechStack.Layers[i].Members {
			rs.TechStack.Layers[i].Members[j] = domain.NormalizeTerm(m)
		}
	}
	for i := range rs.TechStack.Incompatible {
		rs.TechStack.Incompatible[i].A = domain.NormalizeTerm(rs.TechStack.Incompatible[i].A)
		rs.TechStack.Incompatible[i].B = domain.NormalizeTerm(rs.TechStack.Incompatible[i].B)
	}
	for _, tr := range []*TextRules{&rs.Requirements, &rs.Goals, &rs.Constraints} {
		for i := range tr.NegationPairs {
			tr.NegationPairs[i].One = domain.NormalizeTerm(tr.NegationPairs[i].One)
			tr.NegationPairs[i].Other = domain.NormalizeTerm(tr.NegationPairs[i].Other)
		}
		for i := range tr.CrossPairs {
			tr.CrossPairs[i].Against = domain.NormalizeTerm(tr.CrossPairs[i].Against)
			tr.CrossPairs[i].One = domain.NormalizeTerm(tr.CrossPairs[i].One)
			tr.CrossPairs[i].Other = domain.NormalizeTerm(tr.CrossPairs[i].Other)
		}
	}
}
