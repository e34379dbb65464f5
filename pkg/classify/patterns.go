package classify

import (
	_ "embed"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-autofill/pkg/fieldtype"
	"github.com/goliatone/go-autofill/pkg/form"
)

//go:embed patterns/default.yaml
var defaultPatternYAML []byte

// Rule matches a field's label or parseable name against a regular
// expression and assigns a type. Rules are evaluated in declaration order;
// the first match wins.
type Rule struct {
	Type    fieldtype.Type
	Pattern *regexp.Regexp

	// Controls restricts the rule to specific widget kinds. Empty means any
	// textual or selection control.
	Controls []form.ControlKind
}

func (r Rule) appliesTo(kind form.ControlKind) bool {
	if len(r.Controls) == 0 {
		return true
	}
	for _, k := range r.Controls {
		if k == kind {
			return true
		}
	}
	return false
}

// PatternSet is the data-driven heuristic rule set. The rules are inherently
// locale dependent and expected to evolve independently of the engine, so
// they ship as data rather than control flow.
type PatternSet struct {
	rules []Rule
}

type patternSetDoc struct {
	Rules []patternRuleDoc `yaml:"rules"`
}

type patternRuleDoc struct {
	Type     string   `yaml:"type"`
	Pattern  string   `yaml:"pattern"`
	Controls []string `yaml:"controls,omitempty"`
}

// DefaultPatternSet returns the embedded English-locale rule set.
func DefaultPatternSet() *PatternSet {
	ps, err := parsePatternSet(defaultPatternYAML)
	if err != nil {
		// The embedded set is validated by tests; a parse failure here is a
		// build defect, not a runtime input.
		panic(fmt.Sprintf("classify: embedded pattern set invalid: %v", err))
	}
	return ps
}

// LoadPatternSet reads a YAML rule set from r.
func LoadPatternSet(r io.Reader) (*PatternSet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("classify: read pattern set: %w", err)
	}
	return parsePatternSet(raw)
}

func parsePatternSet(raw []byte) (*PatternSet, error) {
	var doc patternSetDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("classify: parse pattern set: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("classify: pattern set has no rules")
	}

	ps := &PatternSet{rules: make([]Rule, 0, len(doc.Rules))}
	for i, rd := range doc.Rules {
		t, ok := fieldtype.Parse(rd.Type)
		if !ok {
			return nil, fmt.Errorf("classify: rule %d: unknown type %q", i, rd.Type)
		}
		re, err := regexp.Compile(rd.Pattern)
		if err != nil {
			return nil, fmt.Errorf("classify: rule %d (%s): %w", i, rd.Type, err)
		}
		rule := Rule{Type: t, Pattern: re}
		for _, c := range rd.Controls {
			rule.Controls = append(rule.Controls, form.ControlKind(c))
		}
		ps.rules = append(ps.rules, rule)
	}
	return ps, nil
}

// Match returns the first rule type matching the normalized label or name,
// or Unknown when nothing matches.
func (ps *PatternSet) Match(label, name string, kind form.ControlKind) fieldtype.Type {
	for _, rule := range ps.rules {
		if !rule.appliesTo(kind) {
			continue
		}
		if label != "" && rule.Pattern.MatchString(label) {
			return rule.Type
		}
		if name != "" && rule.Pattern.MatchString(name) {
			return rule.Type
		}
	}
	return fieldtype.Unknown
}

// Len returns the number of rules in the set.
func (ps *PatternSet) Len() int { return len(ps.rules) }
