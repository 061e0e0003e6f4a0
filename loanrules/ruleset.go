package loanrules

import (
	"fmt"
	"strings"
)

// RuleSet is the fixed, ordered rule table. Order encodes priority from the
// source decision tree: classification always returns the first match, so
// permuting rules changes behavior. Never reorder a loaded table.
type RuleSet struct {
	Version int     `json:"version"`
	Rules   []*Rule `json:"rules"`
}

// MemberOf reports whether value equals one of the candidates, compared
// case-insensitively. Candidates are tested in listed order and never
// mutated.
func MemberOf(value string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(value, c) {
			return true
		}
	}
	return false
}

// operators permitted per attribute kind
var (
	numericOps     = []string{string(OpLessOrEqual), string(OpGreaterThan)}
	categoricalOps = []string{string(OpEqual), string(OpMember)}
)

// Validate checks the whole table before the engine will compile it.
// All failures wrap ErrRuleSetInvalid: a table that fails here must never
// be classified against.
func (rs *RuleSet) Validate() error {
	if rs == nil || len(rs.Rules) == 0 {
		return fmt.Errorf("%w: rule set contains no rules", ErrRuleSetInvalid)
	}

	seen := make(map[string]bool, len(rs.Rules))
	for i, rule := range rs.Rules {
		if rule == nil {
			return fmt.Errorf("%w: rule %d is nil", ErrRuleSetInvalid, i)
		}
		if rule.ID != "" {
			if seen[rule.ID] {
				return fmt.Errorf("%w: duplicate rule ID %q", ErrRuleSetInvalid, rule.ID)
			}
			seen[rule.ID] = true
		}
		if err := rule.validate(); err != nil {
			return fmt.Errorf("%w: rule %d: %v", ErrRuleSetInvalid, i, err)
		}
	}
	return nil
}

func (r *Rule) validate() error {
	if strings.TrimSpace(r.Decision) == "" {
		return fmt.Errorf("decision label is required")
	}
	if strings.EqualFold(r.Decision, DecisionUnclassified) {
		return fmt.Errorf("decision label %q is reserved for the no-match outcome", DecisionUnclassified)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	if r.Samples < 0 {
		return fmt.Errorf("sample count %d is negative", r.Samples)
	}
	for j, cond := range r.Conditions {
		if err := cond.validate(); err != nil {
			return fmt.Errorf("condition %d: %w", j, err)
		}
	}
	return nil
}

func (c Condition) validate() error {
	kind, known := Schema[c.Attribute]
	if !known {
		return fmt.Errorf("unknown attribute %q", c.Attribute)
	}

	switch kind {
	case Numeric:
		if !MemberOf(string(c.Operator), numericOps) {
			return fmt.Errorf("operator %q not valid for numeric attribute %s", c.Operator, c.Attribute)
		}
	case Categorical:
		if !MemberOf(string(c.Operator), categoricalOps) {
			return fmt.Errorf("operator %q not valid for categorical attribute %s", c.Operator, c.Attribute)
		}
	}

	switch c.Operator {
	case OpEqual:
		if strings.TrimSpace(c.Value) == "" {
			return fmt.Errorf("equality condition on %s has no value", c.Attribute)
		}
	case OpMember:
		if len(c.Values) == 0 {
			return fmt.Errorf("membership condition on %s has an empty candidate set", c.Attribute)
		}
		for _, v := range c.Values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("membership condition on %s contains an empty candidate", c.Attribute)
			}
		}
	}
	return nil
}

// Decisions returns the distinct decision labels in table order.
func (rs *RuleSet) Decisions() []string {
	var labels []string
	for _, rule := range rs.Rules {
		if !MemberOf(rule.Decision, labels) {
			labels = append(labels, rule.Decision)
		}
	}
	return labels
}
