package loanrules

import (
	"strconv"
	"strings"
)

// Expression renders the rule's conditions as a single CEL expression,
// joined with && so evaluation short-circuits on the first failing
// condition. A rule with no conditions always matches.
func (r *Rule) Expression() string {
	if len(r.Conditions) == 0 {
		return "true"
	}

	parts := make([]string, 0, len(r.Conditions))
	for _, cond := range r.Conditions {
		parts = append(parts, cond.expression())
	}
	return strings.Join(parts, " && ")
}

func (c Condition) expression() string {
	switch c.Operator {
	case OpLessOrEqual:
		return c.Attribute + " <= " + formatThreshold(c.Threshold)
	case OpGreaterThan:
		return c.Attribute + " > " + formatThreshold(c.Threshold)
	case OpEqual:
		return c.Attribute + " == " + quoteLiteral(c.Value)
	case OpMember:
		quoted := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			quoted = append(quoted, quoteLiteral(v))
		}
		return c.Attribute + " in [" + strings.Join(quoted, ", ") + "]"
	default:
		// Unreachable for validated rules; renders to a non-matching
		// expression rather than panicking mid-classification.
		return "false"
	}
}

// formatThreshold renders a threshold as a CEL double literal. The decimal
// point is required: numeric attributes are declared as doubles, and a bare
// "31" would be an int literal that fails the type check.
func formatThreshold(t float64) string {
	s := strconv.FormatFloat(t, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// quoteLiteral renders a categorical literal as a CEL string, lowercased to
// match the normalization applied to applicant facts.
func quoteLiteral(v string) string {
	return strconv.Quote(strings.ToLower(v))
}
