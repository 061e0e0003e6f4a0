package loanrules

import (
	"errors"
	"testing"
)

func TestMemberOf(t *testing.T) {
	candidates := []string{"home", "personal"}

	tests := []struct {
		value string
		want  bool
	}{
		{"home", true},
		{"personal", true},
		{"HOME", true},
		{"Personal", true},
		{"auto", false},
		{"", false},
		{"hom", false},
		{"homes", false},
	}

	for _, tc := range tests {
		if got := MemberOf(tc.value, candidates); got != tc.want {
			t.Errorf("MemberOf(%q, %v) = %v, want %v", tc.value, candidates, got, tc.want)
		}
	}

	if MemberOf("anything", nil) {
		t.Error("MemberOf with empty candidate set should be false")
	}

	// The candidate set must come back untouched.
	if candidates[0] != "home" || candidates[1] != "personal" {
		t.Error("MemberOf mutated the candidate set")
	}
}

func validRule() *Rule {
	return &Rule{
		ID:         "r1",
		Conditions: []Condition{{Attribute: AttrAge, Operator: OpLessOrEqual, Threshold: 31}},
		Decision:   "approved",
		Confidence: 0.9,
		Samples:    50,
	}
}

// TestRuleSetValidate covers every load-time rejection: the engine must
// refuse to start on any of these tables.
func TestRuleSetValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rule)
	}{
		{"unknown attribute", func(r *Rule) { r.Conditions[0].Attribute = "CreditScore" }},
		{"numeric operator on categorical", func(r *Rule) {
			r.Conditions[0] = Condition{Attribute: AttrLoanType, Operator: OpLessOrEqual, Threshold: 1}
		}},
		{"equality on numeric", func(r *Rule) {
			r.Conditions[0] = Condition{Attribute: AttrAge, Operator: OpEqual, Value: "31"}
		}},
		{"membership on numeric", func(r *Rule) {
			r.Conditions[0] = Condition{Attribute: AttrLoanTerm, Operator: OpMember, Values: []string{"8"}}
		}},
		{"confidence above one", func(r *Rule) { r.Confidence = 1.01 }},
		{"confidence below zero", func(r *Rule) { r.Confidence = -0.1 }},
		{"negative samples", func(r *Rule) { r.Samples = -1 }},
		{"empty decision", func(r *Rule) { r.Decision = "  " }},
		{"reserved decision", func(r *Rule) { r.Decision = "Unclassified" }},
		{"empty membership set", func(r *Rule) {
			r.Conditions[0] = Condition{Attribute: AttrLoanType, Operator: OpMember}
		}},
		{"blank membership candidate", func(r *Rule) {
			r.Conditions[0] = Condition{Attribute: AttrLoanType, Operator: OpMember, Values: []string{"home", " "}}
		}},
		{"equality without value", func(r *Rule) {
			r.Conditions[0] = Condition{Attribute: AttrLoanType, Operator: OpEqual}
		}},
		{"unknown operator", func(r *Rule) { r.Conditions[0].Operator = "!=" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule := validRule()
			tc.mutate(rule)

			rs := &RuleSet{Rules: []*Rule{rule}}
			if err := rs.Validate(); !errors.Is(err, ErrRuleSetInvalid) {
				t.Errorf("Validate() error = %v, want ErrRuleSetInvalid", err)
			}
		})
	}
}

func TestRuleSetValidateAcceptsBoundaryConfidence(t *testing.T) {
	for _, confidence := range []float64{0, 1} {
		rule := validRule()
		rule.Confidence = confidence

		rs := &RuleSet{Rules: []*Rule{rule}}
		if err := rs.Validate(); err != nil {
			t.Errorf("Validate() with confidence %v failed: %v", confidence, err)
		}
	}
}

func TestRuleSetValidateEmpty(t *testing.T) {
	for _, rs := range []*RuleSet{nil, {}, {Rules: []*Rule{}}} {
		if err := rs.Validate(); !errors.Is(err, ErrRuleSetInvalid) {
			t.Errorf("Validate() on empty rule set error = %v, want ErrRuleSetInvalid", err)
		}
	}
}

func TestRuleSetValidateDuplicateIDs(t *testing.T) {
	a := validRule()
	b := validRule() // same ID

	rs := &RuleSet{Rules: []*Rule{a, b}}
	if err := rs.Validate(); !errors.Is(err, ErrRuleSetInvalid) {
		t.Errorf("Validate() with duplicate IDs error = %v, want ErrRuleSetInvalid", err)
	}
}

// A rule with no conditions is a valid catch-all: the original knowledge
// base format allows fact clauses.
func TestRuleSetValidateAllowsUnconditionalRule(t *testing.T) {
	rs := &RuleSet{Rules: []*Rule{{
		ID:         "fallback",
		Decision:   "rejected",
		Confidence: 0.5,
		Samples:    1,
	}}}

	if err := rs.Validate(); err != nil {
		t.Errorf("Validate() failed for unconditional rule: %v", err)
	}
}

func TestDecisions(t *testing.T) {
	rs, err := DefaultRuleSet()
	if err != nil {
		t.Fatalf("DefaultRuleSet() failed: %v", err)
	}

	got := rs.Decisions()
	want := []string{"approved", "rejected"}
	if len(got) != len(want) {
		t.Fatalf("Decisions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Decisions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
