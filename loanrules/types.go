package loanrules

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Sentinel errors for the two failure classes callers need to distinguish:
// bad input at the classify boundary, and a corrupt rule table at load time.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrRuleSetInvalid  = errors.New("rule set invalid")
	ErrNoActiveRuleSet = errors.New("no active rule set")
)

// DecisionUnclassified is the reserved outcome for inputs no rule covers.
// Rule tables may not use it as a decision label, so callers can always
// tell a coverage gap apart from a real decision.
const DecisionUnclassified = "unclassified"

// AttributeKind describes how an attribute is compared in rule conditions.
type AttributeKind int

const (
	Numeric AttributeKind = iota
	Categorical
)

// Attribute names as they appear in rule conditions and CEL expressions.
const (
	AttrSex         = "Sex"
	AttrAge         = "Age"
	AttrLoanTerm    = "LoanTerm"
	AttrNumAccounts = "NumAccounts"
	AttrLoanType    = "LoanType"
	AttrLoanArea    = "LoanArea"
)

// Schema maps the six loan application attributes to their kinds.
// Rules referencing any other attribute are rejected at load time.
var Schema = map[string]AttributeKind{
	AttrSex:         Categorical,
	AttrAge:         Numeric,
	AttrLoanTerm:    Numeric,
	AttrNumAccounts: Numeric,
	AttrLoanType:    Categorical,
	AttrLoanArea:    Categorical,
}

// Applicant is the attribute tuple a classification runs against.
// Categorical values are matched case-insensitively.
type Applicant struct {
	Sex         string  `json:"sex"`
	Age         float64 `json:"age"`
	LoanTerm    float64 `json:"loanTerm"`
	NumAccounts float64 `json:"numAccounts"`
	LoanType    string  `json:"loanType"`
	LoanArea    string  `json:"loanArea"`
}

// Validate checks that the tuple is fully populated and well-formed.
// The engine does not validate domain membership (e.g. that LoanType is one
// of the known loan products) beyond what rule conditions check themselves.
func (a Applicant) Validate() error {
	for name, value := range map[string]string{
		AttrSex:      a.Sex,
		AttrLoanType: a.LoanType,
		AttrLoanArea: a.LoanArea,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
		}
	}
	for name, value := range map[string]float64{
		AttrAge:         a.Age,
		AttrLoanTerm:    a.LoanTerm,
		AttrNumAccounts: a.NumAccounts,
	} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidInput, name)
		}
	}
	return nil
}

// facts builds the CEL activation for this tuple. Categorical values are
// lowercased here so rule literals only ever compare against one casing.
func (a Applicant) facts() map[string]any {
	return map[string]any{
		AttrSex:         strings.ToLower(a.Sex),
		AttrAge:         a.Age,
		AttrLoanTerm:    a.LoanTerm,
		AttrNumAccounts: a.NumAccounts,
		AttrLoanType:    strings.ToLower(a.LoanType),
		AttrLoanArea:    strings.ToLower(a.LoanArea),
	}
}

// Operator is the comparison a single condition performs.
type Operator string

const (
	OpLessOrEqual Operator = "<="
	OpGreaterThan Operator = ">"
	OpEqual       Operator = "="
	OpMember      Operator = "member"
)

// Condition is a predicate over exactly one attribute. Numeric operators use
// Threshold; OpEqual uses Value; OpMember uses Values.
type Condition struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Threshold float64  `json:"threshold,omitempty"`
	Value     string   `json:"value,omitempty"`
	Values    []string `json:"values,omitempty"`
}

// Rule is one ordered entry in a rule table: conditions ANDed together, the
// decision to return when they all hold, and provenance from training.
// Rules are immutable once loaded.
type Rule struct {
	ID         string      `json:"id"`
	Conditions []Condition `json:"conditions"`
	Decision   string      `json:"decision"`
	Confidence float64     `json:"confidence"`
	Samples    int         `json:"samples"`
}

// Result is the outcome of classifying one applicant.
// When Matched is false, Decision is DecisionUnclassified and RuleIndex is -1.
type Result struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence,omitempty"`
	Samples    int     `json:"samples,omitempty"`
	RuleID     string  `json:"ruleId,omitempty"`
	RuleIndex  int     `json:"ruleIndex"`
	Matched    bool    `json:"matched"`
}

// Unclassified reports whether no rule covered the input.
func (r *Result) Unclassified() bool {
	return !r.Matched
}
