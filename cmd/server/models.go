package main

import (
	"fmt"

	"github.com/crediflow/loanrules/loanrules"
)

// classifyRequest is the wire form of an application. Numeric fields are
// pointers so a missing attribute is distinguishable from a zero value and
// rejected at the boundary instead of silently coerced.
type classifyRequest struct {
	Sex         string   `json:"sex"`
	Age         *float64 `json:"age"`
	LoanTerm    *float64 `json:"loanTerm"`
	NumAccounts *float64 `json:"numAccounts"`
	LoanType    string   `json:"loanType"`
	LoanArea    string   `json:"loanArea"`
}

func (r classifyRequest) applicant() (loanrules.Applicant, error) {
	for name, v := range map[string]*float64{
		"age":         r.Age,
		"loanTerm":    r.LoanTerm,
		"numAccounts": r.NumAccounts,
	} {
		if v == nil {
			return loanrules.Applicant{}, fmt.Errorf("%w: %s is required", loanrules.ErrInvalidInput, name)
		}
	}

	return loanrules.Applicant{
		Sex:         r.Sex,
		Age:         *r.Age,
		LoanTerm:    *r.LoanTerm,
		NumAccounts: *r.NumAccounts,
		LoanType:    r.LoanType,
		LoanArea:    r.LoanArea,
	}, nil
}

// classifyResponse mirrors loanrules.Result plus the rule's rendered
// condition expression for traceability.
type classifyResponse struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence,omitempty"`
	Samples    int     `json:"samples,omitempty"`
	RuleID     string  `json:"ruleId,omitempty"`
	RuleIndex  int     `json:"ruleIndex"`
	Matched    bool    `json:"matched"`
}

func newClassifyResponse(result *loanrules.Result) classifyResponse {
	return classifyResponse{
		Decision:   result.Decision,
		Confidence: result.Confidence,
		Samples:    result.Samples,
		RuleID:     result.RuleID,
		RuleIndex:  result.RuleIndex,
		Matched:    result.Matched,
	}
}

// ruleResponse is one rule in the table listing.
type ruleResponse struct {
	ID         string                `json:"id"`
	Ordinal    int                   `json:"ordinal"`
	Expression string                `json:"expression"`
	Conditions []loanrules.Condition `json:"conditions"`
	Decision   string                `json:"decision"`
	Confidence float64               `json:"confidence"`
	Samples    int                   `json:"samples"`
}

func newRulesResponse(rs *loanrules.RuleSet) map[string]any {
	rules := make([]ruleResponse, 0, len(rs.Rules))
	for i, rule := range rs.Rules {
		rules = append(rules, ruleResponse{
			ID:         rule.ID,
			Ordinal:    i,
			Expression: rule.Expression(),
			Conditions: rule.Conditions,
			Decision:   rule.Decision,
			Confidence: rule.Confidence,
			Samples:    rule.Samples,
		})
	}
	return map[string]any{
		"version": rs.Version,
		"rules":   rules,
	}
}
