package loanrules

import (
	_ "embed"
	"strings"
)

//go:embed loan_knowledge_base.pl
var embeddedKB string

// DefaultRuleSet parses the knowledge base shipped with the binary.
func DefaultRuleSet() (*RuleSet, error) {
	rs, err := ParseKnowledgeBase(strings.NewReader(embeddedKB))
	if err != nil {
		return nil, err
	}
	rs.Version = 1
	return rs, nil
}
