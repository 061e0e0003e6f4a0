package loanrules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Engine evaluates applicants against a compiled rule table.
//
// Rules are compiled to CEL programs once, at construction or reload, and
// held in an ordered slice: classification walks the slice and returns the
// first rule whose expression evaluates true. Compiled programs are
// read-only, so any number of Classify calls may run concurrently; Reload
// swaps the whole slice under the write lock and never mutates it in place.
type Engine struct {
	env *cel.Env

	mu       sync.RWMutex
	compiled []compiledRule
	ruleset  *RuleSet
}

type compiledRule struct {
	rule *Rule
	prog cel.Program
}

// NewEngine validates and compiles the rule set. A table that fails
// validation or compilation never produces a usable engine.
func NewEngine(rs *RuleSet) (*Engine, error) {
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	en := &Engine{env: env}
	if err := en.Reload(rs); err != nil {
		return nil, err
	}
	return en, nil
}

// newEnv declares the six applicant attributes. Numerics are doubles so
// thresholds compare exactly as authored; categoricals are strings.
func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(AttrSex, cel.StringType),
		cel.Variable(AttrAge, cel.DoubleType),
		cel.Variable(AttrLoanTerm, cel.DoubleType),
		cel.Variable(AttrNumAccounts, cel.DoubleType),
		cel.Variable(AttrLoanType, cel.StringType),
		cel.Variable(AttrLoanArea, cel.StringType),
	)
}

// Reload replaces the active rule table atomically. The new table is
// validated and fully compiled before the swap, so concurrent readers see
// either the old table or the new one, never a partial mix.
func (en *Engine) Reload(rs *RuleSet) error {
	if err := rs.Validate(); err != nil {
		return err
	}

	compiled := make([]compiledRule, 0, len(rs.Rules))
	for i, rule := range rs.Rules {
		prog, err := en.compile(rule.Expression())
		if err != nil {
			return fmt.Errorf("%w: rule %d: %v", ErrRuleSetInvalid, i, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, prog: prog})
	}

	en.mu.Lock()
	en.compiled = compiled
	en.ruleset = rs
	en.mu.Unlock()

	return nil
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := en.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Classify evaluates the applicant against the rule table in authored order
// and returns the first full match. Conditions within a rule are ANDed with
// short-circuit evaluation. If no rule matches, the result is the explicit
// unclassified outcome, not an error and not a default label.
func (en *Engine) Classify(applicant Applicant) (*Result, error) {
	if err := applicant.Validate(); err != nil {
		return nil, err
	}

	en.mu.RLock()
	compiled := en.compiled
	en.mu.RUnlock()

	facts := applicant.facts()
	for i, cr := range compiled {
		out, _, err := cr.prog.Eval(facts)
		if err != nil {
			return nil, fmt.Errorf("rule %d evaluation failed: %w", i, err)
		}

		matched, ok := out.Value().(bool)
		if !ok || !matched {
			continue
		}

		return &Result{
			Decision:   cr.rule.Decision,
			Confidence: cr.rule.Confidence,
			Samples:    cr.rule.Samples,
			RuleID:     cr.rule.ID,
			RuleIndex:  i,
			Matched:    true,
		}, nil
	}

	return &Result{
		Decision:  DecisionUnclassified,
		RuleIndex: -1,
	}, nil
}

// RuleSet returns the currently loaded table.
func (en *Engine) RuleSet() *RuleSet {
	en.mu.RLock()
	defer en.mu.RUnlock()
	return en.ruleset
}
