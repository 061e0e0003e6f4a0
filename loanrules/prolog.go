package loanrules

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseKnowledgeBase reads a Prolog knowledge base of classify_loan/7
// clauses and returns the rules in file order.
//
// The accepted grammar is the one the offline training pipeline emits:
//
//	% Rule 2, Confidence 0.571, Samples 21
//	classify_loan(Sex, Age, LoanTerm, NumAccounts, LoanType, LoanArea, rejected) :-
//	    Age <= 31.00,
//	    LoanTerm > 8.50.
//
// Conditions may be numeric thresholds (Attr <= K, Attr > K), equality
// (Attr = literal) or membership (member(Attr, [a, b])). A clause with no
// body is a fact that always matches. Annotation comments carry confidence
// and sample count; clauses without one default to confidence 1.0 and a
// single sample. Anything outside this grammar fails with ErrRuleSetInvalid.
func ParseKnowledgeBase(r io.Reader) (*RuleSet, error) {
	const clauseHead = "classify_loan("

	var (
		rules      []*Rule
		current    *Rule
		confidence = 1.0
		samples    = 1
		annotated  bool
		lineNo     int
	)

	finish := func() {
		current.ID = fmt.Sprintf("rule-%d", len(rules)+1)
		if annotated {
			current.Confidence = confidence
			current.Samples = samples
		} else {
			current.Confidence = 1.0
			current.Samples = 1
		}
		rules = append(rules, current)
		current = nil
		annotated = false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "%") {
			if c, s, ok := parseAnnotation(line); ok {
				confidence, samples, annotated = c, s, true
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, clauseHead):
			if current != nil {
				return nil, fmt.Errorf("%w: line %d: clause started before previous clause ended", ErrRuleSetInvalid, lineNo)
			}

			decision, rest, err := parseClauseHead(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrRuleSetInvalid, lineNo, err)
			}
			current = &Rule{Decision: decision}

			done, err := appendBody(current, rest, lineNo)
			if err != nil {
				return nil, err
			}
			if done {
				finish()
			}

		case current != nil:
			done, err := appendBody(current, line, lineNo)
			if err != nil {
				return nil, err
			}
			if done {
				finish()
			}

		default:
			return nil, fmt.Errorf("%w: line %d: unexpected text outside a clause: %q", ErrRuleSetInvalid, lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleSetInvalid, err)
	}
	if current != nil {
		return nil, fmt.Errorf("%w: knowledge base ends inside a clause body", ErrRuleSetInvalid)
	}

	rs := &RuleSet{Rules: rules}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// parseAnnotation extracts confidence and sample count from a comment like
// "% Rule 3, Confidence 0.727, Samples 33". Other comments are ignored.
func parseAnnotation(line string) (confidence float64, samples int, ok bool) {
	if !strings.Contains(line, "Confidence") || !strings.Contains(line, "Samples") {
		return 0, 0, false
	}

	found := 0
	for _, part := range strings.Split(line, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) < 2 {
			continue
		}
		switch fields[len(fields)-2] {
		case "Confidence":
			c, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				return 0, 0, false
			}
			confidence = c
			found++
		case "Samples":
			s, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return 0, 0, false
			}
			samples = s
			found++
		}
	}
	return confidence, samples, found == 2
}

// parseClauseHead splits a classify_loan(...) head, returning the decision
// label (the seventh argument) and whatever follows the head on the same
// line: ":-", ".", or inline body text.
func parseClauseHead(line string) (decision, rest string, err error) {
	open := strings.Index(line, "(")
	end := strings.Index(line, ")")
	if open < 0 || end < open {
		return "", "", fmt.Errorf("malformed clause head")
	}

	args := strings.Split(line[open+1:end], ",")
	if len(args) != 7 {
		return "", "", fmt.Errorf("classify_loan clause has %d arguments, want 7", len(args))
	}
	decision = strings.ToLower(strings.TrimSpace(args[6]))

	rest = strings.TrimSpace(line[end+1:])
	switch {
	case rest == "." || rest == "":
		// "." makes this a fact clause with no body.
	case strings.HasPrefix(rest, ":-"):
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ":-"))
	default:
		return "", "", fmt.Errorf("unexpected text after clause head: %q", rest)
	}
	return decision, rest, nil
}

// appendBody parses one body fragment (possibly several comma-separated
// conditions) onto the rule. It reports true when the clause-terminating
// "." was consumed.
func appendBody(rule *Rule, fragment string, lineNo int) (done bool, err error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return false, nil
	}
	if fragment == "." {
		return true, nil
	}

	if strings.HasSuffix(fragment, ".") {
		done = true
		fragment = strings.TrimSuffix(fragment, ".")
	}

	for _, raw := range splitConditions(fragment) {
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ","))
		if raw == "" {
			continue
		}
		cond, err := parseCondition(raw)
		if err != nil {
			return false, fmt.Errorf("%w: line %d: %v", ErrRuleSetInvalid, lineNo, err)
		}
		rule.Conditions = append(rule.Conditions, cond)
	}
	return done, nil
}

// splitConditions splits a body fragment on commas that are not inside a
// member/2 candidate list.
func splitConditions(fragment string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, ch := range fragment {
		switch ch {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, fragment[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, fragment[start:])
	return parts
}

func parseCondition(raw string) (Condition, error) {
	if strings.HasPrefix(raw, "member(") {
		return parseMember(raw)
	}

	// Operator order matters: "<=" must be tried before "=".
	for _, op := range []Operator{OpLessOrEqual, OpGreaterThan, OpEqual} {
		attr, operand, ok := strings.Cut(raw, string(op))
		if !ok {
			continue
		}
		attr = strings.TrimSpace(attr)
		operand = strings.TrimSpace(operand)

		if op == OpEqual {
			return Condition{
				Attribute: attr,
				Operator:  OpEqual,
				Value:     strings.ToLower(operand),
			}, nil
		}

		threshold, err := strconv.ParseFloat(operand, 64)
		if err != nil {
			return Condition{}, fmt.Errorf("condition %q: threshold %q is not a number", raw, operand)
		}
		return Condition{Attribute: attr, Operator: op, Threshold: threshold}, nil
	}

	return Condition{}, fmt.Errorf("unrecognized condition %q", raw)
}

func parseMember(raw string) (Condition, error) {
	open := strings.Index(raw, "[")
	end := strings.Index(raw, "]")
	if open < 0 || end < open {
		return Condition{}, fmt.Errorf("member condition %q has no candidate list", raw)
	}

	attr := strings.TrimSpace(strings.TrimPrefix(raw[:open], "member("))
	attr = strings.TrimSpace(strings.TrimSuffix(attr, ","))

	var values []string
	for _, v := range strings.Split(raw[open+1:end], ",") {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			values = append(values, v)
		}
	}

	return Condition{Attribute: attr, Operator: OpMember, Values: values}, nil
}
