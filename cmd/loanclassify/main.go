// Command loanclassify is an interactive terminal classifier: it prompts
// for the six application attributes, runs them through the rule engine,
// and prints the decision with its confidence and matched rule.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/crediflow/loanrules/loanrules"
)

var (
	sexes     = []string{"male", "female"}
	loanTypes = []string{"home", "personal", "auto"}
)

func main() {
	var kbPath string
	flag.StringVar(&kbPath, "kb", "", "Path to a Prolog knowledge base (default: embedded rules)")
	flag.Parse()

	rs, err := loadRuleSet(kbPath)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}

	engine, err := loanrules.NewEngine(rs)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	fmt.Println("LOAN CLASSIFICATION")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Loaded %d rules (table version %d)\n", len(rs.Rules), rs.Version)

	in := bufio.NewReader(os.Stdin)
	count := 0
	for {
		count++
		fmt.Printf("\nAPPLICATION #%d\n", count)

		applicant, err := promptApplicant(in)
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Fatalf("Input error: %v", err)
		}

		result, err := engine.Classify(applicant)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		printResult(result, rs)

		again, err := promptString(in, "\nAnother application? (y/n): ", nil)
		if err != nil || !loanrules.MemberOf(again, []string{"y", "yes"}) {
			break
		}
	}

	fmt.Printf("\nProcessed %d application(s)\n", count)
}

func loadRuleSet(kbPath string) (*loanrules.RuleSet, error) {
	if kbPath == "" {
		return loanrules.DefaultRuleSet()
	}

	f, err := os.Open(kbPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loanrules.ParseKnowledgeBase(f)
}

func promptApplicant(in *bufio.Reader) (loanrules.Applicant, error) {
	sex, err := promptString(in, "Sex (Male/Female): ", sexes)
	if err != nil {
		return loanrules.Applicant{}, err
	}

	age, err := promptNumber(in, "Age: ")
	if err != nil {
		return loanrules.Applicant{}, err
	}

	loanTerm, err := promptNumber(in, "Loan term in years: ")
	if err != nil {
		return loanrules.Applicant{}, err
	}

	numAccounts, err := promptNumber(in, "Number of accounts: ")
	if err != nil {
		return loanrules.Applicant{}, err
	}

	loanType, err := promptString(in, "Loan type (Home/Personal/Auto): ", loanTypes)
	if err != nil {
		return loanrules.Applicant{}, err
	}

	loanArea, err := promptString(in, "Loan area: ", nil)
	if err != nil {
		return loanrules.Applicant{}, err
	}

	return loanrules.Applicant{
		Sex:         sex,
		Age:         age,
		LoanTerm:    loanTerm,
		NumAccounts: numAccounts,
		LoanType:    loanType,
		LoanArea:    loanArea,
	}, nil
}

// promptString reads a line, re-prompting until the answer is non-empty
// and, when allowed is given, a member of it.
func promptString(in *bufio.Reader, prompt string, allowed []string) (string, error) {
	for {
		fmt.Print(prompt)
		line, err := in.ReadString('\n')
		if err != nil {
			return "", err
		}

		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "" {
			continue
		}
		if allowed != nil && !loanrules.MemberOf(answer, allowed) {
			fmt.Printf("Enter one of: %s\n", strings.Join(allowed, ", "))
			continue
		}
		return answer, nil
	}
}

func promptNumber(in *bufio.Reader, prompt string) (float64, error) {
	for {
		fmt.Print(prompt)
		line, err := in.ReadString('\n')
		if err != nil {
			return 0, err
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil {
			fmt.Println("Enter a number")
			continue
		}
		return value, nil
	}
}

func printResult(result *loanrules.Result, rs *loanrules.RuleSet) {
	fmt.Println(strings.Repeat("-", 50))
	if result.Unclassified() {
		fmt.Println("DECISION: unclassified (no rule covers this application)")
		return
	}

	fmt.Printf("DECISION: %s\n", strings.ToUpper(result.Decision))
	fmt.Printf("Confidence: %.1f%%\n", result.Confidence*100)
	fmt.Printf("Matched rule %d of %d: %s (trained on %d samples)\n",
		result.RuleIndex+1, len(rs.Rules),
		rs.Rules[result.RuleIndex].Expression(), result.Samples)
}
