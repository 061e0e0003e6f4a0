package loanrules

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore keeps versioned rule tables in PostgreSQL. Each Save writes
// a complete new version; Activate flips which version Load returns. Rows
// are never updated in place, so an activated version is immutable and a
// reload always sees a whole table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle. Schema is managed by the
// migrations under migrations/ (run via cmd/migrate).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load returns the active rule table, rules ordered by ordinal.
func (s *PostgresStore) Load() (*RuleSet, error) {
	var (
		ruleSetID string
		version   int
	)
	err := s.db.QueryRow(`
		SELECT id, version
		FROM rule_sets
		WHERE active = true
	`).Scan(&ruleSetID, &version)
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveRuleSet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active rule set: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, decision, confidence, samples, conditions
		FROM rules
		WHERE rule_set_id = $1
		ORDER BY ordinal ASC
	`, ruleSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	defer rows.Close()

	rs := &RuleSet{Version: version}
	for rows.Next() {
		var (
			rule           Rule
			conditionsJSON []byte
		)
		if err := rows.Scan(&rule.ID, &rule.Decision, &rule.Confidence,
			&rule.Samples, &conditionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("%w: rule %s has malformed conditions: %v", ErrRuleSetInvalid, rule.ID, err)
		}
		rs.Rules = append(rs.Rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Save writes the rule set as a new inactive version and returns the
// version number assigned. The table is validated before anything is
// written. Rules are stored with their position as the ordinal, preserving
// authored order exactly.
func (s *PostgresStore) Save(rs *RuleSet) (int, error) {
	if err := rs.Validate(); err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ruleSetID string
	var version int
	err = tx.QueryRow(`
		INSERT INTO rule_sets (id, version, active, created_at)
		VALUES ($1, (SELECT COALESCE(MAX(version), 0) + 1 FROM rule_sets), false, NOW())
		RETURNING id, version
	`, uuid.NewString()).Scan(&ruleSetID, &version)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rule set: %w", err)
	}

	for i, rule := range rs.Rules {
		conditionsJSON, err := json.Marshal(rule.Conditions)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal conditions for rule %d: %w", i, err)
		}

		id := rule.ID
		if id == "" {
			id = uuid.NewString()
		}

		_, err = tx.Exec(`
			INSERT INTO rules (id, rule_set_id, ordinal, decision, confidence, samples, conditions)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, ruleSetID, i, rule.Decision, rule.Confidence, rule.Samples, conditionsJSON)
		if err != nil {
			return 0, fmt.Errorf("failed to insert rule %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rule set: %w", err)
	}
	return version, nil
}

// Activate makes the given version the one Load returns. The previous
// active version is deactivated in the same transaction, so there is never
// a moment with two active tables.
func (s *PostgresStore) Activate(version int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE rule_sets SET active = false WHERE active = true`); err != nil {
		return fmt.Errorf("failed to deactivate current rule set: %w", err)
	}

	result, err := tx.Exec(`UPDATE rule_sets SET active = true WHERE version = $1`, version)
	if err != nil {
		return fmt.Errorf("failed to activate rule set version %d: %w", version, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule set version %d not found", version)
	}

	return tx.Commit()
}
