package loanrules

// RuleSetStore loads the rule table the engine classifies against.
//
// Tables are immutable: stores hand out whole ordered rule sets and never
// expose per-rule mutation, because rule order is the conflict-resolution
// policy and a partially updated table must never be observable.
type RuleSetStore interface {
	// Load returns the current rule table.
	Load() (*RuleSet, error)
}

// StaticStore serves a fixed rule table, typically the embedded knowledge
// base. It is the store for deployments with no database.
type StaticStore struct {
	ruleset *RuleSet
}

// NewStaticStore validates the table once and serves it forever after.
func NewStaticStore(rs *RuleSet) (*StaticStore, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &StaticStore{ruleset: rs}, nil
}

// Load returns the fixed table.
func (s *StaticStore) Load() (*RuleSet, error) {
	return s.ruleset, nil
}
