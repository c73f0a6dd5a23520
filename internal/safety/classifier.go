// Package safety computes the deterministic safety score for a proposed
// fix (C7): a hostile-until-proven-benign function from
// internal/domain.FixProposal to a score in [0.0, 1.0].
package safety

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/mangle"
)

//go:embed rules.mangle
var rulesSource string

// classifier answers issue-type category-membership questions declaratively,
// via the Mangle rule set in rules.mangle, instead of a hand-rolled map
// lookup — the categories are the part of the scoring rule table that is
// pure set membership, which is what a Datalog engine is for.
type classifier struct {
	engine *mangle.Engine
}

func newClassifier() (*classifier, error) {
	eng, err := mangle.NewEngine(mangle.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("create mangle engine: %w", err)
	}
	if err := eng.LoadSchemaString(rulesSource); err != nil {
		return nil, fmt.Errorf("load safety rules: %w", err)
	}
	return &classifier{engine: eng}, nil
}

func (c *classifier) isWhitelisted(issueType string) bool {
	return c.queryMembership("whitelisted_issue_type", issueType)
}

func (c *classifier) isHardDisqualified(issueType string) bool {
	return c.queryMembership("hard_disqualified_issue_type", issueType)
}

func (c *classifier) queryMembership(predicate, value string) bool {
	query := fmt.Sprintf("%s(%q)", predicate, value)
	result, err := c.engine.Query(context.Background(), query)
	if err != nil {
		return false
	}
	return len(result.Bindings) > 0
}

func (c *classifier) close() error {
	return c.engine.Close()
}
