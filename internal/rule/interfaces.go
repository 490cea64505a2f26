// Package rule implements the learning-rule matching engine that classifies
// accounting documents against a prioritized, user-maintained rule set.
package rule

import (
	"context"

	"github.com/harutaka/shiwake/internal/model"
	"github.com/harutaka/shiwake/internal/service"
)

// RuleSource provides the enabled rules the matcher evaluates, highest
// priority first. Implemented by the storage layer.
type RuleSource interface {
	GetEnabledLearningRules(ctx context.Context) ([]model.LearningRule, error)
}

// MatchRecorder consumes the "rule matched" event the matcher emits after a
// successful match. Implementations must not let a recording failure
// propagate: the classification decision is the primary contract and the
// counter is best-effort telemetry.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, ruleID int64)
}

// Rule is an alias to the model.LearningRule type for convenience.
type Rule = model.LearningRule

var _ RuleSource = (service.RuleStore)(nil)
