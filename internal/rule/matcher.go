package rule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harutaka/shiwake/internal/common"
	"github.com/harutaka/shiwake/internal/model"
)

// Matcher evaluates documents against the enabled rule set using a
// first-match-wins, priority-ordered policy.
type Matcher struct {
	source    RuleSource
	recorder  MatchRecorder
	evaluator *Evaluator
}

// NewMatcher creates a matcher backed by the given rule source. The recorder
// receives a best-effort event for every successful match; pass a
// NopRecorder for dry runs.
func NewMatcher(source RuleSource, recorder MatchRecorder) *Matcher {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Matcher{
		source:    source,
		recorder:  recorder,
		evaluator: NewEvaluator(),
	}
}

// FindMatchingRule classifies a document against all enabled rules in
// priority order and returns the first match. A rule-store read failure is
// fatal to the matching attempt and propagates; everything below that
// degrades silently to "no match".
func (m *Matcher) FindMatchingRule(ctx context.Context, doc model.Document, ocrText string) (model.RuleMatchResult, error) {
	rules, err := m.source.GetEnabledLearningRules(ctx)
	if err != nil {
		return model.RuleMatchResult{}, fmt.Errorf("failed to load enabled rules: %w", err)
	}

	for i := range rules {
		if !m.ruleMatches(rules[i], doc, ocrText) {
			continue
		}

		// First match wins; lower-priority rules are never evaluated.
		common.LogDebug("Rule matched document", common.Fields{
			"rule_id":  rules[i].ID,
			"rule":     rules[i].Name,
			"priority": rules[i].Priority,
			"document": doc.ID,
		})
		m.recorder.RecordMatch(ctx, rules[i].ID)

		outputs := rules[i].Outputs
		return model.RuleMatchResult{
			Matched:    true,
			Rule:       &rules[i],
			Outputs:    &outputs,
			Confidence: 1.0,
		}, nil
	}

	return model.RuleMatchResult{Matched: false, Confidence: 0}, nil
}

// ruleMatches combines the rule's condition results under its match mode.
// A rule with zero conditions matches vacuously under "all" and never
// matches under "any".
func (m *Matcher) ruleMatches(r Rule, doc model.Document, ocrText string) bool {
	switch r.MatchMode {
	case model.MatchAny:
		for _, cond := range r.Conditions {
			if m.evaluator.Evaluate(cond, ExtractField(doc, cond.Field, ocrText)) {
				return true
			}
		}
		return false
	case model.MatchAll:
		for _, cond := range r.Conditions {
			if !m.evaluator.Evaluate(cond, ExtractField(doc, cond.Field, ocrText)) {
				return false
			}
		}
		return true
	}

	slog.Warn("Skipping rule with unknown match mode",
		"rule_id", r.ID,
		"match_mode", r.MatchMode)
	return false
}
