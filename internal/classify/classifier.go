// Package classify orchestrates the rule matching engine against stored
// documents: match, apply outputs, persist.
package classify

import (
	"context"
	"fmt"
	"time"

	"github.com/harutaka/shiwake/internal/model"
	"github.com/harutaka/shiwake/internal/rule"
	"github.com/harutaka/shiwake/internal/service"
)

// Stats summarizes a classification run.
type Stats struct {
	Duration  time.Duration
	Total     int
	Matched   int
	Unmatched int
}

// Classifier wires the matcher to document persistence. The matcher decides,
// the classifier applies outputs and saves the document; telemetry flows
// through whatever recorder the matcher was built with.
type Classifier struct {
	storage service.Storage
	matcher *rule.Matcher
}

// NewClassifier creates a classifier. The matcher is injected so callers
// control telemetry recording (live store recorder vs. dry-run nop).
func NewClassifier(storage service.Storage, matcher *rule.Matcher) *Classifier {
	return &Classifier{
		storage: storage,
		matcher: matcher,
	}
}

// ClassifyDocument matches one document, applies any matched outputs, and
// returns the updated document alongside the match result. The document is
// persisted only when persist is true, so the same path serves dry runs.
func (c *Classifier) ClassifyDocument(ctx context.Context, doc model.Document, persist bool) (model.RuleMatchResult, model.Document, error) {
	result, err := c.matcher.FindMatchingRule(ctx, doc, doc.OCRText)
	if err != nil {
		return model.RuleMatchResult{}, doc, err
	}

	if result.Matched {
		doc = rule.ApplyOutputs(doc, *result.Outputs)
		doc.Status = model.StatusClassified
		doc.MatchedRuleID = &result.Rule.ID
	}

	if persist {
		if err := c.storage.SaveDocument(ctx, &doc); err != nil {
			return result, doc, fmt.Errorf("failed to save classified document: %w", err)
		}
	}

	return result, doc, nil
}

// ClassifyPending runs every pending document through the rule set. The
// progress callback, when non-nil, is invoked after each document.
func (c *Classifier) ClassifyPending(ctx context.Context, progress func(done, total int)) (Stats, error) {
	start := time.Now()

	status := model.StatusPending
	docs, err := c.storage.GetDocuments(ctx, service.DocumentFilter{Status: &status})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load pending documents: %w", err)
	}

	stats := Stats{Total: len(docs)}
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		result, _, err := c.ClassifyDocument(ctx, docs[i], true)
		if err != nil {
			return stats, err
		}
		if result.Matched {
			stats.Matched++
		} else {
			stats.Unmatched++
		}

		if progress != nil {
			progress(i+1, stats.Total)
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}
