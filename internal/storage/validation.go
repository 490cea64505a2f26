// Package storage provides the data persistence layer for the shiwake application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harutaka/shiwake/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidRule     = errors.New("invalid learning rule")
	ErrInvalidDocument = errors.New("invalid document")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateLearningRule validates a learning rule before persistence.
func validateLearningRule(rule *model.LearningRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateString(rule.Name, "name"); err != nil {
		return err
	}
	if !model.IsValidMatchMode(rule.MatchMode) {
		return fmt.Errorf("%w: invalid match mode %q", ErrInvalidRule, rule.MatchMode)
	}
	for i, cond := range rule.Conditions {
		if err := validateCondition(cond); err != nil {
			return fmt.Errorf("condition at index %d: %w", i, err)
		}
	}
	return nil
}

// validateCondition validates a single match condition.
func validateCondition(cond model.MatchCondition) error {
	if !model.IsValidField(cond.Field) {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidRule, cond.Field)
	}
	if !model.IsValidOperator(cond.Operator) {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, cond.Operator)
	}
	if cond.Value == "" {
		return fmt.Errorf("%w: condition value cannot be empty", ErrInvalidRule)
	}
	// Regex patterns are not compiled here; the evaluator fails closed on
	// patterns that do not compile.
	return nil
}

// validateDocument validates a document before persistence.
func validateDocument(doc *model.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document", ErrNilParameter)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidDocument)
	}
	switch doc.Status {
	case model.StatusPending, model.StatusClassified, model.StatusReviewed:
	default:
		return fmt.Errorf("%w: invalid status %q", ErrInvalidDocument, doc.Status)
	}
	return nil
}
