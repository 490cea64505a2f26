// Package model defines the core data structures for the shiwake application.
package model

import (
	"time"
)

// MatchMode determines how a rule combines its condition results.
type MatchMode string

// Match mode constants.
const (
	// MatchAll requires every condition to hold. A rule with zero
	// conditions under MatchAll matches vacuously, which makes it a
	// catch-all rule.
	MatchAll MatchMode = "all"
	// MatchAny requires at least one condition to hold. A rule with zero
	// conditions under MatchAny never matches.
	MatchAny MatchMode = "any"
)

// ConditionField identifies the document attribute a condition tests.
type ConditionField string

// Condition field constants.
const (
	FieldIssuerName ConditionField = "issuer_name"
	FieldItemName   ConditionField = "item_name"
	FieldSubject    ConditionField = "subject"
	FieldTitle      ConditionField = "title"
	FieldOCRText    ConditionField = "ocr_text"
)

// ConditionOperator is the string test a condition applies.
type ConditionOperator string

// Condition operator constants.
const (
	OperatorContains   ConditionOperator = "contains"
	OperatorEquals     ConditionOperator = "equals"
	OperatorStartsWith ConditionOperator = "starts_with"
	OperatorEndsWith   ConditionOperator = "ends_with"
	OperatorRegex      ConditionOperator = "regex"
)

// MatchCondition is a single field/operator/value test contributing to a
// rule's overall match decision.
type MatchCondition struct {
	Field         ConditionField    `json:"field"`
	Operator      ConditionOperator `json:"operator"`
	Value         string            `json:"value"`
	CaseSensitive bool              `json:"case_sensitive"`
}

// RuleOutput is the partial set of document field overrides a matched rule
// contributes. Nil fields are not applied.
type RuleOutput struct {
	Subject         *string `json:"subject,omitempty"`
	AccountCategory *string `json:"account_category,omitempty"`
	Title           *string `json:"title,omitempty"`
}

// IsEmpty reports whether the output carries no overrides at all.
func (o RuleOutput) IsEmpty() bool {
	return o.Subject == nil && o.AccountCategory == nil && o.Title == nil
}

// LearningRule is a named, prioritized set of match conditions that,
// when satisfied by a document, yields classification outputs.
type LearningRule struct {
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	LastMatchedAt *time.Time       `json:"last_matched_at,omitempty"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	MatchMode     MatchMode        `json:"match_mode"`
	Conditions    []MatchCondition `json:"conditions"`
	Outputs       RuleOutput       `json:"outputs"`
	ID            int64            `json:"id"`
	Priority      int              `json:"priority"`
	MatchCount    int              `json:"match_count"`
	Enabled       bool             `json:"enabled"`
}

// RuleMatchResult is the outcome of evaluating a document against the rule
// set. Confidence is binary: 1.0 on match, 0 otherwise.
type RuleMatchResult struct {
	Rule       *LearningRule `json:"rule,omitempty"`
	Outputs    *RuleOutput   `json:"outputs,omitempty"`
	Confidence float64       `json:"confidence"`
	Matched    bool          `json:"matched"`
}

// ValidFields lists the condition fields a rule may reference.
func ValidFields() []ConditionField {
	return []ConditionField{FieldIssuerName, FieldItemName, FieldSubject, FieldTitle, FieldOCRText}
}

// ValidOperators lists the supported condition operators.
func ValidOperators() []ConditionOperator {
	return []ConditionOperator{OperatorContains, OperatorEquals, OperatorStartsWith, OperatorEndsWith, OperatorRegex}
}

// IsValidField reports whether f is a known condition field.
func IsValidField(f ConditionField) bool {
	switch f {
	case FieldIssuerName, FieldItemName, FieldSubject, FieldTitle, FieldOCRText:
		return true
	}
	return false
}

// IsValidOperator reports whether op is a known condition operator.
func IsValidOperator(op ConditionOperator) bool {
	switch op {
	case OperatorContains, OperatorEquals, OperatorStartsWith, OperatorEndsWith, OperatorRegex:
		return true
	}
	return false
}

// IsValidMatchMode reports whether m is a known match mode.
func IsValidMatchMode(m MatchMode) bool {
	return m == MatchAll || m == MatchAny
}
