// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/harutaka/shiwake/internal/model"
)

// RuleSearchFilter defines filtering, sorting, and pagination options for
// learning rule queries.
type RuleSearchFilter struct {
	Enabled  *bool
	Query    string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// RuleSearchResult carries one page of rules plus pagination metadata.
// HasMore is detected by over-fetching a single extra row; Total comes from
// a separate count query.
type RuleSearchResult struct {
	Rules   []model.LearningRule
	Total   int
	HasMore bool
}

// RuleUpdate describes a partial update to a learning rule. Nil fields are
// left untouched.
type RuleUpdate struct {
	Name        *string
	Description *string
	Conditions  *[]model.MatchCondition
	MatchMode   *model.MatchMode
	Outputs     *model.RuleOutput
	Priority    *int
	Enabled     *bool
}

// RuleStore defines the persistence contract the matching engine depends on.
// The matcher only ever reads rules and fires counter updates; the full CRUD
// surface exists for the administrative tooling.
type RuleStore interface {
	CreateLearningRule(ctx context.Context, rule *model.LearningRule) error
	GetLearningRule(ctx context.Context, id int64) (*model.LearningRule, error)
	GetEnabledLearningRules(ctx context.Context) ([]model.LearningRule, error)
	UpdateLearningRule(ctx context.Context, id int64, update RuleUpdate) error
	DeleteLearningRule(ctx context.Context, id int64) error
	SearchLearningRules(ctx context.Context, filter RuleSearchFilter) (*RuleSearchResult, error)
	// IncrementLearningRuleMatchCount atomically bumps match_count and
	// stamps last_matched_at. Lost updates under concurrent matches are
	// tolerated; the counter is telemetry, not a correctness contract.
	IncrementLearningRuleMatchCount(ctx context.Context, id int64) error
}

// DocumentFilter defines filtering options for document queries.
type DocumentFilter struct {
	Status *model.DocumentStatus
	Type   *model.DocumentType
	Limit  int
	Offset int
}

// DocumentStore defines persistence for the documents being classified.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *model.Document) error
	GetDocumentByID(ctx context.Context, id string) (*model.Document, error)
	GetDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)
	GetDocumentCount(ctx context.Context, status *model.DocumentStatus) (int, error)
}

// Storage is the full persistence contract implemented by the SQLite layer.
type Storage interface {
	RuleStore
	DocumentStore

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
