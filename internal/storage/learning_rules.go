package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harutaka/shiwake/internal/common"
	"github.com/harutaka/shiwake/internal/model"
	"github.com/harutaka/shiwake/internal/service"
)

const learningRuleColumns = `id, name, description, conditions, match_mode, outputs,
	priority, enabled, match_count, last_matched_at, created_at, updated_at`

// ruleSortColumns whitelists the fields a caller may sort search results by.
var ruleSortColumns = map[string]string{
	"name":        "name",
	"priority":    "priority",
	"match_count": "match_count",
	"created_at":  "created_at",
	"updated_at":  "updated_at",
}

// CreateLearningRule creates a new learning rule. Defaults are applied the
// way the administrative API always has: match_count starts at zero,
// enabled defaults to true, priority to zero.
func (s *SQLiteStorage) CreateLearningRule(ctx context.Context, rule *model.LearningRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule != nil && rule.MatchMode == "" {
		rule.MatchMode = model.MatchAll
	}
	if err := validateLearningRule(rule); err != nil {
		return err
	}

	conditions, err := marshalConditions(rule.Conditions)
	if err != nil {
		return err
	}
	outputs, err := json.Marshal(rule.Outputs)
	if err != nil {
		return fmt.Errorf("failed to encode outputs: %w", err)
	}

	query := `
		INSERT INTO learning_rules (name, description, conditions, match_mode, outputs, priority, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Description, conditions, string(rule.MatchMode),
		string(outputs), rule.Priority, rule.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to create learning rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get learning rule ID: %w", err)
	}

	rule.ID = id
	rule.MatchCount = 0
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	return nil
}

// GetLearningRule retrieves a learning rule by ID.
func (s *SQLiteStorage) GetLearningRule(ctx context.Context, id int64) (*model.LearningRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + learningRuleColumns + ` FROM learning_rules WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	rule, err := scanLearningRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("learning rule %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get learning rule: %w", err)
	}

	return rule, nil
}

// GetEnabledLearningRules retrieves all enabled rules ordered by priority
// descending. Ties share insertion order via the id ascending tiebreak, so
// evaluation order is stable across calls.
func (s *SQLiteStorage) GetEnabledLearningRules(ctx context.Context) ([]model.LearningRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + learningRuleColumns + `
		FROM learning_rules
		WHERE enabled = TRUE
		ORDER BY priority DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled learning rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectLearningRules(rows)
}

// UpdateLearningRule applies a partial update to an existing rule. Nil
// fields in the update are left untouched.
func (s *SQLiteStorage) UpdateLearningRule(ctx context.Context, id int64, update service.RuleUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var sets []string
	var args []any

	if update.Name != nil {
		if err := validateString(*update.Name, "name"); err != nil {
			return err
		}
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Conditions != nil {
		for i, cond := range *update.Conditions {
			if err := validateCondition(cond); err != nil {
				return fmt.Errorf("condition at index %d: %w", i, err)
			}
		}
		conditions, err := marshalConditions(*update.Conditions)
		if err != nil {
			return err
		}
		sets = append(sets, "conditions = ?")
		args = append(args, conditions)
	}
	if update.MatchMode != nil {
		if !model.IsValidMatchMode(*update.MatchMode) {
			return fmt.Errorf("%w: invalid match mode %q", ErrInvalidRule, *update.MatchMode)
		}
		sets = append(sets, "match_mode = ?")
		args = append(args, string(*update.MatchMode))
	}
	if update.Outputs != nil {
		outputs, err := json.Marshal(*update.Outputs)
		if err != nil {
			return fmt.Errorf("failed to encode outputs: %w", err)
		}
		sets = append(sets, "outputs = ?")
		args = append(args, string(outputs))
	}
	if update.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *update.Priority)
	}
	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, *update.Enabled)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := "UPDATE learning_rules SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update learning rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("learning rule %d: %w", id, common.ErrNotFound)
	}

	return nil
}

// DeleteLearningRule deletes a learning rule.
func (s *SQLiteStorage) DeleteLearningRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM learning_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete learning rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("learning rule %d: %w", id, common.ErrNotFound)
	}

	return nil
}

// IncrementLearningRuleMatchCount atomically bumps the match counter and
// stamps last_matched_at in a single UPDATE. Concurrent matches against the
// same rule are serialized by SQLite; a lost update under pathological
// failure is tolerated since the counter is best-effort telemetry.
func (s *SQLiteStorage) IncrementLearningRuleMatchCount(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	query := `UPDATE learning_rules
		SET match_count = match_count + 1, last_matched_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment learning rule match count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("learning rule %d: %w", id, common.ErrNotFound)
	}

	return nil
}

// SearchLearningRules lists rules with filtering, free-text search over name
// and description, custom sorting, and limit/offset pagination. It fetches
// limit+1 rows to detect whether more pages exist without counting on the
// hot path; the total still comes from a separate COUNT query.
func (s *SQLiteStorage) SearchLearningRules(ctx context.Context, filter service.RuleSearchFilter) (*service.RuleSearchResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var where []string
	var args []any

	if filter.Enabled != nil {
		where = append(where, "enabled = ?")
		args = append(args, *filter.Enabled)
	}
	if filter.Query != "" {
		// LIKE is case-insensitive for ASCII in SQLite by default; lower()
		// keeps the behavior explicit.
		where = append(where, "(lower(name) LIKE ? OR lower(description) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Query) + "%"
		args = append(args, pattern, pattern)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	sortColumn, ok := ruleSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "priority"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM learning_rules%s ORDER BY %s %s, id ASC LIMIT ? OFFSET ?`,
		learningRuleColumns, whereClause, sortColumn, direction)
	queryArgs := append(append([]any{}, args...), limit+1, offset)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to search learning rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rules, err := collectLearningRules(rows)
	if err != nil {
		return nil, err
	}

	hasMore := false
	if len(rules) > limit {
		hasMore = true
		rules = rules[:limit]
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM learning_rules" + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count learning rules: %w", err)
	}

	return &service.RuleSearchResult{
		Rules:   rules,
		Total:   total,
		HasMore: hasMore,
	}, nil
}

// rowScanner abstracts sql.Row and sql.Rows for the shared scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanLearningRule scans one learning rule row, decoding the JSON condition
// and output columns.
func scanLearningRule(row rowScanner) (*model.LearningRule, error) {
	var rule model.LearningRule
	var conditions, outputs string
	var matchMode string
	var lastMatchedAt sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &conditions, &matchMode, &outputs,
		&rule.Priority, &rule.Enabled, &rule.MatchCount, &lastMatchedAt,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.MatchMode = model.MatchMode(matchMode)
	if lastMatchedAt.Valid {
		t := lastMatchedAt.Time
		rule.LastMatchedAt = &t
	}

	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions for rule %d: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(outputs), &rule.Outputs); err != nil {
		return nil, fmt.Errorf("failed to decode outputs for rule %d: %w", rule.ID, err)
	}

	return &rule, nil
}

// collectLearningRules drains a result set of learning rule rows.
func collectLearningRules(rows *sql.Rows) ([]model.LearningRule, error) {
	var rules []model.LearningRule
	for rows.Next() {
		rule, err := scanLearningRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learning rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learning rules: %w", err)
	}

	return rules, nil
}

// marshalConditions encodes conditions as JSON, normalizing nil to an empty
// array so zero-condition rules round-trip cleanly.
func marshalConditions(conditions []model.MatchCondition) (string, error) {
	if conditions == nil {
		conditions = []model.MatchCondition{}
	}
	encoded, err := json.Marshal(conditions)
	if err != nil {
		return "", fmt.Errorf("failed to encode conditions: %w", err)
	}
	return string(encoded), nil
}
