package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harutaka/shiwake/internal/common"
	"github.com/harutaka/shiwake/internal/model"
	"github.com/harutaka/shiwake/internal/service"
	"github.com/harutaka/shiwake/internal/testutil"
)

func strPtr(s string) *string { return &s }

func testRule(name string, priority int) *model.LearningRule {
	return &model.LearningRule{
		Name:      name,
		MatchMode: model.MatchAll,
		Priority:  priority,
		Enabled:   true,
		Conditions: []model.MatchCondition{
			{Field: model.FieldIssuerName, Operator: model.OperatorContains, Value: "acme"},
		},
		Outputs: model.RuleOutput{AccountCategory: strPtr("Supplies")},
	}
}

func TestCreateAndGetLearningRule(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testRule("acme supplies", 10)
	rule.Description = "everything from acme"
	require.NoError(t, store.CreateLearningRule(ctx, rule))
	require.NotZero(t, rule.ID)

	got, err := store.GetLearningRule(ctx, rule.ID)
	require.NoError(t, err)

	assert.Equal(t, "acme supplies", got.Name)
	assert.Equal(t, "everything from acme", got.Description)
	assert.Equal(t, model.MatchAll, got.MatchMode)
	assert.Equal(t, 10, got.Priority)
	assert.True(t, got.Enabled)
	assert.Zero(t, got.MatchCount)
	assert.Nil(t, got.LastMatchedAt)
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, model.FieldIssuerName, got.Conditions[0].Field)
	require.NotNil(t, got.Outputs.AccountCategory)
	assert.Equal(t, "Supplies", *got.Outputs.AccountCategory)
	assert.Nil(t, got.Outputs.Subject)
}

func TestCreateLearningRule_DefaultsMatchModeToAll(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testRule("defaults", 0)
	rule.MatchMode = ""
	require.NoError(t, store.CreateLearningRule(ctx, rule))
	assert.Equal(t, model.MatchAll, rule.MatchMode)
}

func TestCreateLearningRule_Validation(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		mutate func(*model.LearningRule)
		name   string
	}{
		{name: "empty name", mutate: func(r *model.LearningRule) { r.Name = "" }},
		{name: "bad match mode", mutate: func(r *model.LearningRule) { r.MatchMode = "some" }},
		{name: "bad field", mutate: func(r *model.LearningRule) { r.Conditions[0].Field = "amount" }},
		{name: "bad operator", mutate: func(r *model.LearningRule) { r.Conditions[0].Operator = "fuzzy" }},
		{name: "empty condition value", mutate: func(r *model.LearningRule) { r.Conditions[0].Value = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := testRule("valid name", 0)
			tt.mutate(rule)
			assert.Error(t, store.CreateLearningRule(ctx, rule))
		})
	}
}

func TestGetLearningRule_NotFound(t *testing.T) {
	store := testutil.SetupTestDB(t)

	_, err := store.GetLearningRule(context.Background(), 9999)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetEnabledLearningRules_Ordering(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	low := testRule("low priority", 1)
	high := testRule("high priority", 100)
	tieFirst := testRule("tie inserted first", 50)
	tieSecond := testRule("tie inserted second", 50)
	disabled := testRule("disabled", 200)
	disabled.Enabled = false

	for _, r := range []*model.LearningRule{low, high, tieFirst, tieSecond, disabled} {
		require.NoError(t, store.CreateLearningRule(ctx, r))
	}

	rules, err := store.GetEnabledLearningRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 4)

	// Priority descending, insertion order breaking ties; disabled rules
	// never appear.
	assert.Equal(t, high.ID, rules[0].ID)
	assert.Equal(t, tieFirst.ID, rules[1].ID)
	assert.Equal(t, tieSecond.ID, rules[2].ID)
	assert.Equal(t, low.ID, rules[3].ID)
}

func TestUpdateLearningRule_Partial(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testRule("original", 10)
	require.NoError(t, store.CreateLearningRule(ctx, rule))

	newPriority := 99
	enabled := false
	require.NoError(t, store.UpdateLearningRule(ctx, rule.ID, service.RuleUpdate{
		Priority: &newPriority,
		Enabled:  &enabled,
	}))

	got, err := store.GetLearningRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, got.Priority)
	assert.False(t, got.Enabled)
	// Untouched fields survive.
	assert.Equal(t, "original", got.Name)
	require.Len(t, got.Conditions, 1)
}

func TestUpdateLearningRule_ReplacesConditionsAndOutputs(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testRule("replace me", 0)
	require.NoError(t, store.CreateLearningRule(ctx, rule))

	conditions := []model.MatchCondition{
		{Field: model.FieldOCRText, Operator: model.OperatorRegex, Value: `#\d+`},
		{Field: model.FieldSubject, Operator: model.OperatorEquals, Value: "parking", CaseSensitive: true},
	}
	outputs := model.RuleOutput{Subject: strPtr("Parking"), Title: strPtr("Times")}
	require.NoError(t, store.UpdateLearningRule(ctx, rule.ID, service.RuleUpdate{
		Conditions: &conditions,
		Outputs:    &outputs,
	}))

	got, err := store.GetLearningRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, conditions, got.Conditions)
	assert.Equal(t, outputs, got.Outputs)
}

func TestUpdateLearningRule_NotFound(t *testing.T) {
	store := testutil.SetupTestDB(t)

	name := "ghost"
	err := store.UpdateLearningRule(context.Background(), 4242, service.RuleUpdate{Name: &name})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateLearningRule_EmptyUpdateIsNoOp(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testRule("untouched", 5)
	require.NoError(t, store.CreateLearningRule(ctx, rule))
	require.NoError(t, store.UpdateLearningRule(ctx, rule.ID, service.RuleUpdate{}))

	got, err := store.GetLearningRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "untouched", got.Name)
	assert.Equal(t, 5, got.Priority)
}

func TestDeleteLearningRule(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testRule("doomed", 0)
	require.NoError(t, store.CreateLearningRule(ctx, rule))
	require.NoError(t, store.DeleteLearningRule(ctx, rule.ID))

	_, err := store.GetLearningRule(ctx, rule.ID)
	assert.Error(t, err)

	err = store.DeleteLearningRule(ctx, rule.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestIncrementLearningRuleMatchCount(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testRule("counted", 0)
	require.NoError(t, store.CreateLearningRule(ctx, rule))

	require.NoError(t, store.IncrementLearningRuleMatchCount(ctx, rule.ID))
	require.NoError(t, store.IncrementLearningRuleMatchCount(ctx, rule.ID))

	got, err := store.GetLearningRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MatchCount)
	assert.NotNil(t, got.LastMatchedAt)
}

func TestIncrementLearningRuleMatchCount_NotFound(t *testing.T) {
	store := testutil.SetupTestDB(t)

	err := store.IncrementLearningRuleMatchCount(context.Background(), 31337)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSearchLearningRules(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	names := []string{"amazon orders", "times parking", "jr east fares", "aws invoices", "rakuten market"}
	for i, name := range names {
		r := testRule(name, i*10)
		if name == "rakuten market" {
			r.Enabled = false
		}
		require.NoError(t, store.CreateLearningRule(ctx, r))
	}

	t.Run("query matches name and description", func(t *testing.T) {
		result, err := store.SearchLearningRules(ctx, service.RuleSearchFilter{Query: "AMAZON"})
		require.NoError(t, err)
		require.Len(t, result.Rules, 1)
		assert.Equal(t, "amazon orders", result.Rules[0].Name)
		assert.Equal(t, 1, result.Total)
		assert.False(t, result.HasMore)
	})

	t.Run("enabled filter", func(t *testing.T) {
		enabled := false
		result, err := store.SearchLearningRules(ctx, service.RuleSearchFilter{Enabled: &enabled})
		require.NoError(t, err)
		require.Len(t, result.Rules, 1)
		assert.Equal(t, "rakuten market", result.Rules[0].Name)
	})

	t.Run("pagination with hasMore", func(t *testing.T) {
		result, err := store.SearchLearningRules(ctx, service.RuleSearchFilter{
			SortBy:   "priority",
			SortDesc: true,
			Limit:    2,
		})
		require.NoError(t, err)
		require.Len(t, result.Rules, 2)
		assert.Equal(t, 5, result.Total)
		assert.True(t, result.HasMore)
		assert.Equal(t, "rakuten market", result.Rules[0].Name)
		assert.Equal(t, "aws invoices", result.Rules[1].Name)

		last, err := store.SearchLearningRules(ctx, service.RuleSearchFilter{
			SortBy:   "priority",
			SortDesc: true,
			Limit:    2,
			Offset:   4,
		})
		require.NoError(t, err)
		require.Len(t, last.Rules, 1)
		assert.False(t, last.HasMore)
		assert.Equal(t, "amazon orders", last.Rules[0].Name)
	})

	t.Run("sort by name ascending", func(t *testing.T) {
		result, err := store.SearchLearningRules(ctx, service.RuleSearchFilter{SortBy: "name"})
		require.NoError(t, err)
		require.Len(t, result.Rules, 5)
		assert.Equal(t, "amazon orders", result.Rules[0].Name)
		assert.Equal(t, "times parking", result.Rules[4].Name)
	})

	t.Run("unknown sort column falls back to priority", func(t *testing.T) {
		result, err := store.SearchLearningRules(ctx, service.RuleSearchFilter{
			SortBy:   "1; DROP TABLE learning_rules",
			SortDesc: true,
		})
		require.NoError(t, err)
		require.Len(t, result.Rules, 5)
		assert.Equal(t, "rakuten market", result.Rules[0].Name)
	})

	t.Run("no results", func(t *testing.T) {
		result, err := store.SearchLearningRules(ctx, service.RuleSearchFilter{Query: "no-such-rule"})
		require.NoError(t, err)
		assert.Empty(t, result.Rules)
		assert.Zero(t, result.Total)
		assert.False(t, result.HasMore)
	})
}

func TestZeroConditionRuleRoundTrip(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := &model.LearningRule{
		Name:      "catch-all",
		MatchMode: model.MatchAll,
		Enabled:   true,
		Outputs:   model.RuleOutput{AccountCategory: strPtr("Misc")},
	}
	require.NoError(t, store.CreateLearningRule(ctx, rule))

	got, err := store.GetLearningRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Conditions)
}
