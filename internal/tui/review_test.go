package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harutaka/shiwake/internal/model"
)

func TestRuleFromReview(t *testing.T) {
	doc := model.Document{
		ID:              "doc-1",
		IssuerName:      "Times24 Co., Ltd.",
		Subject:         "Parking",
		AccountCategory: "Travel",
	}

	rule := ruleFromReview(doc)

	assert.Equal(t, "Times24 Co., Ltd.", rule.Name)
	assert.Equal(t, model.MatchAll, rule.MatchMode)
	assert.True(t, rule.Enabled)

	require.Len(t, rule.Conditions, 1)
	cond := rule.Conditions[0]
	assert.Equal(t, model.FieldIssuerName, cond.Field)
	assert.Equal(t, model.OperatorContains, cond.Operator)
	assert.Equal(t, "Times24 Co., Ltd.", cond.Value)
	assert.False(t, cond.CaseSensitive)

	require.NotNil(t, rule.Outputs.Subject)
	assert.Equal(t, "Parking", *rule.Outputs.Subject)
	require.NotNil(t, rule.Outputs.AccountCategory)
	assert.Equal(t, "Travel", *rule.Outputs.AccountCategory)
	assert.Nil(t, rule.Outputs.Title)
}

func TestRuleFromReview_EmptyFieldsProduceNoOutputs(t *testing.T) {
	rule := ruleFromReview(model.Document{IssuerName: "Lawson"})
	assert.True(t, rule.Outputs.IsEmpty())
}
