package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harutaka/shiwake/internal/model"
)

func TestSummarize(t *testing.T) {
	docs := []model.Document{
		{ID: "1", AccountCategory: "Travel", TotalAmount: 1200, Status: model.StatusClassified},
		{ID: "2", AccountCategory: "Travel", TotalAmount: 880, Status: model.StatusClassified},
		{ID: "3", AccountCategory: "Supplies", TotalAmount: 3450, Status: model.StatusReviewed},
		{ID: "4", TotalAmount: 500, Status: model.StatusPending},
	}
	rules := []model.LearningRule{
		{ID: 1, Name: "times parking"},
		{ID: 2, Name: "amazon orders"},
	}

	summary := Summarize(docs, rules)

	require.Len(t, summary.ByCategory, 3)
	assert.Equal(t, CategorySummary{Count: 2, Amount: 2080}, summary.ByCategory["Travel"])
	assert.Equal(t, CategorySummary{Count: 1, Amount: 3450}, summary.ByCategory["Supplies"])
	assert.Equal(t, CategorySummary{Count: 1, Amount: 500}, summary.ByCategory["(uncategorized)"])

	assert.Equal(t, 2, summary.ByStatus[model.StatusClassified])
	assert.Equal(t, 1, summary.ByStatus[model.StatusReviewed])
	assert.Equal(t, 1, summary.ByStatus[model.StatusPending])

	assert.InDelta(t, 6030.0, summary.Total, 0.001)

	assert.Equal(t, "times parking", summary.RuleNames[1])
	assert.Equal(t, "amazon orders", summary.RuleNames[2])
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil, nil)
	assert.Empty(t, summary.ByCategory)
	assert.Empty(t, summary.ByStatus)
	assert.Zero(t, summary.Total)
}
