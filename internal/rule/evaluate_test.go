package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harutaka/shiwake/internal/model"
)

func TestEvaluator_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		fieldValue string
		cond       model.MatchCondition
		want       bool
	}{
		{
			name:       "contains is case insensitive by default",
			cond:       model.MatchCondition{Operator: model.OperatorContains, Value: "amazon"},
			fieldValue: "AMAZON.CO.JP",
			want:       true,
		},
		{
			name:       "contains respects case sensitivity",
			cond:       model.MatchCondition{Operator: model.OperatorContains, Value: "amazon", CaseSensitive: true},
			fieldValue: "AMAZON.CO.JP",
			want:       false,
		},
		{
			name:       "contains no match",
			cond:       model.MatchCondition{Operator: model.OperatorContains, Value: "rakuten"},
			fieldValue: "AMAZON.CO.JP",
			want:       false,
		},
		{
			name:       "equals full string only",
			cond:       model.MatchCondition{Operator: model.OperatorEquals, Value: "times parking"},
			fieldValue: "Times Parking",
			want:       true,
		},
		{
			name:       "equals rejects partial match",
			cond:       model.MatchCondition{Operator: model.OperatorEquals, Value: "times"},
			fieldValue: "Times Parking",
			want:       false,
		},
		{
			name:       "starts_with",
			cond:       model.MatchCondition{Operator: model.OperatorStartsWith, Value: "jr"},
			fieldValue: "JR East Railway",
			want:       true,
		},
		{
			name:       "starts_with mid-string is no match",
			cond:       model.MatchCondition{Operator: model.OperatorStartsWith, Value: "east"},
			fieldValue: "JR East Railway",
			want:       false,
		},
		{
			name:       "ends_with",
			cond:       model.MatchCondition{Operator: model.OperatorEndsWith, Value: "railway"},
			fieldValue: "JR East Railway",
			want:       true,
		},
		{
			name:       "regex case insensitive by default",
			cond:       model.MatchCondition{Operator: model.OperatorRegex, Value: `invoice #\d+`},
			fieldValue: "INVOICE #42 issued",
			want:       true,
		},
		{
			name:       "regex case sensitive",
			cond:       model.MatchCondition{Operator: model.OperatorRegex, Value: `Invoice #\d+`, CaseSensitive: true},
			fieldValue: "INVOICE #42 issued",
			want:       false,
		},
		{
			name:       "invalid regex fails closed",
			cond:       model.MatchCondition{Operator: model.OperatorRegex, Value: "(unclosed"},
			fieldValue: "anything at all",
			want:       false,
		},
		{
			name:       "empty field value never matches",
			cond:       model.MatchCondition{Operator: model.OperatorRegex, Value: ".*"},
			fieldValue: "",
			want:       false,
		},
		{
			name:       "empty field value never matches contains",
			cond:       model.MatchCondition{Operator: model.OperatorContains, Value: ""},
			fieldValue: "",
			want:       false,
		},
		{
			name:       "unknown operator fails closed",
			cond:       model.MatchCondition{Operator: "fuzzy", Value: "amazon"},
			fieldValue: "amazon",
			want:       false,
		},
	}

	e := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.cond, tt.fieldValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_InvalidRegexStaysInvalid(t *testing.T) {
	e := NewEvaluator()
	cond := model.MatchCondition{Operator: model.OperatorRegex, Value: "(unclosed"}

	// Repeated evaluations hit the negative cache rather than recompiling.
	for i := 0; i < 3; i++ {
		assert.False(t, e.Evaluate(cond, "text"))
	}
}

func TestEvaluator_RegexCacheDistinguishesSensitivity(t *testing.T) {
	e := NewEvaluator()

	insensitive := model.MatchCondition{Operator: model.OperatorRegex, Value: "^amazon"}
	sensitive := model.MatchCondition{Operator: model.OperatorRegex, Value: "^amazon", CaseSensitive: true}

	assert.True(t, e.Evaluate(insensitive, "AMAZON web services"))
	assert.False(t, e.Evaluate(sensitive, "AMAZON web services"))
	assert.True(t, e.Evaluate(sensitive, "amazon web services"))
}
