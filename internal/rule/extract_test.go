package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harutaka/shiwake/internal/model"
)

func TestExtractField(t *testing.T) {
	doc := model.Document{
		IssuerName: "Times Parking KK",
		Subject:    "Monthly parking",
		Title:      "Receipt 2026-08",
		Items: []model.LineItem{
			{Name: "Parking fee", Description: "Lot 4", Amount: 1200},
			{Name: "Ignored second item", Amount: 300},
		},
	}

	tests := []struct {
		name    string
		field   model.ConditionField
		doc     model.Document
		ocrText string
		want    string
	}{
		{name: "issuer name", field: model.FieldIssuerName, doc: doc, want: "Times Parking KK"},
		{name: "subject", field: model.FieldSubject, doc: doc, want: "Monthly parking"},
		{name: "title", field: model.FieldTitle, doc: doc, want: "Receipt 2026-08"},
		{name: "item name uses first item", field: model.FieldItemName, doc: doc, want: "Parking fee"},
		{
			name:  "item name falls back to description",
			field: model.FieldItemName,
			doc: model.Document{
				Items: []model.LineItem{{Description: "Unnamed line", Amount: 500}},
			},
			want: "Unnamed line",
		},
		{name: "item name with no items", field: model.FieldItemName, doc: model.Document{}, want: ""},
		{name: "ocr text comes from parameter", field: model.FieldOCRText, doc: doc, ocrText: "raw scan text", want: "raw scan text"},
		{name: "ocr text absent", field: model.FieldOCRText, doc: doc, want: ""},
		{name: "unknown field extracts nothing", field: "amount", doc: doc, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractField(tt.doc, tt.field, tt.ocrText))
		})
	}
}
