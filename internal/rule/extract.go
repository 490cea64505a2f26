package rule

import (
	"github.com/harutaka/shiwake/internal/model"
)

// ExtractField maps a logical condition field to the string value it tests
// on the given document. It returns the empty string when the field has no
// value, which downstream evaluation treats as "condition cannot match".
//
// ocrText is the caller-supplied raw OCR text and is independent of the
// document object itself.
func ExtractField(doc model.Document, field model.ConditionField, ocrText string) string {
	switch field {
	case model.FieldIssuerName:
		return doc.IssuerName
	case model.FieldItemName:
		if len(doc.Items) == 0 {
			return ""
		}
		// First line item's name, falling back to its description.
		if doc.Items[0].Name != "" {
			return doc.Items[0].Name
		}
		return doc.Items[0].Description
	case model.FieldSubject:
		return doc.Subject
	case model.FieldTitle:
		return doc.Title
	case model.FieldOCRText:
		return ocrText
	}

	// Unreachable given the closed field enum; an unknown field simply
	// extracts nothing and the condition fails.
	return ""
}
