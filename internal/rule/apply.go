package rule

import (
	"github.com/harutaka/shiwake/internal/model"
)

// ApplyOutputs merges a matched rule's declared outputs into the document
// and returns the result. The merge is pure: only present output fields
// overwrite, absent fields leave the document untouched, and no document
// field is ever cleared. Applying the same outputs twice is idempotent.
func ApplyOutputs(doc model.Document, outputs model.RuleOutput) model.Document {
	if outputs.Subject != nil {
		doc.Subject = *outputs.Subject
	}
	if outputs.AccountCategory != nil {
		doc.AccountCategory = *outputs.AccountCategory
	}
	if outputs.Title != nil {
		doc.Title = *outputs.Title
	}
	return doc
}
