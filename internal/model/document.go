package model

import "time"

// DocumentType identifies the kind of accounting document.
type DocumentType string

// Document type constants.
const (
	TypeReceipt DocumentType = "receipt"
	TypeInvoice DocumentType = "invoice"
	TypeQuote   DocumentType = "quote"
)

// DocumentStatus indicates where a document sits in the classification flow.
type DocumentStatus string

// Document status constants.
const (
	// StatusPending means the document has been ingested but no rule has
	// been applied to it yet.
	StatusPending DocumentStatus = "pending"
	// StatusClassified means a learning rule matched and its outputs were
	// applied.
	StatusClassified DocumentStatus = "classified"
	// StatusReviewed means an operator confirmed or corrected the
	// classification by hand.
	StatusReviewed DocumentStatus = "reviewed"
)

// LineItem is a single line on a receipt or invoice.
type LineItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

// Document represents a receipt, invoice, or quote, typically partially
// populated from OCR. Only the fields referenced by configured rule
// conditions need to be present for matching.
type Document struct {
	IssueDate       time.Time      `json:"issue_date"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	MatchedRuleID   *int64         `json:"matched_rule_id,omitempty"`
	ID              string         `json:"id"`
	Type            DocumentType   `json:"type"`
	IssuerName      string         `json:"issuer_name"`
	Subject         string         `json:"subject"`
	Title           string         `json:"title"`
	AccountCategory string         `json:"account_category"`
	OCRText         string         `json:"ocr_text,omitempty"`
	Status          DocumentStatus `json:"status"`
	Items           []LineItem     `json:"items"`
	TotalAmount     float64        `json:"total_amount"`
}
