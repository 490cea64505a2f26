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

const documentColumns = `id, type, issuer_name, subject, title, account_category,
	issue_date, total_amount, items, ocr_text, status, matched_rule_id, created_at, updated_at`

// SaveDocument inserts a document or replaces an existing one with the same
// ID. The engine never writes documents itself; this is the caller-side
// persistence the classify and import flows use.
func (s *SQLiteStorage) SaveDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if doc != nil {
		if doc.Type == "" {
			doc.Type = model.TypeReceipt
		}
		if doc.Status == "" {
			doc.Status = model.StatusPending
		}
	}
	if err := validateDocument(doc); err != nil {
		return err
	}

	items := doc.Items
	if items == nil {
		items = []model.LineItem{}
	}
	encodedItems, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode line items: %w", err)
	}

	query := `
		INSERT INTO documents (
			id, type, issuer_name, subject, title, account_category,
			issue_date, total_amount, items, ocr_text, status, matched_rule_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			issuer_name = excluded.issuer_name,
			subject = excluded.subject,
			title = excluded.title,
			account_category = excluded.account_category,
			issue_date = excluded.issue_date,
			total_amount = excluded.total_amount,
			items = excluded.items,
			ocr_text = excluded.ocr_text,
			status = excluded.status,
			matched_rule_id = excluded.matched_rule_id,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = s.db.ExecContext(ctx, query,
		doc.ID, string(doc.Type), doc.IssuerName, doc.Subject, doc.Title, doc.AccountCategory,
		nullableTime(doc.IssueDate), doc.TotalAmount, string(encodedItems), doc.OCRText,
		string(doc.Status), doc.MatchedRuleID,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	return nil
}

// GetDocumentByID retrieves a document by ID.
func (s *SQLiteStorage) GetDocumentByID(ctx context.Context, id string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// GetDocuments lists documents matching the filter, newest first.
func (s *SQLiteStorage) GetDocuments(ctx context.Context, filter service.DocumentFilter) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var where []string
	var args []any

	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*filter.Type))
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, filter.Limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.Document
	for rows.Next() {
		doc, scanErr := scanDocument(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan document: %w", scanErr)
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// GetDocumentCount returns the number of documents, optionally limited to a
// single status.
func (s *SQLiteStorage) GetDocumentCount(ctx context.Context, status *model.DocumentStatus) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM documents"
	var args []any
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, string(*status))
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}

	return count, nil
}

// scanDocument scans one document row, decoding the JSON items column.
func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	var docType, status, items string
	var issueDate sql.NullTime
	var matchedRuleID sql.NullInt64

	err := row.Scan(
		&doc.ID, &docType, &doc.IssuerName, &doc.Subject, &doc.Title, &doc.AccountCategory,
		&issueDate, &doc.TotalAmount, &items, &doc.OCRText, &status, &matchedRuleID,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Type = model.DocumentType(docType)
	doc.Status = model.DocumentStatus(status)
	if issueDate.Valid {
		doc.IssueDate = issueDate.Time
	}
	if matchedRuleID.Valid {
		id := matchedRuleID.Int64
		doc.MatchedRuleID = &id
	}

	if err := json.Unmarshal([]byte(items), &doc.Items); err != nil {
		return nil, fmt.Errorf("failed to decode line items for document %s: %w", doc.ID, err)
	}

	return &doc, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
