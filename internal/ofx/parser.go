// Package ofx imports bank statement entries as documents for rule
// classification.
package ofx

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/harutaka/shiwake/internal/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, func(match string) string {
		return strings.ToUpper(match)
	})

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file and returns each statement entry as a
// pending receipt document: issuer from the payee, title from the raw
// description, a single line item carrying the memo.
func (p *Parser) ParseFile(reader io.Reader) ([]model.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	processedContent := p.preprocessOFX(string(content))

	resp, err := ofxgo.ParseResponse(strings.NewReader(processedContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var docs []model.Document
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			docs = append(docs, p.convertStatement(stmt.BankTranList)...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			docs = append(docs, p.convertStatement(stmt.BankTranList)...)
		}
	}

	slog.Info("Parsed OFX file",
		"documents", len(docs),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return docs, nil
}

// convertStatement converts one statement's transaction list to documents.
func (p *Parser) convertStatement(list *ofxgo.TransactionList) []model.Document {
	if list == nil {
		return nil
	}

	var docs []model.Document
	for _, ofxTx := range list.Transactions {
		docs = append(docs, p.convertTransaction(ofxTx))
	}
	return docs
}

// convertTransaction converts an OFX transaction to a pending document.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction) model.Document {
	issuer := p.extractIssuerName(ofxTx)

	// OFX uses negative amounts for debits
	amount, _ := ofxTx.TrnAmt.Float64()
	if amount < 0 {
		amount = -amount
	}

	id := string(ofxTx.FiTID)
	if id == "" {
		id = uuid.NewString()
	}

	doc := model.Document{
		ID:          id,
		Type:        model.TypeReceipt,
		IssuerName:  issuer,
		Title:       strings.TrimSpace(string(ofxTx.Name)),
		IssueDate:   ofxTx.DtPosted.Time,
		TotalAmount: amount,
		Status:      model.StatusPending,
	}

	if ofxTx.Memo != "" {
		doc.Items = []model.LineItem{{
			Name:   strings.TrimSpace(string(ofxTx.Memo)),
			Amount: amount,
		}}
	}

	return doc
}

// extractIssuerName tries to get a clean issuer name from OFX data.
func (p *Parser) extractIssuerName(tx ofxgo.Transaction) string {
	// Prefer PAYEE if available (cleaner name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)

	// Use MEMO field if NAME is generic
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}

	name = strings.TrimSpace(name)

	// Remove common prefixes
	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Clean up date patterns like "MM/DD" at the beginning
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
