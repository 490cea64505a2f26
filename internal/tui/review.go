// Package tui provides the interactive review flow for documents no rule
// matched.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harutaka/shiwake/internal/cli"
	"github.com/harutaka/shiwake/internal/model"
	"github.com/harutaka/shiwake/internal/service"
)

// ReviewConfig configures the review session.
type ReviewConfig struct {
	Storage service.Storage
	// CreateRules controls whether confirming a document may also create a
	// learning rule from its issuer.
	CreateRules bool
}

// RunReview steps the operator through every pending document, collecting a
// subject and account category for each and optionally turning the
// correction into a learning rule so the next similar document classifies
// itself.
func RunReview(ctx context.Context, cfg ReviewConfig) error {
	status := model.StatusPending
	docs, err := cfg.Storage.GetDocuments(ctx, service.DocumentFilter{Status: &status})
	if err != nil {
		return fmt.Errorf("failed to load pending documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println(cli.FormatInfo("No pending documents to review"))
		return nil
	}

	m := newReviewModel(ctx, cfg, docs)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("review session failed: %w", err)
	}

	if fm, ok := final.(reviewModel); ok {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Reviewed %d of %d documents (%d rules created)",
			fm.reviewed, len(docs), fm.rulesCreated)))
		if fm.err != nil {
			return fm.err
		}
	}

	return nil
}

const (
	focusSubject = iota
	focusCategory
)

// documentSavedMsg reports the outcome of persisting one review decision.
type documentSavedMsg struct {
	err         error
	ruleCreated bool
}

type reviewModel struct {
	ctx          context.Context
	cfg          ReviewConfig
	err          error
	docs         []model.Document
	subject      textinput.Model
	category     textinput.Model
	index        int
	focus        int
	reviewed     int
	rulesCreated int
	makeRule     bool
	saving       bool
	done         bool
}

func newReviewModel(ctx context.Context, cfg ReviewConfig, docs []model.Document) reviewModel {
	subject := textinput.New()
	subject.Placeholder = "Subject"
	subject.CharLimit = 120
	subject.Focus()

	category := textinput.New()
	category.Placeholder = "Account category"
	category.CharLimit = 120

	m := reviewModel{
		ctx:      ctx,
		cfg:      cfg,
		docs:     docs,
		subject:  subject,
		category: category,
		makeRule: cfg.CreateRules,
	}
	m.loadCurrent()
	return m
}

// loadCurrent seeds the inputs from the document under review.
func (m *reviewModel) loadCurrent() {
	doc := m.docs[m.index]
	m.subject.SetValue(doc.Subject)
	m.category.SetValue(doc.AccountCategory)
	m.subject.Focus()
	m.category.Blur()
	m.focus = focusSubject
}

func (m reviewModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.saving {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "esc":
			m.done = true
			return m, tea.Quit

		case "tab", "shift+tab":
			if m.focus == focusSubject {
				m.focus = focusCategory
				m.subject.Blur()
				m.category.Focus()
			} else {
				m.focus = focusSubject
				m.category.Blur()
				m.subject.Focus()
			}
			return m, nil

		case "ctrl+r":
			if m.cfg.CreateRules {
				m.makeRule = !m.makeRule
			}
			return m, nil

		case "ctrl+s":
			// Skip without saving
			return m.advance()

		case "enter":
			m.saving = true
			return m, m.saveCurrent()
		}

	case documentSavedMsg:
		m.saving = false
		if msg.err != nil {
			m.err = msg.err
			m.done = true
			return m, tea.Quit
		}
		m.reviewed++
		if msg.ruleCreated {
			m.rulesCreated++
		}
		return m.advance()
	}

	var cmd tea.Cmd
	if m.focus == focusSubject {
		m.subject, cmd = m.subject.Update(msg)
	} else {
		m.category, cmd = m.category.Update(msg)
	}
	return m, cmd
}

// advance moves to the next document or quits when none remain.
func (m reviewModel) advance() (tea.Model, tea.Cmd) {
	if m.index+1 >= len(m.docs) {
		m.done = true
		return m, tea.Quit
	}
	m.index++
	m.loadCurrent()
	return m, nil
}

// saveCurrent persists the review decision as a command.
func (m reviewModel) saveCurrent() tea.Cmd {
	doc := m.docs[m.index]
	doc.Subject = strings.TrimSpace(m.subject.Value())
	doc.AccountCategory = strings.TrimSpace(m.category.Value())
	doc.Status = model.StatusReviewed
	makeRule := m.makeRule && doc.IssuerName != "" && doc.AccountCategory != ""

	storage := m.cfg.Storage
	ctx := m.ctx

	return func() tea.Msg {
		if err := storage.SaveDocument(ctx, &doc); err != nil {
			return documentSavedMsg{err: fmt.Errorf("failed to save document %s: %w", doc.ID, err)}
		}

		if !makeRule {
			return documentSavedMsg{}
		}

		rule := ruleFromReview(doc)
		if err := storage.CreateLearningRule(ctx, &rule); err != nil {
			return documentSavedMsg{err: fmt.Errorf("failed to create rule for %s: %w", doc.IssuerName, err)}
		}
		return documentSavedMsg{ruleCreated: true}
	}
}

// ruleFromReview builds a learning rule that classifies future documents
// from the same issuer the way the operator just did.
func ruleFromReview(doc model.Document) model.LearningRule {
	outputs := model.RuleOutput{}
	if doc.Subject != "" {
		s := doc.Subject
		outputs.Subject = &s
	}
	if doc.AccountCategory != "" {
		c := doc.AccountCategory
		outputs.AccountCategory = &c
	}

	return model.LearningRule{
		Name:      doc.IssuerName,
		MatchMode: model.MatchAll,
		Conditions: []model.MatchCondition{
			{
				Field:    model.FieldIssuerName,
				Operator: model.OperatorContains,
				Value:    doc.IssuerName,
			},
		},
		Outputs: outputs,
		Enabled: true,
	}
}

func (m reviewModel) View() string {
	if m.done {
		return ""
	}

	doc := m.docs[m.index]

	header := cli.TitleStyle.Render(fmt.Sprintf("Review document %d/%d", m.index+1, len(m.docs)))

	var details strings.Builder
	details.WriteString(fmt.Sprintf("Issuer:  %s\n", orDash(doc.IssuerName)))
	details.WriteString(fmt.Sprintf("Title:   %s\n", orDash(doc.Title)))
	details.WriteString(fmt.Sprintf("Date:    %s\n", issueDateLabel(doc)))
	details.WriteString(fmt.Sprintf("Amount:  ¥%.0f", doc.TotalAmount))
	if len(doc.Items) > 0 {
		details.WriteString(fmt.Sprintf("\nItem:    %s", orDash(doc.Items[0].Name)))
	}

	box := cli.RenderBox(string(doc.Type), details.String())

	inputs := lipgloss.JoinVertical(lipgloss.Left,
		"Subject:          "+m.subject.View(),
		"Account category: "+m.category.View(),
	)

	ruleLine := ""
	if m.cfg.CreateRules {
		mark := "[ ]"
		if m.makeRule {
			mark = "[x]"
		}
		ruleLine = cli.SubtleStyle.Render(fmt.Sprintf("%s create rule from issuer (ctrl+r)", mark))
	}

	help := cli.SubtleStyle.Render("[tab] switch field | [enter] save | [ctrl+s] skip | [esc] quit")

	sections := []string{header, box, "", inputs}
	if ruleLine != "" {
		sections = append(sections, ruleLine)
	}
	sections = append(sections, "", help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func issueDateLabel(doc model.Document) string {
	if doc.IssueDate.IsZero() {
		return "-"
	}
	return doc.IssueDate.Format("2006-01-02")
}
