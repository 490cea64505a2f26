package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harutaka/shiwake/internal/cli"
	"github.com/harutaka/shiwake/internal/model"
	"github.com/harutaka/shiwake/internal/rule"
	"github.com/harutaka/shiwake/internal/service"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage learning rules",
		Long: `Manage the learning rules that classify incoming documents. Rules are
evaluated highest priority first; the first rule whose conditions hold
wins and contributes its outputs to the document.`,
	}

	// Subcommands
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesCreateCmd())
	cmd.AddCommand(rulesEditCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesTestCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learning rules",
		Long:  `List learning rules with filtering, search, and pagination.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			all, _ := cmd.Flags().GetBool("all")
			query, _ := cmd.Flags().GetString("search")
			sortBy, _ := cmd.Flags().GetString("sort")
			sortDesc, _ := cmd.Flags().GetBool("desc")
			limit, _ := cmd.Flags().GetInt("limit")
			page, _ := cmd.Flags().GetInt("page")

			filter := service.RuleSearchFilter{
				Query:    query,
				SortBy:   sortBy,
				SortDesc: sortDesc,
				Limit:    limit,
				Offset:   (page - 1) * limit,
			}
			if !all {
				enabled := true
				filter.Enabled = &enabled
			}

			result, err := db.SearchLearningRules(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to search learning rules: %w", err)
			}

			if len(result.Rules) == 0 {
				slog.Info("No learning rules found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tMODE\tCONDITIONS\tOUTPUTS\tPRIORITY\tENABLED\tMATCHES")
			_, _ = fmt.Fprintln(w, "──\t────\t────\t──────────\t───────\t────────\t───────\t───────")

			for _, r := range result.Rules {
				enabled := "yes"
				if !r.Enabled {
					enabled = "no"
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%d\t%s\t%d\n",
					r.ID,
					truncateString(r.Name, 24),
					r.MatchMode,
					len(r.Conditions),
					formatOutputs(r.Outputs),
					r.Priority,
					enabled,
					r.MatchCount)
			}

			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Println(cli.SubtleStyle.Render(
				fmt.Sprintf("page %d | showing %d of %d rules", page, len(result.Rules), result.Total)))
			if result.HasMore {
				fmt.Println(cli.SubtleStyle.Render(
					fmt.Sprintf("more rules available: rerun with --page %d", page+1)))
			}
			return nil
		},
	}

	cmd.Flags().BoolP("all", "a", false, "Include disabled rules")
	cmd.Flags().StringP("search", "s", "", "Search name and description")
	cmd.Flags().String("sort", "priority", "Sort field (name, priority, match_count, created_at, updated_at)")
	cmd.Flags().Bool("desc", true, "Sort descending")
	cmd.Flags().Int("limit", 20, "Rules per page")
	cmd.Flags().Int("page", 1, "Page number")
	return cmd
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show learning rule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			r, err := db.GetLearningRule(ctx, id)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("Rule %d: %s", r.ID, r.Name)))
			if r.Description != "" {
				fmt.Println(cli.SubtleStyle.Render(r.Description))
			}
			fmt.Printf("Mode:       %s\n", r.MatchMode)
			fmt.Printf("Priority:   %d\n", r.Priority)
			fmt.Printf("Enabled:    %t\n", r.Enabled)
			fmt.Printf("Matches:    %d\n", r.MatchCount)
			if r.LastMatchedAt != nil {
				fmt.Printf("Last match: %s\n", r.LastMatchedAt.Format("2006-01-02 15:04:05"))
			}

			if len(r.Conditions) == 0 {
				fmt.Println("Conditions: (none)")
			} else {
				fmt.Println("Conditions:")
				for _, cond := range r.Conditions {
					sensitivity := ""
					if cond.CaseSensitive {
						sensitivity = " (case-sensitive)"
					}
					fmt.Printf("  - %s %s %q%s\n", cond.Field, cond.Operator, cond.Value, sensitivity)
				}
			}

			fmt.Printf("Outputs:    %s\n", formatOutputs(r.Outputs))
			return nil
		},
	}
}

func rulesCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a learning rule",
		Long: `Create a learning rule. Conditions use the form field:operator:value,
optionally prefixed with cs: for a case-sensitive test.

Fields:    issuer_name, item_name, subject, title, ocr_text
Operators: contains, equals, starts_with, ends_with, regex

Examples:
  shiwake rules create --name "Times parking" \
    --condition "issuer_name:contains:times" \
    --category "Travel" --subject "Parking"
  shiwake rules create --name "AWS invoices" --mode any \
    --condition "issuer_name:contains:amazon web services" \
    --condition "cs:ocr_text:regex:AWS Invoice #\d+" \
    --category "Cloud Services"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")
			mode, _ := cmd.Flags().GetString("mode")
			priority, _ := cmd.Flags().GetInt("priority")
			disabled, _ := cmd.Flags().GetBool("disabled")
			conditionSpecs, _ := cmd.Flags().GetStringArray("condition")

			conditions, err := parseConditions(conditionSpecs)
			if err != nil {
				return err
			}

			outputs, err := outputsFromFlags(cmd)
			if err != nil {
				return err
			}

			r := model.LearningRule{
				Name:        name,
				Description: description,
				MatchMode:   model.MatchMode(mode),
				Conditions:  conditions,
				Outputs:     outputs,
				Priority:    priority,
				Enabled:     !disabled,
			}

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := db.CreateLearningRule(ctx, &r); err != nil {
				return fmt.Errorf("failed to create learning rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created rule %d: %s", r.ID, r.Name)))
			return nil
		},
	}

	cmd.Flags().String("name", "", "Rule name (required)")
	cmd.Flags().String("description", "", "Rule description")
	cmd.Flags().String("mode", "all", "Match mode: all or any")
	cmd.Flags().Int("priority", 0, "Priority (higher evaluated first)")
	cmd.Flags().Bool("disabled", false, "Create the rule disabled")
	cmd.Flags().StringArray("condition", nil, "Condition spec field:operator:value (repeatable)")
	cmd.Flags().String("subject", "", "Output: subject override")
	cmd.Flags().String("category", "", "Output: account category override")
	cmd.Flags().String("title", "", "Output: title override")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func rulesEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a learning rule",
		Long: `Edit a learning rule. Only the flags you pass are changed; passing
--condition replaces the whole condition list, and passing any output flag
replaces the whole output set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}

			var update service.RuleUpdate

			if cmd.Flags().Changed("name") {
				name, _ := cmd.Flags().GetString("name")
				update.Name = &name
			}
			if cmd.Flags().Changed("description") {
				description, _ := cmd.Flags().GetString("description")
				update.Description = &description
			}
			if cmd.Flags().Changed("mode") {
				mode, _ := cmd.Flags().GetString("mode")
				matchMode := model.MatchMode(mode)
				update.MatchMode = &matchMode
			}
			if cmd.Flags().Changed("priority") {
				priority, _ := cmd.Flags().GetInt("priority")
				update.Priority = &priority
			}
			if cmd.Flags().Changed("enabled") {
				enabled, _ := cmd.Flags().GetBool("enabled")
				update.Enabled = &enabled
			}
			if cmd.Flags().Changed("condition") {
				specs, _ := cmd.Flags().GetStringArray("condition")
				conditions, parseErr := parseConditions(specs)
				if parseErr != nil {
					return parseErr
				}
				update.Conditions = &conditions
			}
			if cmd.Flags().Changed("subject") || cmd.Flags().Changed("category") || cmd.Flags().Changed("title") {
				outputs, outErr := outputsFromFlags(cmd)
				if outErr != nil {
					return outErr
				}
				update.Outputs = &outputs
			}

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := db.UpdateLearningRule(ctx, id, update); err != nil {
				return fmt.Errorf("failed to update learning rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated rule %d", id)))
			return nil
		},
	}

	cmd.Flags().String("name", "", "Rule name")
	cmd.Flags().String("description", "", "Rule description")
	cmd.Flags().String("mode", "all", "Match mode: all or any")
	cmd.Flags().Int("priority", 0, "Priority (higher evaluated first)")
	cmd.Flags().Bool("enabled", true, "Enable or disable the rule")
	cmd.Flags().StringArray("condition", nil, "Condition spec field:operator:value (repeatable)")
	cmd.Flags().String("subject", "", "Output: subject override")
	cmd.Flags().String("category", "", "Output: account category override")
	cmd.Flags().String("title", "", "Output: title override")
	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a learning rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := db.DeleteLearningRule(ctx, id); err != nil {
				return fmt.Errorf("failed to delete learning rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Dry-run a document against the rule set",
		Long: `Evaluate a document against the enabled rules without recording match
statistics or modifying anything. The document comes from a JSON file
(--file) or from a stored document (--id).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			doc, err := loadDocumentArg(cmd, db)
			if err != nil {
				return err
			}

			matcher := rule.NewMatcher(db, rule.NopRecorder{})
			result, err := matcher.FindMatchingRule(ctx, *doc, doc.OCRText)
			if err != nil {
				return err
			}

			if !result.Matched {
				fmt.Println(cli.FormatWarning("No rule matched"))
				return nil
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Matched rule %d: %s (priority %d)",
				result.Rule.ID, result.Rule.Name, result.Rule.Priority)))
			fmt.Printf("Outputs: %s\n", formatOutputs(*result.Outputs))

			applied := rule.ApplyOutputs(*doc, *result.Outputs)
			fmt.Printf("Result:  subject=%q category=%q title=%q\n",
				applied.Subject, applied.AccountCategory, applied.Title)
			return nil
		},
	}

	addDocumentArgFlags(cmd)
	return cmd
}

// parseConditions parses condition specs of the form field:operator:value,
// optionally prefixed with "cs:" for case-sensitive matching. The value may
// itself contain colons (regex patterns often do).
func parseConditions(specs []string) ([]model.MatchCondition, error) {
	conditions := make([]model.MatchCondition, 0, len(specs))
	for _, spec := range specs {
		caseSensitive := false
		if strings.HasPrefix(spec, "cs:") {
			caseSensitive = true
			spec = strings.TrimPrefix(spec, "cs:")
		}

		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid condition %q: expected field:operator:value", spec)
		}

		cond := model.MatchCondition{
			Field:         model.ConditionField(parts[0]),
			Operator:      model.ConditionOperator(parts[1]),
			Value:         parts[2],
			CaseSensitive: caseSensitive,
		}
		if !model.IsValidField(cond.Field) {
			return nil, fmt.Errorf("invalid condition %q: unknown field %q", spec, parts[0])
		}
		if !model.IsValidOperator(cond.Operator) {
			return nil, fmt.Errorf("invalid condition %q: unknown operator %q", spec, parts[1])
		}

		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// outputsFromFlags builds the rule outputs from the shared output flags.
func outputsFromFlags(cmd *cobra.Command) (model.RuleOutput, error) {
	var outputs model.RuleOutput
	if cmd.Flags().Changed("subject") {
		subject, _ := cmd.Flags().GetString("subject")
		outputs.Subject = &subject
	}
	if cmd.Flags().Changed("category") {
		category, _ := cmd.Flags().GetString("category")
		outputs.AccountCategory = &category
	}
	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		outputs.Title = &title
	}
	return outputs, nil
}

// formatOutputs renders outputs compactly for tables.
func formatOutputs(outputs model.RuleOutput) string {
	var parts []string
	if outputs.Subject != nil {
		parts = append(parts, "subject="+*outputs.Subject)
	}
	if outputs.AccountCategory != nil {
		parts = append(parts, "category="+*outputs.AccountCategory)
	}
	if outputs.Title != nil {
		parts = append(parts, "title="+*outputs.Title)
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, ", ")
}

// addDocumentArgFlags registers the flags commands use to identify a
// document to operate on.
func addDocumentArgFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Path to a document JSON file")
	cmd.Flags().String("id", "", "ID of a stored document")
	cmd.Flags().String("ocr-file", "", "Path to a raw OCR text file to attach")
}

// loadDocumentArg resolves the document a command should operate on, from
// either a JSON file or the document store, optionally attaching OCR text
// from a separate file.
func loadDocumentArg(cmd *cobra.Command, db service.DocumentStore) (*model.Document, error) {
	file, _ := cmd.Flags().GetString("file")
	id, _ := cmd.Flags().GetString("id")
	ocrFile, _ := cmd.Flags().GetString("ocr-file")

	var doc *model.Document
	switch {
	case file != "" && id != "":
		return nil, fmt.Errorf("pass either --file or --id, not both")
	case file != "":
		data, err := os.ReadFile(file) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("failed to read document file: %w", err)
		}
		doc = &model.Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("failed to parse document file: %w", err)
		}
	case id != "":
		var err error
		doc, err = db.GetDocumentByID(cmd.Context(), id)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("pass --file or --id to identify the document")
	}

	if ocrFile != "" {
		data, err := os.ReadFile(ocrFile) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("failed to read OCR text file: %w", err)
		}
		doc.OCRText = string(data)
	}

	return doc, nil
}
