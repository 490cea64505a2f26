package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/harutaka/shiwake/internal/cli"
	"github.com/harutaka/shiwake/internal/config"
	"github.com/harutaka/shiwake/internal/model"
	"github.com/harutaka/shiwake/internal/service"
	"github.com/harutaka/shiwake/internal/sheets"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export classification reports",
	}
	cmd.AddCommand(exportSheetsCmd())
	return cmd
}

func exportSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Export documents to Google Sheets",
		Long: `Export documents to a Google Sheets classification report, grouped by
account category with per-rule attribution. Credentials come from the
config file (sheets.*) or GOOGLE_SHEETS_* environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			statusFlag, _ := cmd.Flags().GetString("status")

			sheetsConfig, err := config.LoadSheetsConfig()
			if err != nil {
				return err
			}

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			var filter service.DocumentFilter
			if statusFlag != "" {
				status := model.DocumentStatus(statusFlag)
				filter.Status = &status
			}

			docs, err := db.GetDocuments(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to load documents: %w", err)
			}
			if len(docs) == 0 {
				slog.Info("No documents to export")
				return nil
			}

			// All rules, enabled or not, so retired rules still label the
			// documents they classified.
			rules, err := db.SearchLearningRules(ctx, service.RuleSearchFilter{Limit: 10000})
			if err != nil {
				return fmt.Errorf("failed to load learning rules: %w", err)
			}

			writer, err := sheets.NewWriter(ctx, *sheetsConfig, slog.Default())
			if err != nil {
				return err
			}

			summary := sheets.Summarize(docs, rules.Rules)
			if err := writer.Write(ctx, docs, summary); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d documents to Google Sheets", len(docs))))
			return nil
		},
	}

	cmd.Flags().String("status", "", "Only export documents with this status (pending, classified, reviewed)")
	return cmd
}
