package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harutaka/shiwake/internal/cli"
	"github.com/harutaka/shiwake/internal/common"
	"github.com/harutaka/shiwake/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import documents from external sources",
	}
	cmd.AddCommand(importOFXCmd())
	return cmd
}

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ofx <file.ofx> [file.ofx...]",
		Short: "Import bank transactions as pending documents",
		Long: `Import OFX/QFX bank exports. Each transaction becomes a pending receipt
document ready for classification. Re-importing the same file is safe:
documents are keyed by the bank's transaction ID, so duplicates update
in place rather than multiply.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			parser := ofx.NewParser()
			imported := 0

			for _, path := range args {
				file, err := os.Open(path) // #nosec G304
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}

				docs, err := parser.ParseFile(file)
				_ = file.Close()
				if err != nil {
					return fmt.Errorf("failed to parse %s: %w", path, err)
				}

				for i := range docs {
					if err := db.SaveDocument(ctx, &docs[i]); err != nil {
						return fmt.Errorf("failed to save document %s: %w", docs[i].ID, err)
					}
				}

				common.LogInfo("Imported OFX file", common.Fields{
					"path":      path,
					"documents": len(docs),
				})
				imported += len(docs)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d documents", imported)))
			fmt.Println(cli.SubtleStyle.Render("run 'shiwake classify --all' to classify them"))
			return nil
		},
	}
	return cmd
}
