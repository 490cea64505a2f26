package main

import (
	"github.com/spf13/cobra"

	"github.com/harutaka/shiwake/internal/tui"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review pending documents interactively",
		Long: `Step through documents the rules could not classify, entering a subject
and account category for each. With --learn, confirming a document also
creates a learning rule from its issuer so similar documents classify
automatically next time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			learn, _ := cmd.Flags().GetBool("learn")

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return tui.RunReview(ctx, tui.ReviewConfig{
				Storage:     db,
				CreateRules: learn,
			})
		},
	}

	cmd.Flags().Bool("learn", true, "Create learning rules from confirmed documents")
	return cmd
}
