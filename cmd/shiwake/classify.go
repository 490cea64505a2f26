package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/harutaka/shiwake/internal/classify"
	"github.com/harutaka/shiwake/internal/cli"
	"github.com/harutaka/shiwake/internal/rule"
	"github.com/harutaka/shiwake/internal/storage"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify documents against the learning rules",
		Long: `Classify documents against the learning rules. With --all, every pending
document in the store is run through the rule set and persisted with its
matched outputs. With --file or --id, a single document is classified.

A dry run (--dry-run) matches without saving anything and without
recording match statistics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			all, _ := cmd.Flags().GetBool("all")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			db, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			classifier, drain := newClassifier(db, dryRun)
			defer drain()

			if all {
				return classifyAll(cmd, classifier, dryRun)
			}
			return classifyOne(cmd, db, classifier, dryRun)
		},
	}

	cmd.Flags().Bool("all", false, "Classify every pending document")
	cmd.Flags().Bool("dry-run", false, "Match without saving or recording statistics")
	addDocumentArgFlags(cmd)
	return cmd
}

// newClassifier builds a classifier whose telemetry path depends on the run
// mode. Live runs record match counts asynchronously; dry runs record
// nothing. The returned drain func must be called before exit so queued
// counter updates reach the store.
func newClassifier(db *storage.SQLiteStorage, dryRun bool) (*classify.Classifier, func()) {
	if dryRun {
		return classify.NewClassifier(db, rule.NewMatcher(db, rule.NopRecorder{})), func() {}
	}
	recorder := rule.NewAsyncRecorder(rule.NewStoreRecorder(db), 256)
	return classify.NewClassifier(db, rule.NewMatcher(db, recorder)), recorder.Close
}

func classifyAll(cmd *cobra.Command, classifier *classify.Classifier, dryRun bool) error {
	ctx := cmd.Context()

	if dryRun {
		slog.Info("Dry run: documents will not be saved")
	}

	var bar *progressbar.ProgressBar
	stats, err := classifier.ClassifyPending(ctx, func(done, total int) {
		if bar == nil {
			bar = newClassifyProgressBar(total)
		}
		_ = bar.Set(done)
	})
	if err != nil {
		return err
	}

	if stats.Total == 0 {
		slog.Info("No pending documents to classify")
		return nil
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Classified %d documents in %s: %d matched, %d left pending",
		stats.Total, stats.Duration.Round(time.Millisecond), stats.Matched, stats.Unmatched)))
	return nil
}

func classifyOne(cmd *cobra.Command, db *storage.SQLiteStorage, classifier *classify.Classifier, dryRun bool) error {
	ctx := cmd.Context()

	doc, err := loadDocumentArg(cmd, db)
	if err != nil {
		return err
	}

	result, classified, err := classifier.ClassifyDocument(ctx, *doc, !dryRun)
	if err != nil {
		return err
	}

	if !result.Matched {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("No rule matched document %s", doc.ID)))
		return nil
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Document %s matched rule %d: %s",
		classified.ID, result.Rule.ID, result.Rule.Name)))
	fmt.Printf("Subject:  %s\n", classified.Subject)
	fmt.Printf("Category: %s\n", classified.AccountCategory)
	fmt.Printf("Title:    %s\n", classified.Title)
	if dryRun {
		fmt.Println(cli.SubtleStyle.Render("dry run: nothing was saved"))
	}
	return nil
}

func newClassifyProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Classifying documents...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(os.Stderr); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
