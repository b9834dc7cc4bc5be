package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/council-jobs-feed/internal/app"
)

// newScrapeCmd creates the 'scrape' subcommand, which performs one full run.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Scrape every site and update the feed",
		Long: `Loads the site table and the current feed, scrapes every site with
bounded parallelism, and writes the feed back with any new jobs at the top.
Per-site failures are reported but never fail the run.`,
		Args: cobra.NoArgs,
		RunE: runScrapeCommand,
	}
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	s, err := resolveSession(cmd.Context())
	if err != nil {
		return err
	}

	runner, err := newRunner(cmd.Context(), s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer runner.Close()

	summary, err := runner.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("scrape run: %w", err)
	}
	printSummary(cmd.OutOrStdout(), summary)
	s.logger.Debug("scrape command finished", zap.String("run_id", summary.RunID))
	return nil
}

func printSummary(w io.Writer, summary app.Summary) {
	for _, site := range summary.Sites {
		if site.Err != nil {
			fmt.Fprintf(w, "%s: failed: %v\n", site.Site, site.Err)
			continue
		}
		fmt.Fprintf(w, "%s: %d jobs, %d pages, %d fetch failures\n",
			site.Site, len(site.Jobs), site.PagesVisited, site.FetchFailures)
	}
	fmt.Fprintf(w, "%d new / %d total in feed (%d considered, %s)\n",
		summary.Added, summary.FeedEntries, summary.Considered, summary.Duration.Round(time.Millisecond))
}
