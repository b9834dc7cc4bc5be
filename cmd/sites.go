package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/council-jobs-feed/internal/sites"
)

// newSitesCmd creates the 'sites' subcommand. It validates the site table
// without touching the network.
func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Validate and list the site table",
		Long: `Parses the site table and checks every row the way a scrape run would:
list URL, URL pattern and every selector. Exits non-zero when any row is
invalid.`,
		Args: cobra.NoArgs,
		RunE: runSitesCommand,
	}
}

func runSitesCommand(cmd *cobra.Command, _ []string) error {
	s, err := resolveSession(cmd.Context())
	if err != nil {
		return err
	}

	siteList, err := sites.Load(s.cfg.Sites.Path)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLIST URL\tPAGES\tURL RULE\tSTATUS")
	invalid := 0
	for _, site := range siteList {
		status := "ok"
		rule := "-"
		if err := site.Validate(); err != nil {
			invalid++
			status = err.Error()
		} else if r, err := site.Rule(); err == nil {
			rule = r.Kind.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", site.Name, site.ListURL, site.PageLimit(), rule, status)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write site list: %w", err)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d sites invalid", invalid, len(siteList))
	}
	return nil
}
