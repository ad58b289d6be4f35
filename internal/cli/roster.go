package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"facedesk/internal/roster"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "List registered people",
	Long: `Lists the roster with presence and last-seen time. --search matches name,
department or email; --status is all, present or absent.`,
	Args: cobra.NoArgs,
	RunE: runRoster,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.Flags().String("search", "", "Case-insensitive search term")
	rosterCmd.Flags().String("status", "all", "Presence filter: all, present or absent")
}

func runRoster(cmd *cobra.Command, _ []string) error {
	status, err := roster.ParseStatus(mustGetString(cmd, "status"))
	if err != nil {
		return err
	}
	client, cfg := newClient()
	people, err := client.ListEmployees(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch employees: %w", err)
	}

	view := roster.Render(people, roster.Query{Search: mustGetString(cmd, "search"), Status: status}, time.Now(), cfg.RosterLegacyBadge)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDEPARTMENT\tEMAIL\tSTATUS\tLAST SEEN")
	for _, e := range view.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Department, e.Email, e.Badge, e.LastSeenText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d (present %d, absent %d)\n",
		view.Shown, view.Total, view.Counts.Present, view.Counts.Absent)
	return nil
}
