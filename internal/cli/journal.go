package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"facedesk/internal/config"
	"facedesk/internal/journal"
	"facedesk/internal/store"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List journaled capture attempts from Postgres",
	Long: `Reads the capture attempt journal written by the kiosk or worker.
Requires DATABASE_URL. --migrate applies pending schema migrations first.`,
	Args: cobra.NoArgs,
	RunE: runJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().String("outcome", "", "Only attempts with this outcome")
	journalCmd.Flags().String("identity", "", "Only attempts for this identity ID")
	journalCmd.Flags().Int("limit", 50, "Maximum number of attempts")
	journalCmd.Flags().Bool("migrate", false, "Apply pending migrations before listing")
}

func runJournal(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	db, err := store.NewDB(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	repo := journal.NewPostgresRepository(db.Client)
	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		applied, err := repo.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
		}
	}

	entries, err := repo.List(cmd.Context(), journal.Filter{
		Outcome:    mustGetString(cmd, "outcome"),
		IdentityID: mustGetString(cmd, "identity"),
		Limit:      mustGetInt(cmd, "limit"),
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tOUTCOME\tIDENTITY\tKIND\tCONFIDENCE\tFRAME")
	for _, e := range entries {
		who := e.IdentityName
		if who == "" {
			who = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f%%\t%s\n",
			e.At.Local().Format(time.DateTime), e.Outcome, who, e.Kind, e.Confidence*100, e.FrameURL)
	}
	return tw.Flush()
}
