package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"facedesk/internal/model"
	"facedesk/internal/records"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List attendance records",
	Args:  cobra.NoArgs,
	RunE:  runRecords,
}

var recordsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the filtered attendance records as CSV",
	Long: `Writes the records matching the filters to a CSV file. Without --out the
file is named attendance-records-YYYY-MM-DD.csv in the current directory.`,
	Args: cobra.NoArgs,
	RunE: runRecordsExport,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsExportCmd)

	recordsCmd.PersistentFlags().String("search", "", "Filter by name")
	recordsCmd.PersistentFlags().String("type", "all", "Event type: all, check-in or check-out")
	recordsCmd.PersistentFlags().String("range", "all", "Date range: all, today, week or month")
	recordsExportCmd.Flags().String("out", "", "Output file path")
}

func recordsQueryFromFlags(cmd *cobra.Command) (records.Query, error) {
	r, err := records.ParseRange(mustGetString(cmd, "range"))
	if err != nil {
		return records.Query{}, err
	}
	q := records.Query{Search: mustGetString(cmd, "search"), Range: r}
	if kind := mustGetString(cmd, "type"); kind != "" && kind != "all" {
		k, err := model.ParseEventKind(kind)
		if err != nil {
			return records.Query{}, err
		}
		q.Kind = k
	}
	return q, nil
}

func fetchRecords(cmd *cobra.Command) ([]model.AttendanceEvent, time.Time, error) {
	q, err := recordsQueryFromFlags(cmd)
	if err != nil {
		return nil, time.Time{}, err
	}
	client, _ := newClient()
	recs, err := client.ListAttendance(cmd.Context())
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to fetch attendance records: %w", err)
	}
	now := time.Now()
	return records.Filter(recs, q, now), now, nil
}

func runRecords(cmd *cobra.Command, _ []string) error {
	recs, _, err := fetchRecords(cmd)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tDATE\tTIME\tCONFIDENCE")
	for _, r := range recs {
		row := records.Row(r, time.Local)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row[0], row[1], row[2], row[3], row[4])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d records\n", len(recs))
	return nil
}

func runRecordsExport(cmd *cobra.Command, _ []string) error {
	recs, now, err := fetchRecords(cmd)
	if err != nil {
		return err
	}
	path := mustGetString(cmd, "out")
	if path == "" {
		path = records.ExportFilename(now)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := records.WriteCSV(f, recs, time.Local); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(recs), path)
	return nil
}
