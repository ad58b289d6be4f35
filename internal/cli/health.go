package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the attendance backend is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	client, _ := newClient()
	if !client.Health(cmd.Context()) {
		return fmt.Errorf("backend offline")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "backend online")
	return nil
}
