package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"facedesk/internal/registration"
)

var registerCmd = &cobra.Command{
	Use:   "register <photo1> <photo2> <photo3>",
	Short: "Enroll a new person with three reference photos",
	Args:  cobra.ExactArgs(registration.RequiredImages),
	RunE:  runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().String("name", "", "Full name")
	registerCmd.Flags().String("department", "", "Department")
	registerCmd.Flags().String("email", "", "Email address")
}

func runRegister(cmd *cobra.Command, args []string) error {
	draft := registration.Draft{Fields: registration.Fields{
		Name:       mustGetString(cmd, "name"),
		Department: mustGetString(cmd, "department"),
		Email:      mustGetString(cmd, "email"),
	}}
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := draft.AddImage(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := draft.Check(); err != nil {
		return err
	}

	client, _ := newClient()
	res, err := client.RegisterEmployee(cmd.Context(), draft.Payload())
	if err != nil {
		return err
	}
	name := draft.Fields.Name
	if res.Employee != nil {
		name = fmt.Sprintf("%s (id %s)", res.Employee.Name, res.Employee.ID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", name)
	return nil
}
