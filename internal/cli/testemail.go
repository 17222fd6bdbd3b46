package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var testEmailTo string

var testEmailCmd = &cobra.Command{
	Use:   "test-email",
	Short: "Send a test message through the configured SMTP transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		if testEmailTo == "" {
			return errors.New("--to must be provided")
		}

		return getApp().SendTestEmail(cmd.Context(), testEmailTo)
	},
}

func init() {
	testEmailCmd.Flags().StringVar(&testEmailTo, "to", "", "Recipient of the test message")
}
