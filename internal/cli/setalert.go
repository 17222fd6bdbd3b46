package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	setAlertChain  string
	setAlertDollar float64
	setAlertEmail  string
)

var setAlertCmd = &cobra.Command{
	Use:   "set-alert",
	Short: "Register a one-time price threshold alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if setAlertChain == "" || setAlertEmail == "" {
			return errors.New("--chain and --email must be provided")
		}

		return getApp().SetAlert(cmd.Context(), setAlertChain, setAlertDollar, setAlertEmail)
	},
}

func init() {
	setAlertCmd.Flags().StringVar(&setAlertChain, "chain", "", "Chain to watch (ethereum or polygon)")
	setAlertCmd.Flags().Float64Var(&setAlertDollar, "dollar", 0, "USD threshold that triggers the alert")
	setAlertCmd.Flags().StringVar(&setAlertEmail, "email", "", "Recipient email address")
}
