package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var simulateLegs []string

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Evaluate synthetic legs and dispatch the resulting alert",
	Example: `  arbscanner simulate-alert --leg "Lakers=2.10@BookX" --leg "Celtics=2.05@BookY"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(simulateLegs) < 2 {
			return errors.New("at least two --leg values are required")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateLegs)
	},
}

func init() {
	simulateCmd.Flags().StringArrayVar(&simulateLegs, "leg", nil, "Leg as Outcome=price@Bookmaker (repeatable)")
}
