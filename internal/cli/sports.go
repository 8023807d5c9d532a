package cli

import (
	"github.com/spf13/cobra"
)

var sportsCmd = &cobra.Command{
	Use:   "sports",
	Short: "List sports currently offered by the odds service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sports(cmd.Context())
	},
}
