package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"yashubustudio/custmapper/internal/app/ui"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:   "custmapper-review",
		Short: "Review and correct the customer group ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ui.Run(configPath)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to custmapper.yaml")
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
