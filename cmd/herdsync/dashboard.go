package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Fetch the remote home dashboard payload",
	Args:  cobra.NoArgs,
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	payload, err := a.client.HomeDashboard(context.Background())
	if err != nil {
		return fmt.Errorf("fetch dashboard: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return nil
}
