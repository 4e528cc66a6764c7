package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, session, and backlog state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	online := a.monitor.Check(ctx)
	authed := a.session.IsAuthenticated()

	stats, err := a.db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"online":          online,
			"authenticated":   authed,
			"total_movements": stats.TotalMovements,
			"pending_sync":    stats.PendingSync,
		})
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "Connectivity:\t%s\n", boolWord(online, "online", "offline"))
	fmt.Fprintf(w, "Session:\t%s\n", boolWord(authed, "authenticated", "not logged in"))
	fmt.Fprintf(w, "Movements:\t%d\n", stats.TotalMovements)
	fmt.Fprintf(w, "Pending sync:\t%d\n", stats.PendingSync)
	w.Flush()

	return nil
}
