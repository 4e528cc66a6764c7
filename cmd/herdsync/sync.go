package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/devonagro/herdsync/internal/syncengine"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload pending movements to the remote API",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	unsubscribe := a.engine.Subscribe(func(st syncengine.Status) {
		if st.State == syncengine.StateSyncing && st.Total > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "\rsyncing %d/%d", st.Synced+st.Failed, st.Total)
		}
	})
	defer unsubscribe()

	res, err := a.engine.Sync(ctx)
	fmt.Fprintln(cmd.ErrOrStderr())
	switch {
	case errors.Is(err, syncengine.ErrOffline):
		return fmt.Errorf("cannot sync: %w", err)
	case err != nil:
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"success": res.Success,
			"synced":  res.Synced,
			"failed":  res.Failed,
			"message": res.Message,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	if !res.Success {
		return fmt.Errorf("%d movements failed to sync", res.Failed)
	}
	return nil
}
