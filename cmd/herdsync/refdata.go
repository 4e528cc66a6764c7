package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var refdataCmd = &cobra.Command{
	Use:   "refdata",
	Short: "Manage the cached reference catalog",
}

var refdataReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Refresh every reference data-set from the remote API",
	Args:  cobra.NoArgs,
	RunE:  runRefdataReload,
}

var refdataFarmsCmd = &cobra.Command{
	Use:   "farms",
	Short: "List farms from the reference cache",
	Args:  cobra.NoArgs,
	RunE:  runRefdataFarms,
}

var refdataEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List events from the reference cache",
	Args:  cobra.NoArgs,
	RunE:  runRefdataEvents,
}

var refdataClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached reference data",
	Args:  cobra.NoArgs,
	RunE:  runRefdataClear,
}

func init() {
	refdataCmd.AddCommand(refdataReloadCmd)
	refdataCmd.AddCommand(refdataFarmsCmd)
	refdataCmd.AddCommand(refdataEventsCmd)
	refdataCmd.AddCommand(refdataClearCmd)
}

func runRefdataReload(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.refs.LoadAll(context.Background()); err != nil {
		return fmt.Errorf("reload reference data: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Reference data reloaded.")
	return nil
}

func runRefdataFarms(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	farms := a.refs.Farms(ctx)

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"farms": farms,
			"total": len(farms),
		})
	}

	if len(farms) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No farms cached.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tPASTURES")
	for _, f := range farms {
		fmt.Fprintf(w, "%d\t%s\t%d\n", f.FarmID, f.Name, len(f.Pastures))
	}
	w.Flush()

	return nil
}

func runRefdataEvents(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	events := a.refs.Events(ctx)

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"events": events,
			"total":  len(events),
		})
	}

	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No events cached.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tDESCRIPTION\tOPERATION\tDETAILS")
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", e.EventID, e.Description, e.Operation, len(e.EventDetails))
	}
	w.Flush()

	return nil
}

func runRefdataClear(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.refs.ClearCache(context.Background()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Reference cache cleared.")
	return nil
}
