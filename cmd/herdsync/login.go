package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginPassword string
	loginTenantID int64
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate against the remote API",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "",
		"Password (read from stdin when omitted)")
	loginCmd.Flags().Int64Var(&loginTenantID, "tenant", 0,
		"Tenant account id when the user belongs to several")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	password := loginPassword
	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	var tenantID *int64
	if loginTenantID != 0 {
		tenantID = &loginTenantID
	}

	resp, err := a.session.Login(ctx, args[0], password, tenantID)
	if err != nil {
		return err
	}

	if resp.NeedsTenantSelection() {
		fmt.Fprintln(cmd.OutOrStdout(), "Multiple tenant accounts found. Re-run with --tenant <id>:")
		w := newTabWriter(cmd.OutOrStdout())
		fmt.Fprintln(w, "ID\tNAME")
		for _, t := range resp.TenantAccounts {
			fmt.Fprintf(w, "%d\t%s\n", t.TenantID, t.AccountName)
		}
		w.Flush()
		return nil
	}

	// Prime the reference cache while the connection is known good. A
	// failure is only a warning; the read-through cache recovers later.
	if err := a.refs.LoadAll(ctx); err != nil {
		slog.Warn("reference cache load failed", "error", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
	return nil
}
