package main

import (
	"fmt"
	"time"

	"github.com/aatumaykin/purgebot/internal/commands"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the admin allow-list offline",
}

var adminAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Grant admin rights to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := commands.NewService(store, nil, logger.Nop()).AddAdmin(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s added to the admin list.\n", args[0])
		return nil
	},
}

var adminRemoveCmd = &cobra.Command{
	Use:   "remove <user-id>",
	Short: "Revoke admin rights from a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := commands.NewService(store, nil, logger.Nop()).RemoveAdmin(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s removed from the admin list.\n", args[0])
		return nil
	},
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List admins from storage and config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		admins, err := store.ListAdmins(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, id := range cfg.Auth.SuperAdmins {
			fmt.Fprintf(out, "%s\tsuper admin (config)\n", id)
		}
		for _, role := range cfg.Auth.AdminRoles {
			fmt.Fprintf(out, "@%s\tadmin role (config)\n", role)
		}
		for _, a := range admins {
			fmt.Fprintf(out, "%s\tadded %s\n", a.UserID, a.AddedAt.UTC().Format(time.RFC3339))
		}
		if len(admins) == 0 {
			fmt.Fprintln(out, commands.MsgNoAdmins)
		}
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminAddCmd)
	adminCmd.AddCommand(adminRemoveCmd)
	adminCmd.AddCommand(adminListCmd)
}
