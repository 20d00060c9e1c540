package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/purgebot/internal/commands"
	"github.com/aatumaykin/purgebot/internal/cron"
	"github.com/spf13/cobra"
)

var (
	cronNextCount int
	cronNextFrom  string
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Check CRON expressions",
}

var cronValidateCmd = &cobra.Command{
	Use:   "validate <expression...>",
	Short: "Check that an expression is accepted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := commands.CleanExpression(strings.Join(args, " "))
		if err := cron.Validate(expr); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%q is valid\n", expr)
		return nil
	},
}

var cronNextCmd = &cobra.Command{
	Use:   "next <expression...>",
	Short: "Print the next fire times in UTC",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from := time.Now().UTC()
		if cronNextFrom != "" {
			t, err := time.Parse(time.RFC3339, cronNextFrom)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			from = t
		}
		if cronNextCount < 1 {
			return fmt.Errorf("--count must be at least 1")
		}

		expr := commands.CleanExpression(strings.Join(args, " "))
		runs, err := cron.NewEvaluator().NextN(expr, from, cronNextCount)
		if err != nil {
			return err
		}
		for _, t := range runs {
			fmt.Fprintln(cmd.OutOrStdout(), t.UTC().Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	cronNextCmd.Flags().IntVarP(&cronNextCount, "count", "n", commands.NextRunsCount, "number of fire times")
	cronNextCmd.Flags().StringVar(&cronNextFrom, "from", "", "reference time in RFC3339 (default now)")

	cronCmd.AddCommand(cronValidateCmd)
	cronCmd.AddCommand(cronNextCmd)
}
