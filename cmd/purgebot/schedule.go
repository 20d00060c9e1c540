package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aatumaykin/purgebot/internal/commands"
	"github.com/aatumaykin/purgebot/internal/cron"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// scheduleFile is the YAML layout used by import and export.
type scheduleFile struct {
	Schedules []storage.ChannelSchedule `yaml:"schedules"`
}

var scheduleSetName string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage channel purge schedules offline",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured schedules with their next run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		schedules, err := store.ListSchedules(cmd.Context())
		if err != nil {
			return err
		}
		if len(schedules) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), commands.MsgNoConfigs)
			return nil
		}
		return printSchedules(cmd.OutOrStdout(), schedules, time.Now())
	},
}

func printSchedules(w io.Writer, schedules []storage.ChannelSchedule, now time.Time) error {
	eval := cron.NewEvaluator()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL ID\tNAME\tCRON\tENABLED\tNEXT RUN (UTC)")
	for _, s := range schedules {
		next := "-"
		if t, err := eval.NextAfter(s.CronExpr, now); err == nil {
			next = t.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", s.ChannelID, s.ChannelName, s.CronExpr, s.Enabled, next)
	}
	return tw.Flush()
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set <channel-id> <expression...>",
	Short: "Create or replace a schedule and enable it",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		name := scheduleSetName
		if name == "" {
			name = args[0]
		}
		svc := commands.NewService(store, nil, logger.Nop())
		sch, err := svc.Set(cmd.Context(), commands.ChannelRef{ID: args[0], Name: name}, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schedule for %s set to %q and enabled.\n", sch.ChannelID, sch.CronExpr)
		return nil
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <channel-id>",
	Short: "Remove a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		svc := commands.NewService(store, nil, logger.Nop())
		if err := svc.Unset(cmd.Context(), commands.ChannelRef{ID: args[0]}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schedule for %s removed.\n", args[0])
		return nil
	},
}

func newToggleCmd(enable bool) *cobra.Command {
	verb := "disable"
	if enable {
		verb = "enable"
	}
	return &cobra.Command{
		Use:   verb + " <channel-id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an existing schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := commands.NewService(store, nil, logger.Nop())
			ref := commands.ChannelRef{ID: args[0]}
			if enable {
				_, err = svc.Enable(cmd.Context(), ref)
			} else {
				_, err = svc.Disable(cmd.Context(), ref)
			}
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no schedule for channel %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule for %s %sd.\n", args[0], verb)
			return nil
		},
	}
}

var scheduleExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write all schedules as YAML to a file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		schedules, err := store.ListSchedules(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[0], err)
			}
			defer f.Close()
			out = f
		}

		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(scheduleFile{Schedules: schedules}); err != nil {
			return err
		}
		return enc.Close()
	},
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upsert schedules from a YAML file",
	Long: `Upsert schedules from a YAML file produced by "schedule export". Every
entry is validated first and the rows are written together, so a failed
import leaves the store unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		var file scheduleFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		if err := validateImport(file.Schedules); err != nil {
			return err
		}

		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		now := time.Now().UTC()
		batch := make([]storage.ChannelSchedule, 0, len(file.Schedules))
		for _, s := range file.Schedules {
			s.CronExpr = commands.CleanExpression(s.CronExpr)
			if s.ChannelName == "" {
				s.ChannelName = s.ChannelID
			}
			s.UpdatedAt = now
			batch = append(batch, s)
		}
		if err := store.UpsertSchedules(cmd.Context(), batch); err != nil {
			return fmt.Errorf("failed to import schedules: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d schedule(s).\n", len(file.Schedules))
		return nil
	},
}

func validateImport(schedules []storage.ChannelSchedule) error {
	var errs []error
	seen := make(map[string]bool, len(schedules))
	for i, s := range schedules {
		switch {
		case s.ChannelID == "":
			errs = append(errs, fmt.Errorf("entry %d: channel_id is required", i+1))
		case seen[s.ChannelID]:
			errs = append(errs, fmt.Errorf("entry %d: duplicate channel_id %s", i+1, s.ChannelID))
		}
		seen[s.ChannelID] = true
		if err := cron.Validate(commands.CleanExpression(s.CronExpr)); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i+1, s.ChannelID, err))
		}
	}
	return errors.Join(errs...)
}

func init() {
	scheduleSetCmd.Flags().StringVar(&scheduleSetName, "name", "", "channel name shown in listings (default the channel ID)")

	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleSetCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(newToggleCmd(true))
	scheduleCmd.AddCommand(newToggleCmd(false))
	scheduleCmd.AddCommand(scheduleExportCmd)
	scheduleCmd.AddCommand(scheduleImportCmd)
}
