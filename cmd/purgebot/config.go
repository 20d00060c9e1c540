package main

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var showFormat string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		errs := cfg.Validate()
		if len(errs) > 0 {
			out := cmd.ErrOrStderr()
			fmt.Fprintf(out, "Configuration has %d error(s):\n", len(errs))
			for _, e := range errs {
				fmt.Fprintf(out, "  - %v\n", e)
			}
			return errors.New("invalid configuration")
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		redacted := cfg.Redacted()

		out := cmd.OutOrStdout()
		switch showFormat {
		case "toml":
			return toml.NewEncoder(out).Encode(redacted)
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(redacted); err != nil {
				return err
			}
			return enc.Close()
		default:
			return fmt.Errorf("unknown format %q (expected: toml, yaml)", showFormat)
		}
	},
}

func init() {
	configShowCmd.Flags().StringVarP(&showFormat, "format", "f", "toml", "output format: toml or yaml")

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
