package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strongdm/errhero/pkg/errhero/config"
)

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			cfg, err := f.Settings()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", c.configPath)
			fmt.Fprintf(out, "  enabled:        %t\n", cfg.Enabled)
			fmt.Fprintf(out, "  display errors: %t\n", cfg.Display.DisplayErrors)
			fmt.Fprintf(out, "  template:       %s / %s\n", cfg.Display.Template.Layout, cfg.Display.Template.View)
			fmt.Fprintf(out, "  exclusions:     %d conditions, %d exceptions\n",
				len(cfg.Display.ExcludedConditions), len(cfg.Display.ExcludedExceptions))
			fmt.Fprintf(out, "  dedup window:   %s\n", cfg.Logging.DedupWindow)
			fmt.Fprintf(out, "  email:          %t\n", cfg.Email.Enabled)
			if a, ok := f.WriterAdapter(); ok {
				fmt.Fprintf(out, "  log writer:     %s\n", a.Driver)
			}
			return nil
		},
	}
}

func (c *cli) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(c.configPath); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", c.configPath)
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
			if err := os.WriteFile(c.configPath, config.Sample, 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", c.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
