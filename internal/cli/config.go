package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturn-platform/opsclaw/internal/config"
	"github.com/saturn-platform/opsclaw/internal/store"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print merged configuration as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.Write(cmd.OutOrStdout())
		},
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			body, err := config.DefaultUserConfigTOML()
			if err != nil {
				return err
			}
			path := cfg.ConfigPath()
			if err := store.WriteFile(path, []byte(body), 0o600, force); err != nil {
				if errors.Is(err, os.ErrExist) {
					return fmt.Errorf("config already exists at %s (use --force to replace it)", path)
				}
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nEdit it, then run `opsclaw ask help`.\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing config file")

	return cmd
}
