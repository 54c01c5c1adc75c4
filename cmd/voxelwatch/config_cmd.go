package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or scaffold the YAML configuration file",
	}
	cmd.AddCommand(newConfigValidateCmd(), newConfigInitCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Load and validate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := config.Load(path)
			if err != nil {
				return apperr.WrapConfig("loading "+path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (discovery=%s, store=%s)\n",
				path, cfg.Discovery.Strategy, cfg.Store.Backend)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return apperr.NewConfig(path + " already exists; pass --force to overwrite")
				}
			}
			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return apperr.WrapConfig("marshaling default config", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return apperr.WrapConfig("writing "+path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
