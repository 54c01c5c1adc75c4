package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errInterrupted is returned by a subcommand's RunE when it stopped
// because of SIGINT/SIGTERM rather than completing or failing, so
// main can map it to exit code 130 instead of 1.
var errInterrupted = errors.New("interrupted")

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "voxelwatch",
		Short:         "Minecraft server list ping scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "voxelwatch.yaml", "path to the YAML config file")

	root.AddCommand(
		newScanCmd(),
		newConfigCmd(),
		newVersionCmd(),
		newExportCmd(),
		newBlacklistCmd(),
		newStatsCmd(),
		newSearchCmd(),
	)
	return root
}

// initLogger builds a zap logger from the resolved log config, matching
// the teacher's own debug/production split (cmd/sprintd's initLogger)
// generalized from a single boolean flag to the config's log.format.
func initLogger(level, format string) (*zap.Logger, error) {
	var zcfg zap.Config
	if format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zcfg.Level = lvl

	return zcfg.Build()
}
