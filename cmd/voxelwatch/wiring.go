package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/config"
	"github.com/voxelwatch/scanner/internal/discovery"
	"github.com/voxelwatch/scanner/internal/store"
	"github.com/voxelwatch/scanner/internal/store/pgstore"
	"github.com/voxelwatch/scanner/internal/store/sqlitestore"
)

// loadConfig reads and validates the config at configPath, wrapping any
// failure as apperr.Config so main maps it to exit code 2.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, apperr.WrapConfig("loading "+configPath, err)
	}
	return cfg, nil
}

// openStore constructs and migrates the configured storage backend.
func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (store.Store, error) {
	var s store.Store
	var err error

	switch cfg.Backend {
	case "postgres":
		s, err = pgstore.Open(ctx, cfg.DSN, log)
	case "sqlite":
		s, err = sqlitestore.Open(cfg.DSN, log)
	default:
		return nil, apperr.NewConfig(fmt.Sprintf("unknown store backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, apperr.WrapStore("opening store", err)
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, apperr.WrapStore("applying migrations", err)
	}
	return s, nil
}

// buildGenerator constructs the configured discovery strategy.
func buildGenerator(cfg config.DiscoveryConfig, log *zap.Logger) (discovery.Generator, error) {
	switch cfg.Strategy {
	case "range":
		gen, err := discovery.NewRange(cfg.CIDR, cfg.Ports)
		if err != nil {
			return nil, apperr.WrapConfig("building range generator", err)
		}
		return gen, nil
	case "file":
		gen, err := discovery.NewFile(cfg.FilePath, defaultPort(cfg.Ports), log)
		if err != nil {
			return nil, apperr.WrapConfig("building file generator", err)
		}
		return gen, nil
	case "external":
		return discovery.NewExternal(cfg.External.Command, cfg.External.Args, log), nil
	default:
		return nil, apperr.NewConfig(fmt.Sprintf("unknown discovery strategy %q", cfg.Strategy))
	}
}

func defaultPort(ports []int) int {
	if len(ports) == 0 {
		return 25565
	}
	return ports[0]
}
