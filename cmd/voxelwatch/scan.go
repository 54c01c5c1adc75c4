package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/blacklist"
	"github.com/voxelwatch/scanner/internal/concurrency"
	"github.com/voxelwatch/scanner/internal/config"
	"github.com/voxelwatch/scanner/internal/coordinator"
	"github.com/voxelwatch/scanner/internal/geoip"
	"github.com/voxelwatch/scanner/internal/memguard"
	"github.com/voxelwatch/scanner/internal/metrics"
	"github.com/voxelwatch/scanner/internal/ratelimit"
	"github.com/voxelwatch/scanner/internal/slp"
	"github.com/voxelwatch/scanner/internal/webhook"
)

func newScanCmd() *cobra.Command {
	var rangeOverride, fileOverride string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a scan using the configured discovery strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if rangeOverride != "" {
				cfg.Discovery.Strategy = "range"
				cfg.Discovery.CIDR = rangeOverride
			}
			if fileOverride != "" {
				cfg.Discovery.Strategy = "file"
				cfg.Discovery.FilePath = fileOverride
			}
			return runScan(cmd.Context(), cfg)
		},
	}

	// Target specification is mutually exclusive with the config file's
	// discovery section: either flag, if set, overrides it outright, and
	// the two flags are mutually exclusive with each other.
	cmd.Flags().StringVar(&rangeOverride, "range", "", "scan this CIDR range instead of the configured strategy")
	cmd.Flags().StringVar(&fileOverride, "file", "", "read targets from this file instead of the configured strategy")
	cmd.MarkFlagsMutuallyExclusive("range", "file")
	return cmd
}

func runScan(ctx context.Context, cfg config.Config) error {
	log, err := initLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return apperr.WrapConfig("initializing logger", err)
	}
	defer log.Sync()

	st, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer st.Close()

	gen, err := buildGenerator(cfg.Discovery, log)
	if err != nil {
		return err
	}

	bl := blacklist.New()
	if cfg.Blacklist.FilePath != "" {
		if err := bl.Load(cfg.Blacklist.FilePath); err != nil {
			log.Warn("failed to load blacklist file, continuing with an empty blacklist",
				zap.String("path", cfg.Blacklist.FilePath), zap.Error(err))
		}
		if cfg.Blacklist.WatchFile {
			watcher, err := blacklist.NewWatcher(bl, cfg.Blacklist.FilePath, log)
			if err != nil {
				log.Warn("failed to start blacklist watcher", zap.Error(err))
			} else {
				defer watcher.Close()
			}
		}
	}

	var observer webhook.Observer
	if cfg.Webhook.URL != "" {
		observer = webhook.NewHTTPNotifier(cfg.Webhook.URL, log)
	}

	geoProvider, err := buildGeoProvider(cfg.GeoIP)
	if err != nil {
		log.Warn("geoip provider unavailable, scans will not be enriched with location", zap.Error(err))
		geoProvider = nil
	} else if geoProvider != nil {
		defer geoProvider.Close()
	}

	registry := metrics.NewRegistry()
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	co := coordinator.New(coordinator.Config{
		Generator:     gen,
		Blacklist:     bl,
		RateLimiter:   ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		Gate:          concurrency.NewGate(cfg.Concurrency.Global, cfg.Concurrency.PerHost),
		Guard:         memguard.New(memguard.Config{LimitBytes: cfg.Memory.LimitBytes, GentleFraction: cfg.Memory.GentleFraction, CriticalFraction: cfg.Memory.CriticalFraction, Interval: cfg.Memory.Interval}, log),
		ProberCfg: slp.ProberConfig{
			Probe:            slp.Config{Timeout: cfg.Probe.Timeout, Retries: cfg.Probe.Retries},
			MultiProtocol:    cfg.Probe.MultiProtocol,
			PreferredVersion: cfg.Probe.PreferredVersion,
			FallbackVersions: cfg.Probe.FallbackVersions,
			LegacySupport:    cfg.Probe.LegacySupport,
		},
		Store:         st,
		Observer:      observer,
		GeoIP:         geoProvider,
		GeoIPCacheTTL: cfg.GeoIP.CacheTTL,
		Log:           log,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := co.Start(runCtx); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- co.Wait(runCtx) }()

	var interrupted bool
	select {
	case <-sigs:
		log.Info("received interrupt, stopping scan")
		interrupted = true
		co.Stop()
		<-done
	case err := <-done:
		if err != nil {
			log.Error("scan finished with an error", zap.Error(err))
		}
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}

	stats := co.Stats()
	log.Info("scan complete",
		zap.Int64("dispatched", stats.TargetsDispatched),
		zap.Int64("online", stats.Online),
		zap.Int64("offline", stats.Offline),
		zap.Int64("errors", stats.Errors),
		zap.Int64("blacklisted", stats.Blacklisted),
	)

	if interrupted {
		return errInterrupted
	}
	return nil
}

func buildGeoProvider(cfg config.GeoIPConfig) (geoip.Provider, error) {
	var inner geoip.Provider
	var err error

	switch cfg.Provider {
	case "geoip2":
		inner, err = geoip.NewMaxMind(cfg.DBPath)
	case "ipapi":
		inner = geoip.NewIPAPI()
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("geoip: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return geoip.NewCached(inner, cfg.CacheTTL), nil
}
