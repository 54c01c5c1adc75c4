// Package config loads scanner configuration from a YAML file, with an
// optional .env overlay and environment-variable overrides, matching
// the teacher's godotenv-then-env-vars loading idiom generalized from
// flat env vars to a structured YAML document.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DiscoveryConfig configures the target generator (C5).
type DiscoveryConfig struct {
	Strategy string   `yaml:"strategy"` // "range", "file", "external"
	CIDR     string   `yaml:"cidr,omitempty"`
	Ports    []int    `yaml:"ports"`
	FilePath string   `yaml:"file_path,omitempty"`
	External struct {
		Command string   `yaml:"command,omitempty"`
		Args    []string `yaml:"args,omitempty"`
	} `yaml:"external,omitempty"`
}

// ProbeConfig configures the SLP client (C2/C3).
type ProbeConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	Retries          int           `yaml:"retries"`
	MultiProtocol    bool          `yaml:"multi_protocol"`
	PreferredVersion int32         `yaml:"preferred_version"`
	FallbackVersions []int32       `yaml:"fallback_versions"`
	LegacySupport    bool          `yaml:"legacy_support"`
}

// RateLimitConfig configures the token bucket (C6).
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// ConcurrencyConfig configures the nested semaphore gate (C7).
type ConcurrencyConfig struct {
	Global  int `yaml:"global"`
	PerHost int `yaml:"per_host"`
}

// MemoryConfig configures the memory guard (C8).
type MemoryConfig struct {
	LimitBytes       uint64        `yaml:"limit_bytes"`
	GentleFraction   float64       `yaml:"gentle_fraction"`
	CriticalFraction float64       `yaml:"critical_fraction"`
	Interval         time.Duration `yaml:"interval"`
}

// BlacklistConfig configures the IP/CIDR filter (C9).
type BlacklistConfig struct {
	FilePath string `yaml:"file_path"`
	WatchFile bool  `yaml:"watch_file"`
}

// StoreConfig configures the persistence backend (C10).
type StoreConfig struct {
	Backend string `yaml:"backend"` // "sqlite" or "postgres"
	DSN     string `yaml:"dsn"`
}

// GeoIPConfig configures the geolocation provider.
type GeoIPConfig struct {
	Provider   string        `yaml:"provider"` // "geoip2" or "ipapi"
	DBPath     string        `yaml:"db_path,omitempty"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// WebhookConfig configures the observer/notifier (C11).
type WebhookConfig struct {
	URL          string `yaml:"url,omitempty"`
	WebSocketAddr string `yaml:"websocket_addr,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Config is the full scanner configuration document, loaded from YAML.
type Config struct {
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Probe       ProbeConfig       `yaml:"probe"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Memory      MemoryConfig      `yaml:"memory"`
	Blacklist   BlacklistConfig   `yaml:"blacklist"`
	Store       StoreConfig       `yaml:"store"`
	GeoIP       GeoIPConfig       `yaml:"geoip"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// Default returns a Config with spec.md §6's documented defaults.
func Default() Config {
	return Config{
		Discovery: DiscoveryConfig{Strategy: "range", Ports: []int{25565}},
		Probe: ProbeConfig{
			Timeout:          3 * time.Second,
			Retries:          1,
			MultiProtocol:    true,
			PreferredVersion: 770,
			FallbackVersions: []int32{764, 47},
			LegacySupport:    true,
		},
		RateLimit:   RateLimitConfig{PerSecond: 100, Burst: 200},
		Concurrency: ConcurrencyConfig{Global: 500, PerHost: 2},
		Memory: MemoryConfig{
			LimitBytes:       2 << 30,
			GentleFraction:   0.80,
			CriticalFraction: 0.95,
			Interval:         5 * time.Second,
		},
		Blacklist: BlacklistConfig{FilePath: "blacklist.txt", WatchFile: true},
		Store:     StoreConfig{Backend: "sqlite", DSN: "./voxelwatch.db"},
		GeoIP:     GeoIPConfig{Provider: "ipapi", CacheTTL: 30 * 24 * time.Hour},
		Metrics:   MetricsConfig{Enabled: true, Addr: ":9090"},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads config from path, overlaying a .env file (if present) and
// environment variables over the YAML defaults. Env vars win, matching
// the teacher's own godotenv-then-os.Getenv precedence.
func Load(path string) (Config, error) {
	loadDotEnv()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv() {
	_ = godotenv.Load() // ignore missing .env — it's optional
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOXELWATCH_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("VOXELWATCH_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("VOXELWATCH_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.PerSecond = f
		}
	}
	if v := os.Getenv("VOXELWATCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VOXELWATCH_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
}

// Validate checks for configuration combinations spec.md §8 calls out
// as invalid, e.g. a CIDR-less range strategy.
func (c Config) Validate() error {
	switch c.Discovery.Strategy {
	case "range":
		if c.Discovery.CIDR == "" {
			return fmt.Errorf("config: discovery.cidr is required for the range strategy")
		}
	case "file":
		if c.Discovery.FilePath == "" {
			return fmt.Errorf("config: discovery.file_path is required for the file strategy")
		}
	case "external":
		if c.Discovery.External.Command == "" {
			return fmt.Errorf("config: discovery.external.command is required for the external strategy")
		}
	default:
		return fmt.Errorf("config: unknown discovery.strategy %q", c.Discovery.Strategy)
	}

	if len(c.Discovery.Ports) == 0 {
		return fmt.Errorf("config: discovery.ports must list at least one port")
	}

	switch c.Store.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}

	if c.Memory.GentleFraction >= c.Memory.CriticalFraction {
		return fmt.Errorf("config: memory.gentle_fraction must be less than memory.critical_fraction")
	}

	return nil
}
