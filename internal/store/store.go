package store

import (
	"context"
	"time"
)

// EndpointScan is everything a single completed probe produces, handed
// to PutEndpointScan as one unit so a backend can persist it inside a
// single transaction — the "atomic per-endpoint write" spec.md §4.10
// requires so a crash mid-write never leaves a snapshot referencing
// mods or a favicon that were never committed.
type EndpointScan struct {
	RunID    int64
	Snapshot StatusSnapshot
	Players  []Player
	Mods     []Mod
	Favicon  *Favicon
	Location *Location
}

// StatsFilter narrows aggregate queries to a time window and/or run.
type StatsFilter struct {
	Since time.Time
	Until time.Time
	RunID int64 // 0 means "all runs"
}

// SearchFilter narrows Search beyond its free-text query: every
// non-empty field is ANDed in as an exact-match predicate.
type SearchFilter struct {
	Query      string // substring match against MOTD or version name
	Software   string
	Version    string
	OnlineMode string
}

// SoftwareCount is one row of the "servers grouped by software" stat.
type SoftwareCount struct {
	Software string
	Count    int64
}

// VersionCount is one row of the "servers grouped by version" stat.
type VersionCount struct {
	VersionName string
	Count       int64
}

// Store is the capability interface every backend (embedded SQLite,
// networked Postgres) implements. All methods are safe for concurrent
// use by multiple coordinator worker goroutines.
type Store interface {
	// Migrate applies any pending schema migrations. Called once at
	// startup before any other method.
	Migrate(ctx context.Context) error

	// PutEndpointScan atomically records one probe's full result:
	// endpoint upsert, status snapshot insert, player/mod/favicon/
	// location dedup-and-link, all in a single transaction.
	PutEndpointScan(ctx context.Context, scan EndpointScan) error

	// GetEndpoint returns the most recent known state of one target, or
	// (nil, nil) if it has never been scanned.
	GetEndpoint(ctx context.Context, ip string, port int) (*Endpoint, *StatusSnapshot, error)

	// Search returns recent snapshots matching filter, newest first,
	// capped at limit.
	Search(ctx context.Context, filter SearchFilter, limit int) ([]StatusSnapshot, error)

	// StartRun inserts a new ScanRun and returns its ID.
	StartRun(ctx context.Context) (int64, error)
	// FinishRun marks a run complete with final counters.
	FinishRun(ctx context.Context, runID int64, targetsDone, online, errors int64) error

	// Stats aggregations. The snapshot-based ones honour filter;
	// UniquePlayerCount and UniqueModCount ignore it and count every
	// player or mod ever stored.
	TotalServers(ctx context.Context, filter StatsFilter) (int64, error)
	ServersBySoftware(ctx context.Context, filter StatsFilter) ([]SoftwareCount, error)
	ServersByVersion(ctx context.Context, filter StatsFilter) ([]VersionCount, error)
	OnlineOfflineCounts(ctx context.Context, filter StatsFilter) (online, offline int64, err error)
	UniquePlayerCount(ctx context.Context, filter StatsFilter) (int64, error)
	UniqueModCount(ctx context.Context, filter StatsFilter) (int64, error)

	// CachedLocation returns a still-valid cached geolocation for ip, or
	// (nil, nil) if none exists or it has expired.
	CachedLocation(ctx context.Context, ip string) (*Location, error)

	// ImportBlacklist records operator-supplied blacklist entries so
	// they survive a restart independent of the blacklist file.
	ImportBlacklist(ctx context.Context, entries []BlacklistEntry) error
	ListBlacklist(ctx context.Context) ([]BlacklistEntry, error)

	// Close releases the underlying connection/pool.
	Close() error
}
