// Package pgstore is the networked-database Store backend: a
// jackc/pgx/v5 connection pool against Postgres, for shared deployments
// where multiple coordinator instances write to the same store. Mirrors
// sqlitestore's query shape with $N placeholders instead of '?'.
package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/store"
	"github.com/voxelwatch/scanner/internal/store/migrations"
)

// Store is the Postgres-backed implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Open connects to the database identified by dsn.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperr.WrapStore("opening postgres pool", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	runner := migrations.NewRunner(execAdapter{s.pool}, migrations.Postgres, s.log)
	if err := runner.Up(ctx); err != nil {
		return apperr.WrapStore("running postgres migrations", err)
	}
	return nil
}

// execAdapter satisfies migrations.Executor over a *pgxpool.Pool,
// translating the package's '?' placeholders to pgx's positional $N
// syntax so the migrations package stays driver-agnostic.
type execAdapter struct{ pool *pgxpool.Pool }

func (a execAdapter) ExecContext(ctx context.Context, query string, args ...any) error {
	_, err := a.pool.Exec(ctx, toDollarParams(query), args...)
	return err
}

func (a execAdapter) QueryRowContext(ctx context.Context, query string, args ...any) migrations.Row {
	return a.pool.QueryRow(ctx, toDollarParams(query), args...)
}

func toDollarParams(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) PutEndpointScan(ctx context.Context, scan store.EndpointScan) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.WrapStore("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	snap := scan.Snapshot
	now := snap.ScannedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var successDelta int
	var lastOnline *time.Time
	if snap.Online {
		successDelta = 1
		lastOnline = &now
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO endpoints (ip, port, first_seen, last_seen, last_online, total_scans, successful_scans, availability_pct)
		VALUES ($1, $2, $3, $3, $4, 1, $5, $6)
		ON CONFLICT (ip, port) DO UPDATE SET
			last_seen = $3,
			last_online = CASE WHEN $4::timestamptz IS NOT NULL THEN $4 ELSE endpoints.last_online END,
			total_scans = endpoints.total_scans + 1,
			successful_scans = endpoints.successful_scans + $5,
			availability_pct = (endpoints.successful_scans + $5)::float8
				/ (endpoints.total_scans + 1) * 100`,
		snap.IP, snap.Port, now, lastOnline, successDelta, float64(successDelta)*100); err != nil {
		return apperr.WrapStore("upserting endpoint", err)
	}

	var faviconHash *string
	if scan.Favicon != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO favicons (hash, base64, first_seen) VALUES ($1, $2, $3)
			ON CONFLICT (hash) DO NOTHING`,
			scan.Favicon.Hash, scan.Favicon.Base64, now); err != nil {
			return apperr.WrapStore("inserting favicon", err)
		}
		faviconHash = &scan.Favicon.Hash
	}

	var runID *int64
	if scan.RunID != 0 {
		runID = &scan.RunID
	}

	var snapshotID int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO status_snapshots
			(run_id, ip, port, scanned_at, online, latency_ms, protocol_version, version_name,
			 motd_raw, motd_clean, motd_formatted, online_players, max_players, software, mod_type, online_mode,
			 enforces_secure_chat, prevents_chat_reports, favicon_hash, error_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`,
		runID, snap.IP, snap.Port, now, snap.Online, snap.LatencyMS, snap.ProtocolVersion, snap.VersionName,
		snap.MOTDRaw, snap.MOTDClean, snap.MOTDFormatted, snap.OnlinePlayers, snap.MaxPlayers, snap.Software, snap.ModType, snap.OnlineMode,
		snap.EnforcesSecureChat, snap.PreventsChatReports, faviconHash, snap.ErrorKind).Scan(&snapshotID); err != nil {
		return apperr.WrapStore("inserting status snapshot", err)
	}

	for _, p := range scan.Players {
		if _, err := tx.Exec(ctx, `
			INSERT INTO players (uuid, name, first_seen, last_seen) VALUES ($1, $2, $3, $3)
			ON CONFLICT (uuid) DO UPDATE SET name = $2, last_seen = $3`,
			p.UUID, p.Name, now); err != nil {
			return apperr.WrapStore("upserting player", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO player_sessions (player_uuid, ip, port, seen_at) VALUES ($1, $2, $3, $4)`,
			p.UUID, snap.IP, snap.Port, now); err != nil {
			return apperr.WrapStore("inserting player session", err)
		}
	}

	for _, m := range scan.Mods {
		var modID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO mods (name, version, type) VALUES ($1, $2, $3)
			ON CONFLICT (name, version, type) DO UPDATE SET type = excluded.type
			RETURNING id`,
			m.Name, m.Version, m.Type).Scan(&modID)
		if err != nil {
			return apperr.WrapStore("upserting mod", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO server_mods (snapshot_id, mod_id) VALUES ($1, $2)
			ON CONFLICT (snapshot_id, mod_id) DO NOTHING`,
			snapshotID, modID); err != nil {
			return apperr.WrapStore("linking server mod", err)
		}
	}

	if loc := scan.Location; loc != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO locations
				(ip, country_code, country_name, city, latitude, longitude, asn, as_org, source, cached_at, cache_expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (ip) DO UPDATE SET
				country_code = $2, country_name = $3, city = $4, latitude = $5, longitude = $6,
				asn = $7, as_org = $8, source = $9, cached_at = $10, cache_expires_at = $11`,
			loc.IP, loc.CountryCode, loc.CountryName, loc.City, loc.Latitude, loc.Longitude,
			loc.ASN, loc.ASOrg, loc.Source, loc.CachedAt, loc.CacheExpiresAt); err != nil {
			return apperr.WrapStore("upserting location", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.WrapStore("committing endpoint scan", err)
	}
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, ip string, port int) (*store.Endpoint, *store.StatusSnapshot, error) {
	var ep store.Endpoint
	ep.IP, ep.Port = ip, port
	err := s.pool.QueryRow(ctx, `
		SELECT first_seen, last_seen, last_online, total_scans, successful_scans, availability_pct
		FROM endpoints WHERE ip = $1 AND port = $2`, ip, port).
		Scan(&ep.FirstSeen, &ep.LastSeen, &ep.LastOnline, &ep.TotalScans, &ep.SuccessfulScans, &ep.AvailabilityPct)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, apperr.WrapStore("reading endpoint", err)
	}

	var snap store.StatusSnapshot
	snap.IP, snap.Port = ip, port
	var faviconHash, errorKind *string
	err = s.pool.QueryRow(ctx, `
		SELECT scanned_at, online, latency_ms, protocol_version, version_name, motd_raw, motd_clean, motd_formatted,
		       online_players, max_players, software, mod_type, online_mode, enforces_secure_chat,
		       prevents_chat_reports, favicon_hash, error_kind
		FROM status_snapshots WHERE ip = $1 AND port = $2 ORDER BY scanned_at DESC LIMIT 1`, ip, port).
		Scan(&snap.ScannedAt, &snap.Online, &snap.LatencyMS, &snap.ProtocolVersion, &snap.VersionName,
			&snap.MOTDRaw, &snap.MOTDClean, &snap.MOTDFormatted, &snap.OnlinePlayers, &snap.MaxPlayers, &snap.Software, &snap.ModType,
			&snap.OnlineMode, &snap.EnforcesSecureChat, &snap.PreventsChatReports, &faviconHash, &errorKind)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &ep, nil, nil
		}
		return nil, nil, apperr.WrapStore("reading status snapshot", err)
	}
	if faviconHash != nil {
		snap.FaviconHash = *faviconHash
	}
	if errorKind != nil {
		snap.ErrorKind = *errorKind
	}
	return &ep, &snap, nil
}

func (s *Store) Search(ctx context.Context, filter store.SearchFilter, limit int) ([]store.StatusSnapshot, error) {
	conds := []string{"(motd_clean ILIKE $1 OR version_name ILIKE $1)"}
	args := []any{"%" + filter.Query + "%"}
	n := 2
	if filter.Software != "" {
		conds = append(conds, fmt.Sprintf("software = $%d", n))
		args = append(args, filter.Software)
		n++
	}
	if filter.Version != "" {
		conds = append(conds, fmt.Sprintf("version_name = $%d", n))
		args = append(args, filter.Version)
		n++
	}
	if filter.OnlineMode != "" {
		conds = append(conds, fmt.Sprintf("online_mode = $%d", n))
		args = append(args, filter.OnlineMode)
		n++
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT ip, port, scanned_at, online, version_name, motd_clean, software
		FROM status_snapshots
		WHERE %s
		ORDER BY scanned_at DESC LIMIT $%d`, strings.Join(conds, " AND "), n)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.WrapStore("searching snapshots", err)
	}
	defer rows.Close()

	var out []store.StatusSnapshot
	for rows.Next() {
		var snap store.StatusSnapshot
		if err := rows.Scan(&snap.IP, &snap.Port, &snap.ScannedAt, &snap.Online, &snap.VersionName, &snap.MOTDClean, &snap.Software); err != nil {
			return nil, apperr.WrapStore("scanning search row", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) StartRun(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `INSERT INTO scan_runs (started_at) VALUES ($1) RETURNING id`, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, apperr.WrapStore("starting run", err)
	}
	return id, nil
}

func (s *Store) FinishRun(ctx context.Context, runID int64, targetsDone, online, errors int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scan_runs SET finished_at = $1, targets_done = $2, online_found = $3, errors = $4 WHERE id = $5`,
		time.Now().UTC(), targetsDone, online, errors, runID)
	if err != nil {
		return apperr.WrapStore("finishing run", err)
	}
	return nil
}

func (s *Store) TotalServers(ctx context.Context, filter store.StatsFilter) (int64, error) {
	where, args := filterClause(filter)
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT ip || ':' || port) FROM status_snapshots `+where, args...).Scan(&total)
	if err != nil {
		return 0, apperr.WrapStore("counting total servers", err)
	}
	return total, nil
}

func (s *Store) ServersBySoftware(ctx context.Context, filter store.StatsFilter) ([]store.SoftwareCount, error) {
	where, args := filterClause(filter)
	rows, err := s.pool.Query(ctx, `
		SELECT software, COUNT(*) FROM status_snapshots `+where+` GROUP BY software ORDER BY COUNT(*) DESC`, args...)
	if err != nil {
		return nil, apperr.WrapStore("grouping by software", err)
	}
	defer rows.Close()
	var out []store.SoftwareCount
	for rows.Next() {
		var c store.SoftwareCount
		if err := rows.Scan(&c.Software, &c.Count); err != nil {
			return nil, apperr.WrapStore("scanning software count", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ServersByVersion(ctx context.Context, filter store.StatsFilter) ([]store.VersionCount, error) {
	where, args := filterClause(filter)
	rows, err := s.pool.Query(ctx, `
		SELECT version_name, COUNT(*) FROM status_snapshots `+where+` GROUP BY version_name ORDER BY COUNT(*) DESC`, args...)
	if err != nil {
		return nil, apperr.WrapStore("grouping by version", err)
	}
	defer rows.Close()
	var out []store.VersionCount
	for rows.Next() {
		var c store.VersionCount
		if err := rows.Scan(&c.VersionName, &c.Count); err != nil {
			return nil, apperr.WrapStore("scanning version count", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) OnlineOfflineCounts(ctx context.Context, filter store.StatsFilter) (int64, int64, error) {
	where, args := filterClause(filter)
	rows, err := s.pool.Query(ctx, `SELECT online, COUNT(*) FROM status_snapshots `+where+` GROUP BY online`, args...)
	if err != nil {
		return 0, 0, apperr.WrapStore("counting online/offline", err)
	}
	defer rows.Close()
	var online, offline int64
	for rows.Next() {
		var isOnline bool
		var count int64
		if err := rows.Scan(&isOnline, &count); err != nil {
			return 0, 0, apperr.WrapStore("scanning online/offline row", err)
		}
		if isOnline {
			online = count
		} else {
			offline = count
		}
	}
	return online, offline, rows.Err()
}

func (s *Store) UniquePlayerCount(ctx context.Context, filter store.StatsFilter) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&count); err != nil {
		return 0, apperr.WrapStore("counting unique players", err)
	}
	return count, nil
}

func (s *Store) UniqueModCount(ctx context.Context, filter store.StatsFilter) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM mods`).Scan(&count); err != nil {
		return 0, apperr.WrapStore("counting unique mods", err)
	}
	return count, nil
}

func (s *Store) CachedLocation(ctx context.Context, ip string) (*store.Location, error) {
	var loc store.Location
	loc.IP = ip
	err := s.pool.QueryRow(ctx, `
		SELECT country_code, country_name, city, latitude, longitude, asn, as_org, source, cached_at, cache_expires_at
		FROM locations WHERE ip = $1 AND cache_expires_at > $2`, ip, time.Now().UTC()).
		Scan(&loc.CountryCode, &loc.CountryName, &loc.City, &loc.Latitude, &loc.Longitude,
			&loc.ASN, &loc.ASOrg, &loc.Source, &loc.CachedAt, &loc.CacheExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.WrapStore("reading cached location", err)
	}
	return &loc, nil
}

func (s *Store) ImportBlacklist(ctx context.Context, entries []store.BlacklistEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.WrapStore("beginning blacklist import transaction", err)
	}
	defer tx.Rollback(ctx)
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO blacklist_entries (value, reason, created_at) VALUES ($1, $2, $3)
			ON CONFLICT (value) DO UPDATE SET reason = $2`,
			e.Value, e.Reason, time.Now().UTC()); err != nil {
			return apperr.WrapStore("inserting blacklist entry", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.WrapStore("committing blacklist import", err)
	}
	return nil
}

func (s *Store) ListBlacklist(ctx context.Context) ([]store.BlacklistEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, value, reason, created_at FROM blacklist_entries ORDER BY id`)
	if err != nil {
		return nil, apperr.WrapStore("listing blacklist", err)
	}
	defer rows.Close()
	var out []store.BlacklistEntry
	for rows.Next() {
		var e store.BlacklistEntry
		if err := rows.Scan(&e.ID, &e.Value, &e.Reason, &e.CreatedAt); err != nil {
			return nil, apperr.WrapStore("scanning blacklist entry", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func filterClause(f store.StatsFilter) (string, []any) {
	var conds []string
	var args []any
	n := 0
	next := func() string { n++; return fmt.Sprintf("$%d", n) }
	if !f.Since.IsZero() {
		conds = append(conds, "scanned_at >= "+next())
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		conds = append(conds, "scanned_at <= "+next())
		args = append(args, f.Until)
	}
	if f.RunID != 0 {
		conds = append(conds, "run_id = "+next())
		args = append(args, f.RunID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

var _ store.Store = (*Store)(nil)
