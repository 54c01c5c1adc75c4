// Package sqlitestore is the embedded-database Store backend: one WAL
// mode SQLite file, single-writer by construction since database/sql
// serializes writes behind the driver's connection lock. Grounded on
// the teacher's internal/migrations runner and spec.md §4.10's
// "embedded backend" requirement.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/store"
	"github.com/voxelwatch/scanner/internal/store/migrations"
)

// Store is the SQLite-backed implementation of store.Store.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if needed) the SQLite file at path, enables WAL
// mode, and caps the pool to a single connection — sqlite has no
// concept of concurrent writers, so letting database/sql hand out more
// than one just produces SQLITE_BUSY under load.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, apperr.WrapStore("opening sqlite database", err)
	}
	db.SetMaxOpenConns(1)

	return &Store{db: db, log: log}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	runner := migrations.NewRunner(execAdapter{s.db}, migrations.SQLite, s.log)
	if err := runner.Up(ctx); err != nil {
		return apperr.WrapStore("running sqlite migrations", err)
	}
	return nil
}

// execAdapter satisfies migrations.Executor over a *sql.DB, which
// already accepts '?' placeholders for the sqlite3 driver.
type execAdapter struct{ db *sql.DB }

func (a execAdapter) ExecContext(ctx context.Context, query string, args ...any) error {
	_, err := a.db.ExecContext(ctx, query, args...)
	return err
}

func (a execAdapter) QueryRowContext(ctx context.Context, query string, args ...any) migrations.Row {
	return a.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) PutEndpointScan(ctx context.Context, scan store.EndpointScan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.WrapStore("beginning transaction", err)
	}
	defer tx.Rollback()

	snap := scan.Snapshot
	now := snap.ScannedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var successDelta int
	var lastOnline any
	if snap.Online {
		successDelta = 1
		lastOnline = now
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO endpoints (ip, port, first_seen, last_seen, last_online, total_scans, successful_scans, availability_pct)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(ip, port) DO UPDATE SET
			last_seen = excluded.last_seen,
			last_online = CASE WHEN excluded.last_online IS NOT NULL THEN excluded.last_online ELSE endpoints.last_online END,
			total_scans = endpoints.total_scans + excluded.total_scans,
			successful_scans = endpoints.successful_scans + excluded.successful_scans,
			availability_pct = CAST(endpoints.successful_scans + excluded.successful_scans AS REAL)
				/ (endpoints.total_scans + excluded.total_scans) * 100`,
		snap.IP, snap.Port, now, now, lastOnline, successDelta, float64(successDelta)*100); err != nil {
		return apperr.WrapStore("upserting endpoint", err)
	}

	if scan.Favicon != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO favicons (hash, base64, first_seen) VALUES (?, ?, ?)
			ON CONFLICT(hash) DO NOTHING`,
			scan.Favicon.Hash, scan.Favicon.Base64, now); err != nil {
			return apperr.WrapStore("inserting favicon", err)
		}
	}

	var faviconHash any
	if scan.Favicon != nil {
		faviconHash = scan.Favicon.Hash
	}

	var runID any
	if scan.RunID != 0 {
		runID = scan.RunID
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO status_snapshots
			(run_id, ip, port, scanned_at, online, latency_ms, protocol_version, version_name,
			 motd_raw, motd_clean, motd_formatted, online_players, max_players, software, mod_type, online_mode,
			 enforces_secure_chat, prevents_chat_reports, favicon_hash, error_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, snap.IP, snap.Port, now, snap.Online, snap.LatencyMS, snap.ProtocolVersion, snap.VersionName,
		snap.MOTDRaw, snap.MOTDClean, snap.MOTDFormatted, snap.OnlinePlayers, snap.MaxPlayers, snap.Software, snap.ModType, snap.OnlineMode,
		snap.EnforcesSecureChat, snap.PreventsChatReports, faviconHash, snap.ErrorKind)
	if err != nil {
		return apperr.WrapStore("inserting status snapshot", err)
	}
	snapshotID, err := result.LastInsertId()
	if err != nil {
		return apperr.WrapStore("reading inserted snapshot id", err)
	}

	for _, p := range scan.Players {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO players (uuid, name, first_seen, last_seen) VALUES (?, ?, ?, ?)
			ON CONFLICT(uuid) DO UPDATE SET name = excluded.name, last_seen = excluded.last_seen`,
			p.UUID, p.Name, now, now); err != nil {
			return apperr.WrapStore("upserting player", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO player_sessions (player_uuid, ip, port, seen_at) VALUES (?, ?, ?, ?)`,
			p.UUID, snap.IP, snap.Port, now); err != nil {
			return apperr.WrapStore("inserting player session", err)
		}
	}

	for _, m := range scan.Mods {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mods (name, version, type) VALUES (?, ?, ?)
			ON CONFLICT(name, version, type) DO NOTHING`,
			m.Name, m.Version, m.Type); err != nil {
			return apperr.WrapStore("upserting mod", err)
		}
		row := tx.QueryRowContext(ctx, `SELECT id FROM mods WHERE name = ? AND version = ? AND type = ?`,
			m.Name, m.Version, m.Type)
		var modID int64
		if err := row.Scan(&modID); err != nil {
			return apperr.WrapStore("reading mod id", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO server_mods (snapshot_id, mod_id) VALUES (?, ?)
			ON CONFLICT(snapshot_id, mod_id) DO NOTHING`,
			snapshotID, modID); err != nil {
			return apperr.WrapStore("linking server mod", err)
		}
	}

	if loc := scan.Location; loc != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO locations
				(ip, country_code, country_name, city, latitude, longitude, asn, as_org, source, cached_at, cache_expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ip) DO UPDATE SET
				country_code = excluded.country_code, country_name = excluded.country_name,
				city = excluded.city, latitude = excluded.latitude, longitude = excluded.longitude,
				asn = excluded.asn, as_org = excluded.as_org, source = excluded.source,
				cached_at = excluded.cached_at, cache_expires_at = excluded.cache_expires_at`,
			loc.IP, loc.CountryCode, loc.CountryName, loc.City, loc.Latitude, loc.Longitude,
			loc.ASN, loc.ASOrg, loc.Source, loc.CachedAt, loc.CacheExpiresAt); err != nil {
			return apperr.WrapStore("upserting location", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.WrapStore("committing endpoint scan", err)
	}
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, ip string, port int) (*store.Endpoint, *store.StatusSnapshot, error) {
	var ep store.Endpoint
	ep.IP, ep.Port = ip, port
	row := s.db.QueryRowContext(ctx, `
		SELECT first_seen, last_seen, last_online, total_scans, successful_scans, availability_pct
		FROM endpoints WHERE ip = ? AND port = ?`, ip, port)
	var lastOnline sql.NullTime
	if err := row.Scan(&ep.FirstSeen, &ep.LastSeen, &lastOnline, &ep.TotalScans, &ep.SuccessfulScans, &ep.AvailabilityPct); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, apperr.WrapStore("reading endpoint", err)
	}
	if lastOnline.Valid {
		ep.LastOnline = &lastOnline.Time
	}

	var snap store.StatusSnapshot
	snap.IP, snap.Port = ip, port
	row = s.db.QueryRowContext(ctx, `
		SELECT scanned_at, online, latency_ms, protocol_version, version_name, motd_raw, motd_clean, motd_formatted,
		       online_players, max_players, software, mod_type, online_mode, enforces_secure_chat,
		       prevents_chat_reports, favicon_hash, error_kind
		FROM status_snapshots WHERE ip = ? AND port = ? ORDER BY scanned_at DESC LIMIT 1`, ip, port)
	var faviconHash, errorKind sql.NullString
	if err := row.Scan(&snap.ScannedAt, &snap.Online, &snap.LatencyMS, &snap.ProtocolVersion, &snap.VersionName,
		&snap.MOTDRaw, &snap.MOTDClean, &snap.MOTDFormatted, &snap.OnlinePlayers, &snap.MaxPlayers, &snap.Software, &snap.ModType,
		&snap.OnlineMode, &snap.EnforcesSecureChat, &snap.PreventsChatReports, &faviconHash, &errorKind); err != nil {
		if err == sql.ErrNoRows {
			return &ep, nil, nil
		}
		return nil, nil, apperr.WrapStore("reading status snapshot", err)
	}
	snap.FaviconHash = faviconHash.String
	snap.ErrorKind = errorKind.String
	return &ep, &snap, nil
}

func (s *Store) Search(ctx context.Context, filter store.SearchFilter, limit int) ([]store.StatusSnapshot, error) {
	conds := []string{"(motd_clean LIKE ? OR version_name LIKE ?)"}
	args := []any{"%" + filter.Query + "%", "%" + filter.Query + "%"}
	if filter.Software != "" {
		conds = append(conds, "software = ?")
		args = append(args, filter.Software)
	}
	if filter.Version != "" {
		conds = append(conds, "version_name = ?")
		args = append(args, filter.Version)
	}
	if filter.OnlineMode != "" {
		conds = append(conds, "online_mode = ?")
		args = append(args, filter.OnlineMode)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT ip, port, scanned_at, online, version_name, motd_clean, software
		FROM status_snapshots
		WHERE %s
		ORDER BY scanned_at DESC LIMIT ?`, strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	result, err := s.db.ExecContext(ctx, `INSERT INTO scan_runs (started_at) VALUES (?)`, time.Now().UTC())
	if err != nil {
		return 0, apperr.WrapStore("starting run", err)
	}
	return result.LastInsertId()
}

func (s *Store) FinishRun(ctx context.Context, runID int64, targetsDone, online, errors int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scan_runs SET finished_at = ?, targets_done = ?, online_found = ?, errors = ? WHERE id = ?`,
		time.Now().UTC(), targetsDone, online, errors, runID)
	if err != nil {
		return apperr.WrapStore("finishing run", err)
	}
	return nil
}

func (s *Store) TotalServers(ctx context.Context, filter store.StatsFilter) (int64, error) {
	where, args := filterClause(filter)
	var total int64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT ip || ':' || port) FROM status_snapshots `+where, args...)
	if err := row.Scan(&total); err != nil {
		return 0, apperr.WrapStore("counting total servers", err)
	}
	return total, nil
}

func (s *Store) ServersBySoftware(ctx context.Context, filter store.StatsFilter) ([]store.SoftwareCount, error) {
	where, args := filterClause(filter)
	rows, err := s.db.QueryContext(ctx, `
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
	rows, err := s.db.QueryContext(ctx, `
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
	rows, err := s.db.QueryContext(ctx, `SELECT online, COUNT(*) FROM status_snapshots `+where+` GROUP BY online`, args...)
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
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`)
	if err := row.Scan(&count); err != nil {
		return 0, apperr.WrapStore("counting unique players", err)
	}
	return count, nil
}

func (s *Store) UniqueModCount(ctx context.Context, filter store.StatsFilter) (int64, error) {
	var count int64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mods`)
	if err := row.Scan(&count); err != nil {
		return 0, apperr.WrapStore("counting unique mods", err)
	}
	return count, nil
}

func (s *Store) CachedLocation(ctx context.Context, ip string) (*store.Location, error) {
	var loc store.Location
	loc.IP = ip
	row := s.db.QueryRowContext(ctx, `
		SELECT country_code, country_name, city, latitude, longitude, asn, as_org, source, cached_at, cache_expires_at
		FROM locations WHERE ip = ? AND cache_expires_at > ?`, ip, time.Now().UTC())
	if err := row.Scan(&loc.CountryCode, &loc.CountryName, &loc.City, &loc.Latitude, &loc.Longitude,
		&loc.ASN, &loc.ASOrg, &loc.Source, &loc.CachedAt, &loc.CacheExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.WrapStore("reading cached location", err)
	}
	return &loc, nil
}

func (s *Store) ImportBlacklist(ctx context.Context, entries []store.BlacklistEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.WrapStore("beginning blacklist import transaction", err)
	}
	defer tx.Rollback()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blacklist_entries (value, reason, created_at) VALUES (?, ?, ?)
			ON CONFLICT(value) DO UPDATE SET reason = excluded.reason`,
			e.Value, e.Reason, time.Now().UTC()); err != nil {
			return apperr.WrapStore("inserting blacklist entry", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.WrapStore("committing blacklist import", err)
	}
	return nil
}

func (s *Store) ListBlacklist(ctx context.Context) ([]store.BlacklistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, value, reason, created_at FROM blacklist_entries ORDER BY id`)
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
	return s.db.Close()
}

func filterClause(f store.StatsFilter) (string, []any) {
	var conds []string
	var args []any
	if !f.Since.IsZero() {
		conds = append(conds, "scanned_at >= ?")
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		conds = append(conds, "scanned_at <= ?")
		args = append(args, f.Until)
	}
	if f.RunID != 0 {
		conds = append(conds, "run_id = ?")
		args = append(args, f.RunID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return fmt.Sprintf("WHERE %s", strings.Join(conds, " AND ")), args
}

var _ store.Store = (*Store)(nil)
