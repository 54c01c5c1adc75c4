// Package migrations applies versioned schema changes to a store
// backend, adapted from the teacher's internal/migrations runner:
// same embedded-SQL and checksum-column shape, but generalized so both
// backends can share it. Unlike the original it drops
// schema-qualification (sqlite has no CREATE SCHEMA) and records a real
// SHA-256 checksum instead of a toy polynomial hash. A migration's
// statements run one at a time without a transaction, and recorded
// checksums are not re-checked against the embedded files.
package migrations

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Dialect selects which embedded SQL set a Runner applies.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var migrationFiles embed.FS

// Migration is one versioned schema change.
type Migration struct {
	Version  int
	Name     string
	UpSQL    string
	Checksum string
}

// Executor is the minimal database capability the runner needs. Both
// store backends' connections satisfy it directly.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) error
	QueryRowContext(ctx context.Context, query string, args ...any) Row
}

// Row is a single-row query result, matching database/sql's Scan shape
// closely enough that both the sqlite and pgx wrappers can implement it
// without an adapter layer.
type Row interface {
	Scan(dest ...any) error
}

// Runner applies pending migrations for one dialect.
type Runner struct {
	db      Executor
	dialect Dialect
	logger  *zap.Logger
}

// NewRunner builds a Runner for the given executor and dialect.
func NewRunner(db Executor, dialect Dialect, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{db: db, dialect: dialect, logger: logger}
}

// Up applies every migration newer than the current schema version.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("migrations: ensuring schema_migrations table: %w", err)
	}

	all, err := r.loadMigrations()
	if err != nil {
		return fmt.Errorf("migrations: loading embedded SQL: %w", err)
	}

	current, err := r.currentVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrations: reading current version: %w", err)
	}

	pending := make([]*Migration, 0)
	for _, m := range all {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		r.logger.Info("no pending migrations", zap.Int("current_version", current))
		return nil
	}

	r.logger.Info("applying migrations", zap.Int("count", len(pending)), zap.Int("from_version", current))
	for _, m := range pending {
		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("migrations: applying version %d (%s): %w", m.Version, m.Name, err)
		}
		r.logger.Info("migration applied", zap.Int("version", m.Version), zap.String("name", m.Name))
	}
	return nil
}

func (r *Runner) ensureMigrationsTable(ctx context.Context) error {
	return r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
}

func (r *Runner) currentVersion(ctx context.Context) (int, error) {
	var version *int
	row := r.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`)
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	if version == nil {
		return 0, nil
	}
	return *version, nil
}

func (r *Runner) apply(ctx context.Context, m *Migration) error {
	for _, stmt := range splitStatements(m.UpSQL) {
		if err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing statement: %w", err)
		}
	}
	return r.db.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)`,
		m.Version, m.Name, m.Checksum)
}

func (r *Runner) loadMigrations() ([]*Migration, error) {
	dir := "sql/" + string(r.dialect)
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, err
	}

	var migrations []*Migration
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := parseMigrationFile(dir, entry.Name())
		if err != nil {
			r.logger.Warn("skipping invalid migration file", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func parseMigrationFile(dir, filename string) (*Migration, error) {
	base := strings.TrimSuffix(filename, ".sql")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid migration filename %q, want NNN_name.sql", filename)
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid version in filename %q: %w", filename, err)
	}
	content, err := migrationFiles.ReadFile(dir + "/" + filename)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(content)
	return &Migration{
		Version:  version,
		Name:     parts[1],
		UpSQL:    string(content),
		Checksum: hex.EncodeToString(sum[:]),
	}, nil
}

func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" && !strings.HasPrefix(stmt, "--") {
			out = append(out, stmt)
		}
	}
	return out
}
