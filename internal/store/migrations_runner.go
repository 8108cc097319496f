package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"gitea.jw6.us/james/dashboard/internal/migrations"
)

// PgxPool is the subset of pgxpool.Pool the store uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// migrationLockKey is the advisory lock taken while a schema step runs.
const migrationLockKey int64 = 0x64617368 // "dash"

const createSchemaTable = `CREATE TABLE IF NOT EXISTS dashboard_schema (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migration is one embedded SQL file, ordered by its numeric prefix.
type migration struct {
	version int
	file    string
}

// ApplyMigrations runs every embedded migration newer than the recorded
// schema version. Each step commits on its own together with its version row.
func ApplyMigrations(ctx context.Context, pool PgxPool) error {
	defer observeDB(ctx, "db.migrate")()

	steps, err := loadMigrations(migrations.Files)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaTable); err != nil {
		return fmt.Errorf("create dashboard_schema: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM dashboard_schema`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range steps {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, pool, m); err != nil {
			return err
		}
	}
	return nil
}

// loadMigrations lists NNN_name.sql files in fsys by version.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	seen := make(map[int]string, len(names))
	steps := make([]migration, 0, len(names))
	for _, name := range names {
		prefix, _, ok := strings.Cut(name, "_")
		v, err := strconv.Atoi(prefix)
		if !ok || err != nil || v < 1 {
			return nil, fmt.Errorf("migration %s: name must start with a version number", name)
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, v)
		}
		seen[v] = name
		steps = append(steps, migration{version: v, file: name})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// applyMigration runs one step under the advisory lock. A replica that waited
// on the lock finds the version recorded and skips it.
func applyMigration(ctx context.Context, pool PgxPool, m migration) error {
	body, err := fs.ReadFile(migrations.Files, m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.file, err)
	}
	err = pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return fmt.Errorf("lock: %w", err)
		}
		var done bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dashboard_schema WHERE version = $1)`, m.version).Scan(&done); err != nil {
			return fmt.Errorf("check version: %w", err)
		}
		if done {
			return nil
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO dashboard_schema (version, name) VALUES ($1, $2)`, m.version, m.file)
		return err
	})
	if err != nil {
		return fmt.Errorf("apply migration %s: %w", m.file, err)
	}
	return nil
}
