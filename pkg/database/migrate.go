package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Normalized output tables and the migration ledger.
const (
	TableSource    = "bb_vod_source"
	TableEpisode   = "bb_vod_episode"
	TableMigration = "bb_migration"
)

// Migration is one forward-only schema step. Statements are kept per
// dialect and run one at a time so no driver needs multi-statement mode.
type Migration struct {
	Version    string
	Name       string
	Statements map[Dialect][]string
}

// Migrations returns every known migration in version order.
func Migrations() []Migration {
	ms := []Migration{addEpisodeTables}
	sort.Slice(ms, func(i, j int) bool { return ms[i].Version < ms[j].Version })
	return ms
}

// Migrate applies pending migrations and returns how many ran. Running it on
// an up-to-date database is a no-op.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) (int, error) {
	if _, err := db.ExecContext(ctx, migrationTableDDL[d]); err != nil {
		return 0, fmt.Errorf("ensure %s: %w", TableMigration, err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}
		stmts, ok := m.Statements[d]
		if !ok {
			return n, fmt.Errorf("migration %s has no %s statements", m.Version, d)
		}
		if err := applyMigration(ctx, db, d, m, stmts); err != nil {
			return n, fmt.Errorf("migration %s_%s: %w", m.Version, m.Name, err)
		}
		n++
	}
	return n, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+TableMigration)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		out[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// applyMigration runs the statements and records the version. MySQL commits
// DDL implicitly, so there the statements run outside a transaction and rely
// on IF NOT EXISTS to be re-runnable.
func applyMigration(ctx context.Context, db *sql.DB, d Dialect, m Migration, stmts []string) error {
	record := d.Rebind(`INSERT INTO ` + TableMigration + ` (version, name, executed_at) VALUES (?, ?, ?)`)
	now := time.Now().Unix()

	if d == MySQL {
		for _, s := range stmts {
			if _, err := db.ExecContext(ctx, s); err != nil {
				return fmt.Errorf("exec: %w", err)
			}
		}
		if _, err := db.ExecContext(ctx, record, m.Version, m.Name, now); err != nil {
			return fmt.Errorf("record: %w", err)
		}
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, record, m.Version, m.Name, now); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
