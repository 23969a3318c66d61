package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Config struct {
	Dialect      Dialect
	DSN          string
	MaxOpenConns int
}

func EnsureDataDir(cfg Config) error {
	if cfg.Dialect != SQLite || isMemoryDSN(cfg.DSN) {
		return nil
	}
	path := strings.TrimPrefix(cfg.DSN, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func Open(cfg Config) (*sql.DB, error) {
	if !cfg.Dialect.Valid() {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Dialect)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("open %s: empty dsn", cfg.Dialect)
	}
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open(cfg.Dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Dialect, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	if cfg.Dialect == SQLite {
		if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma foreign_keys: %w", err)
		}
		if !isMemoryDSN(cfg.DSN) {
			if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("pragma journal_mode: %w", err)
			}
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Dialect, err)
	}

	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}
