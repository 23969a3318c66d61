package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect is the SQL flavour behind a connection. Its string value is the
// database/sql driver name.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect accepts the driver names plus a few common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	}
	return "", fmt.Errorf("unknown database driver %q", s)
}

func (d Dialect) Valid() bool {
	switch d {
	case MySQL, Postgres, SQLite:
		return true
	}
	return false
}

func (d Dialect) DriverName() string { return string(d) }

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
// Queries in this module never carry a literal '?'.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ValuesList renders "(?, ?), (?, ?)" for a multi-row insert.
func ValuesList(rows, cols int) string {
	if rows <= 0 || cols <= 0 {
		return ""
	}
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	var b strings.Builder
	b.Grow(rows * (len(row) + 2))
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
	return b.String()
}

// TruncateStatements empties a table and resets its id sequence.
func (d Dialect) TruncateStatements(table string) []string {
	switch d {
	case Postgres:
		return []string{"TRUNCATE TABLE " + table + " RESTART IDENTITY"}
	case SQLite:
		return []string{
			"DELETE FROM " + table,
			"DELETE FROM sqlite_sequence WHERE name = '" + table + "'",
		}
	default:
		return []string{"TRUNCATE TABLE " + table}
	}
}

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InsertReturningID runs a single-row INSERT written with '?' placeholders and
// returns the generated "id" column.
func (d Dialect) InsertReturningID(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	if d == Postgres {
		var id int64
		if err := q.QueryRowContext(ctx, d.Rebind(query)+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := q.ExecContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}
