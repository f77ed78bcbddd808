// Package database opens the relational backends (SQLite or PostgreSQL) and
// applies the embedded schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// Dialect identifies the SQL flavour of an open DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// DB wraps a sql.DB with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// OpenSQLite opens (or creates) the SQLite database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("database: open sqlite: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under load.
	conn.SetMaxOpenConns(1)
	return finish(ctx, conn, SQLite)
}

// OpenPostgres connects to PostgreSQL through the pgx stdlib driver and migrates it.
func OpenPostgres(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open postgres: %w", err)
	}
	conn.SetMaxOpenConns(8)
	conn.SetConnMaxIdleTime(5 * time.Minute)
	return finish(ctx, conn, Postgres)
}

func finish(ctx context.Context, conn *sql.DB, d Dialect) (*DB, error) {
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	if err := migrate(ctx, conn, d); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{DB: conn, Dialect: d}, nil
}

func migrate(ctx context.Context, conn *sql.DB, d Dialect) error {
	sub, err := fs.Sub(migrations, "migrations/"+dialectDir(d))
	if err != nil {
		return fmt.Errorf("database: migrations fs: %w", err)
	}
	goose.SetBaseFS(sub)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(d)); err != nil {
		return fmt.Errorf("database: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, conn, "."); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

func dialectDir(d Dialect) string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Rebind rewrites '?' placeholders into the dialect's native form.
func (db *DB) Rebind(query string) string {
	if db.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
