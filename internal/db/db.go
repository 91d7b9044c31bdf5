// Package db opens catalog databases and owns their schema.
//
// Two engines are supported: PostgreSQL through github.com/lib/pq and
// SQLite through modernc.org/sqlite. Callers pick one by driver name and get
// back a *sqlx.DB; everything above this package is written against that
// handle and does not care which engine sits underneath, apart from the
// DDL in schema.go and the error codes in errors.go.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Dialect names a supported SQL engine. Its value is the database/sql
// driver name.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DialectOf reports the dialect of an open connection.
func DialectOf(conn *sqlx.DB) Dialect {
	return Dialect(conn.DriverName())
}

// Open connects to the database and verifies it is reachable.
//
// For SQLite the foreign_keys pragma is always enabled, since referential
// actions are part of the catalog's contract, lower() folds non-ASCII
// letters, and in-memory databases are pinned to a single connection so
// every query sees the same database.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	dialect := Dialect(driver)
	switch dialect {
	case Postgres:
	case SQLite:
		if err := registerFunctions(); err != nil {
			return nil, fmt.Errorf("register sqlite functions: %w", err)
		}
		dsn = withForeignKeys(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if dialect == SQLite && isMemory(dsn) {
		conn.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	return conn, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
