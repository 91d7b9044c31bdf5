// Package dbtest provides fresh catalog databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"locallibrary/internal/db"
)

var (
	pgOnce sync.Once
	pgErr  error
)

// SQLite returns an empty in-memory database with the schema applied.
func SQLite(t testing.TB) *sqlx.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), string(db.SQLite), ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return conn
}

// Postgres connects to the server described by the PG* environment
// variables, drops any catalog tables and recreates the schema. It skips
// the test if the server cannot be reached.
func Postgres(t testing.TB) *sqlx.DB {
	t.Helper()

	pgOnce.Do(func() {
		conn, err := db.Open(context.Background(), string(db.Postgres), postgresDSN())
		if err != nil {
			pgErr = err
			return
		}
		conn.Close()
	})
	if pgErr != nil {
		t.Skipf("skipping postgres tests: could not connect to postgres: %v", pgErr)
	}

	conn, err := db.Open(context.Background(), string(db.Postgres), postgresDSN())
	if err != nil {
		t.Fatalf("failed to open postgres database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	drop := "DROP TABLE IF EXISTS " + strings.Join(db.Tables, ", ") + " CASCADE"
	if _, err := conn.Exec(drop); err != nil {
		t.Fatalf("failed to clean database: %v", err)
	}
	if err := db.CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return conn
}

// Each runs fn once per supported engine as a subtest.
func Each(t *testing.T, fn func(t *testing.T, conn *sqlx.DB)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		fn(t, SQLite(t))
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, Postgres(t))
	})
}

func postgresDSN() string {
	pgUser := getEnv("PGUSER", "user")
	pgPassword := getEnv("PGPASSWORD", "password")
	pgHost := getEnv("PGHOST", "localhost")
	pgPort := getEnv("PGPORT", "5432")
	pgDB := getEnv("PGDATABASE", "testdb")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgHost, pgPort, pgUser, pgPassword, pgDB)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
