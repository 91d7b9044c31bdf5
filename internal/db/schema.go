package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GenreNameIndex is the expression index that keeps genre names unique
// regardless of case.
const GenreNameIndex = "genre_name_case_insensitive_unique"

// Tables lists every table CreateSchema creates, dependents first.
var Tables = []string{
	"catalog_changelog",
	"catalog_bookinstance",
	"catalog_book_genre",
	"catalog_book",
	"catalog_author",
	"catalog_language",
	"catalog_genre",
}

// CreateSchema creates all catalog tables and indexes.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, conn *sqlx.DB) error {
	var statements []string
	switch DialectOf(conn) {
	case Postgres:
		statements = postgresSchema
	case SQLite:
		statements = sqliteSchema
	default:
		return fmt.Errorf("no schema for database type %q", conn.DriverName())
	}

	for _, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_genre (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(200) NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + GenreNameIndex + ` ON catalog_genre (LOWER(name))`,

	`CREATE TABLE IF NOT EXISTS catalog_language (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS catalog_author (
		id BIGSERIAL PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		date_of_birth DATE,
		date_of_death DATE
	)`,

	`CREATE TABLE IF NOT EXISTS catalog_book (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(100) NOT NULL,
		author_id BIGINT REFERENCES catalog_author(id) ON DELETE RESTRICT,
		summary TEXT NOT NULL DEFAULT '',
		isbn VARCHAR(13) NOT NULL UNIQUE,
		language_id BIGINT REFERENCES catalog_language(id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_book_author_id ON catalog_book(author_id)`,

	`CREATE TABLE IF NOT EXISTS catalog_book_genre (
		id BIGSERIAL PRIMARY KEY,
		book_id BIGINT NOT NULL REFERENCES catalog_book(id) ON DELETE CASCADE,
		genre_id BIGINT NOT NULL REFERENCES catalog_genre(id) ON DELETE CASCADE,
		UNIQUE (book_id, genre_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_book_genre_genre_id ON catalog_book_genre(genre_id)`,

	`CREATE TABLE IF NOT EXISTS catalog_bookinstance (
		id UUID PRIMARY KEY,
		book_id BIGINT REFERENCES catalog_book(id) ON DELETE RESTRICT,
		imprint VARCHAR(200) NOT NULL DEFAULT '',
		due_back DATE,
		status VARCHAR(1) NOT NULL DEFAULT 'm' CHECK (status IN ('m', 'o', 'a', 'r'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_bookinstance_book_id ON catalog_bookinstance(book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_bookinstance_due_back ON catalog_bookinstance(due_back)`,

	`CREATE TABLE IF NOT EXISTS catalog_changelog (
		id BIGSERIAL PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		payload JSONB NOT NULL,
		version INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (entity_type, entity_id, version)
	)`,
}

// SQLite keeps the declared type names DATE and TIMESTAMP so the driver
// hands those columns back as time.Time.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_genre (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(200) NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + GenreNameIndex + ` ON catalog_genre (LOWER(name))`,

	`CREATE TABLE IF NOT EXISTS catalog_language (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(50) NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS catalog_author (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		date_of_birth DATE,
		date_of_death DATE
	)`,

	`CREATE TABLE IF NOT EXISTS catalog_book (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title VARCHAR(100) NOT NULL,
		author_id INTEGER REFERENCES catalog_author(id) ON DELETE RESTRICT,
		summary TEXT NOT NULL DEFAULT '',
		isbn VARCHAR(13) NOT NULL UNIQUE,
		language_id INTEGER REFERENCES catalog_language(id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_book_author_id ON catalog_book(author_id)`,

	`CREATE TABLE IF NOT EXISTS catalog_book_genre (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		book_id INTEGER NOT NULL REFERENCES catalog_book(id) ON DELETE CASCADE,
		genre_id INTEGER NOT NULL REFERENCES catalog_genre(id) ON DELETE CASCADE,
		UNIQUE (book_id, genre_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_book_genre_genre_id ON catalog_book_genre(genre_id)`,

	`CREATE TABLE IF NOT EXISTS catalog_bookinstance (
		id TEXT PRIMARY KEY,
		book_id INTEGER REFERENCES catalog_book(id) ON DELETE RESTRICT,
		imprint VARCHAR(200) NOT NULL DEFAULT '',
		due_back DATE,
		status VARCHAR(1) NOT NULL DEFAULT 'm' CHECK (status IN ('m', 'o', 'a', 'r'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_bookinstance_book_id ON catalog_bookinstance(book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_bookinstance_due_back ON catalog_bookinstance(due_back)`,

	`CREATE TABLE IF NOT EXISTS catalog_changelog (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		payload TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (entity_type, entity_id, version)
	)`,
}
