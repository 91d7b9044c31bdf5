package main

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locallibrary/internal/catalog"
	"locallibrary/internal/urls"
)

const fixturePath = "../../internal/fixtures/testdata/catalog.json"

// runCLI runs the command line against the sqlite file dbPath.
func runCLI(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"-t", "sqlite", "-d", dbPath}, args...), &stdout, &stderr)
	t.Log(stderr.String())
	return stdout.String(), err
}

func newDatabase(t *testing.T) string {
	t.Helper()
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	path := filepath.Join(t.TempDir(), "catalog.db")
	_, err := runCLI(t, path, "migrate")
	require.NoError(t, err)
	_, err = runCLI(t, path, "load", fixturePath)
	require.NoError(t, err)
	return path
}

func TestList(t *testing.T) {
	path := newDatabase(t)

	out, err := runCLI(t, path, "list", "books")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^1\s+Dune\s+/catalog/book/1$`, out)
	assert.Regexp(t, `(?m)^2\s+The Left Hand of Darkness\s+/catalog/book/2$`, out)

	out, err = runCLI(t, path, "list", "authors")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^1\s+Frank Herbert\s+/catalog/author/1\n2\s+Ursula Le Guin\s+/catalog/author/2$`, out)

	out, err = runCLI(t, path, "list", "genres")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^2\s+Classics\s+/catalog/genre/2$`, out)

	out, err = runCLI(t, path, "list", "languages")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^1\s+English\s+/catalog/language/1$`, out)

	out, err = runCLI(t, path, "list", "instances")
	require.NoError(t, err)
	assert.Regexp(t, `4b0d5e2a-5c1f-4a8e-9a0c-2f6d3c7e9b11 \(Dune\)\s+On loan\s+due 2025-02-01`, out)
	assert.Regexp(t, `9d3e7c51-0f4b-4e25-8c3a-6b1d2a8f4c90 \(Dune\)\s+Available\s+-`, out)

	_, err = runCLI(t, path, "list", "members")
	assert.ErrorIs(t, err, errUsage)
}

func TestResolve(t *testing.T) {
	path := newDatabase(t)

	out, err := runCLI(t, path, "resolve", "/catalog/book/1")
	require.NoError(t, err)
	assert.Equal(t, "book-detail 1: Dune (2 copies)\n", out)

	out, err = runCLI(t, path, "resolve", "/catalog/author/2")
	require.NoError(t, err)
	assert.Equal(t, "author-detail 2: Ursula Le Guin (The Left Hand of Darkness)\n", out)

	out, err = runCLI(t, path, "resolve", "/catalog/genre/1")
	require.NoError(t, err)
	assert.Equal(t, "genre-detail 1: Science Fiction\n", out)

	_, err = runCLI(t, path, "resolve", "/catalog/genre/99")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = runCLI(t, path, "resolve", "/catalog/shelf/1")
	assert.ErrorIs(t, err, urls.ErrNoMatch)
}

func TestHistory(t *testing.T) {
	path := newDatabase(t)

	out, err := runCLI(t, path, "history", "book", "1")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^v1\s+created\s+.*"title":"Dune"`, out)

	_, err = runCLI(t, path, "history", "book", "42")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDumpAndReload(t *testing.T) {
	path := newDatabase(t)
	dumpFile := filepath.Join(t.TempDir(), "dump.json")

	_, err := runCLI(t, path, "dump", dumpFile)
	require.NoError(t, err)

	copyPath := filepath.Join(t.TempDir(), "copy.db")
	_, err = runCLI(t, copyPath, "migrate")
	require.NoError(t, err)
	_, err = runCLI(t, copyPath, "load", dumpFile)
	require.NoError(t, err)

	out, err := runCLI(t, copyPath, "list", "instances")
	require.NoError(t, err)
	assert.Contains(t, out, "4b0d5e2a-5c1f-4a8e-9a0c-2f6d3c7e9b11 (Dune)")

	out, err = runCLI(t, path, "dump")
	require.NoError(t, err)
	assert.Contains(t, out, `"model": "catalog.bookinstance"`)
}

func TestUsageErrors(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	path := filepath.Join(t.TempDir(), "catalog.db")

	_, err := runCLI(t, path)
	assert.ErrorIs(t, err, errUsage)

	_, err = runCLI(t, path, "reindex")
	assert.ErrorIs(t, err, errUsage)

	_, err = runCLI(t, path, "load")
	assert.ErrorIs(t, err, errUsage)

	_, err = runCLI(t, path, "migrate", "now")
	assert.ErrorIs(t, err, errUsage)

	_, err = runCLI(t, path, "-h")
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestDue(t *testing.T) {
	a := &app{now: func() time.Time { return time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC) }}

	due := catalog.Date(2025, 2, 1)
	assert.Equal(t, "due 2025-02-01 (3 days ago)", a.due(&due))

	due = catalog.Date(2025, 2, 7)
	assert.Equal(t, "due 2025-02-07 (3 days from now)", a.due(&due))

	assert.Equal(t, "-", a.due(nil))
}
