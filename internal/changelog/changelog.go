// Package changelog records every catalog mutation as an append-only,
// per-entity versioned entry.
package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"locallibrary/internal/db"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidBatchSize    = errors.New("invalid batch size")
)

// Action is what happened to the entity.
type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Deleted Action = "deleted"
)

// Entry is one recorded mutation.
type Entry struct {
	ID         int64     `json:"id" db:"id"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Action     Action    `json:"action" db:"action"`
	Payload    []byte    `json:"-" db:"payload"`
	Version    int       `json:"version" db:"version"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Decode unmarshals the entry's JSON payload into v.
func (e Entry) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Log reads and appends change-log entries.
type Log struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// Option configures a Log.
type Option func(*Log)

// WithTracerProvider sets the provider spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Log) {
		l.tracer = tp.Tracer("locallibrary/changelog")
	}
}

// NewLog creates a change log over conn.
func NewLog(conn *sqlx.DB, opts ...Option) *Log {
	l := &Log{
		db:     conn,
		tracer: otel.Tracer("locallibrary/changelog"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records a mutation inside the caller's transaction, so the entry
// commits or rolls back together with the change it describes. The entry
// gets the entity's next version; if another transaction claims that
// version first, ErrConcurrencyConflict is returned.
func (l *Log) Append(ctx context.Context, tx *sqlx.Tx, entityType, entityID string, action Action, payload any) (*Entry, error) {
	ctx, span := l.tracer.Start(ctx, "changelog.append",
		trace.WithAttributes(
			attribute.String("entity.type", entityType),
			attribute.String("entity.id", entityID),
			attribute.String("action", string(action)),
		),
	)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var current int
	err = tx.GetContext(ctx, &current, `
		SELECT COALESCE(MAX(version), 0)
		FROM catalog_changelog
		WHERE entity_type = $1 AND entity_id = $2
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query current version: %w", err)
	}

	entry := &Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Payload:    data,
		Version:    current + 1,
		CreatedAt:  time.Now().UTC(),
	}

	err = tx.GetContext(ctx, &entry.ID, `
		INSERT INTO catalog_changelog (entity_type, entity_id, action, payload, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entry.EntityType, entry.EntityID, string(entry.Action), string(entry.Payload), entry.Version, entry.CreatedAt)
	if err != nil {
		if db.Classify(err).Kind == db.Unique {
			span.SetAttributes(attribute.Bool("conflict.detected", true))
			return nil, ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("entry.id", entry.ID),
		attribute.Int("entry.version", entry.Version),
	)
	return entry, nil
}

// History returns every entry recorded for one entity, oldest first.
func (l *Log) History(ctx context.Context, entityType, entityID string) ([]*Entry, error) {
	ctx, span := l.tracer.Start(ctx, "changelog.history",
		trace.WithAttributes(
			attribute.String("entity.type", entityType),
			attribute.String("entity.id", entityID),
		),
	)
	defer span.End()

	entries := []*Entry{}
	err := l.db.SelectContext(ctx, &entries, `
		SELECT id, entity_type, entity_id, action, payload, version, created_at
		FROM catalog_changelog
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY version ASC
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	span.SetAttributes(attribute.Int("entries.loaded", len(entries)))
	return entries, nil
}

// CurrentVersion returns the latest version recorded for an entity, or 0.
func (l *Log) CurrentVersion(ctx context.Context, entityType, entityID string) (int, error) {
	ctx, span := l.tracer.Start(ctx, "changelog.current_version")
	defer span.End()

	var version int
	err := l.db.GetContext(ctx, &version, `
		SELECT COALESCE(MAX(version), 0)
		FROM catalog_changelog
		WHERE entity_type = $1 AND entity_id = $2
	`, entityType, entityID)
	if err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

// Stream returns up to batchSize entries recorded after the entry with id
// fromID, across all entities, in the order they were written.
func (l *Log) Stream(ctx context.Context, fromID int64, batchSize int) ([]*Entry, error) {
	ctx, span := l.tracer.Start(ctx, "changelog.stream",
		trace.WithAttributes(
			attribute.Int64("from.id", fromID),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}

	entries := []*Entry{}
	err := l.db.SelectContext(ctx, &entries, `
		SELECT id, entity_type, entity_id, action, payload, version, created_at
		FROM catalog_changelog
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, fromID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("query stream: %w", err)
	}

	span.SetAttributes(attribute.Int("entries.streamed", len(entries)))
	return entries, nil
}
