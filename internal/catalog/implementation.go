// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"locallibrary/internal/changelog"
)

const instrumentationName = "locallibrary/catalog"

// store holds what every repository shares.
type store struct {
	db         *sqlx.DB
	tx         *sqlx.Tx // set when the store is bound to one transaction
	log        *changelog.Log
	tracer     trace.Tracer
	violations metric.Int64Counter
}

func newStore(conn *sqlx.DB, log *changelog.Log, o options) *store {
	violations, err := o.meterProvider.Meter(instrumentationName).Int64Counter(
		"catalog.constraint_violations",
		metric.WithDescription("Writes refused by a database constraint"),
	)
	if err != nil {
		violations = noop.Int64Counter{}
	}

	return &store{
		db:         conn,
		log:        log,
		tracer:     o.tracerProvider.Tracer(instrumentationName),
		violations: violations,
	}
}

func (s *store) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "catalog."+name, trace.WithAttributes(attrs...))
}

// q is what reads run against: the bound transaction if there is one.
func (s *store) q() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// withTx runs fn in a transaction, committing only if fn succeeds. A store
// bound to a transaction runs fn in it and leaves the commit to its owner.
func (s *store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// fail records err on the span. Constraint violations are also counted.
func (s *store) fail(ctx context.Context, span trace.Span, err error) error {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		s.violations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("constraint", ce.Constraint),
			attribute.String("kind", ce.kind.Error()),
		))
		span.SetAttributes(attribute.String("constraint", ce.Constraint))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// exec runs a write and translates constraint failures.
func exec(ctx context.Context, tx *sqlx.Tx, entity string, deleting bool, query string, args ...any) (sql.Result, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, entity, deleting)
	}
	return res, nil
}

// insert runs an INSERT ... RETURNING id.
func insert(ctx context.Context, tx *sqlx.Tx, entity string, query string, args ...any) (int64, error) {
	var id int64
	if err := tx.GetContext(ctx, &id, query, args...); err != nil {
		return 0, translate(err, entity, false)
	}
	return id, nil
}

// mustAffect turns a write that matched no row into ErrNotFound.
func mustAffect(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
	}
	return nil
}

// get loads one row into dest, mapping sql.ErrNoRows to ErrNotFound.
func get(ctx context.Context, q sqlx.QueryerContext, dest any, entity string, id any, query string) error {
	err := sqlx.GetContext(ctx, q, dest, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s %v: %w", entity, id, err)
	}
	return nil
}

// exists reports whether table has a row with the given id.
func exists(ctx context.Context, tx *sqlx.Tx, table string, id any) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", table, err)
	}
	return n > 0, nil
}
