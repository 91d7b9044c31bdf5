// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"locallibrary/internal/changelog"
)

// GenreRepository stores genres.
type GenreRepository interface {
	Create(ctx context.Context, g *Genre) (*Genre, error)
	Get(ctx context.Context, id int64) (*Genre, error)
	Update(ctx context.Context, g *Genre) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Genre, error)
}

// LanguageRepository stores languages.
type LanguageRepository interface {
	Create(ctx context.Context, l *Language) (*Language, error)
	Get(ctx context.Context, id int64) (*Language, error)
	Update(ctx context.Context, l *Language) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Language, error)
}

// AuthorRepository stores authors.
type AuthorRepository interface {
	Create(ctx context.Context, a *Author) (*Author, error)
	Get(ctx context.Context, id int64) (*Author, error)
	Update(ctx context.Context, a *Author) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Author, error)
	Books(ctx context.Context, authorID int64) ([]*Book, error)
}

// BookRepository stores books and their genre links.
type BookRepository interface {
	Create(ctx context.Context, b *Book) (*Book, error)
	Get(ctx context.Context, id int64) (*Book, error)
	// Update saves the book's own fields. Genre links are changed with
	// SetGenres.
	Update(ctx context.Context, b *Book) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Book, error)
	Genres(ctx context.Context, bookID int64) ([]*Genre, error)
	SetGenres(ctx context.Context, bookID int64, genreIDs []int64) error
	Instances(ctx context.Context, bookID int64) ([]*BookInstance, error)
}

// InstanceRepository stores book instances.
type InstanceRepository interface {
	Create(ctx context.Context, i *BookInstance) (*BookInstance, error)
	Get(ctx context.Context, id uuid.UUID) (*BookInstance, error)
	Update(ctx context.Context, i *BookInstance) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*BookInstance, error)
}

// Catalog bundles the repositories of one database.
type Catalog struct {
	Genres    GenreRepository
	Languages LanguageRepository
	Authors   AuthorRepository
	Books     BookRepository
	Instances InstanceRepository
	Log       *changelog.Log

	store *store
}

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Catalog.
type Option func(*options)

// WithTracerProvider sets the provider spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider sets the provider the violation counter is created
// from. The global provider is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// New creates the repositories over conn. Every write also appends a
// change-log entry in the same transaction.
func New(conn *sqlx.DB, opts ...Option) *Catalog {
	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := changelog.NewLog(conn, changelog.WithTracerProvider(o.tracerProvider))
	return newCatalog(newStore(conn, log, o))
}

func newCatalog(s *store) *Catalog {
	return &Catalog{
		Genres:    &genreStore{s},
		Languages: &languageStore{s},
		Authors:   &authorStore{s},
		Books:     &bookStore{s},
		Instances: &instanceStore{s},
		Log:       s.log,
		store:     s,
	}
}

// WithTx runs fn with a catalog whose repositories all share one
// transaction. It commits if fn returns nil and rolls back otherwise.
// Calling WithTx on a catalog that is already inside a transaction runs fn
// in that transaction.
func (c *Catalog) WithTx(ctx context.Context, fn func(tx *Catalog) error) error {
	return c.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if c.store.tx != nil {
			return fn(c)
		}
		bound := *c.store
		bound.tx = tx
		return fn(newCatalog(&bound))
	})
}
