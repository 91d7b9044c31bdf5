// internal/catalog/authors.go
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"locallibrary/internal/changelog"
)

const authorEntity = "author"

const selectAuthor = `SELECT id, first_name, last_name, date_of_birth, date_of_death FROM catalog_author`

type authorStore struct {
	*store
}

// normalize puts dates read back from the driver into UTC.
func (a *Author) normalize() {
	a.DateOfBirth = truncateDate(a.DateOfBirth)
	a.DateOfDeath = truncateDate(a.DateOfDeath)
}

func (s *authorStore) Create(ctx context.Context, a *Author) (*Author, error) {
	ctx, span := s.start(ctx, "authors.create")
	defer span.End()

	if err := a.Validate(); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	created := *a
	created.normalize()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := insert(ctx, tx, authorEntity, `
			INSERT INTO catalog_author (first_name, last_name, date_of_birth, date_of_death)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, created.FirstName, created.LastName, created.DateOfBirth, created.DateOfDeath)
		if err != nil {
			return err
		}
		created.ID = id

		_, err = s.log.Append(ctx, tx, authorEntity, strconv.FormatInt(id, 10), changelog.Created, created)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int64("author.id", created.ID))
	return &created, nil
}

func (s *authorStore) Get(ctx context.Context, id int64) (*Author, error) {
	ctx, span := s.start(ctx, "authors.get", attribute.Int64("author.id", id))
	defer span.End()

	a := &Author{}
	if err := get(ctx, s.q(), a, authorEntity, id, selectAuthor+` WHERE id = $1`); err != nil {
		return nil, s.fail(ctx, span, err)
	}
	a.normalize()
	return a, nil
}

func (s *authorStore) Update(ctx context.Context, a *Author) error {
	ctx, span := s.start(ctx, "authors.update", attribute.Int64("author.id", a.ID))
	defer span.End()

	if err := a.Validate(); err != nil {
		return s.fail(ctx, span, err)
	}

	updated := *a
	updated.normalize()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, authorEntity, false, `
			UPDATE catalog_author
			SET first_name = $1, last_name = $2, date_of_birth = $3, date_of_death = $4
			WHERE id = $5
		`, updated.FirstName, updated.LastName, updated.DateOfBirth, updated.DateOfDeath, updated.ID)
		if err != nil {
			return err
		}
		if err := mustAffect(res, authorEntity, updated.ID); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, authorEntity, strconv.FormatInt(updated.ID, 10), changelog.Updated, updated)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// Delete removes an author. It fails with ErrRestricted while any book
// still refers to the author.
func (s *authorStore) Delete(ctx context.Context, id int64) error {
	ctx, span := s.start(ctx, "authors.delete", attribute.Int64("author.id", id))
	defer span.End()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, authorEntity, true, `DELETE FROM catalog_author WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := mustAffect(res, authorEntity, id); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, authorEntity, strconv.FormatInt(id, 10), changelog.Deleted, map[string]int64{"id": id})
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// List returns authors ordered by last name, then first name.
func (s *authorStore) List(ctx context.Context) ([]*Author, error) {
	ctx, span := s.start(ctx, "authors.list")
	defer span.End()

	authors := []*Author{}
	if err := sqlx.SelectContext(ctx, s.q(), &authors, selectAuthor+` ORDER BY last_name, first_name, id`); err != nil {
		return nil, s.fail(ctx, span, fmt.Errorf("failed to list authors: %w", err))
	}
	for _, a := range authors {
		a.normalize()
	}

	span.SetAttributes(attribute.Int("authors.loaded", len(authors)))
	return authors, nil
}

// Books returns the author's books ordered by title.
func (s *authorStore) Books(ctx context.Context, authorID int64) ([]*Book, error) {
	ctx, span := s.start(ctx, "authors.books", attribute.Int64("author.id", authorID))
	defer span.End()

	books, err := selectBooks(ctx, s.q(), `WHERE b.author_id = $1`, authorID)
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int("books.loaded", len(books)))
	return books, nil
}
