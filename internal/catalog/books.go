// internal/catalog/books.go
package catalog

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"locallibrary/internal/changelog"
)

const bookEntity = "book"

type bookStore struct {
	*store
}

// Create inserts a book together with its genre links.
func (s *bookStore) Create(ctx context.Context, b *Book) (*Book, error) {
	ctx, span := s.start(ctx, "books.create", attribute.String("book.isbn", b.ISBN))
	defer span.End()

	if err := b.Validate(); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	created := *b
	created.GenreIDs = uniqueIDs(b.GenreIDs)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := insert(ctx, tx, bookEntity, `
			INSERT INTO catalog_book (title, author_id, summary, isbn, language_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, created.Title, created.AuthorID, created.Summary, created.ISBN, created.LanguageID)
		if err != nil {
			return err
		}
		created.ID = id

		if err := linkGenres(ctx, tx, id, created.GenreIDs); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, bookEntity, strconv.FormatInt(id, 10), changelog.Created, created)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int64("book.id", created.ID))
	return &created, nil
}

func (s *bookStore) Get(ctx context.Context, id int64) (*Book, error) {
	ctx, span := s.start(ctx, "books.get", attribute.Int64("book.id", id))
	defer span.End()

	b := &Book{}
	err := get(ctx, s.q(), b, bookEntity, id, `
		SELECT id, title, author_id, summary, isbn, language_id
		FROM catalog_book
		WHERE id = $1
	`)
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	links, err := genreLinks(ctx, s.q(), []int64{id})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}
	b.GenreIDs = links[id]
	return b, nil
}

// Update saves the book's own fields. GenreIDs is ignored.
func (s *bookStore) Update(ctx context.Context, b *Book) error {
	ctx, span := s.start(ctx, "books.update", attribute.Int64("book.id", b.ID))
	defer span.End()

	if err := b.Validate(); err != nil {
		return s.fail(ctx, span, err)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, bookEntity, false, `
			UPDATE catalog_book
			SET title = $1, author_id = $2, summary = $3, isbn = $4, language_id = $5
			WHERE id = $6
		`, b.Title, b.AuthorID, b.Summary, b.ISBN, b.LanguageID, b.ID)
		if err != nil {
			return err
		}
		if err := mustAffect(res, bookEntity, b.ID); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, bookEntity, strconv.FormatInt(b.ID, 10), changelog.Updated, b)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// Delete removes a book and its genre links. It fails with ErrRestricted
// while any instance of the book exists.
func (s *bookStore) Delete(ctx context.Context, id int64) error {
	ctx, span := s.start(ctx, "books.delete", attribute.Int64("book.id", id))
	defer span.End()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, bookEntity, true, `DELETE FROM catalog_book WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := mustAffect(res, bookEntity, id); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, bookEntity, strconv.FormatInt(id, 10), changelog.Deleted, map[string]int64{"id": id})
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// List returns books ordered by title, then author (last name, first
// name). Books without an author sort after those with one.
func (s *bookStore) List(ctx context.Context) ([]*Book, error) {
	ctx, span := s.start(ctx, "books.list")
	defer span.End()

	books, err := selectBooks(ctx, s.q(), "")
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int("books.loaded", len(books)))
	return books, nil
}

// Genres returns the book's genres ordered by name.
func (s *bookStore) Genres(ctx context.Context, bookID int64) ([]*Genre, error) {
	ctx, span := s.start(ctx, "books.genres", attribute.Int64("book.id", bookID))
	defer span.End()

	genres := []*Genre{}
	err := sqlx.SelectContext(ctx, s.q(), &genres, `
		SELECT g.id, g.name
		FROM catalog_genre g
		JOIN catalog_book_genre bg ON bg.genre_id = g.id
		WHERE bg.book_id = $1
		ORDER BY g.name, g.id
	`, bookID)
	if err != nil {
		return nil, s.fail(ctx, span, fmt.Errorf("failed to list genres of book %d: %w", bookID, err))
	}
	return genres, nil
}

// SetGenres replaces the book's genre links with genreIDs.
func (s *bookStore) SetGenres(ctx context.Context, bookID int64, genreIDs []int64) error {
	ctx, span := s.start(ctx, "books.set_genres",
		attribute.Int64("book.id", bookID),
		attribute.Int("genres.count", len(genreIDs)),
	)
	defer span.End()

	ids := uniqueIDs(genreIDs)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, "catalog_book", bookID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s %d: %w", bookEntity, bookID, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_book_genre WHERE book_id = $1`, bookID); err != nil {
			return fmt.Errorf("failed to clear genres of book %d: %w", bookID, err)
		}
		if err := linkGenres(ctx, tx, bookID, ids); err != nil {
			return err
		}

		payload := struct {
			ID       int64   `json:"id"`
			GenreIDs []int64 `json:"genre"`
		}{bookID, ids}
		_, err = s.log.Append(ctx, tx, bookEntity, strconv.FormatInt(bookID, 10), changelog.Updated, payload)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// Instances returns the copies of the book ordered by due date.
func (s *bookStore) Instances(ctx context.Context, bookID int64) ([]*BookInstance, error) {
	ctx, span := s.start(ctx, "books.instances", attribute.Int64("book.id", bookID))
	defer span.End()

	instances, err := selectInstances(ctx, s.q(), `WHERE i.book_id = $1`, bookID)
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int("instances.loaded", len(instances)))
	return instances, nil
}

// selectBooks loads books in the default order, along with their genre
// ids. where is an optional WHERE clause over catalog_book b.
func selectBooks(ctx context.Context, conn sqlx.ExtContext, where string, args ...any) ([]*Book, error) {
	books := []*Book{}
	err := sqlx.SelectContext(ctx, conn, &books, `
		SELECT b.id, b.title, b.author_id, b.summary, b.isbn, b.language_id
		FROM catalog_book b
		LEFT JOIN catalog_author a ON a.id = b.author_id
		`+where+`
		ORDER BY b.title, a.id IS NULL, a.last_name, a.first_name, b.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	if len(books) == 0 {
		return books, nil
	}

	ids := make([]int64, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	links, err := genreLinks(ctx, conn, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		b.GenreIDs = links[b.ID]
	}
	return books, nil
}

// genreLinks returns the genre ids of each book, ascending.
func genreLinks(ctx context.Context, conn sqlx.ExtContext, bookIDs []int64) (map[int64][]int64, error) {
	query, args, err := sqlx.In(`
		SELECT book_id, genre_id
		FROM catalog_book_genre
		WHERE book_id IN (?)
		ORDER BY book_id, genre_id
	`, bookIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build genre query: %w", err)
	}

	var rows []struct {
		BookID  int64 `db:"book_id"`
		GenreID int64 `db:"genre_id"`
	}
	if err := sqlx.SelectContext(ctx, conn, &rows, conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load book genres: %w", err)
	}

	links := make(map[int64][]int64, len(bookIDs))
	for _, r := range rows {
		links[r.BookID] = append(links[r.BookID], r.GenreID)
	}
	return links, nil
}

func linkGenres(ctx context.Context, tx *sqlx.Tx, bookID int64, genreIDs []int64) error {
	for _, genreID := range genreIDs {
		_, err := exec(ctx, tx, bookEntity, false,
			`INSERT INTO catalog_book_genre (book_id, genre_id) VALUES ($1, $2)`, bookID, genreID)
		if err != nil {
			return err
		}
	}
	return nil
}

// uniqueIDs returns ids sorted with duplicates removed, or nil if empty.
func uniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
