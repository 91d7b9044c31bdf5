// internal/catalog/genres.go
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"locallibrary/internal/changelog"
	"locallibrary/internal/db"
)

const genreEntity = "genre"

type genreStore struct {
	*store
}

// Create inserts a genre. A name that matches an existing genre ignoring
// case is rejected with ErrDuplicate.
func (s *genreStore) Create(ctx context.Context, g *Genre) (*Genre, error) {
	ctx, span := s.start(ctx, "genres.create", attribute.String("genre.name", g.Name))
	defer span.End()

	if err := g.Validate(); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	created := *g
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := checkGenreName(ctx, tx, g.Name, 0); err != nil {
			return err
		}

		id, err := insert(ctx, tx, genreEntity,
			`INSERT INTO catalog_genre (name) VALUES ($1) RETURNING id`, g.Name)
		if err != nil {
			return err
		}
		created.ID = id

		_, err = s.log.Append(ctx, tx, genreEntity, strconv.FormatInt(id, 10), changelog.Created, created)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int64("genre.id", created.ID))
	return &created, nil
}

func (s *genreStore) Get(ctx context.Context, id int64) (*Genre, error) {
	ctx, span := s.start(ctx, "genres.get", attribute.Int64("genre.id", id))
	defer span.End()

	g := &Genre{}
	if err := get(ctx, s.q(), g, genreEntity, id, `SELECT id, name FROM catalog_genre WHERE id = $1`); err != nil {
		return nil, s.fail(ctx, span, err)
	}
	return g, nil
}

func (s *genreStore) Update(ctx context.Context, g *Genre) error {
	ctx, span := s.start(ctx, "genres.update", attribute.Int64("genre.id", g.ID))
	defer span.End()

	if err := g.Validate(); err != nil {
		return s.fail(ctx, span, err)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := checkGenreName(ctx, tx, g.Name, g.ID); err != nil {
			return err
		}

		res, err := exec(ctx, tx, genreEntity, false,
			`UPDATE catalog_genre SET name = $1 WHERE id = $2`, g.Name, g.ID)
		if err != nil {
			return err
		}
		if err := mustAffect(res, genreEntity, g.ID); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, genreEntity, strconv.FormatInt(g.ID, 10), changelog.Updated, g)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// Delete removes a genre. Books lose the genre; they are not deleted.
func (s *genreStore) Delete(ctx context.Context, id int64) error {
	ctx, span := s.start(ctx, "genres.delete", attribute.Int64("genre.id", id))
	defer span.End()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, genreEntity, true, `DELETE FROM catalog_genre WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := mustAffect(res, genreEntity, id); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, genreEntity, strconv.FormatInt(id, 10), changelog.Deleted, map[string]int64{"id": id})
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

func (s *genreStore) List(ctx context.Context) ([]*Genre, error) {
	ctx, span := s.start(ctx, "genres.list")
	defer span.End()

	genres := []*Genre{}
	if err := sqlx.SelectContext(ctx, s.q(), &genres, `SELECT id, name FROM catalog_genre ORDER BY name, id`); err != nil {
		return nil, s.fail(ctx, span, fmt.Errorf("failed to list genres: %w", err))
	}

	span.SetAttributes(attribute.Int("genres.loaded", len(genres)))
	return genres, nil
}

// checkGenreName looks for another genre whose name equals name ignoring
// case. The unique index on LOWER(name) backs this up against concurrent
// writers.
func checkGenreName(ctx context.Context, tx *sqlx.Tx, name string, exceptID int64) error {
	var n int
	err := tx.GetContext(ctx, &n, `
		SELECT COUNT(*)
		FROM catalog_genre
		WHERE LOWER(name) = LOWER($1) AND id <> $2
	`, name, exceptID)
	if err != nil {
		return fmt.Errorf("failed to check genre name: %w", err)
	}
	if n > 0 {
		return &ConstraintError{
			Constraint: db.GenreNameIndex,
			Message:    duplicateGenreMessage,
			kind:       ErrDuplicate,
		}
	}
	return nil
}
