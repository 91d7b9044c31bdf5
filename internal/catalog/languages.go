// internal/catalog/languages.go
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"locallibrary/internal/changelog"
)

const languageEntity = "language"

type languageStore struct {
	*store
}

func (s *languageStore) Create(ctx context.Context, l *Language) (*Language, error) {
	ctx, span := s.start(ctx, "languages.create", attribute.String("language.name", l.Name))
	defer span.End()

	if err := l.Validate(); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	created := *l
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := insert(ctx, tx, languageEntity,
			`INSERT INTO catalog_language (name) VALUES ($1) RETURNING id`, l.Name)
		if err != nil {
			return err
		}
		created.ID = id

		_, err = s.log.Append(ctx, tx, languageEntity, strconv.FormatInt(id, 10), changelog.Created, created)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int64("language.id", created.ID))
	return &created, nil
}

func (s *languageStore) Get(ctx context.Context, id int64) (*Language, error) {
	ctx, span := s.start(ctx, "languages.get", attribute.Int64("language.id", id))
	defer span.End()

	l := &Language{}
	if err := get(ctx, s.q(), l, languageEntity, id, `SELECT id, name FROM catalog_language WHERE id = $1`); err != nil {
		return nil, s.fail(ctx, span, err)
	}
	return l, nil
}

func (s *languageStore) Update(ctx context.Context, l *Language) error {
	ctx, span := s.start(ctx, "languages.update", attribute.Int64("language.id", l.ID))
	defer span.End()

	if err := l.Validate(); err != nil {
		return s.fail(ctx, span, err)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, languageEntity, false,
			`UPDATE catalog_language SET name = $1 WHERE id = $2`, l.Name, l.ID)
		if err != nil {
			return err
		}
		if err := mustAffect(res, languageEntity, l.ID); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, languageEntity, strconv.FormatInt(l.ID, 10), changelog.Updated, l)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// Delete removes a language. Books written in it keep existing with no
// language set.
func (s *languageStore) Delete(ctx context.Context, id int64) error {
	ctx, span := s.start(ctx, "languages.delete", attribute.Int64("language.id", id))
	defer span.End()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, languageEntity, true, `DELETE FROM catalog_language WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := mustAffect(res, languageEntity, id); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, languageEntity, strconv.FormatInt(id, 10), changelog.Deleted, map[string]int64{"id": id})
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

func (s *languageStore) List(ctx context.Context) ([]*Language, error) {
	ctx, span := s.start(ctx, "languages.list")
	defer span.End()

	languages := []*Language{}
	if err := sqlx.SelectContext(ctx, s.q(), &languages, `SELECT id, name FROM catalog_language ORDER BY name, id`); err != nil {
		return nil, s.fail(ctx, span, fmt.Errorf("failed to list languages: %w", err))
	}

	span.SetAttributes(attribute.Int("languages.loaded", len(languages)))
	return languages, nil
}
