// internal/catalog/instances.go
package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"locallibrary/internal/changelog"
)

const instanceEntity = "book instance"

// changelogInstance is the entity type instances are logged under.
const changelogInstance = "bookinstance"

type instanceStore struct {
	*store
}

func (i *BookInstance) normalize() {
	i.DueBack = truncateDate(i.DueBack)
}

// Create inserts an instance. A zero id is replaced with a fresh random
// UUID and an empty status with StatusMaintenance.
func (s *instanceStore) Create(ctx context.Context, i *BookInstance) (*BookInstance, error) {
	created := *i
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	if created.Status == "" {
		created.Status = StatusMaintenance
	}
	created.normalize()

	ctx, span := s.start(ctx, "instances.create", attribute.String("instance.id", created.ID.String()))
	defer span.End()

	if err := created.Validate(); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := exec(ctx, tx, instanceEntity, false, `
			INSERT INTO catalog_bookinstance (id, book_id, imprint, due_back, status)
			VALUES ($1, $2, $3, $4, $5)
		`, created.ID, created.BookID, created.Imprint, created.DueBack, string(created.Status))
		if err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, changelogInstance, created.ID.String(), changelog.Created, created)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}
	return &created, nil
}

// Get returns the instance with its book title filled in.
func (s *instanceStore) Get(ctx context.Context, id uuid.UUID) (*BookInstance, error) {
	ctx, span := s.start(ctx, "instances.get", attribute.String("instance.id", id.String()))
	defer span.End()

	inst := &BookInstance{}
	if err := get(ctx, s.q(), inst, instanceEntity, id, selectInstance+` WHERE i.id = $1`); err != nil {
		return nil, s.fail(ctx, span, err)
	}
	inst.normalize()
	return inst, nil
}

// Update saves the instance. Any status may follow any other.
func (s *instanceStore) Update(ctx context.Context, i *BookInstance) error {
	ctx, span := s.start(ctx, "instances.update",
		attribute.String("instance.id", i.ID.String()),
		attribute.String("instance.status", string(i.Status)),
	)
	defer span.End()

	if err := i.Validate(); err != nil {
		return s.fail(ctx, span, err)
	}

	updated := *i
	updated.normalize()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, instanceEntity, false, `
			UPDATE catalog_bookinstance
			SET book_id = $1, imprint = $2, due_back = $3, status = $4
			WHERE id = $5
		`, updated.BookID, updated.Imprint, updated.DueBack, string(updated.Status), updated.ID)
		if err != nil {
			return err
		}
		if err := mustAffect(res, instanceEntity, updated.ID); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, changelogInstance, updated.ID.String(), changelog.Updated, updated)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

func (s *instanceStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.start(ctx, "instances.delete", attribute.String("instance.id", id.String()))
	defer span.End()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := exec(ctx, tx, instanceEntity, true, `DELETE FROM catalog_bookinstance WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := mustAffect(res, instanceEntity, id); err != nil {
			return err
		}

		_, err = s.log.Append(ctx, tx, changelogInstance, id.String(), changelog.Deleted, map[string]string{"id": id.String()})
		return err
	})
	if err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// List returns every instance ordered by due date. Instances without a due
// date come last.
func (s *instanceStore) List(ctx context.Context) ([]*BookInstance, error) {
	ctx, span := s.start(ctx, "instances.list")
	defer span.End()

	instances, err := selectInstances(ctx, s.q(), "")
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int("instances.loaded", len(instances)))
	return instances, nil
}

const selectInstance = `
	SELECT i.id, i.book_id, i.imprint, i.due_back, i.status, COALESCE(b.title, '') AS book_title
	FROM catalog_bookinstance i
	LEFT JOIN catalog_book b ON b.id = i.book_id`

func selectInstances(ctx context.Context, conn sqlx.ExtContext, where string, args ...any) ([]*BookInstance, error) {
	instances := []*BookInstance{}
	query := selectInstance + "\n" + where + "\nORDER BY i.due_back IS NULL, i.due_back, i.id"
	if err := sqlx.SelectContext(ctx, conn, &instances, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list book instances: %w", err)
	}
	for _, inst := range instances {
		inst.normalize()
	}
	return instances, nil
}
