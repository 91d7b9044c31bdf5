// internal/catalog/errors.go
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"locallibrary/internal/db"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrValidation       = errors.New("validation failed")
	ErrDuplicate        = errors.New("duplicate record")
	ErrRestricted       = errors.New("record is referenced by other records")
	ErrInvalidReference = errors.New("reference to a missing record")
)

// ValidationError lists the fields of an entity that failed validation.
type ValidationError struct {
	Entity string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ConstraintError is returned when the database refuses a write. It matches
// both the catalog sentinel (ErrDuplicate, ErrRestricted, ...) and the
// underlying driver error.
type ConstraintError struct {
	Constraint string
	Message    string
	kind       error
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (constraint %s)", e.Message, e.Constraint)
}

func (e *ConstraintError) Unwrap() []error {
	errs := []error{e.kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

const duplicateGenreMessage = "Genre already exists (case insensitive match)"

// Friendly messages for constraints a caller is likely to hit. Postgres
// reports constraint names, sqlite the constrained columns.
var constraintMessages = map[string]string{
	db.GenreNameIndex:           duplicateGenreMessage,
	"catalog_book_isbn_key":     "Book with this ISBN already exists",
	"catalog_book.isbn":         "Book with this ISBN already exists",
	"catalog_language_name_key": "Language with this name already exists",
	"catalog_language.name":     "Language with this name already exists",
	"catalog_bookinstance_pkey": "Book instance with this id already exists",
	"catalog_bookinstance.id":   "Book instance with this id already exists",
}

// translate converts a driver error into a *ConstraintError when it is an
// integrity violation. Foreign-key failures mean different things depending
// on whether a row was being removed or written. Any other error is
// returned unchanged.
func translate(err error, entity string, deleting bool) error {
	v := db.Classify(err)

	var kind error
	var message string
	switch v.Kind {
	case db.Unique:
		kind = ErrDuplicate
		message = fmt.Sprintf("%s already exists", entity)
	case db.ForeignKey:
		if deleting {
			kind = ErrRestricted
			message = fmt.Sprintf("%s is still referenced and cannot be deleted", entity)
		} else {
			kind = ErrInvalidReference
			message = fmt.Sprintf("%s refers to a record that does not exist", entity)
		}
	case db.NotNull, db.Check:
		kind = ErrValidation
		message = fmt.Sprintf("%s has an invalid value", entity)
	default:
		return err
	}

	if m, ok := constraintMessages[v.Constraint]; ok {
		message = m
	}
	return &ConstraintError{
		Constraint: v.Constraint,
		Message:    message,
		kind:       kind,
		Err:        err,
	}
}
