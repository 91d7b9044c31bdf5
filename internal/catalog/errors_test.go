package catalog

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locallibrary/internal/db"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		deleting   bool
		want       error
		constraint string
		message    string
	}{
		{
			name:       "duplicate isbn",
			err:        &pq.Error{Code: "23505", Constraint: "catalog_book_isbn_key"},
			want:       ErrDuplicate,
			constraint: "catalog_book_isbn_key",
			message:    "Book with this ISBN already exists",
		},
		{
			name:       "case variant genre",
			err:        &pq.Error{Code: "23505", Constraint: db.GenreNameIndex},
			want:       ErrDuplicate,
			constraint: db.GenreNameIndex,
			message:    "Genre already exists (case insensitive match)",
		},
		{
			name:       "delete of referenced author",
			err:        &pq.Error{Code: "23503", Constraint: "catalog_book_author_id_fkey"},
			deleting:   true,
			want:       ErrRestricted,
			constraint: "catalog_book_author_id_fkey",
			message:    "author is still referenced and cannot be deleted",
		},
		{
			name:       "insert with missing author",
			err:        &pq.Error{Code: "23503", Constraint: "catalog_book_author_id_fkey"},
			want:       ErrInvalidReference,
			constraint: "catalog_book_author_id_fkey",
			message:    "author refers to a record that does not exist",
		},
		{
			name:       "status check",
			err:        &pq.Error{Code: "23514", Constraint: "catalog_bookinstance_status_check"},
			want:       ErrValidation,
			constraint: "catalog_bookinstance_status_check",
			message:    "author has an invalid value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translate(tt.err, "author", tt.deleting)

			var ce *ConstraintError
			require.ErrorAs(t, err, &ce)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.constraint, ce.Constraint)
			assert.Equal(t, tt.message, ce.Message)
		})
	}
}

func TestTranslatePassesOtherErrorsThrough(t *testing.T) {
	plain := errors.New("connection reset")
	assert.Same(t, plain, translate(plain, "genre", false))

	syntax := &pq.Error{Code: "42601"}
	assert.Equal(t, error(syntax), translate(syntax, "genre", false))
}

func TestConstraintErrorWithoutDriverError(t *testing.T) {
	err := &ConstraintError{Constraint: db.GenreNameIndex, Message: duplicateGenreMessage, kind: ErrDuplicate}

	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrRestricted)
	assert.EqualError(t, err, "Genre already exists (case insensitive match) (constraint genre_name_case_insensitive_unique)")
}
