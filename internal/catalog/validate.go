// internal/catalog/validate.go
package catalog

import (
	"fmt"

	"locallibrary/internal/validator"
)

// Field limits, in characters.
const (
	MaxGenreName    = 200
	MaxLanguageName = 50
	MaxAuthorName   = 100
	MaxTitle        = 100
	MaxSummary      = 1000
	MaxISBN         = 13
	MaxImprint      = 200
)

func checkRequired(v *validator.Validator, value, key string, max int) {
	v.Check(validator.NotBlank(value), key, "must be provided")
	checkMax(v, value, key, max)
}

func checkMax(v *validator.Validator, value, key string, max int) {
	v.Check(validator.MaxChars(value, max), key, fmt.Sprintf("must not be more than %d characters", max))
}

func result(entity string, v *validator.Validator) error {
	if v.Valid() {
		return nil
	}
	return &ValidationError{Entity: entity, Fields: v.Errors}
}

// Validate checks the genre's field constraints.
func (g *Genre) Validate() error {
	v := validator.New()
	checkRequired(v, g.Name, "name", MaxGenreName)
	return result("genre", v)
}

// Validate checks the language's field constraints.
func (l *Language) Validate() error {
	v := validator.New()
	checkRequired(v, l.Name, "name", MaxLanguageName)
	return result("language", v)
}

// Validate checks the author's field constraints. Birth and death dates
// are not compared.
func (a *Author) Validate() error {
	v := validator.New()
	checkRequired(v, a.FirstName, "first_name", MaxAuthorName)
	checkRequired(v, a.LastName, "last_name", MaxAuthorName)
	return result("author", v)
}

// Validate checks the book's field constraints. References are checked by
// the database when the book is saved.
func (b *Book) Validate() error {
	v := validator.New()
	checkRequired(v, b.Title, "title", MaxTitle)
	checkRequired(v, b.Summary, "summary", MaxSummary)
	checkRequired(v, b.ISBN, "isbn", MaxISBN)
	return result("book", v)
}

// Validate checks the instance's field constraints.
func (i *BookInstance) Validate() error {
	v := validator.New()
	checkMax(v, i.Imprint, "imprint", MaxImprint)
	v.Check(validator.PermittedValue(i.Status, LoanStatuses()...), "status", fmt.Sprintf("%q is not a valid loan status", string(i.Status)))
	return result("book instance", v)
}
