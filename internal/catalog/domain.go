// internal/catalog/domain.go
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Route names for the entities that have their own page.
const (
	RouteGenreDetail    = "genre-detail"
	RouteBookDetail     = "book-detail"
	RouteAuthorDetail   = "author-detail"
	RouteLanguageDetail = "language-detail"
)

// Routes maps each route name to its path pattern.
var Routes = map[string]string{
	RouteGenreDetail:    "/catalog/genre/{id:[0-9]+}",
	RouteBookDetail:     "/catalog/book/{id:[0-9]+}",
	RouteAuthorDetail:   "/catalog/author/{id:[0-9]+}",
	RouteLanguageDetail: "/catalog/language/{id:[0-9]+}",
}

// Reverser maps a named route and its arguments to a path.
type Reverser interface {
	Reverse(name string, args ...any) (string, error)
}

// Genre represents a book genre, e.g. Science Fiction or French Poetry.
type Genre struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

func (g Genre) String() string {
	return g.Name
}

// AbsoluteURL returns the canonical path of the genre.
func (g Genre) AbsoluteURL(r Reverser) (string, error) {
	return r.Reverse(RouteGenreDetail, g.ID)
}

// Language is the language a book is written in.
type Language struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

func (l Language) String() string {
	return l.Name
}

// AbsoluteURL returns the canonical path of the language.
func (l Language) AbsoluteURL(r Reverser) (string, error) {
	return r.Reverse(RouteLanguageDetail, l.ID)
}

// Author represents an author. Dates are calendar dates held at UTC
// midnight; either may be unknown.
type Author struct {
	ID          int64      `json:"id" db:"id"`
	FirstName   string     `json:"first_name" db:"first_name"`
	LastName    string     `json:"last_name" db:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	DateOfDeath *time.Time `json:"date_of_death,omitempty" db:"date_of_death"`
}

func (a Author) String() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// AbsoluteURL returns the canonical path of the author.
func (a Author) AbsoluteURL(r Reverser) (string, error) {
	return r.Reverse(RouteAuthorDetail, a.ID)
}

// Book represents a title in the catalog, not a specific copy of it.
type Book struct {
	ID         int64   `json:"id" db:"id"`
	Title      string  `json:"title" db:"title"`
	AuthorID   *int64  `json:"author" db:"author_id"`
	Summary    string  `json:"summary" db:"summary"`
	ISBN       string  `json:"isbn" db:"isbn"`
	LanguageID *int64  `json:"language" db:"language_id"`
	GenreIDs   []int64 `json:"genre" db:"-"`
}

func (b Book) String() string {
	return b.Title
}

// AbsoluteURL returns the canonical path of the book.
func (b Book) AbsoluteURL(r Reverser) (string, error) {
	return r.Reverse(RouteBookDetail, b.ID)
}

// LoanStatus is the availability of a book copy, stored as a one-letter code.
type LoanStatus string

const (
	StatusMaintenance LoanStatus = "m"
	StatusOnLoan      LoanStatus = "o"
	StatusAvailable   LoanStatus = "a"
	StatusReserved    LoanStatus = "r"
)

var loanStatusLabels = map[LoanStatus]string{
	StatusMaintenance: "Maintenance",
	StatusOnLoan:      "On loan",
	StatusAvailable:   "Available",
	StatusReserved:    "Reserved",
}

// LoanStatuses returns every status in display order.
func LoanStatuses() []LoanStatus {
	return []LoanStatus{StatusMaintenance, StatusOnLoan, StatusAvailable, StatusReserved}
}

// Label returns the human-readable name of the status.
func (s LoanStatus) Label() string {
	if label, ok := loanStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s LoanStatus) Valid() bool {
	_, ok := loanStatusLabels[s]
	return ok
}

// ParseLoanStatus accepts either a status code ("o") or its label
// ("On loan"), ignoring case.
func ParseLoanStatus(s string) (LoanStatus, error) {
	s = strings.TrimSpace(s)
	for _, status := range LoanStatuses() {
		if strings.EqualFold(s, string(status)) || strings.EqualFold(s, status.Label()) {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown loan status %q", s)
}

// BookInstance is a specific copy of a book that can be borrowed.
type BookInstance struct {
	ID      uuid.UUID  `json:"id" db:"id"`
	BookID  *int64     `json:"book" db:"book_id"`
	Imprint string     `json:"imprint" db:"imprint"`
	DueBack *time.Time `json:"due_back" db:"due_back"`
	Status  LoanStatus `json:"status" db:"status"`

	// BookTitle is filled in when the instance is read back from the
	// catalog; it is not stored on the instance row.
	BookTitle string `json:"-" db:"book_title"`
}

// NewBookInstance returns a copy of the book with a fresh id and the
// default status.
func NewBookInstance(bookID *int64, imprint string) *BookInstance {
	return &BookInstance{
		ID:      uuid.New(),
		BookID:  bookID,
		Imprint: imprint,
		Status:  StatusMaintenance,
	}
}

func (i BookInstance) String() string {
	if i.BookTitle == "" {
		return i.ID.String()
	}
	return fmt.Sprintf("%s (%s)", i.ID, i.BookTitle)
}

// Date returns the calendar date y-m-d as a time at UTC midnight, the form
// in which the catalog stores dates.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}

func truncateDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Date(t.Year(), t.Month(), t.Day())
	return &d
}
