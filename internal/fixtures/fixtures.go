// Package fixtures loads and dumps catalog records in the JSON fixture
// format of Django's loaddata/dumpdata:
//
//	[
//	  {"model": "catalog.genre", "pk": 1, "fields": {"name": "Fantasy"}},
//	  {"model": "catalog.book", "pk": 1, "fields": {"title": "Dune", "author": 1, "genre": [1], ...}}
//	]
//
// Fixture primary keys only link records within one file. Records get new
// ids when loaded, except book instances, which keep their UUID.
package fixtures

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"

	"locallibrary/internal/catalog"
)

// Model names, in the order records are loaded.
const (
	ModelLanguage     = "catalog.language"
	ModelGenre        = "catalog.genre"
	ModelAuthor       = "catalog.author"
	ModelBook         = "catalog.book"
	ModelBookInstance = "catalog.bookinstance"
)

var loadOrder = []string{ModelLanguage, ModelGenre, ModelAuthor, ModelBook, ModelBookInstance}

// ErrUnknownModel is returned for a record whose model is not a catalog model.
var ErrUnknownModel = errors.New("unknown model")

// Record is one fixture entry.
type Record struct {
	Model  string          `json:"model"`
	PK     json.RawMessage `json:"pk,omitempty"`
	Fields json.RawMessage `json:"fields"`
}

type nameFields struct {
	Name string `json:"name"`
}

type authorFields struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DateOfBirth *string `json:"date_of_birth"`
	DateOfDeath *string `json:"date_of_death"`
}

type bookFields struct {
	Title    string  `json:"title"`
	Author   *int64  `json:"author"`
	Summary  string  `json:"summary"`
	ISBN     string  `json:"isbn"`
	Language *int64  `json:"language"`
	Genre    []int64 `json:"genre"`
}

type instanceFields struct {
	Book    *int64  `json:"book"`
	Imprint string  `json:"imprint"`
	DueBack *string `json:"due_back"`
	Status  string  `json:"status"`
}

// Counts reports how many records of each model were loaded or dumped.
type Counts map[string]int

// Total is the number of records across all models.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Read decodes a fixture document.
func Read(r io.Reader) ([]Record, error) {
	var records []Record
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	return records, nil
}

// Load creates every record in r through the catalog's repositories, all
// in one transaction. Records are created in dependency order regardless
// of their order in the file. If any record fails nothing is kept and the
// returned counts are empty.
func Load(ctx context.Context, c *catalog.Catalog, r io.Reader) (Counts, error) {
	records, err := Read(r)
	if err != nil {
		return Counts{}, err
	}

	for i, rec := range records {
		if !slices.Contains(loadOrder, rec.Model) {
			return Counts{}, fmt.Errorf("record %d: %w %q", i, ErrUnknownModel, rec.Model)
		}
	}
	slices.SortStableFunc(records, func(a, b Record) int {
		return slices.Index(loadOrder, a.Model) - slices.Index(loadOrder, b.Model)
	})

	var counts Counts
	err = c.WithTx(ctx, func(tx *catalog.Catalog) error {
		l := &loader{
			catalog:   tx,
			counts:    Counts{},
			languages: map[int64]int64{},
			genres:    map[int64]int64{},
			authors:   map[int64]int64{},
			books:     map[int64]int64{},
		}
		for _, rec := range records {
			if err := l.load(ctx, rec); err != nil {
				return fmt.Errorf("%s %s: %w", rec.Model, pkString(rec.PK), err)
			}
			l.counts[rec.Model]++
		}
		counts = l.counts
		return nil
	})
	if err != nil {
		return Counts{}, err
	}
	return counts, nil
}

type loader struct {
	catalog *catalog.Catalog
	counts  Counts

	// fixture pk -> database id
	languages map[int64]int64
	genres    map[int64]int64
	authors   map[int64]int64
	books     map[int64]int64
}

func (l *loader) load(ctx context.Context, rec Record) error {
	switch rec.Model {
	case ModelLanguage:
		var f nameFields
		if err := json.Unmarshal(rec.Fields, &f); err != nil {
			return err
		}
		created, err := l.catalog.Languages.Create(ctx, &catalog.Language{Name: f.Name})
		if err != nil {
			return err
		}
		return remember(rec.PK, l.languages, created.ID)

	case ModelGenre:
		var f nameFields
		if err := json.Unmarshal(rec.Fields, &f); err != nil {
			return err
		}
		created, err := l.catalog.Genres.Create(ctx, &catalog.Genre{Name: f.Name})
		if err != nil {
			return err
		}
		return remember(rec.PK, l.genres, created.ID)

	case ModelAuthor:
		var f authorFields
		if err := json.Unmarshal(rec.Fields, &f); err != nil {
			return err
		}
		a := &catalog.Author{FirstName: f.FirstName, LastName: f.LastName}
		var err error
		if a.DateOfBirth, err = parseDate(f.DateOfBirth); err != nil {
			return err
		}
		if a.DateOfDeath, err = parseDate(f.DateOfDeath); err != nil {
			return err
		}
		created, err := l.catalog.Authors.Create(ctx, a)
		if err != nil {
			return err
		}
		return remember(rec.PK, l.authors, created.ID)

	case ModelBook:
		var f bookFields
		if err := json.Unmarshal(rec.Fields, &f); err != nil {
			return err
		}
		b := &catalog.Book{Title: f.Title, Summary: f.Summary, ISBN: f.ISBN}
		var err error
		if b.AuthorID, err = lookup(l.authors, f.Author, "author"); err != nil {
			return err
		}
		if b.LanguageID, err = lookup(l.languages, f.Language, "language"); err != nil {
			return err
		}
		for _, pk := range f.Genre {
			id, err := lookup(l.genres, &pk, "genre")
			if err != nil {
				return err
			}
			b.GenreIDs = append(b.GenreIDs, *id)
		}
		created, err := l.catalog.Books.Create(ctx, b)
		if err != nil {
			return err
		}
		return remember(rec.PK, l.books, created.ID)

	case ModelBookInstance:
		var f instanceFields
		if err := json.Unmarshal(rec.Fields, &f); err != nil {
			return err
		}
		inst := &catalog.BookInstance{Imprint: f.Imprint}
		if len(rec.PK) > 0 && string(rec.PK) != "null" {
			var pk string
			if err := json.Unmarshal(rec.PK, &pk); err != nil {
				return fmt.Errorf("pk must be a UUID string: %w", err)
			}
			id, err := uuid.Parse(pk)
			if err != nil {
				return fmt.Errorf("invalid pk: %w", err)
			}
			inst.ID = id
		}
		var err error
		if inst.BookID, err = lookup(l.books, f.Book, "book"); err != nil {
			return err
		}
		if inst.DueBack, err = parseDate(f.DueBack); err != nil {
			return err
		}
		if f.Status != "" {
			if inst.Status, err = catalog.ParseLoanStatus(f.Status); err != nil {
				return err
			}
		}
		_, err = l.catalog.Instances.Create(ctx, inst)
		return err
	}
	return fmt.Errorf("%w %q", ErrUnknownModel, rec.Model)
}

// remember maps the record's fixture pk to id. Records without a pk
// cannot be referenced and are not remembered.
func remember(raw json.RawMessage, ids map[int64]int64, id int64) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var pk int64
	if err := json.Unmarshal(raw, &pk); err != nil {
		return fmt.Errorf("pk must be an integer: %w", err)
	}
	if _, dup := ids[pk]; dup {
		return fmt.Errorf("pk %d appears more than once", pk)
	}
	ids[pk] = id
	return nil
}

func lookup(ids map[int64]int64, pk *int64, what string) (*int64, error) {
	if pk == nil {
		return nil, nil
	}
	id, ok := ids[*pk]
	if !ok {
		return nil, fmt.Errorf("%s %d is not in the fixture: %w", what, *pk, catalog.ErrInvalidReference)
	}
	return &id, nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := catalog.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func pkString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "(no pk)"
	}
	return string(bytes.Trim(raw, `"`))
}
