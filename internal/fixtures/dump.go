package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"locallibrary/internal/catalog"
)

// Dump writes every catalog record to w as a fixture that Load accepts.
// Database ids are used as fixture pks.
func Dump(ctx context.Context, c *catalog.Catalog, w io.Writer) (Counts, error) {
	var records []Record
	counts := Counts{}
	add := func(model string, pk any, fields any) error {
		pkJSON, err := json.Marshal(pk)
		if err != nil {
			return err
		}
		fieldsJSON, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		records = append(records, Record{Model: model, PK: pkJSON, Fields: fieldsJSON})
		counts[model]++
		return nil
	}

	languages, err := c.Languages.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range languages {
		if err := add(ModelLanguage, l.ID, nameFields{Name: l.Name}); err != nil {
			return nil, err
		}
	}

	genres, err := c.Genres.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range genres {
		if err := add(ModelGenre, g.ID, nameFields{Name: g.Name}); err != nil {
			return nil, err
		}
	}

	authors, err := c.Authors.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range authors {
		f := authorFields{
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			DateOfBirth: formatDate(a.DateOfBirth),
			DateOfDeath: formatDate(a.DateOfDeath),
		}
		if err := add(ModelAuthor, a.ID, f); err != nil {
			return nil, err
		}
	}

	books, err := c.Books.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		f := bookFields{
			Title:    b.Title,
			Author:   b.AuthorID,
			Summary:  b.Summary,
			ISBN:     b.ISBN,
			Language: b.LanguageID,
			Genre:    b.GenreIDs,
		}
		if f.Genre == nil {
			f.Genre = []int64{}
		}
		if err := add(ModelBook, b.ID, f); err != nil {
			return nil, err
		}
	}

	instances, err := c.Instances.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, i := range instances {
		f := instanceFields{
			Book:    i.BookID,
			Imprint: i.Imprint,
			DueBack: formatDate(i.DueBack),
			Status:  string(i.Status),
		}
		if err := add(ModelBookInstance, i.ID.String(), f); err != nil {
			return nil, err
		}
	}

	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to write fixture: %w", err)
	}
	return counts, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
