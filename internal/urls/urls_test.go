package urls

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testRoutes = map[string]string{
	"genre-detail":  "/catalog/genre/{id:[0-9]+}",
	"book-detail":   "/catalog/book/{id:[0-9]+}",
	"shelf-detail":  "/catalog/shelf/{code:[A-Z]{2}}/{slot}",
	"catalog-index": "/catalog",
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r, err := New(testRoutes)
	require.NoError(t, err)
	return r
}

func TestReverse(t *testing.T) {
	r := newTestRouter(t)

	path, err := r.Reverse("genre-detail", 12)
	require.NoError(t, err)
	assert.Equal(t, "/catalog/genre/12", path)

	path, err = r.Reverse("shelf-detail", "AB", "top shelf")
	require.NoError(t, err)
	assert.Equal(t, "/catalog/shelf/AB/top%20shelf", path)

	path, err = r.Reverse("catalog-index")
	require.NoError(t, err)
	assert.Equal(t, "/catalog", path)
}

func TestReverseFailures(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		args []any
	}{
		{"author-detail", []any{1}},
		{"genre-detail", nil},
		{"genre-detail", []any{1, 2}},
		{"genre-detail", []any{"fantasy"}},
		{"genre-detail", []any{-4}},
		{"shelf-detail", []any{"abc", "x"}},
	}
	for _, tt := range tests {
		_, err := r.Reverse(tt.name, tt.args...)
		assert.ErrorIs(t, err, ErrNoReverseMatch, "%s %v", tt.name, tt.args)
	}
}

func TestResolve(t *testing.T) {
	r := newTestRouter(t)

	m, err := r.Resolve("/catalog/book/42")
	require.NoError(t, err)
	assert.Equal(t, "book-detail", m.Name)
	assert.Equal(t, "/catalog/book/{id:[0-9]+}", m.Pattern)
	id, err := m.Int64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = m.Int64("slug")
	assert.Error(t, err)

	m, err = r.Resolve("/catalog/shelf/QX/3")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"code": "QX", "slot": "3"}, m.Params)

	for _, path := range []string{"/catalog/book/abc", "/catalog/author/1", "/elsewhere", "/catalog/book/"} {
		_, err := r.Resolve(path)
		assert.ErrorIs(t, err, ErrNoMatch, path)
	}
}

func TestRegisterRejectsBadRoutes(t *testing.T) {
	r := newTestRouter(t)

	assert.Error(t, r.Register("", "/x"))
	assert.Error(t, r.Register("x", "no-slash"))
	assert.Error(t, r.Register("genre-detail", "/other"))
	assert.Error(t, r.Register("genre-again", "/catalog/genre/{id:[0-9]+}"))
	assert.Error(t, r.Register("broken", "/catalog/{id"))
	assert.Error(t, r.Register("broken", "/catalog/id}"))
}

func TestReverseResolveRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	rapid.Check(t, func(t *rapid.T) {
		name := rapid.SampledFrom([]string{"genre-detail", "book-detail"}).Draw(t, "name")
		id := rapid.Int64Min(0).Draw(t, "id")

		path, err := r.Reverse(name, id)
		if err != nil {
			t.Fatalf("Reverse(%s, %d): %v", name, id, err)
		}
		m, err := r.Resolve(path)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", path, err)
		}
		if m.Name != name || m.Params["id"] != strconv.FormatInt(id, 10) {
			t.Fatalf("Resolve(%s) = %+v, want %s with id %d", path, m, name, id)
		}
	})
}
