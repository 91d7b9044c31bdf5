// Package urls maps named routes to paths and back.
//
// Patterns use chi syntax ("/catalog/genre/{id:[0-9]+}"). Routes are kept
// in a chi route tree, which is what Resolve matches against; Reverse fills
// in the placeholders and then resolves its own output to make sure the
// arguments actually satisfy the pattern.
package urls

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

var (
	ErrNoReverseMatch = errors.New("no reverse match")
	ErrNoMatch        = errors.New("no route matches path")
)

// Match is the result of resolving a path.
type Match struct {
	Name    string
	Pattern string
	Params  map[string]string
}

// Int64 returns the named URL parameter parsed as an int64.
func (m Match) Int64(key string) (int64, error) {
	v, ok := m.Params[key]
	if !ok {
		return 0, fmt.Errorf("route %s has no parameter %q", m.Name, key)
	}
	return strconv.ParseInt(v, 10, 64)
}

// Router holds a set of named routes.
type Router struct {
	mux      *chi.Mux
	patterns map[string]string
	names    map[string]string
}

// New builds a Router from a name -> pattern table.
func New(routes map[string]string) (*Router, error) {
	r := &Router{
		mux:      chi.NewRouter(),
		patterns: make(map[string]string, len(routes)),
		names:    make(map[string]string, len(routes)),
	}
	for name, pattern := range routes {
		if err := r.Register(name, pattern); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a named route.
func (r *Router) Register(name, pattern string) error {
	if name == "" {
		return errors.New("route name must not be empty")
	}
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("route %s: pattern %q must begin with '/'", name, pattern)
	}
	if _, ok := r.patterns[name]; ok {
		return fmt.Errorf("route %s already registered", name)
	}
	if other, ok := r.names[pattern]; ok {
		return fmt.Errorf("route %s: pattern %q already registered as %s", name, pattern, other)
	}
	if _, err := placeholders(pattern); err != nil {
		return fmt.Errorf("route %s: %w", name, err)
	}

	r.mux.Method(http.MethodGet, pattern, http.NotFoundHandler())
	r.patterns[name] = pattern
	r.names[pattern] = name
	return nil
}

// Reverse returns the path of the named route with args substituted for
// its placeholders, in order.
func (r *Router) Reverse(name string, args ...any) (string, error) {
	pattern, ok := r.patterns[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown route %q", ErrNoReverseMatch, name)
	}

	spans, err := placeholders(pattern)
	if err != nil {
		return "", err
	}
	if len(spans) != len(args) {
		return "", fmt.Errorf("%w: route %s takes %d arguments, got %d", ErrNoReverseMatch, name, len(spans), len(args))
	}

	var b strings.Builder
	last := 0
	for i, s := range spans {
		b.WriteString(pattern[last:s.start])
		b.WriteString(url.PathEscape(fmt.Sprint(args[i])))
		last = s.end
	}
	b.WriteString(pattern[last:])
	path := b.String()

	m, err := r.Resolve(path)
	if err != nil || m.Name != name {
		return "", fmt.Errorf("%w: route %s with arguments %v", ErrNoReverseMatch, name, args)
	}
	return path, nil
}

// Resolve finds the route that matches path.
func (r *Router) Resolve(path string) (Match, error) {
	rctx := chi.NewRouteContext()
	pattern := r.mux.Find(rctx, http.MethodGet, path)
	if pattern == "" {
		return Match{}, fmt.Errorf("%w: %s", ErrNoMatch, path)
	}

	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}
	return Match{Name: r.names[pattern], Pattern: pattern, Params: params}, nil
}

type span struct {
	start, end int
}

// placeholders locates each {...} in pattern. Regexp parameters may
// contain braces of their own, so nesting is tracked.
func placeholders(pattern string) ([]span, error) {
	var spans []span
	depth, start := 0, 0
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced '}' in pattern %q", pattern)
			}
			if depth == 0 {
				spans = append(spans, span{start: start, end: i + 1})
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '{' in pattern %q", pattern)
	}
	return spans, nil
}
