package validator

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestValidatorKeepsFirstError(t *testing.T) {
	v := New()
	assert.True(t, v.Valid())

	v.Check(false, "name", "must be provided")
	v.Check(false, "name", "must not be more than 200 characters")
	v.Check(true, "isbn", "never recorded")

	assert.False(t, v.Valid())
	assert.Equal(t, map[string]string{"name": "must be provided"}, v.Errors)
}

func TestNotBlank(t *testing.T) {
	assert.True(t, NotBlank("Dune"))
	assert.False(t, NotBlank(""))
	assert.False(t, NotBlank(" \t\n"))
}

func TestMaxCharsCountsRunes(t *testing.T) {
	assert.True(t, MaxChars("Überbücher", 10))
	assert.False(t, MaxChars("Überbücher", 9))

	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		n := rapid.IntRange(0, 64).Draw(t, "n")
		if got, want := MaxChars(s, n), utf8.RuneCountInString(s) <= n; got != want {
			t.Fatalf("MaxChars(%q, %d) = %v, want %v", s, n, got, want)
		}
	})
}

func TestPermittedValue(t *testing.T) {
	assert.True(t, PermittedValue("a", "m", "o", "a", "r"))
	assert.False(t, PermittedValue("x", "m", "o", "a", "r"))
	assert.False(t, PermittedValue(3))

	rapid.Check(t, func(t *rapid.T) {
		list := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,3}`)).Draw(t, "list")
		value := rapid.StringMatching(`[a-z]{1,3}`).Draw(t, "value")
		want := strings.Contains(","+strings.Join(list, ",")+",", ","+value+",")
		if got := PermittedValue(value, list...); got != want {
			t.Fatalf("PermittedValue(%q, %v) = %v, want %v", value, list, got, want)
		}
	})
}
