package db

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind classifies an integrity-constraint failure reported by the driver.
type Kind int

const (
	None Kind = iota
	Unique
	ForeignKey
	NotNull
	Check
)

func (k Kind) String() string {
	switch k {
	case Unique:
		return "unique"
	case ForeignKey:
		return "foreign_key"
	case NotNull:
		return "not_null"
	case Check:
		return "check"
	default:
		return "none"
	}
}

// Violation describes a constraint failure independent of the engine.
type Violation struct {
	Kind       Kind
	Constraint string
	Detail     string
}

// Classify inspects a driver error. Errors that are not constraint failures
// come back with Kind None.
func Classify(err error) Violation {
	if err == nil {
		return Violation{}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		v := Violation{Constraint: pqErr.Constraint, Detail: pqErr.Detail}
		switch pqErr.Code {
		case "23505":
			v.Kind = Unique
		case "23503":
			v.Kind = ForeignKey
		case "23502":
			v.Kind = NotNull
			v.Constraint = pqErr.Column
		case "23514":
			v.Kind = Check
		}
		return v
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		msg := liteErr.Error()
		v := Violation{Constraint: sqliteConstraint(msg), Detail: msg}
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			v.Kind = Unique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			v.Kind = ForeignKey
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			v.Kind = NotNull
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			v.Kind = Check
		default:
			if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
				v.Kind = kindFromMessage(msg)
			}
		}
		return v
	}

	return Violation{}
}

// sqliteConstraint pulls the failing column list or index name out of a
// message such as "UNIQUE constraint failed: catalog_book.isbn (2067)".
func sqliteConstraint(msg string) string {
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	s := msg[i+len(marker):]
	if strings.Contains(s, "constraint failed") {
		return ""
	}
	if j := strings.LastIndex(s, " ("); j >= 0 {
		s = s[:j]
	}
	s = strings.TrimPrefix(s, "index ")
	return strings.Trim(s, "'")
}

func kindFromMessage(msg string) Kind {
	switch {
	case strings.Contains(msg, "UNIQUE"), strings.Contains(msg, "PRIMARY KEY"):
		return Unique
	case strings.Contains(msg, "FOREIGN KEY"):
		return ForeignKey
	case strings.Contains(msg, "NOT NULL"):
		return NotNull
	case strings.Contains(msg, "CHECK"):
		return Check
	default:
		return None
	}
}
