package storage

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrInvalidMonth is returned when a write is rejected by the month range check.
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
	// ErrUnknownUser is returned when a write references a user that does not exist.
	ErrUnknownUser = errors.New("unknown user")
)

type constraintKind int

const (
	constraintNone constraintKind = iota
	constraintUnique
	constraintCheck
	constraintForeignKey
	constraintOther
)

// constraintOf reports which constraint, if any, caused err.
// Extended result codes are preferred; the message is the fallback for
// drivers that only report the primary code.
func constraintOf(err error) constraintKind {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return constraintNone
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return constraintUnique
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return constraintCheck
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return constraintForeignKey
	}

	if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return constraintNone
	}

	msg := se.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return constraintUnique
	case strings.Contains(msg, "CHECK constraint failed"):
		return constraintCheck
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return constraintForeignKey
	default:
		return constraintOther
	}
}

func isUniqueViolation(err error) bool {
	return constraintOf(err) == constraintUnique
}

// wrapWriteError maps schema-level rejections to package errors and wraps
// everything else with op.
func wrapWriteError(op string, err error) error {
	switch constraintOf(err) {
	case constraintCheck:
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidMonth, err)
	case constraintForeignKey:
		return fmt.Errorf("%s: %w: %v", op, ErrUnknownUser, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
