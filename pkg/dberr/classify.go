package dberr

import (
	"context"
	"database/sql"
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Classify maps a raw driver error into the taxonomy for the given
// domain/service. Errors already carrying a Kind pass through with their
// original classification so inner wrapping wins.
func Classify(err error, domain, service string) error {
	if err == nil {
		return nil
	}

	var already *Error
	if errors.As(err, &already) {
		return err
	}

	return New(classifyKind(err), domain, service, err)
}

func classifyKind(err error) Kind {
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return Transient
		case sqlite3.ErrSchema:
			// Prepared statement invalidated by a concurrent schema change;
			// a retry re-prepares against the new schema.
			return Transient
		case sqlite3.ErrFull, sqlite3.ErrTooBig:
			return Quota
		case sqlite3.ErrConstraint:
			return Constraint
		case sqlite3.ErrInterrupt:
			return Timeout
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly, sqlite3.ErrCantOpen:
			return Permission
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return Upgrade
		}
	}

	// Unknown driver failures default to Transient: a bounded retry is the
	// behavior that most often recovers an embedded store, and three failed
	// attempts still surface the original cause.
	return Transient
}
