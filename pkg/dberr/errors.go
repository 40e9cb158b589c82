package dberr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of storage error categories. Every error leaving the
// storage engine is wrapped in an *Error carrying exactly one Kind.
type Kind string

const (
	Blocked    Kind = "blocked"    // open blocked by another connection holder
	Upgrade    Kind = "upgrade"    // failure inside a schema upgrade
	Quota      Kind = "quota"      // storage full / record too big
	Transient  Kind = "transient"  // busy, locked; safe to retry
	NotFound   Kind = "not_found"  // requested record does not exist
	Constraint Kind = "constraint" // unique/foreign key violation
	Permission Kind = "permission" // file permissions, read-only database
	Timeout    Kind = "timeout"    // the engine itself reported a timeout
	Version    Kind = "version"    // on-disk schema newer than this build
)

// Error is the uniform error type of the storage layer. Domain is the logical
// area ("chapters", "translations"), Service the operation name.
type Error struct {
	Kind    Kind
	Domain  string
	Service string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s/%s: %s", e.Domain, e.Service, e.Kind)
	}
	return fmt.Sprintf("%s/%s: %s: %v", e.Domain, e.Service, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on a bare kind sentinel: errors.Is(err, dberr.New(dberr.NotFound, "", "", nil)).
// Matching ignores domain/service so callers can test category alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a taxonomy error. cause may be nil.
func New(kind Kind, domain, service string, cause error) *Error {
	return &Error{Kind: kind, Domain: domain, Service: service, Err: cause}
}

// KindOf extracts the Kind of err, or "" if err is not a taxonomy error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the transaction executor may retry.
// Only Transient and Timeout qualify.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case Transient, Timeout:
		return true
	}
	return false
}

// RequiresUserAction reports whether the engine cannot self-heal and the UI
// must surface a blocking message.
func RequiresUserAction(err error) bool {
	switch KindOf(err) {
	case Quota, Permission, Version:
		return true
	}
	return false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// RepairError marks a failed identity auto-repair. The lookup itself
// succeeded; only the write-back of the corrected mapping failed. Callers may
// treat it as low severity but tests can assert on it instead of scraping logs.
type RepairError struct {
	URL      string
	StableID string
	Err      error
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("mapping auto-repair failed for %s (stable id %s): %v", e.URL, e.StableID, e.Err)
}

func (e *RepairError) Unwrap() error { return e.Err }
