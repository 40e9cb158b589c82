package database

import (
	"context"
	"database/sql"
	"time"

	"novelhub/pkg/dberr"
)

// Retry policy: up to 3 attempts, exponential backoff from 100ms capped at
// 1.5s. Only Transient and Timeout kinds are retried; everything else fails
// on first occurrence.
const (
	maxAttempts    = 3
	backoffBase    = 100 * time.Millisecond
	backoffCeiling = 1500 * time.Millisecond
)

func backoff(attempt int) time.Duration {
	d := backoffBase << attempt
	if d > backoffCeiling {
		d = backoffCeiling
	}
	return d
}

// WithWriteTxn runs op inside a transaction with the uniform retry and
// classification behavior. op sees a live *sql.Tx; returning nil commits,
// returning an error rolls back. The returned error is always a taxonomy
// error (or nil).
func (d *DB) WithWriteTxn(ctx context.Context, domain, service string, op func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff(attempt - 1)):
			case <-ctx.Done():
				return dberr.Classify(ctx.Err(), domain, service)
			}
		}

		lastErr = d.runTxn(ctx, domain, service, op)
		if lastErr == nil {
			return nil
		}
		if !dberr.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// WithReadTxn is WithWriteTxn for read-only operations. SQLite serializes
// either way; the split keeps call sites honest about intent and gives reads
// the same retry behavior.
func (d *DB) WithReadTxn(ctx context.Context, domain, service string, op func(tx *sql.Tx) error) error {
	return d.WithWriteTxn(ctx, domain, service, op)
}

func (d *DB) runTxn(ctx context.Context, domain, service string, op func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.Classify(err, domain, service)
	}

	if err := op(tx); err != nil {
		_ = tx.Rollback()
		return dberr.Classify(err, domain, service)
	}

	if err := tx.Commit(); err != nil {
		return dberr.Classify(err, domain, service)
	}
	return nil
}
