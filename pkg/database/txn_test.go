package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/dberr"
)

func TestBackoffCapped(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoff(0))
	assert.Equal(t, 200*time.Millisecond, backoff(1))
	assert.Equal(t, 400*time.Millisecond, backoff(2))
	assert.Equal(t, 1500*time.Millisecond, backoff(4))
	assert.Equal(t, 1500*time.Millisecond, backoff(10))
}

func TestWithWriteTxnRetriesTransient(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	attempts := 0
	err = db.WithWriteTxn(ctx, "test", "flaky", func(tx *sql.Tx) error {
		attempts++
		if attempts < 3 {
			return dberr.New(dberr.Transient, "test", "flaky", errors.New("busy"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithWriteTxnNoRetryOnConstraint(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	attempts := 0
	err = db.WithWriteTxn(ctx, "test", "dup", func(tx *sql.Tx) error {
		attempts++
		return dberr.New(dberr.Constraint, "test", "dup", errors.New("unique violation"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, dberr.Constraint, dberr.KindOf(err))
}

func TestWithWriteTxnExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	attempts := 0
	err = db.WithWriteTxn(ctx, "test", "always-busy", func(tx *sql.Tx) error {
		attempts++
		return dberr.New(dberr.Timeout, "test", "always-busy", errors.New("deadline"))
	})
	require.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)
	assert.Equal(t, dberr.Timeout, dberr.KindOf(err))
}

func TestWithWriteTxnRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	err = db.WithWriteTxn(ctx, "test", "abort", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES ('k', 'v')`); err != nil {
			return err
		}
		return dberr.New(dberr.Constraint, "test", "abort", errors.New("bail out"))
	})
	require.Error(t, err)

	var n int
	require.NoError(t, db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM settings WHERE key = 'k'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestWithWriteTxnCommits(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	err = db.WithWriteTxn(ctx, "test", "commit", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES ('k', 'v')`)
		return err
	})
	require.NoError(t, err)

	var v string
	require.NoError(t, db.SQL().QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'k'`).Scan(&v))
	assert.Equal(t, "v", v)
}

func TestWithWriteTxnClassifiesRawErrors(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	err = db.WithWriteTxn(ctx, "chapters", "store", func(tx *sql.Tx) error {
		return sql.ErrNoRows
	})
	require.Error(t, err)

	var e *dberr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, dberr.NotFound, e.Kind)
	assert.Equal(t, "chapters", e.Domain)
	assert.Equal(t, "store", e.Service)
}
