package dberr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(NotFound, "chapters", "get", sql.ErrNoRows)
	assert.Equal(t, NotFound, KindOf(err))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, NotFound, KindOf(wrapped))

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIsMatchesKindOnly(t *testing.T) {
	err := New(Transient, "chapters", "store", errors.New("db busy"))

	assert.True(t, errors.Is(err, New(Transient, "", "", nil)))
	assert.False(t, errors.Is(err, New(Timeout, "", "", nil)))

	// domain and service do not participate in matching
	assert.True(t, errors.Is(err, New(Transient, "other", "op", nil)))
}

func TestRetryableFlags(t *testing.T) {
	cases := []struct {
		kind       Kind
		retryable  bool
		userFacing bool
	}{
		{Blocked, false, false},
		{Upgrade, false, false},
		{Quota, false, true},
		{Transient, true, false},
		{NotFound, false, false},
		{Constraint, false, false},
		{Permission, false, true},
		{Timeout, true, false},
		{Version, false, true},
	}
	for _, c := range cases {
		err := New(c.kind, "d", "s", nil)
		assert.Equal(t, c.retryable, IsRetryable(err), "kind %s", c.kind)
		assert.Equal(t, c.userFacing, RequiresUserAction(err), "kind %s", c.kind)
	}

	assert.False(t, IsRetryable(errors.New("unclassified")))
	assert.False(t, RequiresUserAction(nil))
}

func TestClassifySQLite(t *testing.T) {
	cases := []struct {
		code sqlite3.ErrNo
		want Kind
	}{
		{sqlite3.ErrBusy, Transient},
		{sqlite3.ErrLocked, Transient},
		{sqlite3.ErrSchema, Transient},
		{sqlite3.ErrFull, Quota},
		{sqlite3.ErrTooBig, Quota},
		{sqlite3.ErrConstraint, Constraint},
		{sqlite3.ErrInterrupt, Timeout},
		{sqlite3.ErrPerm, Permission},
		{sqlite3.ErrReadonly, Permission},
		{sqlite3.ErrCantOpen, Permission},
		{sqlite3.ErrCorrupt, Upgrade},
		{sqlite3.ErrNotADB, Upgrade},
	}
	for _, c := range cases {
		raw := sqlite3.Error{Code: c.code}
		err := Classify(raw, "d", "s")
		assert.Equal(t, c.want, KindOf(err), "sqlite code %d", int(c.code))
	}
}

func TestClassifyStdlib(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(Classify(sql.ErrNoRows, "d", "s")))
	assert.Equal(t, Timeout, KindOf(Classify(context.DeadlineExceeded, "d", "s")))

	// unknown errors default to transient so the executor gets a shot
	assert.Equal(t, Transient, KindOf(Classify(errors.New("mystery"), "d", "s")))
}

func TestClassifyPassesThroughExisting(t *testing.T) {
	inner := New(Quota, "backup", "snapshot", errors.New("disk full"))
	out := Classify(fmt.Errorf("wrapped: %w", inner), "other", "op")

	require.Equal(t, Quota, KindOf(out))

	var e *Error
	require.True(t, errors.As(out, &e))
	assert.Equal(t, "backup", e.Domain)
}

func TestRepairErrorUnwraps(t *testing.T) {
	cause := errors.New("write failed")
	err := &RepairError{URL: "https://example.com/ch1", StableID: "ch1_abc", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ch1_abc")
}
