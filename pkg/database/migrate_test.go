package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/dberr"
)

func TestMigrateFresh(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, TargetVersion, v)

	assert.NoError(t, db.Verify(ctx))
}

func TestMigrateIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))

	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, TargetVersion, v)
}

func TestMigratePartialThenFull(t *testing.T) {
	ctx := context.Background()
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.MigrateTo(ctx, 4))

	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	// tables up to step 4 exist, later ones do not yet
	ok, err := db.objectExists(ctx, "table", "feedback")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.objectExists(ctx, "table", "url_mappings")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Migrate(ctx))

	v, err = db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, TargetVersion, v)
	assert.NoError(t, db.Verify(ctx))
}

func TestMigrateForwardVersionGuard(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.SQL().ExecContext(ctx,
		fmt.Sprintf("PRAGMA user_version = %d", TargetVersion+1))
	require.NoError(t, err)

	err = db.Migrate(ctx)
	require.Error(t, err)
	assert.Equal(t, dberr.Version, dberr.KindOf(err))
	assert.True(t, dberr.RequiresUserAction(err))
	assert.False(t, dberr.IsRetryable(err))
}

func TestVerifyDetectsDrift(t *testing.T) {
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.SQL().ExecContext(ctx, "DROP INDEX idx_url_mappings_stable_id")
	require.NoError(t, err)

	err = db.Verify(ctx)
	require.Error(t, err)
	assert.Equal(t, dberr.Upgrade, dberr.KindOf(err))
	assert.Contains(t, err.Error(), "idx_url_mappings_stable_id")
}

func TestSchemaRepairStepHealsDroppedIndex(t *testing.T) {
	ctx := context.Background()
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.MigrateTo(ctx, 11))

	// simulate drift accumulated on an older version
	_, err = db.SQL().ExecContext(ctx, "DROP INDEX idx_url_mappings_stable_id")
	require.NoError(t, err)

	// the final repair step re-runs the full layout
	require.NoError(t, db.Migrate(ctx))
	assert.NoError(t, db.Verify(ctx))
}

func TestDeleteDatabaseRemovesSidecars(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db, err := OpenAndMigrate(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, DeleteDatabase(cfg.Path))

	db2, err := Open(cfg)
	require.NoError(t, err)
	defer db2.Close()

	v, err := db2.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}
