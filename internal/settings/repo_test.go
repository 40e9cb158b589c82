package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenAndMigrate(context.Background(), database.Config{
		Path:          filepath.Join(dir, "test.db"),
		BackupDir:     filepath.Join(dir, "backups"),
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepo(db)
}

func TestSetGetOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Set(ctx, "reader.font", "serif"))
	v, err := repo.Get(ctx, "reader.font")
	require.NoError(t, err)
	assert.Equal(t, "serif", v)

	require.NoError(t, repo.Set(ctx, "reader.font", "sans"))
	v, err = repo.Get(ctx, "reader.font")
	require.NoError(t, err)
	assert.Equal(t, "sans", v)
}

func TestGetMissingKey(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Get(ctx, "never.set")
	assert.True(t, dberr.IsKind(err, dberr.NotFound))

	v, err := repo.GetDefault(ctx, "never.set", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestDeleteAndAll(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Set(ctx, "a", "1"))
	require.NoError(t, repo.Set(ctx, "b", "2"))
	require.NoError(t, repo.Delete(ctx, "a"))
	// deleting a missing key is not an error
	require.NoError(t, repo.Delete(ctx, "a"))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, all)
}
