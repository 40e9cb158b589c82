package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenAndMigrate(context.Background(), database.Config{
		Path:          filepath.Join(dir, "test.db"),
		BackupDir:     filepath.Join(dir, "backups"),
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestPasswordLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	has, err := store.HasPassword(ctx)
	require.NoError(t, err)
	assert.False(t, has, "fresh install runs open")

	assert.Error(t, store.SetPassword(ctx, "abc"), "too short")

	require.NoError(t, store.SetPassword(ctx, "correct horse"))
	has, err = store.HasPassword(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, store.CheckPassword(ctx, "correct horse"))
	assert.Error(t, store.CheckPassword(ctx, "battery staple"))
}

func TestTokenVersionBumpsOnPasswordChange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	v0, err := store.TokenVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v0)

	require.NoError(t, store.SetPassword(ctx, "first pass"))
	v1, err := store.TokenVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	require.NoError(t, store.SetPassword(ctx, "second pass"))
	v2, err := store.TokenVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v2)
}

func TestTokenSignAndParse(t *testing.T) {
	ts := TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "novelhub",
		Duration: time.Hour,
	}

	token, exp, err := ts.Sign(3)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.Equal(t, "owner", claims.Subject)
	assert.Equal(t, "novelhub", claims.Issuer)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	ts := TokenService{Secret: []byte("one"), Issuer: "novelhub", Duration: time.Hour}
	other := TokenService{Secret: []byte("two"), Issuer: "novelhub", Duration: time.Hour}

	token, _, err := ts.Sign(1)
	require.NoError(t, err)

	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	ts := TokenService{Secret: []byte("secret"), Issuer: "novelhub", Duration: -time.Minute}

	token, _, err := ts.Sign(1)
	require.NoError(t, err)

	_, err = ts.Parse(token)
	assert.Error(t, err)
}
