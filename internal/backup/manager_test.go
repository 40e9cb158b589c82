package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/chapters"
	"novelhub/internal/identity"
	"novelhub/internal/translations"
	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

func testConfig(t *testing.T) database.Config {
	t.Helper()
	dir := t.TempDir()
	return database.Config{
		Path:          filepath.Join(dir, "library.db"),
		BackupDir:     filepath.Join(dir, "backups"),
		BusyTimeoutMS: 5000,
	}
}

func seedLibrary(t *testing.T, db *database.DB) *models.ChapterRecord {
	t.Helper()
	ctx := context.Background()

	ch := &models.ChapterRecord{
		URL:           "https://example.com/novel/ch/1",
		Title:         "Chapter 1",
		Content:       "the source text",
		ChapterNumber: 1,
	}
	require.NoError(t, chapters.NewRepo(db).Store(ctx, ch))

	trRepo := translations.NewRepo(db, identity.NewResolver(db))
	require.NoError(t, trRepo.Store(ctx, &models.TranslationRecord{
		ChapterURL: ch.URL, Translation: "first pass"}))
	require.NoError(t, trRepo.Store(ctx, &models.TranslationRecord{
		ChapterURL: ch.URL, Translation: "second pass"}))

	_, err := db.SQL().Exec(`INSERT INTO settings (key, value) VALUES ('reader.font', 'serif')`)
	require.NoError(t, err)
	return ch
}

func TestSnapshotLandsInDirectoryTier(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db, err := database.OpenAndMigrate(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()
	seedLibrary(t, db)

	mgr := NewManager(cfg)
	meta, payload, err := mgr.Snapshot(ctx, db)
	require.NoError(t, err)

	assert.Equal(t, models.TierDirectory, meta.Storage)
	assert.Equal(t, models.BackupPending, meta.Status)
	assert.Equal(t, database.TargetVersion, meta.FromVersion)
	assert.NotEmpty(t, payload)

	// the snapshot file exists and parses back
	b, err := os.ReadFile(filepath.Join(cfg.BackupDir, meta.Locator))
	require.NoError(t, err)
	var file models.BackupFile
	require.NoError(t, json.Unmarshal(b, &file))
	assert.Len(t, file.Chapters, 1)
	assert.Len(t, file.Translations, 2)

	// metadata sidecar sits next to the database file
	stored, err := mgr.Meta()
	require.NoError(t, err)
	assert.Equal(t, meta.ID, stored.ID)
}

func TestSnapshotFallsBackWhenDirectoryUnavailable(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	// a file where the backup directory should be makes the first tier refuse
	require.NoError(t, os.WriteFile(cfg.BackupDir, []byte("in the way"), 0o644))

	db, err := database.OpenAndMigrate(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()
	seedLibrary(t, db)

	meta, _, err := NewManager(cfg).Snapshot(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, models.TierBackupDB, meta.Storage)
}

func TestMarkCompletedReleasesSnapshot(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db, err := database.OpenAndMigrate(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()
	seedLibrary(t, db)

	mgr := NewManager(cfg)
	meta, _, err := mgr.Snapshot(ctx, db)
	require.NoError(t, err)

	require.NoError(t, mgr.MarkCompleted())

	stored, err := mgr.Meta()
	require.NoError(t, err)
	assert.Equal(t, models.BackupCompleted, stored.Status)

	_, err = os.Stat(filepath.Join(cfg.BackupDir, meta.Locator))
	assert.True(t, os.IsNotExist(err), "completed snapshot is cleaned up")
}

func TestRestoreRequiresFailedStatus(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db, err := database.OpenAndMigrate(ctx, cfg)
	require.NoError(t, err)
	seedLibrary(t, db)

	mgr := NewManager(cfg)
	_, _, err = mgr.Snapshot(ctx, db)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// pending: refused
	_, _, err = mgr.RestoreFromBackup(ctx)
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.Constraint))

	// completed: refused
	require.NoError(t, mgr.MarkCompleted())
	_, _, err = mgr.RestoreFromBackup(ctx)
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.Constraint))
}

func TestRestoreFromFailedSnapshot(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db, err := database.OpenAndMigrate(ctx, cfg)
	require.NoError(t, err)
	ch := seedLibrary(t, db)

	mgr := NewManager(cfg)
	_, _, err = mgr.Snapshot(ctx, db)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, mgr.MarkFailed())

	restored, report, err := mgr.RestoreFromBackup(ctx)
	require.NoError(t, err)
	defer restored.Close()

	assert.Equal(t, 1, report.Chapters)
	assert.Equal(t, 2, report.Translations)
	assert.Equal(t, 1, report.Settings)

	got, err := chapters.NewRepo(restored).Get(ctx, ch.URL)
	require.NoError(t, err)
	assert.Equal(t, ch.StableID, got.StableID)

	active, err := translations.NewRepo(restored, identity.NewResolver(restored)).GetActive(ctx, ch.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)

	// metadata is consumed by the restore
	_, err = mgr.Meta()
	assert.True(t, dberr.IsKind(err, dberr.NotFound))
}

func TestEmergencyRestore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	db, err := database.OpenAndMigrate(ctx, cfg)
	require.NoError(t, err)
	ch := seedLibrary(t, db)

	file, err := readSnapshot(ctx, db)
	require.NoError(t, err)
	payload, err := json.Marshal(file)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	mgr := NewManager(cfg)
	restored, report, err := mgr.EmergencyRestore(ctx, bytes.NewReader(payload))
	require.NoError(t, err)
	defer restored.Close()

	assert.Equal(t, 1, report.Chapters)
	got, err := chapters.NewRepo(restored).Get(ctx, ch.URL)
	require.NoError(t, err)
	assert.Equal(t, "the source text", got.Content)
}

func TestEmergencyRestoreRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(testConfig(t))

	_, _, err := mgr.EmergencyRestore(ctx, bytes.NewReader([]byte("not json")))
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.Constraint))

	// structurally valid JSON but not a backup file
	_, _, err = mgr.EmergencyRestore(ctx, bytes.NewReader([]byte(`{"settings":{}}`)))
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.Constraint))
}

func TestInlineTierQuota(t *testing.T) {
	dir := t.TempDir()
	tier := &inlineTier{path: filepath.Join(dir, "inline.json"), maxSize: 16}

	_, err := tier.Save(bytes.Repeat([]byte("x"), 17))
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.Quota))

	loc, err := tier.Save([]byte("small payload"))
	require.NoError(t, err)
	got, err := tier.Load(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("small payload"), got)

	require.NoError(t, tier.Delete(loc))
	_, err = tier.Load(loc)
	assert.Error(t, err)
}

func TestBackupDBTierRoundTrip(t *testing.T) {
	tier := &backupDBTier{path: filepath.Join(t.TempDir(), "backup.db")}

	loc, err := tier.Save([]byte(`{"chapters":[]}`))
	require.NoError(t, err)

	got, err := tier.Load(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"chapters":[]}`), got)

	require.NoError(t, tier.Delete(loc))
	_, err = tier.Load(loc)
	assert.Error(t, err)
}

func TestGuardedOpenSnapshotsPendingUpgrade(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	// build a library at an older schema version
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.MigrateTo(ctx, 4))
	_, err = db.SQL().Exec(`
		INSERT INTO chapters (url, title, content, chapter_number)
		VALUES ('https://example.com/ch/1', 'Ch', 'text', 1)
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = GuardedOpen(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	v, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.TargetVersion, v)

	meta, err := NewManager(cfg).Meta()
	require.NoError(t, err)
	assert.Equal(t, models.BackupCompleted, meta.Status)
	assert.Equal(t, 4, meta.FromVersion)
}

func TestGuardedOpenFreshDatabaseSkipsSnapshot(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	db, err := GuardedOpen(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	_, err = NewManager(cfg).Meta()
	assert.True(t, dberr.IsKind(err, dberr.NotFound), "nothing to back up on first run")
}
