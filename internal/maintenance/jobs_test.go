package maintenance

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenAndMigrate(context.Background(), database.Config{
		Path:          filepath.Join(dir, "test.db"),
		BackupDir:     filepath.Join(dir, "backups"),
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedLegacyChapter(t *testing.T, db *database.DB, url, legacyID string) {
	t.Helper()
	_, err := db.SQL().Exec(`
		INSERT INTO chapters (url, stable_id, canonical_url, title, content, original_url, chapter_number)
		VALUES (?, ?, ?, 'Ch', 'text', ?, 1)
	`, url, legacyID, url, url)
	require.NoError(t, err)
	_, err = db.SQL().Exec(`
		INSERT INTO translations (id, chapter_url, stable_id, version, is_active, translation)
		VALUES (?, ?, ?, 1, 0, 'old text')
	`, "t-"+legacyID, url, legacyID)
	require.NoError(t, err)
	_, err = db.SQL().Exec(`
		INSERT INTO url_mappings (url, stable_id, is_canonical) VALUES (?, ?, 1)
	`, url, legacyID)
	require.NoError(t, err)
}

func TestNormalizeStableIDs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	url := "https://example.com/ch/1"
	seedLegacyChapter(t, db, url, "ch1-aabbccddeeff")
	_, err := db.SQL().Exec(`
		INSERT INTO chapter_summaries (stable_id, chapter_url, title, chapter_number)
		VALUES ('ch1-aabbccddeeff', ?, 'Ch', 1)
	`, url)
	require.NoError(t, err)

	runner := NewRunner(db)
	require.NoError(t, runner.normalizeStableIDs(ctx))

	var chapterID, translationID, mappingID string
	require.NoError(t, db.SQL().QueryRow(
		`SELECT stable_id FROM chapters WHERE url = ?`, url).Scan(&chapterID))
	require.NoError(t, db.SQL().QueryRow(
		`SELECT stable_id FROM translations WHERE chapter_url = ?`, url).Scan(&translationID))
	require.NoError(t, db.SQL().QueryRow(
		`SELECT stable_id FROM url_mappings WHERE url = ?`, url).Scan(&mappingID))

	assert.Equal(t, "ch1_aabbccddeeff", chapterID)
	assert.Equal(t, "ch1_aabbccddeeff", translationID)
	assert.Equal(t, "ch1_aabbccddeeff", mappingID)

	// the summary projection follows the chapter to its canonical id
	var summaries int
	require.NoError(t, db.SQL().QueryRow(
		`SELECT COUNT(*) FROM chapter_summaries WHERE chapter_url = ?`, url).Scan(&summaries))
	assert.Equal(t, 1, summaries)
	var summaryID string
	require.NoError(t, db.SQL().QueryRow(
		`SELECT stable_id FROM chapter_summaries WHERE chapter_url = ?`, url).Scan(&summaryID))
	assert.Equal(t, "ch1_aabbccddeeff", summaryID)

	// already-canonical ids are untouched on a re-run
	require.NoError(t, runner.normalizeStableIDs(ctx))
	require.NoError(t, db.SQL().QueryRow(
		`SELECT stable_id FROM chapters WHERE url = ?`, url).Scan(&chapterID))
	assert.Equal(t, "ch1_aabbccddeeff", chapterID)
}

func TestBackfillURLMappings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	// chapter predating the url_mappings table: no mapping rows at all
	_, err := db.SQL().Exec(`
		INSERT INTO chapters (url, stable_id, canonical_url, title, content, original_url, chapter_number)
		VALUES ('https://example.com/ch/2', 'ch2_001122334455', '', 'Ch', 'text', 'https://example.com/ch/2', 2)
	`)
	require.NoError(t, err)

	runner := NewRunner(db)
	require.NoError(t, runner.backfillURLMappings(ctx))

	var n int
	require.NoError(t, db.SQL().QueryRow(
		`SELECT COUNT(*) FROM url_mappings WHERE stable_id = 'ch2_001122334455'`).Scan(&n))
	assert.Positive(t, n)
}

func TestEnsureActiveVersions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	url := "https://example.com/ch/3"
	_, err := db.SQL().Exec(`
		INSERT INTO chapters (url, stable_id, title, content, original_url, chapter_number)
		VALUES (?, 'ch3_abc123def456', 'Ch', 'text', ?, 3)
	`, url, url)
	require.NoError(t, err)
	for v := 1; v <= 3; v++ {
		_, err = db.SQL().Exec(`
			INSERT INTO translations (id, chapter_url, stable_id, version, is_active, translation)
			VALUES (?, ?, 'ch3_abc123def456', ?, 0, 'text')
		`, "t-"+string(rune('0'+v)), url, v)
		require.NoError(t, err)
	}

	runner := NewRunner(db)
	require.NoError(t, runner.ensureActiveVersions(ctx))

	var activeVersion int
	require.NoError(t, db.SQL().QueryRow(
		`SELECT version FROM translations WHERE chapter_url = ? AND is_active = 1`, url).Scan(&activeVersion))
	assert.Equal(t, 3, activeVersion)

	// a chapter that already has an active version is left alone
	require.NoError(t, runner.ensureActiveVersions(ctx))
	var active int
	require.NoError(t, db.SQL().QueryRow(
		`SELECT COALESCE(SUM(is_active), 0) FROM translations WHERE chapter_url = ?`, url).Scan(&active))
	assert.Equal(t, 1, active)
}

func TestEnsureActiveVersionsDemotesDuplicates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	url := "https://example.com/ch/4"
	_, err := db.SQL().Exec(`
		INSERT INTO chapters (url, stable_id, title, content, original_url, chapter_number)
		VALUES (?, 'ch4_abc123def456', 'Ch', 'text', ?, 4)
	`, url, url)
	require.NoError(t, err)
	// two versions flagged active at once, one inactive
	for v, active := range map[int]int{1: 1, 2: 1, 3: 0} {
		_, err = db.SQL().Exec(`
			INSERT INTO translations (id, chapter_url, stable_id, version, is_active, translation)
			VALUES (?, ?, 'ch4_abc123def456', ?, ?, 'text')
		`, "t4-"+string(rune('0'+v)), url, v, active)
		require.NoError(t, err)
	}

	runner := NewRunner(db)
	require.NoError(t, runner.ensureActiveVersions(ctx))

	var active, activeVersion int
	require.NoError(t, db.SQL().QueryRow(`
		SELECT COALESCE(SUM(is_active), 0),
		       COALESCE(MAX(CASE WHEN is_active = 1 THEN version END), 0)
		FROM translations WHERE chapter_url = ?
	`, url).Scan(&active, &activeVersion))
	assert.Equal(t, 1, active)
	assert.Equal(t, 3, activeVersion)
}

func TestRunAllSetsCompletionFlags(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	runner := NewRunner(db)

	require.NoError(t, runner.RunAll(ctx))

	for _, job := range runner.Jobs() {
		flag, err := runner.Settings.Get(ctx, flagKey(job.Name))
		require.NoError(t, err, job.Name)
		assert.Equal(t, "1", flag, job.Name)
	}

	// second run is a no-op thanks to the flags
	require.NoError(t, runner.RunAll(ctx))
}
