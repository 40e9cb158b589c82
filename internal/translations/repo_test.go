package translations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/chapters"
	"novelhub/internal/identity"
	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

func newTestRepo(t *testing.T) (*database.DB, *Repo, *models.ChapterRecord) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenAndMigrate(context.Background(), database.Config{
		Path:          filepath.Join(dir, "test.db"),
		BackupDir:     filepath.Join(dir, "backups"),
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ch := &models.ChapterRecord{
		URL:           "https://example.com/novel/ch/1",
		Title:         "Chapter 1",
		Content:       "source text",
		ChapterNumber: 1,
	}
	require.NoError(t, chapters.NewRepo(db).Store(context.Background(), ch))

	return db, NewRepo(db, identity.NewResolver(db)), ch
}

func activeVersions(t *testing.T, db *database.DB, url string) (total, active, activeVersion int) {
	t.Helper()
	require.NoError(t, db.SQL().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(is_active), 0),
		       COALESCE(MAX(CASE WHEN is_active = 1 THEN version END), 0)
		FROM translations WHERE chapter_url = ?
	`, url).Scan(&total, &active, &activeVersion))
	return
}

func TestStoreAssignsVersionsAndActivates(t *testing.T) {
	ctx := context.Background()
	db, repo, ch := newTestRepo(t)

	v1 := &models.TranslationRecord{ChapterURL: ch.URL, Translation: "first"}
	require.NoError(t, repo.Store(ctx, v1))
	assert.Equal(t, 1, v1.Version)
	assert.True(t, v1.IsActive)
	assert.Equal(t, ch.StableID, v1.StableID)
	assert.NotEmpty(t, v1.ID)

	v2 := &models.TranslationRecord{ChapterURL: ch.URL, Translation: "second"}
	require.NoError(t, repo.Store(ctx, v2))
	assert.Equal(t, 2, v2.Version)

	total, active, activeVersion := activeVersions(t, db, ch.URL)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, active, "exactly one active version")
	assert.Equal(t, 2, activeVersion, "newest version takes over")
}

func TestStoreRequiresExistingChapter(t *testing.T) {
	ctx := context.Background()
	_, repo, _ := newTestRepo(t)

	err := repo.Store(ctx, &models.TranslationRecord{
		ChapterURL: "https://example.com/nowhere", Translation: "x"})
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.NotFound))
}

func TestStoreRoundTripsPayload(t *testing.T) {
	ctx := context.Background()
	_, repo, ch := newTestRepo(t)

	in := &models.TranslationRecord{
		ChapterURL:      ch.URL,
		TranslatedTitle: "Chapter One",
		Translation:     "translated text",
		Extras: models.TranslationExtras{
			Footnotes:           []models.Footnote{{Marker: "1", Text: "a note"}},
			IllustrationPrompts: []string{"a castle at dusk"},
		},
		Provider: models.ProviderSnapshot{Provider: "openai", Model: "gpt-4o", Temperature: 0.3},
		Usage:    models.UsageMetrics{PromptTokens: 900, CompletionTokens: 1200, TotalTokens: 2100},
	}
	require.NoError(t, repo.Store(ctx, in))

	out, err := repo.GetActive(ctx, ch.URL)
	require.NoError(t, err)
	assert.Equal(t, in.Extras, out.Extras)
	assert.Equal(t, in.Provider, out.Provider)
	assert.Equal(t, in.Usage, out.Usage)
	assert.Equal(t, "Chapter One", out.TranslatedTitle)

	// illustrated versions flip the summary flag
	var hasImages bool
	db := repo.DB
	require.NoError(t, db.SQL().QueryRow(
		`SELECT has_images FROM chapter_summaries WHERE stable_id = ?`, ch.StableID).Scan(&hasImages))
	assert.True(t, hasImages)
}

func TestSetActive(t *testing.T) {
	ctx := context.Background()
	db, repo, ch := newTestRepo(t)

	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v1"}))
	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v2"}))
	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v3"}))

	require.NoError(t, repo.SetActive(ctx, ch.URL, 2))

	_, active, activeVersion := activeVersions(t, db, ch.URL)
	assert.Equal(t, 1, active)
	assert.Equal(t, 2, activeVersion)

	err := repo.SetActive(ctx, ch.URL, 99)
	assert.True(t, dberr.IsKind(err, dberr.NotFound))
}

func TestSetActiveByStableIDLegacyFormat(t *testing.T) {
	ctx := context.Background()
	db, repo, ch := newTestRepo(t)

	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v1"}))
	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v2"}))

	// addressing through the pre-0.6 separator format still works
	legacy := identity.AlternateForm(ch.StableID)
	require.NotEmpty(t, legacy)
	require.NoError(t, repo.SetActiveByStableID(ctx, legacy, 1))

	_, active, activeVersion := activeVersions(t, db, ch.URL)
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, activeVersion)
}

func TestDeleteVersionPromotesReplacement(t *testing.T) {
	ctx := context.Background()
	db, repo, ch := newTestRepo(t)

	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v1"}))
	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v2"}))
	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v3"}))

	// deleting the active version promotes the highest remaining
	require.NoError(t, repo.DeleteVersion(ctx, ch.URL, 3))
	total, active, activeVersion := activeVersions(t, db, ch.URL)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, active)
	assert.Equal(t, 2, activeVersion)

	// deleting an inactive version leaves the active one alone
	require.NoError(t, repo.SetActive(ctx, ch.URL, 1))
	require.NoError(t, repo.DeleteVersion(ctx, ch.URL, 2))
	total, active, activeVersion = activeVersions(t, db, ch.URL)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, activeVersion)
}

func TestDeleteLastVersionClearsSummaryFlag(t *testing.T) {
	ctx := context.Background()
	db, repo, ch := newTestRepo(t)

	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "only"}))
	require.NoError(t, repo.DeleteVersion(ctx, ch.URL, 1))

	total, _, _ := activeVersions(t, db, ch.URL)
	assert.Zero(t, total)

	var hasTranslation bool
	require.NoError(t, db.SQL().QueryRow(
		`SELECT has_translation FROM chapter_summaries WHERE stable_id = ?`, ch.StableID).Scan(&hasTranslation))
	assert.False(t, hasTranslation)

	_, err := repo.GetActive(ctx, ch.URL)
	assert.True(t, dberr.IsKind(err, dberr.NotFound))
}

func TestListByChapter(t *testing.T) {
	ctx := context.Background()
	_, repo, ch := newTestRepo(t)

	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v1"}))
	require.NoError(t, repo.Store(ctx, &models.TranslationRecord{ChapterURL: ch.URL, Translation: "v2"}))

	items, err := repo.ListByChapter(ctx, ch.URL)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Version)
	assert.Equal(t, 2, items[1].Version)
	assert.False(t, items[0].IsActive)
	assert.True(t, items[1].IsActive)
}
