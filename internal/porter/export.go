// Package porter moves whole libraries in and out of the store as a single
// JSON envelope. Import is chunked so a large library never rides in one
// oversized transaction.
package porter

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"novelhub/internal/chapters"
	"novelhub/internal/diffs"
	"novelhub/internal/feedback"
	"novelhub/internal/novels"
	"novelhub/internal/settings"
	"novelhub/internal/templates"
	"novelhub/internal/translations"
	"novelhub/pkg/database"
	"novelhub/pkg/models"
)

// Settings keys the porter treats specially.
const (
	navigationKey  = "navigation"
	imageKeyPrefix = "image:"
)

type Exporter struct {
	DB *database.DB
}

func NewExporter(db *database.DB) *Exporter {
	return &Exporter{DB: db}
}

// BuildEnvelope reads the entire store into an export envelope. Chapters
// embed their translation versions and feedback; maintenance flags and
// image blobs are split out of the raw settings map.
func (e *Exporter) BuildEnvelope(ctx context.Context) (*models.ExportEnvelope, error) {
	env := &models.ExportEnvelope{Chapters: []models.ExportedChapter{}}

	all, err := settings.NewRepo(e.DB).All(ctx)
	if err != nil {
		return nil, err
	}
	env.Settings = make(map[string]string)
	for k, v := range all {
		switch {
		case k == navigationKey:
			var nav models.Navigation
			if json.Unmarshal([]byte(v), &nav) == nil {
				env.Navigation = &nav
			}
		case strings.HasPrefix(k, imageKeyPrefix):
			if env.Images == nil {
				env.Images = make(map[string]string)
			}
			env.Images[strings.TrimPrefix(k, imageKeyPrefix)] = v
		default:
			env.Settings[k] = v
		}
	}

	chapterList, err := chapters.NewRepo(e.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	allTranslations, err := translations.ListAll(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	byChapter := make(map[string][]models.TranslationRecord)
	for _, t := range allTranslations {
		byChapter[t.ChapterURL] = append(byChapter[t.ChapterURL], t)
	}

	fbRepo := feedback.NewRepo(e.DB)
	for _, ch := range chapterList {
		fb, err := fbRepo.ListByChapter(ctx, ch.URL)
		if err != nil {
			return nil, err
		}
		env.Chapters = append(env.Chapters, models.ExportedChapter{
			ChapterRecord: ch,
			Translations:  byChapter[ch.URL],
			Feedback:      fb,
		})
	}

	env.URLMappings, err = listMappings(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	env.Novels, err = novels.NewRepo(e.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	env.Templates, err = templates.NewRepo(e.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	env.DiffResults, err = listAllDiffs(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	env.Amendments, err = listAllAmendments(ctx, e.DB)
	if err != nil {
		return nil, err
	}

	return env, nil
}

func listMappings(ctx context.Context, db *database.DB) ([]models.URLMappingRecord, error) {
	rows, err := db.SQL().QueryContext(ctx,
		`SELECT url, stable_id, is_canonical, date_added FROM url_mappings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.URLMappingRecord
	for rows.Next() {
		var m models.URLMappingRecord
		if err := rows.Scan(&m.URL, &m.StableID, &m.IsCanonical, &m.DateAdded); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func listAllDiffs(ctx context.Context, db *database.DB) ([]models.DiffResult, error) {
	r := diffs.NewRepo(db)
	rows, err := db.SQL().QueryContext(ctx,
		`SELECT DISTINCT chapter_url FROM diff_results`)
	if err != nil {
		return nil, err
	}
	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return nil, err
		}
		urls = append(urls, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []models.DiffResult
	for _, u := range urls {
		ds, err := r.ListByChapter(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, ds...)
	}
	return out, nil
}

func listAllAmendments(ctx context.Context, db *database.DB) ([]models.AmendmentLog, error) {
	rows, err := db.SQL().QueryContext(ctx, `
		SELECT id, chapter_url, translation_id, original, amended, reason, created_at
		FROM amendment_logs ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AmendmentLog
	for rows.Next() {
		var (
			a      models.AmendmentLog
			tid    sql.NullString
			reason sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ChapterURL, &tid, &a.Original, &a.Amended, &reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.TranslationID = tid.String
		a.Reason = reason.String
		out = append(out, a)
	}
	return out, rows.Err()
}
