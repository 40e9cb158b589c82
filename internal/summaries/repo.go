// Package summaries maintains the denormalized chapter_summaries projection.
// Rows here are derived from chapters and their active translation; they are
// recomputed on every relevant write and never edited directly.
package summaries

import (
	"context"
	"database/sql"
	"fmt"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "summaries"

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

// RecomputeTx rebuilds the summary row for one chapter inside a caller-owned
// transaction. Call after any write that touches the chapter or its active
// translation. A missing chapter removes the summary instead.
func RecomputeTx(ctx context.Context, tx *sql.Tx, chapterURL string) error {
	var (
		stableID      string
		title         string
		chapterNumber int
		lastAccessed  sql.NullTime
	)
	err := tx.QueryRowContext(ctx, `
		SELECT stable_id, title, chapter_number, last_accessed
		FROM chapters WHERE url = ?
	`, chapterURL).Scan(&stableID, &title, &chapterNumber, &lastAccessed)
	if err == sql.ErrNoRows {
		// Chapter gone; drop any stale projection rows pointing at it.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chapter_summaries WHERE chapter_url = ?`, chapterURL); err != nil {
			return fmt.Errorf("drop stale summary: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load chapter for summary: %w", err)
	}

	var (
		translatedTitle sql.NullString
		hasTranslation  bool
	)
	err = tx.QueryRowContext(ctx, `
		SELECT translated_title FROM translations
		WHERE chapter_url = ? AND is_active = 1
		LIMIT 1
	`, chapterURL).Scan(&translatedTitle)
	switch err {
	case nil:
		hasTranslation = true
	case sql.ErrNoRows:
		hasTranslation = false
	default:
		return fmt.Errorf("load active translation for summary: %w", err)
	}

	hasImages, err := chapterHasImages(ctx, tx, chapterURL)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chapter_summaries
			(stable_id, chapter_url, title, translated_title, chapter_number,
			 has_translation, has_images, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stable_id) DO UPDATE SET
			chapter_url = excluded.chapter_url,
			title = excluded.title,
			translated_title = excluded.translated_title,
			chapter_number = excluded.chapter_number,
			has_translation = excluded.has_translation,
			has_images = excluded.has_images,
			last_accessed = excluded.last_accessed
	`, stableID, chapterURL, title, translatedTitle, chapterNumber,
		hasTranslation, hasImages, lastAccessed)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// chapterHasImages checks whether any stored translation version for the
// chapter carries illustration prompts.
func chapterHasImages(ctx context.Context, tx *sql.Tx, chapterURL string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM translations
		WHERE chapter_url = ? AND extras LIKE '%illustration_prompts%'
	`, chapterURL).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count illustrated versions: %w", err)
	}
	return n > 0, nil
}

// Get returns the summary for a stable ID.
func (r *Repo) Get(ctx context.Context, stableID string) (*models.ChapterSummaryRecord, error) {
	row := r.DB.SQL().QueryRowContext(ctx, `
		SELECT stable_id, chapter_url, title, translated_title, chapter_number,
		       has_translation, has_images, last_accessed
		FROM chapter_summaries WHERE stable_id = ?
	`, stableID)
	s, err := scanSummary(row)
	if err != nil {
		return nil, dberr.Classify(err, domain, "get")
	}
	return s, nil
}

// List returns all summaries ordered by chapter number. This is the cheap
// read the UI layer uses for the library view.
func (r *Repo) List(ctx context.Context) ([]models.ChapterSummaryRecord, error) {
	rows, err := r.DB.SQL().QueryContext(ctx, `
		SELECT stable_id, chapter_url, title, translated_title, chapter_number,
		       has_translation, has_images, last_accessed
		FROM chapter_summaries
		ORDER BY chapter_number ASC, stable_id ASC
	`)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list summaries: %w", err), domain, "list")
	}
	defer rows.Close()

	var out []models.ChapterSummaryRecord
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, dberr.Classify(err, domain, "list")
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(fmt.Errorf("rows err: %w", err), domain, "list")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*models.ChapterSummaryRecord, error) {
	var (
		s               models.ChapterSummaryRecord
		translatedTitle sql.NullString
		lastAccessed    sql.NullTime
	)
	if err := row.Scan(&s.StableID, &s.ChapterURL, &s.Title, &translatedTitle,
		&s.ChapterNumber, &s.HasTranslation, &s.HasImages, &lastAccessed); err != nil {
		return nil, err
	}
	s.TranslatedTitle = translatedTitle.String
	if lastAccessed.Valid {
		t := lastAccessed.Time
		s.LastAccessed = &t
	}
	return &s, nil
}
