package backup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"novelhub/internal/chapters"
	"novelhub/internal/novels"
	"novelhub/internal/settings"
	"novelhub/internal/summaries"
	"novelhub/internal/templates"
	"novelhub/internal/translations"
	"novelhub/pkg/database"
	"novelhub/pkg/models"
)

// readSnapshot collects every store into a BackupFile. The database may be
// at any historical version, so each table is read only if it exists.
func readSnapshot(ctx context.Context, db *database.DB) (*models.BackupFile, error) {
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	f := &models.BackupFile{
		Metadata: &models.BackupFileMeta{FromVersion: version},
		Chapters: []models.ChapterRecord{},
	}

	if ok, err := tableExists(ctx, db, "settings"); err != nil {
		return nil, err
	} else if ok {
		f.Settings, err = settings.NewRepo(db).All(ctx)
		if err != nil {
			return nil, err
		}
	}

	if ok, err := tableExists(ctx, db, "chapters"); err != nil {
		return nil, err
	} else if ok {
		f.Chapters, err = chapters.NewRepo(db).List(ctx)
		if err != nil {
			return nil, err
		}
	}

	if ok, err := tableExists(ctx, db, "translations"); err != nil {
		return nil, err
	} else if ok {
		f.Translations, err = listAllTranslations(ctx, db)
		if err != nil {
			return nil, err
		}
	}

	if ok, err := tableExists(ctx, db, "url_mappings"); err != nil {
		return nil, err
	} else if ok {
		f.URLMappings, err = listAllMappings(ctx, db)
		if err != nil {
			return nil, err
		}
	}

	if ok, err := tableExists(ctx, db, "novels"); err != nil {
		return nil, err
	} else if ok {
		f.Novels, err = novels.NewRepo(db).List(ctx)
		if err != nil {
			return nil, err
		}
	}

	if ok, err := tableExists(ctx, db, "chapter_summaries"); err != nil {
		return nil, err
	} else if ok {
		f.Summaries, err = summaries.NewRepo(db).List(ctx)
		if err != nil {
			return nil, err
		}
	}

	if ok, err := tableExists(ctx, db, "feedback"); err != nil {
		return nil, err
	} else if ok {
		f.Feedback, err = listAllFeedback(ctx, db)
		if err != nil {
			return nil, err
		}
	}

	if ok, err := tableExists(ctx, db, "prompt_templates"); err != nil {
		return nil, err
	} else if ok {
		f.Templates, err = templates.NewRepo(db).List(ctx)
		if err != nil {
			return nil, err
		}
	}

	if ok, err := tableExists(ctx, db, "diff_results"); err != nil {
		return nil, err
	} else if ok {
		f.DiffResults, err = listAllDiffs(ctx, db)
		if err != nil {
			return nil, err
		}
	}

	if ok, err := tableExists(ctx, db, "amendment_logs"); err != nil {
		return nil, err
	} else if ok {
		f.Amendments, err = listAllAmendments(ctx, db)
		if err != nil {
			return nil, err
		}
	}

	return f, nil
}

// insertSnapshot bulk-inserts a BackupFile into a freshly recreated
// database. Tables absent at the restored version are skipped; their rows
// count as "other" losses are acceptable because the follow-up migration
// recreates the structure and derived rows are recomputed.
func insertSnapshot(ctx context.Context, db *database.DB, f *models.BackupFile) (*models.RestoreReport, error) {
	report := &models.RestoreReport{}

	err := db.WithWriteTxn(ctx, "backup", "restore", func(tx *sql.Tx) error {
		for _, ch := range f.Chapters {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO chapters
					(url, stable_id, canonical_url, title, content, original_url,
					 next_url, prev_url, chapter_number, reference_text, date_added, last_accessed)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, ch.URL, ch.StableID, ch.CanonicalURL, ch.Title, ch.Content, ch.OriginalURL,
				nullString(ch.NextURL), nullString(ch.PrevURL), ch.ChapterNumber,
				nullString(ch.ReferenceText), ch.DateAdded, nullTime(ch.LastAccessed))
			if err != nil {
				return fmt.Errorf("restore chapter %s: %w", ch.URL, err)
			}
			report.Chapters++
		}

		if ok, _ := txTableExists(ctx, tx, "translations"); ok {
			for _, t := range f.Translations {
				if err := insertTranslation(ctx, tx, t); err != nil {
					return err
				}
				report.Translations++
			}
		}

		if ok, _ := txTableExists(ctx, tx, "settings"); ok {
			for k, v := range f.Settings {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO settings (key, value) VALUES (?, ?)`, k, v); err != nil {
					return fmt.Errorf("restore setting %s: %w", k, err)
				}
				report.Settings++
			}
		}

		if ok, _ := txTableExists(ctx, tx, "feedback"); ok {
			for _, fb := range f.Feedback {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO feedback (chapter_url, translation_id, category, selection, comment, created_at)
					VALUES (?, ?, ?, ?, ?, ?)
				`, fb.ChapterURL, nullString(fb.TranslationID), fb.Category,
					nullString(fb.Selection), nullString(fb.Comment), fb.CreatedAt); err != nil {
					return fmt.Errorf("restore feedback: %w", err)
				}
				report.Feedback++
			}
		}

		if ok, _ := txTableExists(ctx, tx, "url_mappings"); ok {
			for _, m := range f.URLMappings {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO url_mappings (url, stable_id, is_canonical, date_added)
					VALUES (?, ?, ?, ?)
				`, m.URL, m.StableID, m.IsCanonical, m.DateAdded); err != nil {
					return fmt.Errorf("restore mapping %s: %w", m.URL, err)
				}
				report.Other++
			}
		}

		if ok, _ := txTableExists(ctx, tx, "novels"); ok {
			for _, n := range f.Novels {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO novels (id, title, author, source_site, language, description, cover_url, date_added)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				`, n.ID, n.Title, nullString(n.Author), nullString(n.SourceSite),
					nullString(n.Language), nullString(n.Description), nullString(n.CoverURL),
					n.DateAdded); err != nil {
					return fmt.Errorf("restore novel %s: %w", n.ID, err)
				}
				report.Other++
			}
		}

		if ok, _ := txTableExists(ctx, tx, "chapter_summaries"); ok {
			for _, s := range f.Summaries {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO chapter_summaries
						(stable_id, chapter_url, title, translated_title, chapter_number,
						 has_translation, has_images, last_accessed)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				`, s.StableID, s.ChapterURL, s.Title, nullString(s.TranslatedTitle),
					s.ChapterNumber, s.HasTranslation, s.HasImages, nullTime(s.LastAccessed)); err != nil {
					return fmt.Errorf("restore summary %s: %w", s.StableID, err)
				}
				report.Other++
			}
		}

		if ok, _ := txTableExists(ctx, tx, "prompt_templates"); ok {
			for _, t := range f.Templates {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO prompt_templates (id, name, description, content, is_default, created_at, last_used)
					VALUES (?, ?, ?, ?, ?, ?, ?)
				`, t.ID, t.Name, nullString(t.Description), t.Content, t.IsDefault,
					t.CreatedAt, nullTime(t.LastUsed)); err != nil {
					return fmt.Errorf("restore template %s: %w", t.ID, err)
				}
				report.Other++
			}
		}

		if ok, _ := txTableExists(ctx, tx, "diff_results"); ok {
			for _, d := range f.DiffResults {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO diff_results (chapter_url, version, algorithm, result, computed_at)
					VALUES (?, ?, ?, ?, ?)
				`, d.ChapterURL, d.Version, d.Algorithm, d.Result, d.ComputedAt); err != nil {
					return fmt.Errorf("restore diff: %w", err)
				}
				report.Other++
			}
		}

		if ok, _ := txTableExists(ctx, tx, "amendment_logs"); ok {
			for _, a := range f.Amendments {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO amendment_logs (chapter_url, translation_id, original, amended, reason, created_at)
					VALUES (?, ?, ?, ?, ?, ?)
				`, a.ChapterURL, nullString(a.TranslationID), a.Original, a.Amended,
					nullString(a.Reason), a.CreatedAt); err != nil {
					return fmt.Errorf("restore amendment: %w", err)
				}
				report.Other++
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func insertTranslation(ctx context.Context, tx *sql.Tx, t models.TranslationRecord) error {
	extras, provider, usage, err := translations.MarshalPayload(&t)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO translations
			(id, chapter_url, stable_id, version, is_active, translated_title,
			 translation, extras, provider, usage, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ChapterURL, t.StableID, t.Version, t.IsActive,
		nullString(t.TranslatedTitle), t.Translation, extras, provider, usage, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("restore translation %s: %w", t.ID, err)
	}
	return nil
}

func tableExists(ctx context.Context, db *database.DB, name string) (bool, error) {
	var n int
	err := db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

func txTableExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

func listAllTranslations(ctx context.Context, db *database.DB) ([]models.TranslationRecord, error) {
	return translations.ListAll(ctx, db)
}

func listAllMappings(ctx context.Context, db *database.DB) ([]models.URLMappingRecord, error) {
	rows, err := db.SQL().QueryContext(ctx,
		`SELECT url, stable_id, is_canonical, date_added FROM url_mappings`)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []models.URLMappingRecord
	for rows.Next() {
		var m models.URLMappingRecord
		if err := rows.Scan(&m.URL, &m.StableID, &m.IsCanonical, &m.DateAdded); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func listAllFeedback(ctx context.Context, db *database.DB) ([]models.FeedbackRecord, error) {
	rows, err := db.SQL().QueryContext(ctx, `
		SELECT id, chapter_url, translation_id, category, selection, comment, created_at
		FROM feedback ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []models.FeedbackRecord
	for rows.Next() {
		var (
			f             models.FeedbackRecord
			translationID sql.NullString
			selection     sql.NullString
			comment       sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.ChapterURL, &translationID, &f.Category,
			&selection, &comment, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		f.TranslationID = translationID.String
		f.Selection = selection.String
		f.Comment = comment.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func listAllDiffs(ctx context.Context, db *database.DB) ([]models.DiffResult, error) {
	rows, err := db.SQL().QueryContext(ctx,
		`SELECT chapter_url, version, algorithm, result, computed_at FROM diff_results`)
	if err != nil {
		return nil, fmt.Errorf("list diffs: %w", err)
	}
	defer rows.Close()

	var out []models.DiffResult
	for rows.Next() {
		var d models.DiffResult
		if err := rows.Scan(&d.ChapterURL, &d.Version, &d.Algorithm, &d.Result, &d.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan diff: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func listAllAmendments(ctx context.Context, db *database.DB) ([]models.AmendmentLog, error) {
	rows, err := db.SQL().QueryContext(ctx, `
		SELECT id, chapter_url, translation_id, original, amended, reason, created_at
		FROM amendment_logs ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list amendments: %w", err)
	}
	defer rows.Close()

	var out []models.AmendmentLog
	for rows.Next() {
		var (
			a             models.AmendmentLog
			translationID sql.NullString
			reason        sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ChapterURL, &translationID, &a.Original,
			&a.Amended, &reason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan amendment: %w", err)
		}
		a.TranslationID = translationID.String
		a.Reason = reason.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
