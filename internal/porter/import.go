package porter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"novelhub/internal/identity"
	"novelhub/internal/summaries"
	"novelhub/internal/translations"
	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "porter"

// chunkSize is the number of chapters written per transaction during import.
// Small enough that one failed batch loses little work, large enough that a
// multi-thousand-chapter library does not crawl through per-row commits.
const chunkSize = 50

// ProgressFunc receives a progress report after each completed stage or
// chapter batch. May be nil.
type ProgressFunc func(models.ImportProgress)

type Importer struct {
	DB *database.DB
}

func NewImporter(db *database.DB) *Importer {
	return &Importer{DB: db}
}

// Import merges an export envelope into the store. Settings, mappings and
// the other small stores land in one transaction; chapters (with their
// embedded translations and feedback) are written in batches of chunkSize,
// each batch its own transaction. Importing the same envelope twice
// converges on the same end state.
func (i *Importer) Import(ctx context.Context, env *models.ExportEnvelope, progress ProgressFunc) error {
	if env == nil || env.Chapters == nil {
		return dberr.New(dberr.Constraint, domain, "import",
			fmt.Errorf("envelope missing chapters array"))
	}
	report := func(p models.ImportProgress) {
		if progress != nil {
			progress(p)
		}
	}

	total := len(env.Chapters)

	if err := i.importSettings(ctx, env); err != nil {
		return err
	}
	report(models.ImportProgress{Stage: models.StageSettings, Current: 0, Total: total,
		Message: "settings imported"})

	for start := 0; start < total; start += chunkSize {
		end := start + chunkSize
		if end > total {
			end = total
		}
		batch := env.Chapters[start:end]
		err := i.DB.WithWriteTxn(ctx, domain, "import_chapters", func(tx *sql.Tx) error {
			for idx := range batch {
				if err := importChapter(ctx, tx, &batch[idx]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("import batch %d-%d: %w", start, end-1, err)
		}
		report(models.ImportProgress{Stage: models.StageChapters, Current: end, Total: total,
			Message: fmt.Sprintf("imported %d of %d chapters", end, total)})
	}

	report(models.ImportProgress{Stage: models.StageComplete, Current: total, Total: total,
		Message: "import complete"})
	log.Printf("[porter] imported %d chapters", total)
	return nil
}

func (i *Importer) importSettings(ctx context.Context, env *models.ExportEnvelope) error {
	return i.DB.WithWriteTxn(ctx, domain, "import_settings", func(tx *sql.Tx) error {
		for k, v := range env.Settings {
			if err := upsertSetting(ctx, tx, k, v); err != nil {
				return err
			}
		}
		if env.Navigation != nil {
			b, err := json.Marshal(env.Navigation)
			if err != nil {
				return fmt.Errorf("marshal navigation: %w", err)
			}
			if err := upsertSetting(ctx, tx, navigationKey, string(b)); err != nil {
				return err
			}
		}
		for k, v := range env.Images {
			if err := upsertSetting(ctx, tx, imageKeyPrefix+k, v); err != nil {
				return err
			}
		}

		for _, m := range env.URLMappings {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO url_mappings (url, stable_id, is_canonical, date_added)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(url) DO UPDATE SET
					stable_id = excluded.stable_id,
					is_canonical = excluded.is_canonical
			`, m.URL, identity.Canonicalize(m.StableID), boolToInt(m.IsCanonical), orNow(m.DateAdded)); err != nil {
				return fmt.Errorf("import mapping %s: %w", m.URL, err)
			}
		}

		for _, n := range env.Novels {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO novels (id, title, author, source_site, language, description, cover_url, date_added)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					title = excluded.title, author = excluded.author,
					source_site = excluded.source_site, language = excluded.language,
					description = excluded.description, cover_url = excluded.cover_url
			`, n.ID, n.Title, nullString(n.Author), nullString(n.SourceSite), nullString(n.Language),
				nullString(n.Description), nullString(n.CoverURL), orNow(n.DateAdded)); err != nil {
				return fmt.Errorf("import novel %s: %w", n.ID, err)
			}
		}

		for _, t := range env.Templates {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO prompt_templates (id, name, description, content, is_default, created_at, last_used)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name, description = excluded.description,
					content = excluded.content, is_default = excluded.is_default
			`, t.ID, t.Name, nullString(t.Description), t.Content, boolToInt(t.IsDefault),
				orNow(t.CreatedAt), nullTime(t.LastUsed)); err != nil {
				return fmt.Errorf("import template %s: %w", t.ID, err)
			}
		}

		for _, d := range env.DiffResults {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO diff_results (chapter_url, version, algorithm, result, computed_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(chapter_url, version, algorithm) DO UPDATE SET
					result = excluded.result, computed_at = excluded.computed_at
			`, d.ChapterURL, d.Version, d.Algorithm, d.Result, orNow(d.ComputedAt)); err != nil {
				return fmt.Errorf("import diff: %w", err)
			}
		}

		for _, a := range env.Amendments {
			// append-only log: re-imports with the same id are skipped
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO amendment_logs
					(id, chapter_url, translation_id, original, amended, reason, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, a.ID, a.ChapterURL, nullString(a.TranslationID), a.Original, a.Amended,
				nullString(a.Reason), orNow(a.CreatedAt)); err != nil {
				return fmt.Errorf("import amendment: %w", err)
			}
		}
		return nil
	})
}

// importChapter writes one chapter plus its translations and feedback inside
// the caller's transaction, then repairs the active flag and recomputes the
// summary row.
func importChapter(ctx context.Context, tx *sql.Tx, ch *models.ExportedChapter) error {
	if ch.URL == "" {
		return fmt.Errorf("chapter without url")
	}
	if ch.OriginalURL == "" {
		ch.OriginalURL = ch.URL
	}
	if ch.CanonicalURL == "" {
		ch.CanonicalURL = identity.CanonicalURL(ch.OriginalURL)
	}
	if ch.StableID == "" {
		ch.StableID = identity.Generate(ch.Content, ch.ChapterNumber, ch.Title)
	} else {
		ch.StableID = identity.Canonicalize(ch.StableID)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chapters
			(url, stable_id, canonical_url, title, content, original_url,
			 next_url, prev_url, chapter_number, reference_text, date_added, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			stable_id = excluded.stable_id,
			canonical_url = excluded.canonical_url,
			title = excluded.title,
			content = excluded.content,
			original_url = excluded.original_url,
			next_url = excluded.next_url,
			prev_url = excluded.prev_url,
			chapter_number = excluded.chapter_number,
			reference_text = excluded.reference_text
	`, ch.URL, ch.StableID, ch.CanonicalURL, ch.Title, ch.Content, ch.OriginalURL,
		nullString(ch.NextURL), nullString(ch.PrevURL), ch.ChapterNumber,
		nullString(ch.ReferenceText), orNow(ch.DateAdded), nullTime(ch.LastAccessed)); err != nil {
		return fmt.Errorf("import chapter %s: %w", ch.URL, err)
	}

	if err := identity.EnsureURLMappingsTx(ctx, tx, ch.URL, ch.StableID); err != nil {
		return err
	}

	for idx := range ch.Translations {
		t := &ch.Translations[idx]
		t.ChapterURL = ch.URL
		t.StableID = ch.StableID
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		extras, provider, usage, err := translations.MarshalPayload(t)
		if err != nil {
			return fmt.Errorf("translation payload: %w", err)
		}
		// id and (chapter_url, version) are both unique; a row already
		// present under either key is left as is
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO translations
				(id, chapter_url, stable_id, version, is_active, translated_title,
				 translation, extras, provider, usage, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.ChapterURL, t.StableID, t.Version, boolToInt(t.IsActive),
			nullString(t.TranslatedTitle), t.Translation, extras, provider, usage,
			orNow(t.CreatedAt)); err != nil {
			return fmt.Errorf("import translation v%d: %w", t.Version, err)
		}
	}

	if err := repairActiveFlag(ctx, tx, ch.URL); err != nil {
		return err
	}

	for _, f := range ch.Feedback {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO feedback
				(id, chapter_url, translation_id, category, selection, comment, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, nullID(f.ID), ch.URL, nullString(f.TranslationID), f.Category,
			nullString(f.Selection), nullString(f.Comment), orNow(f.CreatedAt)); err != nil {
			return fmt.Errorf("import feedback: %w", err)
		}
	}

	return summaries.RecomputeTx(ctx, tx, ch.URL)
}

// repairActiveFlag enforces exactly one active version after a merge: when
// zero or several rows ended up active, the highest version wins.
func repairActiveFlag(ctx context.Context, tx *sql.Tx, chapterURL string) error {
	var total, active int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM translations WHERE chapter_url = ?`,
		chapterURL,
	).Scan(&total, &active)
	if err != nil {
		return fmt.Errorf("count versions: %w", err)
	}
	if total == 0 || active == 1 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE translations SET is_active = 0 WHERE chapter_url = ?`, chapterURL); err != nil {
		return fmt.Errorf("clear active flags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE translations SET is_active = 1
		WHERE chapter_url = ? AND version = (
			SELECT MAX(version) FROM translations WHERE chapter_url = ?
		)
	`, chapterURL, chapterURL); err != nil {
		return fmt.Errorf("activate highest version: %w", err)
	}
	return nil
}

func upsertSetting(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("import setting %s: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
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

// nullID lets autoincrement assign ids for rows exported before ids were
// included in the envelope.
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
