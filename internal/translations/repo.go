package translations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"novelhub/internal/identity"
	"novelhub/internal/summaries"
	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "translations"

type Repo struct {
	DB       *database.DB
	Resolver *identity.Resolver
}

func NewRepo(db *database.DB, resolver *identity.Resolver) *Repo {
	return &Repo{DB: db, Resolver: resolver}
}

// Store inserts a new translation version for a chapter and makes it the
// active one. Version numbers are assigned monotonically per chapter URL
// inside the same transaction, so concurrent stores cannot collide (the
// unique (chapter_url, version) index backs this up).
func (r *Repo) Store(ctx context.Context, t *models.TranslationRecord) error {
	if t.ChapterURL == "" {
		return dberr.New(dberr.Constraint, domain, "store", fmt.Errorf("chapter url required"))
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	extras, provider, usage, err := MarshalPayload(t)
	if err != nil {
		return dberr.New(dberr.Constraint, domain, "store", err)
	}

	return r.DB.WithWriteTxn(ctx, domain, "store", func(tx *sql.Tx) error {
		if t.StableID == "" {
			if err := tx.QueryRowContext(ctx,
				`SELECT stable_id FROM chapters WHERE url = ?`, t.ChapterURL,
			).Scan(&t.StableID); err != nil {
				return fmt.Errorf("owning chapter: %w", err)
			}
		}

		if t.Version == 0 {
			if err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(version), 0) + 1 FROM translations WHERE chapter_url = ?`,
				t.ChapterURL,
			).Scan(&t.Version); err != nil {
				return fmt.Errorf("next version: %w", err)
			}
		}

		// the new version takes over as active
		if _, err := tx.ExecContext(ctx,
			`UPDATE translations SET is_active = 0 WHERE chapter_url = ?`, t.ChapterURL); err != nil {
			return fmt.Errorf("deactivate versions: %w", err)
		}
		t.IsActive = true

		_, err := tx.ExecContext(ctx, `
			INSERT INTO translations
				(id, chapter_url, stable_id, version, is_active, translated_title,
				 translation, extras, provider, usage, created_at)
			VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, t.ID, t.ChapterURL, t.StableID, t.Version, nullString(t.TranslatedTitle),
			t.Translation, extras, provider, usage)
		if err != nil {
			return fmt.Errorf("insert translation v%d: %w", t.Version, err)
		}

		return summaries.RecomputeTx(ctx, tx, t.ChapterURL)
	})
}

// SetActive makes the given version the single active one for a chapter.
func (r *Repo) SetActive(ctx context.Context, chapterURL string, version int) error {
	return r.DB.WithWriteTxn(ctx, domain, "set_active", func(tx *sql.Tx) error {
		return setActiveTx(ctx, tx, chapterURL, version)
	})
}

// SetActiveByStableID resolves the chapter through the identity resolver and
// activates the given version. A failed mapping auto-repair during
// resolution is not fatal to the activation.
func (r *Repo) SetActiveByStableID(ctx context.Context, stableID string, version int) error {
	url, err := r.Resolver.ResolveURLForStableID(ctx, stableID)
	if err != nil && !identity.IsRepairFailure(err) {
		return err
	}
	return r.SetActive(ctx, url, version)
}

func setActiveTx(ctx context.Context, tx *sql.Tx, chapterURL string, version int) error {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM translations WHERE chapter_url = ? AND version = ?`,
		chapterURL, version,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("version %d of %s: %w", version, chapterURL, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE translations SET is_active = 0 WHERE chapter_url = ?`, chapterURL); err != nil {
		return fmt.Errorf("deactivate versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE translations SET is_active = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("activate version: %w", err)
	}
	return summaries.RecomputeTx(ctx, tx, chapterURL)
}

// DeleteVersion removes one version. If it was the active one, the highest
// remaining version takes over so the exactly-one-active invariant holds
// whenever any version remains.
func (r *Repo) DeleteVersion(ctx context.Context, chapterURL string, version int) error {
	return r.DB.WithWriteTxn(ctx, domain, "delete_version", func(tx *sql.Tx) error {
		var wasActive bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_active FROM translations WHERE chapter_url = ? AND version = ?`,
			chapterURL, version,
		).Scan(&wasActive)
		if err != nil {
			return fmt.Errorf("version %d of %s: %w", version, chapterURL, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM translations WHERE chapter_url = ? AND version = ?`,
			chapterURL, version); err != nil {
			return fmt.Errorf("delete version: %w", err)
		}

		if wasActive {
			if _, err := tx.ExecContext(ctx, `
				UPDATE translations SET is_active = 1
				WHERE chapter_url = ? AND version = (
					SELECT MAX(version) FROM translations WHERE chapter_url = ?
				)
			`, chapterURL, chapterURL); err != nil {
				return fmt.Errorf("promote replacement: %w", err)
			}
		}
		return summaries.RecomputeTx(ctx, tx, chapterURL)
	})
}

// GetActive returns the active version for a chapter.
func (r *Repo) GetActive(ctx context.Context, chapterURL string) (*models.TranslationRecord, error) {
	row := r.DB.SQL().QueryRowContext(ctx,
		selectCols+` WHERE chapter_url = ? AND is_active = 1`, chapterURL)
	t, err := scanTranslation(row)
	if err != nil {
		return nil, dberr.Classify(err, domain, "get_active")
	}
	return t, nil
}

// ListByChapter returns every version for a chapter, oldest first.
func (r *Repo) ListByChapter(ctx context.Context, chapterURL string) ([]models.TranslationRecord, error) {
	rows, err := r.DB.SQL().QueryContext(ctx,
		selectCols+` WHERE chapter_url = ? ORDER BY version ASC`, chapterURL)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list versions: %w", err), domain, "list")
	}
	defer rows.Close()

	var out []models.TranslationRecord
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, dberr.Classify(err, domain, "list")
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(fmt.Errorf("rows err: %w", err), domain, "list")
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.SQL().QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n); err != nil {
		return 0, dberr.Classify(fmt.Errorf("count translations: %w", err), domain, "count")
	}
	return n, nil
}

const selectCols = `
	SELECT id, chapter_url, stable_id, version, is_active, translated_title,
	       translation, extras, provider, usage, created_at
	FROM translations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranslation(row rowScanner) (*models.TranslationRecord, error) {
	var (
		t               models.TranslationRecord
		translatedTitle sql.NullString
		extras          string
		provider        string
		usage           string
	)
	if err := row.Scan(&t.ID, &t.ChapterURL, &t.StableID, &t.Version, &t.IsActive,
		&translatedTitle, &t.Translation, &extras, &provider, &usage, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.TranslatedTitle = translatedTitle.String
	_ = json.Unmarshal([]byte(extras), &t.Extras)
	_ = json.Unmarshal([]byte(provider), &t.Provider)
	_ = json.Unmarshal([]byte(usage), &t.Usage)
	return &t, nil
}

// ListAll returns every translation row. Backup and export use this.
func ListAll(ctx context.Context, db *database.DB) ([]models.TranslationRecord, error) {
	rows, err := db.SQL().QueryContext(ctx, selectCols+` ORDER BY chapter_url ASC, version ASC`)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list all translations: %w", err), domain, "list_all")
	}
	defer rows.Close()

	var out []models.TranslationRecord
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, dberr.Classify(err, domain, "list_all")
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(fmt.Errorf("rows err: %w", err), domain, "list_all")
	}
	return out, nil
}

// MarshalPayload serializes the JSON columns of a translation record.
// Exported for backup restore and import, which write rows verbatim.
func MarshalPayload(t *models.TranslationRecord) (extras, provider, usage string, err error) {
	e, err := json.Marshal(t.Extras)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal extras: %w", err)
	}
	p, err := json.Marshal(t.Provider)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal provider: %w", err)
	}
	u, err := json.Marshal(t.Usage)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal usage: %w", err)
	}
	return string(e), string(p), string(u), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
