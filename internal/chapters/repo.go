package chapters

import (
	"context"
	"database/sql"
	"fmt"

	"novelhub/internal/identity"
	"novelhub/internal/summaries"
	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "chapters"

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

// Store upserts a chapter. Stable ID and canonical URL are filled in when
// absent, identity mappings are maintained, and the summary projection is
// recomputed, all in one transaction. The passed record is updated in place
// with the derived fields.
func (r *Repo) Store(ctx context.Context, ch *models.ChapterRecord) error {
	if ch.URL == "" {
		return dberr.New(dberr.Constraint, domain, "store", fmt.Errorf("chapter url required"))
	}
	if ch.OriginalURL == "" {
		ch.OriginalURL = ch.URL
	}
	ch.CanonicalURL = identity.CanonicalURL(ch.OriginalURL)
	if ch.StableID == "" {
		ch.StableID = identity.Generate(ch.Content, ch.ChapterNumber, ch.Title)
	}

	return r.DB.WithWriteTxn(ctx, domain, "store", func(tx *sql.Tx) error {
		// date_added survives re-stores of the same URL
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chapters
				(url, stable_id, canonical_url, title, content, original_url,
				 next_url, prev_url, chapter_number, reference_text, date_added)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
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
			nullString(ch.ReferenceText))
		if err != nil {
			return fmt.Errorf("upsert chapter: %w", err)
		}

		if err := identity.EnsureURLMappingsTx(ctx, tx, ch.URL, ch.StableID); err != nil {
			return err
		}
		return summaries.RecomputeTx(ctx, tx, ch.URL)
	})
}

// Get loads one chapter by raw URL.
func (r *Repo) Get(ctx context.Context, url string) (*models.ChapterRecord, error) {
	row := r.DB.SQL().QueryRowContext(ctx, `
		SELECT url, stable_id, canonical_url, title, content, original_url,
		       next_url, prev_url, chapter_number, reference_text,
		       date_added, last_accessed
		FROM chapters WHERE url = ?
	`, url)
	ch, err := scanChapter(row)
	if err != nil {
		return nil, dberr.Classify(err, domain, "get")
	}
	return ch, nil
}

// Touch stamps last_accessed and refreshes the summary projection.
func (r *Repo) Touch(ctx context.Context, url string) error {
	return r.DB.WithWriteTxn(ctx, domain, "touch", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE chapters SET last_accessed = CURRENT_TIMESTAMP WHERE url = ?`, url)
		if err != nil {
			return fmt.Errorf("touch chapter: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		return summaries.RecomputeTx(ctx, tx, url)
	})
}

// Delete removes a chapter and everything hanging off it: translation
// versions, feedback, cached diffs, amendment logs, identity mappings, and
// the summary row. Neighboring chapters are re-linked around the gap.
func (r *Repo) Delete(ctx context.Context, url string) error {
	return r.DB.WithWriteTxn(ctx, domain, "delete", func(tx *sql.Tx) error {
		var (
			stableID string
			nextURL  sql.NullString
			prevURL  sql.NullString
		)
		err := tx.QueryRowContext(ctx,
			`SELECT stable_id, next_url, prev_url FROM chapters WHERE url = ?`, url,
		).Scan(&stableID, &nextURL, &prevURL)
		if err != nil {
			return fmt.Errorf("load chapter for delete: %w", err)
		}

		// splice the navigation linked list
		if _, err := tx.ExecContext(ctx,
			`UPDATE chapters SET next_url = ? WHERE next_url = ?`, nextURL, url); err != nil {
			return fmt.Errorf("relink next: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chapters SET prev_url = ? WHERE prev_url = ?`, prevURL, url); err != nil {
			return fmt.Errorf("relink prev: %w", err)
		}

		cascade := []struct {
			q    string
			args []any
		}{
			{`DELETE FROM translations WHERE chapter_url = ?`, []any{url}},
			{`DELETE FROM feedback WHERE chapter_url = ?`, []any{url}},
			{`DELETE FROM diff_results WHERE chapter_url = ?`, []any{url}},
			{`DELETE FROM amendment_logs WHERE chapter_url = ?`, []any{url}},
			{`DELETE FROM url_mappings WHERE stable_id = ?`, []any{stableID}},
			{`DELETE FROM chapter_summaries WHERE stable_id = ?`, []any{stableID}},
			{`DELETE FROM chapters WHERE url = ?`, []any{url}},
		}
		for _, c := range cascade {
			if _, err := tx.ExecContext(ctx, c.q, c.args...); err != nil {
				return fmt.Errorf("cascade delete: %w", err)
			}
		}
		return nil
	})
}

// List returns every chapter ordered by number. Export and the backfill jobs
// use this; the reading UI goes through summaries instead.
func (r *Repo) List(ctx context.Context) ([]models.ChapterRecord, error) {
	rows, err := r.DB.SQL().QueryContext(ctx, `
		SELECT url, stable_id, canonical_url, title, content, original_url,
		       next_url, prev_url, chapter_number, reference_text,
		       date_added, last_accessed
		FROM chapters
		ORDER BY chapter_number ASC, url ASC
	`)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list chapters: %w", err), domain, "list")
	}
	defer rows.Close()

	var out []models.ChapterRecord
	for rows.Next() {
		ch, err := scanChapter(rows)
		if err != nil {
			return nil, dberr.Classify(err, domain, "list")
		}
		out = append(out, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(fmt.Errorf("rows err: %w", err), domain, "list")
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.SQL().QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters`).Scan(&n); err != nil {
		return 0, dberr.Classify(fmt.Errorf("count chapters: %w", err), domain, "count")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChapter(row rowScanner) (*models.ChapterRecord, error) {
	var (
		ch            models.ChapterRecord
		nextURL       sql.NullString
		prevURL       sql.NullString
		referenceText sql.NullString
		lastAccessed  sql.NullTime
	)
	if err := row.Scan(&ch.URL, &ch.StableID, &ch.CanonicalURL, &ch.Title, &ch.Content,
		&ch.OriginalURL, &nextURL, &prevURL, &ch.ChapterNumber, &referenceText,
		&ch.DateAdded, &lastAccessed); err != nil {
		return nil, err
	}
	ch.NextURL = nextURL.String
	ch.PrevURL = prevURL.String
	ch.ReferenceText = referenceText.String
	if lastAccessed.Valid {
		t := lastAccessed.Time
		ch.LastAccessed = &t
	}
	return &ch, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
