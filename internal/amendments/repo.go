package amendments

import (
	"context"
	"database/sql"
	"fmt"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "amendments"

// Repo is the append-only amendment audit trail.
type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Append(ctx context.Context, a *models.AmendmentLog) error {
	return r.DB.WithWriteTxn(ctx, domain, "append", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO amendment_logs (chapter_url, translation_id, original, amended, reason, created_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, a.ChapterURL, nullString(a.TranslationID), a.Original, a.Amended, nullString(a.Reason))
		if err != nil {
			return fmt.Errorf("append amendment: %w", err)
		}
		a.ID, _ = res.LastInsertId()
		return nil
	})
}

func (r *Repo) ListByChapter(ctx context.Context, chapterURL string) ([]models.AmendmentLog, error) {
	rows, err := r.DB.SQL().QueryContext(ctx, `
		SELECT id, chapter_url, translation_id, original, amended, reason, created_at
		FROM amendment_logs WHERE chapter_url = ?
		ORDER BY created_at ASC, id ASC
	`, chapterURL)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list amendments: %w", err), domain, "list")
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
			return nil, dberr.Classify(fmt.Errorf("scan amendment: %w", err), domain, "list")
		}
		a.TranslationID = translationID.String
		a.Reason = reason.String
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(fmt.Errorf("rows err: %w", err), domain, "list")
	}
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
