package feedback

import (
	"context"
	"database/sql"
	"fmt"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "feedback"

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Add(ctx context.Context, f *models.FeedbackRecord) error {
	return r.DB.WithWriteTxn(ctx, domain, "add", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO feedback (chapter_url, translation_id, category, selection, comment, created_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, f.ChapterURL, nullString(f.TranslationID), f.Category,
			nullString(f.Selection), nullString(f.Comment))
		if err != nil {
			return fmt.Errorf("insert feedback: %w", err)
		}
		f.ID, _ = res.LastInsertId()
		return nil
	})
}

func (r *Repo) ListByChapter(ctx context.Context, chapterURL string) ([]models.FeedbackRecord, error) {
	rows, err := r.DB.SQL().QueryContext(ctx, `
		SELECT id, chapter_url, translation_id, category, selection, comment, created_at
		FROM feedback
		WHERE chapter_url = ?
		ORDER BY created_at ASC, id ASC
	`, chapterURL)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list feedback: %w", err), domain, "list")
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
			return nil, dberr.Classify(fmt.Errorf("scan feedback: %w", err), domain, "list")
		}
		f.TranslationID = translationID.String
		f.Selection = selection.String
		f.Comment = comment.String
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(fmt.Errorf("rows err: %w", err), domain, "list")
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := r.DB.WithWriteTxn(ctx, domain, "delete", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM feedback WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete feedback: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		return nil
	})
	return deleted, err
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.SQL().QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n); err != nil {
		return 0, dberr.Classify(fmt.Errorf("count feedback: %w", err), domain, "count")
	}
	return n, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
