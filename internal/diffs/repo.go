package diffs

import (
	"context"
	"database/sql"
	"fmt"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "diffs"

// Repo caches computed diffs between translation versions, keyed by
// (chapter_url, version, algorithm). Recomputing with the same algorithm
// replaces the cached row.
type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Put(ctx context.Context, d *models.DiffResult) error {
	return r.DB.WithWriteTxn(ctx, domain, "put", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO diff_results (chapter_url, version, algorithm, result, computed_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(chapter_url, version, algorithm) DO UPDATE SET
				result = excluded.result,
				computed_at = excluded.computed_at
		`, d.ChapterURL, d.Version, d.Algorithm, d.Result)
		if err != nil {
			return fmt.Errorf("put diff: %w", err)
		}
		return nil
	})
}

func (r *Repo) Get(ctx context.Context, chapterURL string, version int, algorithm string) (*models.DiffResult, error) {
	var d models.DiffResult
	err := r.DB.SQL().QueryRowContext(ctx, `
		SELECT chapter_url, version, algorithm, result, computed_at
		FROM diff_results
		WHERE chapter_url = ? AND version = ? AND algorithm = ?
	`, chapterURL, version, algorithm).Scan(
		&d.ChapterURL, &d.Version, &d.Algorithm, &d.Result, &d.ComputedAt)
	if err != nil {
		return nil, dberr.Classify(err, domain, "get")
	}
	return &d, nil
}

func (r *Repo) ListByChapter(ctx context.Context, chapterURL string) ([]models.DiffResult, error) {
	rows, err := r.DB.SQL().QueryContext(ctx, `
		SELECT chapter_url, version, algorithm, result, computed_at
		FROM diff_results WHERE chapter_url = ?
		ORDER BY version ASC, algorithm ASC
	`, chapterURL)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list diffs: %w", err), domain, "list")
	}
	defer rows.Close()

	var out []models.DiffResult
	for rows.Next() {
		var d models.DiffResult
		if err := rows.Scan(&d.ChapterURL, &d.Version, &d.Algorithm, &d.Result, &d.ComputedAt); err != nil {
			return nil, dberr.Classify(fmt.Errorf("scan diff: %w", err), domain, "list")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(fmt.Errorf("rows err: %w", err), domain, "list")
	}
	return out, nil
}
