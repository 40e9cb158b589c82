package novels

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "novels"

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Upsert(ctx context.Context, n *models.NovelRecord) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return r.DB.WithWriteTxn(ctx, domain, "upsert", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO novels (id, title, author, source_site, language, description, cover_url, date_added)
			VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				author = excluded.author,
				source_site = excluded.source_site,
				language = excluded.language,
				description = excluded.description,
				cover_url = excluded.cover_url
		`, n.ID, n.Title, nullString(n.Author), nullString(n.SourceSite),
			nullString(n.Language), nullString(n.Description), nullString(n.CoverURL))
		if err != nil {
			return fmt.Errorf("upsert novel: %w", err)
		}
		return nil
	})
}

func (r *Repo) List(ctx context.Context) ([]models.NovelRecord, error) {
	rows, err := r.DB.SQL().QueryContext(ctx, `
		SELECT id, title, author, source_site, language, description, cover_url, date_added
		FROM novels ORDER BY title ASC
	`)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list novels: %w", err), domain, "list")
	}
	defer rows.Close()

	var out []models.NovelRecord
	for rows.Next() {
		var (
			n           models.NovelRecord
			author      sql.NullString
			sourceSite  sql.NullString
			language    sql.NullString
			description sql.NullString
			coverURL    sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Title, &author, &sourceSite, &language,
			&description, &coverURL, &n.DateAdded); err != nil {
			return nil, dberr.Classify(fmt.Errorf("scan novel: %w", err), domain, "list")
		}
		n.Author = author.String
		n.SourceSite = sourceSite.String
		n.Language = language.String
		n.Description = description.String
		n.CoverURL = coverURL.String
		out = append(out, n)
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
