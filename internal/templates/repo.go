package templates

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "templates"

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

// Upsert saves a prompt template. Marking one as default clears the flag on
// every other template in the same transaction.
func (r *Repo) Upsert(ctx context.Context, t *models.PromptTemplate) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return r.DB.WithWriteTxn(ctx, domain, "upsert", func(tx *sql.Tx) error {
		if t.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE prompt_templates SET is_default = 0 WHERE id != ?`, t.ID); err != nil {
				return fmt.Errorf("clear default flags: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO prompt_templates (id, name, description, content, is_default, created_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				content = excluded.content,
				is_default = excluded.is_default
		`, t.ID, t.Name, nullString(t.Description), t.Content, t.IsDefault)
		if err != nil {
			return fmt.Errorf("upsert template: %w", err)
		}
		return nil
	})
}

// MarkUsed stamps last_used.
func (r *Repo) MarkUsed(ctx context.Context, id string) error {
	return r.DB.WithWriteTxn(ctx, domain, "mark_used", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE prompt_templates SET last_used = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark template used: %w", err)
		}
		return nil
	})
}

func (r *Repo) List(ctx context.Context) ([]models.PromptTemplate, error) {
	rows, err := r.DB.SQL().QueryContext(ctx, `
		SELECT id, name, description, content, is_default, created_at, last_used
		FROM prompt_templates ORDER BY name ASC
	`)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list templates: %w", err), domain, "list")
	}
	defer rows.Close()

	var out []models.PromptTemplate
	for rows.Next() {
		var (
			t           models.PromptTemplate
			description sql.NullString
			lastUsed    sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Name, &description, &t.Content,
			&t.IsDefault, &t.CreatedAt, &lastUsed); err != nil {
			return nil, dberr.Classify(fmt.Errorf("scan template: %w", err), domain, "list")
		}
		t.Description = description.String
		if lastUsed.Valid {
			lu := lastUsed.Time
			t.LastUsed = &lu
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(fmt.Errorf("rows err: %w", err), domain, "list")
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	return r.DB.WithWriteTxn(ctx, domain, "delete", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		return nil
	})
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
