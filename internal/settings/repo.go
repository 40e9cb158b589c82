package settings

import (
	"context"
	"database/sql"
	"fmt"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
)

const domain = "settings"

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

// Get returns the value for key, or a NotFound taxonomy error.
func (r *Repo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.DB.SQL().QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		return "", dberr.Classify(fmt.Errorf("get setting %q: %w", key, err), domain, "get")
	}
	return value, nil
}

// GetDefault is Get with a fallback instead of NotFound.
func (r *Repo) GetDefault(ctx context.Context, key, def string) (string, error) {
	v, err := r.Get(ctx, key)
	if dberr.IsKind(err, dberr.NotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *Repo) Set(ctx context.Context, key, value string) error {
	return r.DB.WithWriteTxn(ctx, domain, "set", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		if err != nil {
			return fmt.Errorf("set setting %q: %w", key, err)
		}
		return nil
	})
}

func (r *Repo) Delete(ctx context.Context, key string) error {
	return r.DB.WithWriteTxn(ctx, domain, "delete", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete setting %q: %w", key, err)
		}
		return nil
	})
}

// All returns every setting. Used by export and backup snapshots.
func (r *Repo) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.DB.SQL().QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, dberr.Classify(fmt.Errorf("list settings: %w", err), domain, "all")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, dberr.Classify(fmt.Errorf("scan setting: %w", err), domain, "all")
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(fmt.Errorf("rows err: %w", err), domain, "all")
	}
	return out, nil
}
