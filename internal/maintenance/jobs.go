// Package maintenance holds the one-time data repairs that cannot be schema
// migrations because they depend on record contents, not structure. Every
// job is idempotent and gated by a persisted flag, so an interrupted run
// resumes safely and a finished job never runs again.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"novelhub/internal/identity"
	"novelhub/internal/settings"
	"novelhub/internal/summaries"
	"novelhub/pkg/database"
)

const domain = "maintenance"

// flagKey is the settings key persisting a job's completion.
func flagKey(job string) string { return "maintenance." + job + ".done" }

type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type Runner struct {
	DB       *database.DB
	Settings *settings.Repo
}

func NewRunner(db *database.DB) *Runner {
	return &Runner{DB: db, Settings: settings.NewRepo(db)}
}

// Jobs returns the registry in execution order. Normalization must precede
// the mapping backfill so backfilled rows carry canonical IDs.
func (r *Runner) Jobs() []Job {
	return []Job{
		{Name: "normalize-stable-ids", Run: r.normalizeStableIDs},
		{Name: "backfill-url-mappings", Run: r.backfillURLMappings},
		{Name: "ensure-active-versions", Run: r.ensureActiveVersions},
	}
}

// RunAll executes every job that has not completed yet. The completion flag
// is written only after a job finishes, so a crash mid-job re-runs it; jobs
// are written to converge on the same end state when that happens.
func (r *Runner) RunAll(ctx context.Context) error {
	for _, job := range r.Jobs() {
		done, err := r.Settings.GetDefault(ctx, flagKey(job.Name), "")
		if err != nil {
			return err
		}
		if done == "1" {
			continue
		}

		log.Printf("[maintenance] running %s", job.Name)
		if err := job.Run(ctx); err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
		if err := r.Settings.Set(ctx, flagKey(job.Name), "1"); err != nil {
			return err
		}
		log.Printf("[maintenance] %s done", job.Name)
	}
	return nil
}

// normalizeStableIDs rewrites legacy-separator stable IDs to the canonical
// format everywhere they appear. Chapters already canonical are untouched,
// which is what makes an interrupted run resumable.
func (r *Runner) normalizeStableIDs(ctx context.Context) error {
	rows, err := r.DB.SQL().QueryContext(ctx,
		`SELECT url, stable_id FROM chapters WHERE stable_id LIKE '%-%' AND stable_id NOT LIKE '%\_%' ESCAPE '\'`)
	if err != nil {
		return fmt.Errorf("find legacy ids: %w", err)
	}

	type pending struct{ url, oldID string }
	var work []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.url, &p.oldID); err != nil {
			rows.Close()
			return fmt.Errorf("scan legacy id: %w", err)
		}
		work = append(work, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows err: %w", err)
	}

	for _, p := range work {
		newID := identity.Canonicalize(p.oldID)
		if newID == p.oldID {
			continue
		}
		err := r.DB.WithWriteTxn(ctx, domain, "normalize", func(tx *sql.Tx) error {
			stmts := []string{
				`UPDATE chapters SET stable_id = ? WHERE url = ?`,
				`UPDATE translations SET stable_id = ? WHERE chapter_url = ?`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q, newID, p.url); err != nil {
					return fmt.Errorf("rewrite stable id: %w", err)
				}
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE url_mappings SET stable_id = ? WHERE stable_id = ?`, newID, p.oldID); err != nil {
				return fmt.Errorf("rewrite mapping ids: %w", err)
			}
			// summary is keyed by stable_id; drop the legacy row and
			// rebuild it under the canonical id in the same transaction
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM chapter_summaries WHERE stable_id = ?`, p.oldID); err != nil {
				return fmt.Errorf("drop old summary: %w", err)
			}
			return summaries.RecomputeTx(ctx, tx, p.url)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// backfillURLMappings creates the mapping rows for chapters stored before
// the url_mappings table existed. EnsureURLMappingsTx preserves date_added
// on rows that already exist, so re-running changes nothing.
func (r *Runner) backfillURLMappings(ctx context.Context) error {
	rows, err := r.DB.SQL().QueryContext(ctx,
		`SELECT url, stable_id FROM chapters WHERE stable_id != ''`)
	if err != nil {
		return fmt.Errorf("list chapters: %w", err)
	}

	type pair struct{ url, id string }
	var work []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.url, &p.id); err != nil {
			rows.Close()
			return fmt.Errorf("scan chapter: %w", err)
		}
		work = append(work, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows err: %w", err)
	}

	for _, p := range work {
		err := r.DB.WithWriteTxn(ctx, domain, "backfill_mappings", func(tx *sql.Tx) error {
			return identity.EnsureURLMappingsTx(ctx, tx, p.url, p.id)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ensureActiveVersions repairs chapters from before the exactly-one-active
// invariant: where zero or several versions are marked active, flags are
// cleared and the highest version number wins. Chapters with exactly one
// active version are left alone.
func (r *Runner) ensureActiveVersions(ctx context.Context) error {
	rows, err := r.DB.SQL().QueryContext(ctx, `
		SELECT chapter_url FROM translations
		GROUP BY chapter_url
		HAVING SUM(is_active) != 1
	`)
	if err != nil {
		return fmt.Errorf("find broken active flags: %w", err)
	}

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			rows.Close()
			return fmt.Errorf("scan chapter url: %w", err)
		}
		urls = append(urls, url)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows err: %w", err)
	}

	for _, url := range urls {
		err := r.DB.WithWriteTxn(ctx, domain, "ensure_active", func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`UPDATE translations SET is_active = 0 WHERE chapter_url = ?`, url); err != nil {
				return fmt.Errorf("clear active flags: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE translations SET is_active = 1
				WHERE chapter_url = ? AND version = (
					SELECT MAX(version) FROM translations WHERE chapter_url = ?
				)
			`, url, url); err != nil {
				return fmt.Errorf("activate highest version: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
