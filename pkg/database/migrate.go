package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"novelhub/pkg/dberr"
)

// TargetVersion is the schema version this build writes. History:
//
//	 1 - chapters
//	 2 - translations + chapter_url index
//	 3 - settings
//	 4 - feedback
//	 5 - version anchor (a 0.4.x client bumped user_version without DDL)
//	 6 - url_mappings + stable_id index
//	 7 - prompt_templates
//	 8 - translations stable_id index + unique (chapter_url, version)
//	 9 - novels
//	10 - chapter_summaries
//	11 - amendment_logs + diff_results
//	12 - schema repair (re-asserts the whole layout)
const TargetVersion = 12

// Migration is one registry step. Apply must be idempotent: a step may run
// again after a partially-completed prior upgrade, so every statement guards
// with IF NOT EXISTS.
type Migration struct {
	Name  string
	Apply func(ctx context.Context, tx *sql.Tx) error
}

const (
	ddlChapters = `CREATE TABLE IF NOT EXISTS chapters (
		url            TEXT PRIMARY KEY,
		stable_id      TEXT NOT NULL DEFAULT '',
		canonical_url  TEXT NOT NULL DEFAULT '',
		title          TEXT NOT NULL DEFAULT '',
		content        TEXT NOT NULL DEFAULT '',
		original_url   TEXT NOT NULL DEFAULT '',
		next_url       TEXT,
		prev_url       TEXT,
		chapter_number INTEGER NOT NULL DEFAULT 0,
		reference_text TEXT,
		date_added     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_accessed  TIMESTAMP
	)`
	ddlChaptersStableIdx = `CREATE INDEX IF NOT EXISTS idx_chapters_stable_id ON chapters(stable_id)`

	ddlTranslations = `CREATE TABLE IF NOT EXISTS translations (
		id               TEXT PRIMARY KEY,
		chapter_url      TEXT NOT NULL,
		stable_id        TEXT NOT NULL DEFAULT '',
		version          INTEGER NOT NULL,
		is_active        INTEGER NOT NULL DEFAULT 0,
		translated_title TEXT,
		translation      TEXT NOT NULL DEFAULT '',
		extras           TEXT NOT NULL DEFAULT '{}',
		provider         TEXT NOT NULL DEFAULT '{}',
		usage            TEXT NOT NULL DEFAULT '{}',
		created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	ddlTranslationsChapterIdx = `CREATE INDEX IF NOT EXISTS idx_translations_chapter_url ON translations(chapter_url)`
	ddlTranslationsStableIdx  = `CREATE INDEX IF NOT EXISTS idx_translations_stable_id ON translations(stable_id)`
	ddlTranslationsVersionUx  = `CREATE UNIQUE INDEX IF NOT EXISTS ux_translations_chapter_version ON translations(chapter_url, version)`

	ddlSettings = `CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	)`

	ddlFeedback = `CREATE TABLE IF NOT EXISTS feedback (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		chapter_url    TEXT NOT NULL,
		translation_id TEXT,
		category       TEXT NOT NULL DEFAULT '',
		selection      TEXT,
		comment        TEXT,
		created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	ddlFeedbackChapterIdx = `CREATE INDEX IF NOT EXISTS idx_feedback_chapter_url ON feedback(chapter_url)`

	ddlURLMappings = `CREATE TABLE IF NOT EXISTS url_mappings (
		url          TEXT PRIMARY KEY,
		stable_id    TEXT NOT NULL,
		is_canonical INTEGER NOT NULL DEFAULT 0,
		date_added   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	ddlURLMappingsStableIdx = `CREATE INDEX IF NOT EXISTS idx_url_mappings_stable_id ON url_mappings(stable_id)`

	ddlPromptTemplates = `CREATE TABLE IF NOT EXISTS prompt_templates (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		description TEXT,
		content     TEXT NOT NULL DEFAULT '',
		is_default  INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_used   TIMESTAMP
	)`

	ddlNovels = `CREATE TABLE IF NOT EXISTS novels (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL DEFAULT '',
		author      TEXT,
		source_site TEXT,
		language    TEXT,
		description TEXT,
		cover_url   TEXT,
		date_added  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	ddlChapterSummaries = `CREATE TABLE IF NOT EXISTS chapter_summaries (
		stable_id        TEXT PRIMARY KEY,
		chapter_url      TEXT NOT NULL DEFAULT '',
		title            TEXT NOT NULL DEFAULT '',
		translated_title TEXT,
		chapter_number   INTEGER NOT NULL DEFAULT 0,
		has_translation  INTEGER NOT NULL DEFAULT 0,
		has_images       INTEGER NOT NULL DEFAULT 0,
		last_accessed    TIMESTAMP
	)`

	ddlAmendmentLogs = `CREATE TABLE IF NOT EXISTS amendment_logs (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		chapter_url    TEXT NOT NULL,
		translation_id TEXT,
		original       TEXT NOT NULL DEFAULT '',
		amended        TEXT NOT NULL DEFAULT '',
		reason         TEXT,
		created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	ddlDiffResults = `CREATE TABLE IF NOT EXISTS diff_results (
		chapter_url TEXT NOT NULL,
		version     INTEGER NOT NULL,
		algorithm   TEXT NOT NULL,
		result      TEXT NOT NULL DEFAULT '',
		computed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (chapter_url, version, algorithm)
	)`
)

// fullLayout is every structural statement of the target schema, in
// dependency order. The trailing repair migration and Verify both derive
// from it so a store or index lost along the way gets healed.
var fullLayout = []string{
	ddlChapters, ddlChaptersStableIdx,
	ddlTranslations, ddlTranslationsChapterIdx, ddlTranslationsStableIdx, ddlTranslationsVersionUx,
	ddlSettings,
	ddlFeedback, ddlFeedbackChapterIdx,
	ddlURLMappings, ddlURLMappingsStableIdx,
	ddlPromptTemplates,
	ddlNovels,
	ddlChapterSummaries,
	ddlAmendmentLogs,
	ddlDiffResults,
}

func execAll(ctx context.Context, tx *sql.Tx, stmts ...string) error {
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec ddl: %w", err)
		}
	}
	return nil
}

func ddlStep(name string, stmts ...string) Migration {
	return Migration{
		Name: name,
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			return execAll(ctx, tx, stmts...)
		},
	}
}

// anchorStep is a no-op used when a past client bumped the version number
// without applying the matching structural change. Keeping the slot in the
// registry means old databases stranded at that number still upgrade cleanly.
func anchorStep(name string) Migration {
	return Migration{
		Name:  name,
		Apply: func(ctx context.Context, tx *sql.Tx) error { return nil },
	}
}

// Migrations is the ordered registry, indexed by the version each step
// upgrades TO. Steps must stay append-only; renumbering shipped steps would
// desync every installed database.
var Migrations = map[int]Migration{
	1:  ddlStep("chapters", ddlChapters, ddlChaptersStableIdx),
	2:  ddlStep("translations", ddlTranslations, ddlTranslationsChapterIdx),
	3:  ddlStep("settings", ddlSettings),
	4:  ddlStep("feedback", ddlFeedback, ddlFeedbackChapterIdx),
	5:  anchorStep("anchor-0.4.x"),
	6:  ddlStep("url_mappings", ddlURLMappings, ddlURLMappingsStableIdx),
	7:  ddlStep("prompt_templates", ddlPromptTemplates),
	8:  ddlStep("translation-version-indexes", ddlTranslationsStableIdx, ddlTranslationsVersionUx),
	9:  ddlStep("novels", ddlNovels),
	10: ddlStep("chapter_summaries", ddlChapterSummaries),
	11: ddlStep("amendment_logs+diff_results", ddlAmendmentLogs, ddlDiffResults),
	12: ddlStep("schema-repair", fullLayout...),
}

// Migrate brings the database to TargetVersion, then verifies the layout.
func (d *DB) Migrate(ctx context.Context) error {
	return d.MigrateTo(ctx, TargetVersion)
}

// MigrateTo upgrades to an explicit target version. Restore uses this to
// recreate a database at the version a snapshot was taken from.
//
// The whole upgrade runs in one transaction: if any step fails the database
// stays at its prior version. A database newer than the target is fatal
// (requires a newer build, not a retry).
func (d *DB) MigrateTo(ctx context.Context, target int) error {
	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return dberr.New(dberr.Upgrade, "database", "migrate", err)
	}

	if current > target {
		return dberr.New(dberr.Version, "database", "migrate",
			fmt.Errorf("on-disk schema v%d is newer than target v%d", current, target))
	}

	if current < target {
		if err := d.applyMigrations(ctx, current, target); err != nil {
			return err
		}
	}

	if target == TargetVersion {
		if err := d.Verify(ctx); err != nil {
			return err
		}
	}
	return nil
}

// applyMigrations runs every registry step in (oldVersion, newVersion], in
// order, inside a single transaction, and persists the new version with it.
func (d *DB) applyMigrations(ctx context.Context, oldVersion, newVersion int) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.New(dberr.Upgrade, "database", "migrate", err)
	}
	defer tx.Rollback()

	for v := oldVersion + 1; v <= newVersion; v++ {
		step, ok := Migrations[v]
		if !ok {
			continue
		}
		if err := step.Apply(ctx, tx); err != nil {
			return dberr.New(dberr.Upgrade, "database", "migrate",
				fmt.Errorf("step %d (%s): %w", v, step.Name, err))
		}
		log.Printf("[migrate] applied step %d (%s)", v, step.Name)
	}

	// user_version is stored in the file header and rolls back with the
	// transaction, so version and structure always move together.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", newVersion)); err != nil {
		return dberr.New(dberr.Upgrade, "database", "migrate", err)
	}

	if err := tx.Commit(); err != nil {
		return dberr.New(dberr.Upgrade, "database", "migrate", err)
	}

	log.Printf("[migrate] schema now at v%d (was v%d)", newVersion, oldVersion)
	return nil
}
