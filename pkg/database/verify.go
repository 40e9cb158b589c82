package database

import (
	"context"
	"fmt"

	"novelhub/pkg/dberr"
)

// StoreNames is the complete object-store set of the target schema.
var StoreNames = []string{
	"chapters",
	"translations",
	"settings",
	"feedback",
	"prompt_templates",
	"url_mappings",
	"novels",
	"chapter_summaries",
	"amendment_logs",
	"diff_results",
}

// loadBearingIndexes are the indexes lookups depend on for correctness, not
// just speed: losing ux_translations_chapter_version would let duplicate
// versions in.
var loadBearingIndexes = []string{
	"idx_translations_chapter_url",
	"idx_translations_stable_id",
	"ux_translations_chapter_version",
	"idx_url_mappings_stable_id",
}

// Verify confirms every required table and load-bearing index exists.
// A missing object is schema drift: fatal, and not retryable, because a
// retry cannot fix a structural problem.
func (d *DB) Verify(ctx context.Context) error {
	for _, name := range StoreNames {
		ok, err := d.objectExists(ctx, "table", name)
		if err != nil {
			return dberr.New(dberr.Upgrade, "database", "verify", err)
		}
		if !ok {
			return dberr.New(dberr.Upgrade, "database", "verify",
				fmt.Errorf("schema drift: table %q missing", name))
		}
	}
	for _, name := range loadBearingIndexes {
		ok, err := d.objectExists(ctx, "index", name)
		if err != nil {
			return dberr.New(dberr.Upgrade, "database", "verify", err)
		}
		if !ok {
			return dberr.New(dberr.Upgrade, "database", "verify",
				fmt.Errorf("schema drift: index %q missing", name))
		}
	}
	return nil
}

func (d *DB) objectExists(ctx context.Context, kind, name string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?`, kind, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query sqlite_master for %s %q: %w", kind, name, err)
	}
	return n > 0, nil
}
