package backup

import (
	"context"
	"log"

	"novelhub/pkg/database"
)

// GuardedOpen opens the database and migrates to the current target version
// with the snapshot-then-recreate safety net: when an upgrade is actually
// pending, a snapshot is taken first; a failed upgrade marks the snapshot
// failed (gating restore) before the error propagates.
//
// A database already at the target version opens without touching any
// backup state.
func GuardedOpen(ctx context.Context, cfg database.Config) (*database.DB, error) {
	mgr := NewManager(cfg)

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if current >= database.TargetVersion || current == 0 {
		// Nothing risky: either up to date (Migrate only verifies, or
		// fails the forward-compatibility guard) or a brand-new file
		// with nothing to lose.
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	if _, _, err := mgr.Snapshot(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		if markErr := mgr.MarkFailed(); markErr != nil {
			log.Printf("[backup] failed to mark snapshot failed: %v", markErr)
		}
		_ = db.Close()
		return nil, err
	}

	if err := mgr.MarkCompleted(); err != nil {
		log.Printf("[backup] failed to mark snapshot completed: %v", err)
	}
	return db, nil
}
