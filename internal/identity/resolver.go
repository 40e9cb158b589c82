package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
)

const domain = "identity"

// Resolver answers "which URL does this stable ID live at" with tolerance
// for the legacy separator format and for lost mapping rows. Every fallback
// hit writes the corrected canonical mapping back so the next lookup is a
// single indexed read.
type Resolver struct {
	DB *database.DB
}

func NewResolver(db *database.DB) *Resolver {
	return &Resolver{DB: db}
}

// ResolveURLForStableID finds the chapter URL for a stable ID, in strict
// order: exact mapping, alternate-separator mapping, chapter-record scan,
// alternate-separator chapter scan. First success wins.
//
// When anything but the exact mapping matched, the canonical mapping is
// repaired as a side effect. If the lookup succeeded but the repair write
// failed, the URL is still returned together with a *dberr.RepairError so
// callers can treat it as low severity without losing the signal.
func (r *Resolver) ResolveURLForStableID(ctx context.Context, id string) (string, error) {
	// 1. exact mapping
	url, err := r.lookupMapping(ctx, id)
	if err == nil {
		return url, nil
	}
	if !dberr.IsKind(err, dberr.NotFound) {
		return "", err
	}

	// 2. alternate separator mapping
	if alt := AlternateForm(id); alt != "" {
		url, err = r.lookupMapping(ctx, alt)
		if err == nil {
			return url, r.repair(ctx, url, id)
		}
		if !dberr.IsKind(err, dberr.NotFound) {
			return "", err
		}
	}

	// 3. chapter record scan
	url, err = r.scanChapters(ctx, id)
	if err == nil {
		return url, r.repair(ctx, url, id)
	}
	if !dberr.IsKind(err, dberr.NotFound) {
		return "", err
	}

	// 4. chapter record scan, alternate separator
	if alt := AlternateForm(id); alt != "" {
		url, err = r.scanChapters(ctx, alt)
		if err == nil {
			return url, r.repair(ctx, url, id)
		}
		if !dberr.IsKind(err, dberr.NotFound) {
			return "", err
		}
	}

	return "", dberr.New(dberr.NotFound, domain, "resolve",
		fmt.Errorf("no chapter for stable id %s", id))
}

func (r *Resolver) lookupMapping(ctx context.Context, id string) (string, error) {
	var url string
	err := r.DB.SQL().QueryRowContext(ctx, `
		SELECT url FROM url_mappings
		WHERE stable_id = ?
		ORDER BY is_canonical DESC
		LIMIT 1
	`, id).Scan(&url)
	if err != nil {
		return "", dberr.Classify(err, domain, "resolve")
	}
	return url, nil
}

func (r *Resolver) scanChapters(ctx context.Context, id string) (string, error) {
	var url string
	err := r.DB.SQL().QueryRowContext(ctx,
		`SELECT url FROM chapters WHERE stable_id = ? LIMIT 1`, id,
	).Scan(&url)
	if err != nil {
		return "", dberr.Classify(err, domain, "resolve")
	}
	return url, nil
}

// repair writes the canonical mapping for a fallback hit. The resolved URL
// is already in hand, so a failed repair is reported, not fatal.
func (r *Resolver) repair(ctx context.Context, url, id string) error {
	if err := r.EnsureURLMappings(ctx, url, Canonicalize(id)); err != nil {
		log.Printf("[identity] auto-repair failed for %s: %v", url, err)
		return &dberr.RepairError{URL: url, StableID: Canonicalize(id), Err: err}
	}
	return nil
}

// IsRepairFailure reports whether err is only a failed auto-repair, i.e. the
// resolution result is still usable.
func IsRepairFailure(err error) bool {
	var re *dberr.RepairError
	return errors.As(err, &re)
}

// EnsureURLMappings idempotently upserts the identity mappings for a chapter:
// the canonical-URL row always, the raw-URL row only when it differs. A
// pre-existing row keeps its original date_added.
func (r *Resolver) EnsureURLMappings(ctx context.Context, rawURL, stableID string) error {
	return r.DB.WithWriteTxn(ctx, domain, "ensure_mappings", func(tx *sql.Tx) error {
		return EnsureURLMappingsTx(ctx, tx, rawURL, stableID)
	})
}

// EnsureURLMappingsTx is EnsureURLMappings inside a caller-owned transaction,
// for operations (store chapter, import) that maintain mappings as a side
// effect of a larger write.
func EnsureURLMappingsTx(ctx context.Context, tx *sql.Tx, rawURL, stableID string) error {
	canonical := CanonicalURL(rawURL)
	if canonical == "" || stableID == "" {
		return dberr.New(dberr.Constraint, domain, "ensure_mappings",
			fmt.Errorf("empty url or stable id"))
	}

	if err := upsertMapping(ctx, tx, canonical, stableID, true); err != nil {
		return err
	}
	if rawURL != canonical {
		if err := upsertMapping(ctx, tx, rawURL, stableID, false); err != nil {
			return err
		}
	}
	return nil
}

func upsertMapping(ctx context.Context, tx *sql.Tx, url, stableID string, canonical bool) error {
	// ON CONFLICT deliberately leaves date_added alone.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO url_mappings (url, stable_id, is_canonical, date_added)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(url) DO UPDATE SET
			stable_id = excluded.stable_id,
			is_canonical = excluded.is_canonical
	`, url, stableID, boolToInt(canonical))
	if err != nil {
		return fmt.Errorf("upsert mapping %s: %w", url, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
