// Package backup makes destructive schema migrations reversible: snapshot
// before the upgrade, roll back to the snapshot when the upgrade fails.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"novelhub/pkg/database"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

const domain = "backup"

// Manager owns snapshot placement, backup metadata, and restore. Metadata
// lives in a JSON sidecar next to the database file, never inside the
// database itself, so it survives deletion of the database during restore.
type Manager struct {
	cfg      database.Config
	metaPath string
	tiers    []Tier
}

func NewManager(cfg database.Config) *Manager {
	return &Manager{
		cfg:      cfg,
		metaPath: cfg.Path + ".backup-meta.json",
		tiers: []Tier{
			&directoryTier{dir: cfg.BackupDir},
			&backupDBTier{path: filepath.Join(filepath.Dir(cfg.Path), "backup.db")},
			&inlineTier{path: cfg.Path + ".inline-backup.json", maxSize: inlineMaxSize},
		},
	}
}

// Snapshot serializes the whole store and saves it to the first tier that
// accepts it, recording pending metadata. Returns the payload as well so the
// last-resort "keep a downloadable copy" path can hand it to the user when
// every tier refused.
func (m *Manager) Snapshot(ctx context.Context, db *database.DB) (*models.BackupMetadata, []byte, error) {
	file, err := readSnapshot(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	file.Metadata.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(file)
	if err != nil {
		return nil, nil, dberr.New(dberr.Constraint, domain, "snapshot", err)
	}

	meta := &models.BackupMetadata{
		ID:          uuid.NewString(),
		Status:      models.BackupPending,
		FromVersion: file.Metadata.FromVersion,
		Timestamp:   file.Metadata.Timestamp,
	}

	for _, tier := range m.tiers {
		locator, err := tier.Save(payload)
		if err != nil {
			log.Printf("[backup] tier %s refused snapshot: %v", tier.Name(), err)
			continue
		}
		meta.Storage = tier.Name()
		meta.Locator = locator
		file.Metadata.Storage = tier.Name()
		if err := m.writeMeta(meta); err != nil {
			return nil, nil, err
		}
		log.Printf("[backup] snapshot saved to %s tier (from v%d, %d chapters)",
			tier.Name(), meta.FromVersion, len(file.Chapters))
		return meta, payload, nil
	}

	// Every tier refused: the caller must keep the payload itself.
	meta.Storage = models.TierFile
	if err := m.writeMeta(meta); err != nil {
		return nil, nil, err
	}
	log.Printf("[backup] no tier accepted snapshot; caller holds the copy")
	return meta, payload, nil
}

// MarkCompleted flips the metadata to completed and releases the snapshot.
// Cleanup is best effort; a leftover snapshot file is harmless.
func (m *Manager) MarkCompleted() error {
	meta, err := m.Meta()
	if err != nil {
		return err
	}
	meta.Status = models.BackupCompleted
	if err := m.writeMeta(meta); err != nil {
		return err
	}
	if tier := m.tierByName(meta.Storage); tier != nil {
		if err := tier.Delete(meta.Locator); err != nil {
			log.Printf("[backup] snapshot cleanup failed (ignored): %v", err)
		}
	}
	return nil
}

// MarkFailed records that the guarded migration failed; this is the only
// state RestoreFromBackup accepts.
func (m *Manager) MarkFailed() error {
	meta, err := m.Meta()
	if err != nil {
		return err
	}
	meta.Status = models.BackupFailed
	return m.writeMeta(meta)
}

// Meta loads the current backup metadata, or NotFound when none exists.
func (m *Manager) Meta() (*models.BackupMetadata, error) {
	b, err := os.ReadFile(m.metaPath)
	if os.IsNotExist(err) {
		return nil, dberr.New(dberr.NotFound, domain, "meta", err)
	}
	if err != nil {
		return nil, dberr.New(dberr.Permission, domain, "meta", err)
	}
	var meta models.BackupMetadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, dberr.New(dberr.Constraint, domain, "meta", err)
	}
	return &meta, nil
}

// ClearMeta removes the metadata sidecar.
func (m *Manager) ClearMeta() error {
	err := os.Remove(m.metaPath)
	if err != nil && !os.IsNotExist(err) {
		return dberr.New(dberr.Permission, domain, "clear_meta", err)
	}
	return nil
}

func (m *Manager) writeMeta(meta *models.BackupMetadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return dberr.New(dberr.Constraint, domain, "write_meta", err)
	}
	if err := os.WriteFile(m.metaPath, b, 0o644); err != nil {
		return dberr.New(dberr.Permission, domain, "write_meta", err)
	}
	return nil
}

func (m *Manager) tierByName(name string) Tier {
	for _, t := range m.tiers {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// RestoreFromBackup rolls the store back to the last snapshot. It refuses
// to run unless metadata status is exactly failed: restoring a pending
// snapshot would race the migration it guards, restoring a completed one
// would resurrect stale data.
//
// The database is deleted and recreated at the snapshot's fromVersion using
// the same migration engine, so structure matches the data being inserted.
// Returns a fresh handle (still at fromVersion) and the restored counts.
func (m *Manager) RestoreFromBackup(ctx context.Context) (*database.DB, *models.RestoreReport, error) {
	meta, err := m.Meta()
	if err != nil {
		return nil, nil, err
	}
	if meta.Status != models.BackupFailed {
		return nil, nil, dberr.New(dberr.Constraint, domain, "restore",
			fmt.Errorf("backup status is %q, restore requires %q", meta.Status, models.BackupFailed))
	}

	tier := m.tierByName(meta.Storage)
	if tier == nil {
		return nil, nil, dberr.New(dberr.NotFound, domain, "restore",
			fmt.Errorf("snapshot tier %q unavailable; use emergency restore with the saved file", meta.Storage))
	}
	payload, err := tier.Load(meta.Locator)
	if err != nil {
		return nil, nil, dberr.New(dberr.NotFound, domain, "restore", err)
	}

	var file models.BackupFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, nil, dberr.New(dberr.Constraint, domain, "restore", err)
	}

	db, report, err := m.recreate(ctx, &file, meta.FromVersion)
	if err != nil {
		return nil, nil, err
	}
	if err := m.ClearMeta(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Printf("[backup] restore complete: %d chapters, %d translations, %d settings",
		report.Chapters, report.Translations, report.Settings)
	return db, report, nil
}

// EmergencyRestore rebuilds the store from a user-supplied backup file,
// bypassing metadata entirely. For disaster recovery when the metadata
// sidecar itself was lost. The file must carry a metadata object and a
// chapters array or it is rejected outright.
func (m *Manager) EmergencyRestore(ctx context.Context, r io.Reader) (*database.DB, *models.RestoreReport, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, dberr.New(dberr.Permission, domain, "emergency_restore", err)
	}

	var file models.BackupFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, nil, dberr.New(dberr.Constraint, domain, "emergency_restore",
			fmt.Errorf("not a backup file: %w", err))
	}
	if file.Metadata == nil || file.Chapters == nil {
		return nil, nil, dberr.New(dberr.Constraint, domain, "emergency_restore",
			fmt.Errorf("backup file missing metadata or chapters"))
	}

	fromVersion := file.Metadata.FromVersion
	if fromVersion <= 0 || fromVersion > database.TargetVersion {
		fromVersion = database.TargetVersion
	}

	db, report, err := m.recreate(ctx, &file, fromVersion)
	if err != nil {
		return nil, nil, err
	}
	if err := m.ClearMeta(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, report, nil
}

func (m *Manager) recreate(ctx context.Context, file *models.BackupFile, version int) (*database.DB, *models.RestoreReport, error) {
	if err := database.DeleteDatabase(m.cfg.Path); err != nil {
		return nil, nil, err
	}

	db, err := database.Open(m.cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.MigrateTo(ctx, version); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	report, err := insertSnapshot(ctx, db, file)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, report, nil
}
