package backup

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"novelhub/pkg/models"
)

// backupDBTier stores snapshots in a dedicated SQLite database separate from
// the data file, so a restore that deletes the data database leaves the
// snapshot untouched. Second preference after the backup directory.
type backupDBTier struct {
	path string
}

func (t *backupDBTier) Name() string { return models.TierBackupDB }

func (t *backupDBTier) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", t.path)
	if err != nil {
		return nil, fmt.Errorf("open backup db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			payload  BLOB NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure snapshots table: %w", err)
	}
	return db, nil
}

func (t *backupDBTier) Save(payload []byte) (string, error) {
	db, err := t.open()
	if err != nil {
		return "", err
	}
	defer db.Close()

	res, err := db.Exec(`INSERT INTO snapshots (payload) VALUES (?)`, payload)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("snapshot id: %w", err)
	}
	return fmt.Sprintf("%d", id), nil
}

func (t *backupDBTier) Load(locator string) ([]byte, error) {
	db, err := t.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var payload []byte
	if err := db.QueryRow(
		`SELECT payload FROM snapshots WHERE id = ?`, locator,
	).Scan(&payload); err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", locator, err)
	}
	return payload, nil
}

func (t *backupDBTier) Delete(locator string) error {
	db, err := t.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`DELETE FROM snapshots WHERE id = ?`, locator); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", locator, err)
	}
	return nil
}
