package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

// Tier is one place a pre-migration snapshot can live. Tiers are tried in
// descending preference order; the first Save that succeeds wins and its
// name + locator go into the backup metadata.
type Tier interface {
	Name() string
	Save(payload []byte) (locator string, err error)
	Load(locator string) ([]byte, error)
	Delete(locator string) error
}

// directoryTier writes the snapshot into the dedicated backup directory.
// Highest preference: effectively unbounded capacity.
type directoryTier struct {
	dir string
}

func (t *directoryTier) Name() string { return models.TierDirectory }

func (t *directoryTier) Save(payload []byte) (string, error) {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backup dir: %w", err)
	}
	name := fmt.Sprintf("snapshot-%s.json", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(t.dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return name, nil
}

func (t *directoryTier) Load(locator string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(t.dir, locator))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", locator, err)
	}
	return b, nil
}

func (t *directoryTier) Delete(locator string) error {
	err := os.Remove(filepath.Join(t.dir, locator))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// inlineTier keeps the snapshot in a single sidecar file next to the
// database. Quota-limited: refuses payloads above its cap so a runaway
// library cannot fill the data directory twice over.
type inlineTier struct {
	path    string
	maxSize int
}

const inlineMaxSize = 8 << 20 // 8 MiB

func (t *inlineTier) Name() string { return models.TierInline }

func (t *inlineTier) Save(payload []byte) (string, error) {
	if len(payload) > t.maxSize {
		return "", dberr.New(dberr.Quota, "backup", "save",
			fmt.Errorf("snapshot %d bytes exceeds inline cap %d", len(payload), t.maxSize))
	}
	if err := os.WriteFile(t.path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write inline snapshot: %w", err)
	}
	return filepath.Base(t.path), nil
}

func (t *inlineTier) Load(string) ([]byte, error) {
	b, err := os.ReadFile(t.path)
	if err != nil {
		return nil, fmt.Errorf("read inline snapshot: %w", err)
	}
	return b, nil
}

func (t *inlineTier) Delete(string) error {
	err := os.Remove(t.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
