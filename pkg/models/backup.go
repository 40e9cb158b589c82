package models

import "time"

// Backup lifecycle. A snapshot starts pending, moves to completed when the
// migration it guards succeeds, or to failed when the migration throws.
// Restore is gated on failed only.
const (
	BackupPending   = "pending"
	BackupCompleted = "completed"
	BackupFailed    = "failed"
)

// Storage tiers in descending preference order.
const (
	TierDirectory = "directory" // dedicated backup directory (large capacity)
	TierBackupDB  = "backup_db" // separate backup database file
	TierInline    = "inline"    // row inside the settings store (quota-limited)
	TierFile      = "file"      // caller-held downloadable copy
)

// BackupMetadata describes one pre-migration snapshot. Persisted outside the
// data database so it survives deletion of the database itself.
type BackupMetadata struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"` // pending | completed | failed
	Storage     string    `json:"storage"`
	FromVersion int       `json:"from_version"`
	Timestamp   time.Time `json:"timestamp"`
	Locator     string    `json:"locator,omitempty"` // file name or key, tier-specific
}

// BackupFile is the on-disk snapshot document. Emergency restore accepts one
// of these directly; a file is valid only if Metadata is present and Chapters
// is non-nil.
type BackupFile struct {
	Metadata     *BackupFileMeta        `json:"metadata"`
	Settings     map[string]string      `json:"settings,omitempty"`
	Chapters     []ChapterRecord        `json:"chapters"`
	Translations []TranslationRecord    `json:"translations,omitempty"`
	URLMappings  []URLMappingRecord     `json:"url_mappings,omitempty"`
	Novels       []NovelRecord          `json:"novels,omitempty"`
	Summaries    []ChapterSummaryRecord `json:"chapter_summaries,omitempty"`
	Feedback     []FeedbackRecord       `json:"feedback,omitempty"`
	Templates    []PromptTemplate       `json:"prompt_templates,omitempty"`
	DiffResults  []DiffResult           `json:"diff_results,omitempty"`
	Amendments   []AmendmentLog         `json:"amendment_logs,omitempty"`
}

type BackupFileMeta struct {
	FromVersion int       `json:"from_version"`
	Timestamp   time.Time `json:"timestamp"`
	Storage     string    `json:"storage"`
}

// RestoreReport gives the caller verifiable counts after a restore.
type RestoreReport struct {
	Chapters     int `json:"chapters"`
	Translations int `json:"translations"`
	Settings     int `json:"settings"`
	Feedback     int `json:"feedback"`
	Other        int `json:"other"`
}
