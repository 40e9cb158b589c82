package models

import "time"

// ChapterSummaryRecord is a denormalized projection of a chapter and its
// active translation, recomputed whenever either changes. Never the source
// of truth and never hand-edited.
type ChapterSummaryRecord struct {
	StableID        string     `json:"stable_id"` // primary key
	ChapterURL      string     `json:"chapter_url"`
	Title           string     `json:"title"`
	TranslatedTitle string     `json:"translated_title,omitempty"`
	ChapterNumber   int        `json:"chapter_number"`
	HasTranslation  bool       `json:"has_translation"`
	HasImages       bool       `json:"has_images"`
	LastAccessed    *time.Time `json:"last_accessed,omitempty"`
}
