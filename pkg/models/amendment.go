package models

import "time"

// AmendmentLog records a manual correction applied to a translation, kept as
// an append-only audit trail.
type AmendmentLog struct {
	ID            int64     `json:"id"`
	ChapterURL    string    `json:"chapter_url"`
	TranslationID string    `json:"translation_id,omitempty"`
	Original      string    `json:"original"`
	Amended       string    `json:"amended"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
