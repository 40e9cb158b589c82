package models

import "time"

// FeedbackRecord is reader feedback on a stored translation: a rating or a
// free-text note on a selected span.
type FeedbackRecord struct {
	ID            int64     `json:"id"`
	ChapterURL    string    `json:"chapter_url"`
	TranslationID string    `json:"translation_id,omitempty"`
	Category      string    `json:"category"` // "positive", "negative", "suggestion"
	Selection     string    `json:"selection,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
