package syncnotify

import "time"

// Event types broadcast to connected readers.
const (
	EventChapterStored        = "chapter.stored"
	EventChapterDeleted       = "chapter.deleted"
	EventTranslationStored    = "translation.stored"
	EventTranslationActivated = "translation.activated"
)

type LibraryEvent struct {
	Type       string    `json:"type"`
	StableID   string    `json:"stable_id"`
	ChapterURL string    `json:"chapter_url,omitempty"`
	Version    int       `json:"version,omitempty"`
	At         time.Time `json:"at"`
}

func NewEvent(eventType, stableID, chapterURL string, version int) LibraryEvent {
	return LibraryEvent{
		Type:       eventType,
		StableID:   stableID,
		ChapterURL: chapterURL,
		Version:    version,
		At:         time.Now().UTC(),
	}
}
