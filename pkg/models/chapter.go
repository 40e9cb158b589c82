package models

import "time"

// ChapterRecord is the canonical, internal form of a stored chapter.
//
// The raw source URL is the primary key; StableID is the content-derived
// identity that survives URL and site-structure changes, so every other
// subsystem should prefer it for cross-references.
type ChapterRecord struct {
	URL             string     `json:"url"`                       // raw source URL (primary key)
	StableID        string     `json:"stable_id"`                 // content-derived identity
	CanonicalURL    string     `json:"canonical_url"`             // normalized form of original_url
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	OriginalURL     string     `json:"original_url"`
	NextURL         string     `json:"next_url,omitempty"`        // linked-list navigation
	PrevURL         string     `json:"prev_url,omitempty"`
	ChapterNumber   int        `json:"chapter_number"`
	ReferenceText   string     `json:"reference_text,omitempty"`  // optional reference translation
	DateAdded       time.Time  `json:"date_added"`
	LastAccessed    *time.Time `json:"last_accessed,omitempty"`
}
