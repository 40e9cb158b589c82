package models

import "time"

// DiffResult caches a computed diff between two translation versions of a
// chapter. Keyed by (chapter_url, version, algorithm) so recomputing with a
// different algorithm does not clobber earlier results.
type DiffResult struct {
	ChapterURL string    `json:"chapter_url"`
	Version    int       `json:"version"`
	Algorithm  string    `json:"algorithm"`
	Result     string    `json:"result"` // serialized diff payload
	ComputedAt time.Time `json:"computed_at"`
}
