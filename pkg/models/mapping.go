package models

import "time"

// URLMappingRecord maps a URL (canonical or raw) to a stable ID.
// Every chapter has at least one canonical row; a non-canonical row exists
// only when the raw URL differs from the canonical form.
type URLMappingRecord struct {
	URL         string    `json:"url"` // primary key
	StableID    string    `json:"stable_id"`
	IsCanonical bool      `json:"is_canonical"`
	DateAdded   time.Time `json:"date_added"`
}
