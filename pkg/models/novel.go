package models

import "time"

// NovelRecord groups chapters under one work.
type NovelRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	SourceSite  string    `json:"source_site,omitempty"`
	Language    string    `json:"language,omitempty"`
	Description string    `json:"description,omitempty"`
	CoverURL    string    `json:"cover_url,omitempty"`
	DateAdded   time.Time `json:"date_added"`
}
