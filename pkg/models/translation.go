package models

import "time"

// TranslationExtras carries the structured extras produced alongside the
// translated text. Stored as a JSON column, not separate tables.
type TranslationExtras struct {
	Footnotes           []Footnote `json:"footnotes,omitempty"`
	IllustrationPrompts []string   `json:"illustration_prompts,omitempty"`
}

type Footnote struct {
	Marker string `json:"marker"`
	Text   string `json:"text"`
}

// ProviderSnapshot records which provider/model/settings produced a
// translation version. Kept verbatim so old versions stay explainable even
// after the live settings change.
type ProviderSnapshot struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

type UsageMetrics struct {
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`
	EstimatedCost    float64 `json:"estimated_cost,omitempty"`
	DurationMS       int64   `json:"duration_ms,omitempty"`
}

// TranslationRecord is one translation version of a chapter.
//
// Version is a monotonically increasing integer per ChapterURL and
// (chapter_url, version) is unique. Once a chapter has at least one version,
// exactly one record per ChapterURL has IsActive = true.
type TranslationRecord struct {
	ID              string            `json:"id"` // generated
	ChapterURL      string            `json:"chapter_url"`
	StableID        string            `json:"stable_id"`
	Version         int               `json:"version"`
	IsActive        bool              `json:"is_active"`
	TranslatedTitle string            `json:"translated_title,omitempty"`
	Translation     string            `json:"translation"`
	Extras          TranslationExtras `json:"extras,omitempty"`
	Provider        ProviderSnapshot  `json:"provider,omitempty"`
	Usage           UsageMetrics      `json:"usage,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
