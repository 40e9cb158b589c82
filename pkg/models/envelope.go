package models

// ExportEnvelope is the import/export JSON document exchanged with the app.
// Chapters embed their translation versions and feedback so a single file is
// a complete, restorable library.
type ExportEnvelope struct {
	Settings    map[string]string  `json:"settings,omitempty"`
	URLMappings []URLMappingRecord `json:"urlMappings,omitempty"`
	Novels      []NovelRecord      `json:"novels,omitempty"`
	Chapters    []ExportedChapter  `json:"chapters"`
	Templates   []PromptTemplate   `json:"promptTemplates,omitempty"`
	DiffResults []DiffResult       `json:"diffResults,omitempty"`
	Navigation  *Navigation        `json:"navigation,omitempty"`
	Amendments  []AmendmentLog     `json:"amendmentLogs,omitempty"`
	Images      map[string]string  `json:"images,omitempty"`
}

type ExportedChapter struct {
	ChapterRecord
	Translations []TranslationRecord `json:"translations,omitempty"`
	Feedback     []FeedbackRecord    `json:"feedback,omitempty"`
}

// Navigation is the reader's last position, carried through export/import.
type Navigation struct {
	CurrentURL      string `json:"current_url,omitempty"`
	CurrentStableID string `json:"current_stable_id,omitempty"`
}

// Import progress stages reported to the caller.
const (
	StageSettings = "settings"
	StageChapters = "chapters"
	StageComplete = "complete"
)

// ImportProgress is handed to the progress callback after each batch.
type ImportProgress struct {
	Stage   string `json:"stage"` // settings | chapters | complete
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}
