package models

import "time"

// Export formats understood by the formatter package.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// ExportFormats lists every supported export format.
var ExportFormats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// PlaylistExportResult is the outcome of writing one quest playlist to disk.
type PlaylistExportResult struct {
	QuestID    string   `json:"quest_id"`
	QuestTitle string   `json:"quest_title"`
	TrackCount int      `json:"track_count"`
	Success    bool     `json:"success"`
	Files      []string `json:"files,omitempty"`
	Error      error    `json:"-"`
}

// BulkExportResult summarizes an export of many quest playlists.
type BulkExportResult struct {
	TotalQuests       int                    `json:"total_quests"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"manifest_path,omitempty"`
	ExportedAt        time.Time              `json:"exported_at"`
	Results           []PlaylistExportResult `json:"results"`
}
