// package formatter renders quest playlists as JSON, CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
)

// ParseFormat normalizes a format name. Empty selects JSON; md and text are accepted as aliases.
func ParseFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case models.FormatJSON, "":
		return models.FormatJSON, nil
	case models.FormatCSV:
		return models.FormatCSV, nil
	case models.FormatMarkdown, "md":
		return models.FormatMarkdown, nil
	case models.FormatText, "text":
		return models.FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q (want json, csv, markdown, txt)", shared.ErrInvalidArgument, format)
	}
}

// Export renders playlist in format.
func Export(playlist *models.QuestPlaylist, format string) ([]byte, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	switch format {
	case models.FormatCSV:
		return ExportToCSV(playlist)
	case models.FormatMarkdown:
		return ExportToMarkdown(playlist)
	case models.FormatText:
		return ExportToText(playlist)
	default:
		return ExportToJSON(playlist)
	}
}

// ExportToJSON renders the playlist with its quest as indented JSON.
func ExportToJSON(playlist *models.QuestPlaylist) ([]byte, error) {
	return shared.MarshalJSON(playlist, true)
}

// ExportToCSV converts a QuestPlaylist to CSV format with columns: Position, Track, Artist, Album, Duration, URI, Played At
func ExportToCSV(playlist *models.QuestPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Track", "Artist", "Album", "Duration", "URI", "Played At"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, session := range playlist.Playlist {
		record := []string{
			strconv.Itoa(i + 1),
			session.TrackName,
			session.Artist,
			session.Album.OrElse(""),
			shared.FormatDuration(session.DurationMs),
			session.ExternalTrackRef,
			session.PlayedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a QuestPlaylist to a Markdown document
func ExportToMarkdown(playlist *models.QuestPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	quest := playlist.Quest

	buf.WriteString(fmt.Sprintf("# %s\n\n", quest.Title))

	if desc, ok := quest.Description.Get(); ok && desc != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", desc))
	}

	buf.WriteString(fmt.Sprintf("**Status**: %s\n", quest.Status))
	buf.WriteString(fmt.Sprintf("**Songs Played**: %d\n", playlist.TotalSongsPlayed))
	buf.WriteString(fmt.Sprintf("**Unique Songs**: %d\n\n", playlist.UniqueSongs))

	buf.WriteString("## Tracks\n\n")
	for i, session := range playlist.Playlist {
		albumPart := ""
		if album, ok := session.Album.Get(); ok && album != "" {
			albumPart = fmt.Sprintf(" (%s)", album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n", i+1, session.Artist, session.TrackName, albumPart, shared.FormatDuration(session.DurationMs)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a QuestPlaylist to plain text format
func ExportToText(playlist *models.QuestPlaylist) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Quest: %s\n", playlist.Quest.Title))
	if desc, ok := playlist.Quest.Description.Get(); ok && desc != "" {
		buf.WriteString(fmt.Sprintf("Description: %s\n", desc))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", playlist.UniqueSongs))

	for i, session := range playlist.Playlist {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, session.Artist, session.TrackName))
	}

	return buf.Bytes(), nil
}

type playlistMetadata struct {
	Quest            *models.Quest `json:"quest"`
	TotalSongsPlayed int           `json:"total_songs_played"`
	UniqueSongs      int           `json:"unique_songs"`
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(playlist *models.QuestPlaylist) ([]byte, error) {
	return shared.MarshalJSON(playlistMetadata{
		Quest:            playlist.Quest,
		TotalSongsPlayed: playlist.TotalSongsPlayed,
		UniqueSongs:      playlist.UniqueSongs,
	}, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to quest ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(playlist *models.QuestPlaylist, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = playlist.Quest.ID
	}

	csvData, err := ExportToCSV(playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
}

// WriteMarkdownExport exports a playlist to {dir}/README.md. Directory name defaults to the quest ID.
func WriteMarkdownExport(playlist *models.QuestPlaylist, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = playlist.Quest.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return &MarkdownExportResult{Directory: outputDir, Files: []string{mdFile}}, nil
}

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {quest.ID}_tracks.txt as the filename.
func WriteTextExport(playlist *models.QuestPlaylist, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", playlist.Quest.ID)
	}

	textData, err := ExportToText(playlist)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport writes the playlist as JSON. Defaults to {quest.ID}.json.
func WriteJSONExport(playlist *models.QuestPlaylist, path string) (string, error) {
	if path == "" {
		path = playlist.Quest.ID + ".json"
	}

	data, err := ExportToJSON(playlist)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}

	return path, nil
}

type manifestEntry struct {
	QuestID    string   `json:"quest_id"`
	QuestTitle string   `json:"quest_title"`
	TrackCount int      `json:"track_count"`
	Status     string   `json:"status"`
	Files      []string `json:"files,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type manifest struct {
	Format            string          `json:"format"`
	ExportedAt        time.Time       `json:"exported_at"`
	TotalQuests       int             `json:"total_quests"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	OutputDirectory   string          `json:"output_directory"`
	Quests            []manifestEntry `json:"quests"`
}

// WriteBulkExportManifest writes a JSON summary of a bulk export to path.
func WriteBulkExportManifest(result *models.BulkExportResult, format, path string) error {
	m := manifest{
		Format:            format,
		ExportedAt:        result.ExportedAt,
		TotalQuests:       result.TotalQuests,
		SuccessfulExports: result.SuccessfulExports,
		FailedExports:     result.FailedExports,
		OutputDirectory:   result.OutputDirectory,
		Quests:            make([]manifestEntry, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		entry := manifestEntry{
			QuestID:    r.QuestID,
			QuestTitle: r.QuestTitle,
			TrackCount: r.TrackCount,
			Status:     "success",
			Files:      r.Files,
		}
		if !r.Success {
			entry.Status = "failed"
		}
		if r.Error != nil {
			entry.Error = r.Error.Error()
		}
		m.Quests = append(m.Quests, entry)
	}

	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
