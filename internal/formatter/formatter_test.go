package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
	th "github.com/desertthunder/questsync/internal/testing"
)

func testPlaylist() *models.QuestPlaylist {
	playedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.QuestPlaylist{
		Quest: &models.Quest{
			ID:          "quest123",
			Title:       "Write Thesis",
			Description: models.Some("Chapter drafts"),
			Status:      models.StatusActive,
			CreatedAt:   playedAt,
		},
		TotalSongsPlayed: 3,
		UniqueSongs:      2,
		Playlist: []*models.MusicSession{
			{
				ID:               "s1",
				CheckpointID:     "c1",
				TrackName:        "Song One",
				Artist:           "Artist One",
				Album:            models.Some("Album One"),
				ExternalTrackRef: "spotify:track:1",
				PlayedAt:         playedAt,
				DurationMs:       180_000,
			},
			{
				ID:               "s2",
				CheckpointID:     "c1",
				TrackName:        "Song Two",
				Artist:           "Artist Two",
				ExternalTrackRef: "spotify:track:2",
				PlayedAt:         playedAt.Add(time.Minute),
				DurationMs:       240_000,
			},
		},
	}
}

func TestExporters(t *testing.T) {
	playlist := testPlaylist()

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(playlist)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Position,Track,Artist,Album,Duration,URI,Played At") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,Song One,Artist One,Album One,3:00,spotify:track:1,2025-03-01T12:00:00Z") {
			t.Errorf("CSV missing first row, got: %s", output)
		}
		if !strings.Contains(output, "2,Song Two,Artist Two,,4:00,spotify:track:2") {
			t.Errorf("CSV missing second row without album, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(playlist)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Write Thesis",
			"**Description**: Chapter drafts",
			"**Status**: active",
			"**Songs Played**: 3",
			"**Unique Songs**: 2",
			"## Tracks",
			"1. Artist One - Song One (Album One) [3:00]",
			"2. Artist Two - Song Two [4:00]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown Without Description", func(t *testing.T) {
		bare := testPlaylist()
		bare.Quest.Description = models.None[string]()

		data, _ := ExportToMarkdown(bare)
		if strings.Contains(string(data), "**Description**") {
			t.Errorf("Markdown should omit empty description")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(playlist)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Quest: Write Thesis", "Description: Chapter drafts", "Tracks: 2", "1. Artist One - Song One", "2. Artist Two - Song Two"} {
			if !strings.Contains(output, want) {
				t.Errorf("Text missing %q", want)
			}
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(playlist)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{`"quest123"`, `"unique_songs": 2`, `"spotify:track:2"`, `"album": null`} {
			if !strings.Contains(output, want) {
				t.Errorf("JSON missing %s", want)
			}
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(playlist)
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, `"total_songs_played": 3`) {
			t.Errorf("metadata missing song count: %s", output)
		}
		if strings.Contains(output, "spotify:track:1") {
			t.Errorf("metadata should not contain tracks")
		}
	})

	t.Run("Export", func(t *testing.T) {
		tc := []struct {
			format string
			want   string
		}{
			{"json", `"playlist"`},
			{"", `"playlist"`},
			{"csv", "Position,Track"},
			{"markdown", "## Tracks"},
			{"md", "## Tracks"},
			{"txt", "Quest: Write Thesis"},
			{"text", "Quest: Write Thesis"},
		}

		for _, tt := range tc {
			data, err := Export(playlist, tt.format)
			if err != nil {
				t.Errorf("Export(%q) failed: %v", tt.format, err)
				continue
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("Export(%q) missing %q", tt.format, tt.want)
			}
		}

		if _, err := Export(playlist, "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for unknown format, got %v", err)
		}
	})
}

func TestWriters(t *testing.T) {
	playlist := testPlaylist()

	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			t.Chdir(t.TempDir())

			result, err := WriteCSVExport(playlist, "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TracksFile != "quest123_tracks.csv" || result.MetadataFile != "quest123_metadata.json" {
				t.Errorf("unexpected file names %+v", result)
			}
			th.AssertFileExists(t, result.TracksFile)
			th.AssertFileExists(t, result.MetadataFile)
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom")

			result, err := WriteCSVExport(playlist, base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			content := th.MustReadFile(t, result.TracksFile)
			if !strings.Contains(content, "Song One") {
				t.Errorf("CSV file missing track data")
			}
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithDefaultDirectory", func(t *testing.T) {
			t.Chdir(t.TempDir())

			result, err := WriteMarkdownExport(playlist, "")
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			if result.Directory != "quest123" {
				t.Errorf("expected directory 'quest123', got %s", result.Directory)
			}
			th.AssertFileExists(t, filepath.Join("quest123", "README.md"))
		})

		t.Run("WithCustomDirectory", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "notes")

			result, err := WriteMarkdownExport(playlist, dir)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if len(result.Files) != 1 {
				t.Fatalf("expected 1 file, got %d", len(result.Files))
			}

			content := th.MustReadFile(t, result.Files[0])
			if !strings.Contains(content, "# Write Thesis") {
				t.Errorf("README missing title")
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		t.Chdir(t.TempDir())

		path, err := WriteTextExport(playlist, "")
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if path != "quest123_tracks.txt" {
			t.Errorf("Expected 'quest123_tracks.txt', got '%s'", path)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("WriteJSONExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			t.Chdir(t.TempDir())

			path, err := WriteJSONExport(playlist, "")
			if err != nil {
				t.Fatalf("WriteJSONExport failed: %v", err)
			}
			if path != "quest123.json" {
				t.Errorf("Expected 'quest123.json', got '%s'", path)
			}

			content := th.MustReadFile(t, path)
			if !strings.Contains(content, `"Write Thesis"`) {
				t.Errorf("JSON missing quest title")
			}
		})

		t.Run("Unwritable Path", func(t *testing.T) {
			_, err := WriteJSONExport(playlist, filepath.Join(t.TempDir(), "missing", "out.json"))
			if err == nil || !strings.Contains(err.Error(), "JSON write failed") {
				t.Errorf("expected write failure, got %v", err)
			}
		})
	})

	t.Run("WriteBulkExportManifest", func(t *testing.T) {
		t.Run("SuccessfulExport", func(t *testing.T) {
			manifestPath := filepath.Join(t.TempDir(), "manifest.json")
			result := &models.BulkExportResult{
				TotalQuests:       2,
				SuccessfulExports: 2,
				OutputDirectory:   "exports",
				Results: []models.PlaylistExportResult{
					{QuestID: "quest1", QuestTitle: "My Quest 1", Success: true, Files: []string{"quest1_tracks.csv", "quest1_metadata.json"}},
					{QuestID: "quest2", QuestTitle: "My Quest 2", Success: true, Files: []string{"quest2_tracks.csv"}},
				},
			}

			if err := WriteBulkExportManifest(result, "csv", manifestPath); err != nil {
				t.Fatalf("WriteBulkExportManifest failed: %v", err)
			}

			content := th.MustReadFile(t, manifestPath)
			for _, want := range []string{`"format": "csv"`, `"total_quests": 2`, `"successful_exports": 2`, `"quest1"`, `"My Quest 1"`, `"status": "success"`} {
				if !strings.Contains(content, want) {
					t.Errorf("Manifest missing %s", want)
				}
			}
		})

		t.Run("WithFailedExports", func(t *testing.T) {
			manifestPath := filepath.Join(t.TempDir(), "manifest_with_failures.json")
			result := &models.BulkExportResult{
				TotalQuests:       2,
				SuccessfulExports: 1,
				FailedExports:     1,
				Results: []models.PlaylistExportResult{
					{QuestID: "quest1", QuestTitle: "Success Quest", Success: true, Files: []string{"quest1.json"}},
					{QuestID: "quest2", QuestTitle: "Failed Quest", Error: errors.New("disk full")},
				},
			}

			if err := WriteBulkExportManifest(result, "markdown", manifestPath); err != nil {
				t.Fatalf("WriteBulkExportManifest failed: %v", err)
			}

			content := th.MustReadFile(t, manifestPath)
			for _, want := range []string{`"format": "markdown"`, `"failed_exports": 1`, `"status": "failed"`, `"disk full"`} {
				if !strings.Contains(content, want) {
					t.Errorf("Manifest missing %s", want)
				}
			}
		})
	})
}
