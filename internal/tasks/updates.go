package tasks

import (
	"fmt"

	"github.com/desertthunder/questsync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	RecordTrack Phase = iota
	TrackerIdle
	FetchPlaylist
	CreatePlaylist
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case RecordTrack:
		return "record_track"
	case TrackerIdle:
		return "tracker_idle"
	case FetchPlaylist:
		return "fetch_playlist"
	case CreatePlaylist:
		return "create_playlist"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func idleUpdate(step int, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TrackerIdle,
		Step:    step,
		Message: reason,
	}
}

func recordedUpdate(step int, session *models.MusicSession) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordTrack,
		Step:    step,
		Message: fmt.Sprintf("♪ %s - %s", session.Artist, session.TrackName),
		Data:    session,
	}
}

func fetchPlaylistUpdate(step, total int, quest *models.Quest) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Building playlist for %s...", quest.Title),
	}
}

func createPlaylistUpdate(step, total int, result *ExportResult) ProgressUpdate {
	msg := fmt.Sprintf("Playlist created: %s (%d tracks)", result.Name, result.TrackCount)
	if !result.Created {
		msg = fmt.Sprintf("Playlist not created: %s", result.Name)
	}
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    result,
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
