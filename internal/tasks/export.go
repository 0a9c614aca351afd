package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/questsync/internal/shared"
)

// ExportResult is the outcome of exporting a quest playlist to the playback service.
//
// Created is false when the bridge could not create the playlist; that is reported, not returned as an error.
type ExportResult struct {
	QuestID    string `json:"quest_id"`
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
	URL        string `json:"url,omitempty"`
	Created    bool   `json:"created"`
}

// ExportToSpotify creates an external playlist holding a quest's deduplicated tracks in play order.
//
// An empty name defaults to "<prefix> <quest title>". A quest with no recorded tracks is InvalidArgument
// and the bridge is not called.
func (e *QuestEngine) ExportToSpotify(ctx context.Context, questID, name string, progress chan<- ProgressUpdate) (*ExportResult, error) {
	if e.bridge == nil {
		return nil, fmt.Errorf("%w: playback bridge not configured", shared.ErrServiceUnavailable)
	}

	playlist, err := e.Playlist(ctx, questID)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, fetchPlaylistUpdate(1, 2, playlist.Quest))

	if len(playlist.Playlist) == 0 {
		return nil, fmt.Errorf("%w: quest %s has no recorded tracks", shared.ErrInvalidArgument, questID)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = e.playlistName(playlist.Quest)
	}

	result := &ExportResult{QuestID: questID, Name: name, TrackCount: playlist.UniqueSongs}
	result.URL, result.Created = e.bridge.CreatePlaylist(ctx, name, playlist.URIs())

	if result.Created {
		e.logger.Info("playlist exported", "quest", questID, "name", name, "tracks", result.TrackCount, "url", result.URL)
	} else {
		e.logger.Warn("playlist export failed", "quest", questID, "name", name)
	}

	sendProgress(progress, createPlaylistUpdate(2, 2, result))
	return result, nil
}
