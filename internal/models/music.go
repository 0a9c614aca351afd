package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/questsync/internal/shared"
)

// MusicSession is an immutable record of a track played while a checkpoint was active.
type MusicSession struct {
	ID               string           `json:"id"`
	Sequence         int              `json:"-"`
	CheckpointID     string           `json:"checkpoint_id"`
	TrackName        string           `json:"track_name"`
	Artist           string           `json:"artist"`
	Album            Optional[string] `json:"album"`
	ExternalTrackRef string           `json:"external_track_ref"`
	PlayedAt         time.Time        `json:"played_at"`
	DurationMs       int              `json:"duration_ms"`
}

func (m *MusicSession) Identifier() string { return m.ID }

func (m *MusicSession) Validate() error {
	switch {
	case m.CheckpointID == "":
		return fmt.Errorf("%w: checkpoint id is required", shared.ErrInvalidArgument)
	case strings.TrimSpace(m.TrackName) == "":
		return fmt.Errorf("%w: track name is required", shared.ErrInvalidArgument)
	case strings.TrimSpace(m.Artist) == "":
		return fmt.Errorf("%w: artist is required", shared.ErrInvalidArgument)
	case strings.TrimSpace(m.ExternalTrackRef) == "":
		return fmt.Errorf("%w: external track reference is required", shared.ErrInvalidArgument)
	case m.DurationMs < 0:
		return fmt.Errorf("%w: duration must not be negative", shared.ErrInvalidArgument)
	}
	return nil
}

// TrackInfo describes what the playback service is currently playing.
type TrackInfo struct {
	TrackName        string `json:"track_name"`
	Artist           string `json:"artist"`
	Album            string `json:"album,omitempty"`
	AlbumArt         string `json:"album_art,omitempty"`
	ExternalTrackRef string `json:"external_track_ref"`
	DurationMs       int    `json:"duration_ms"`
	ProgressMs       int    `json:"progress_ms"`
	IsPlaying        bool   `json:"is_playing"`
}

// Session converts the track into an unsaved [MusicSession] for checkpointID.
func (t TrackInfo) Session(checkpointID string) *MusicSession {
	album := None[string]()
	if t.Album != "" {
		album = Some(t.Album)
	}
	return &MusicSession{
		CheckpointID:     checkpointID,
		TrackName:        t.TrackName,
		Artist:           t.Artist,
		Album:            album,
		ExternalTrackRef: t.ExternalTrackRef,
		DurationMs:       t.DurationMs,
	}
}

// QuestPlaylist is the deduplicated list of tracks played during a quest.
type QuestPlaylist struct {
	Quest            *Quest          `json:"quest"`
	TotalSongsPlayed int             `json:"total_songs_played"`
	UniqueSongs      int             `json:"unique_songs"`
	Playlist         []*MusicSession `json:"playlist"`
}

// URIs returns the external track references in playlist order.
func (p *QuestPlaylist) URIs() []string {
	uris := make([]string, 0, len(p.Playlist))
	for _, s := range p.Playlist {
		uris = append(uris, s.ExternalTrackRef)
	}
	return uris
}

// CheckpointMusic lists the sessions recorded against one checkpoint.
type CheckpointMusic struct {
	Checkpoint *Checkpoint     `json:"checkpoint"`
	Sessions   []*MusicSession `json:"music_sessions"`
	TotalSongs int             `json:"total_songs"`
}
