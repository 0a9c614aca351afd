package tasks

import (
	"context"

	"github.com/desertthunder/questsync/internal/models"
)

const msPerMinute = 60_000

// ComputeStats derives progress figures for quest. sessions are every session under the quest's checkpoints.
func ComputeStats(quest *models.Quest, checkpoints []*models.Checkpoint, sessions []*models.MusicSession) *models.QuestStats {
	stats := &models.QuestStats{
		Quest:            quest,
		TotalCheckpoints: len(checkpoints),
		TotalSongsPlayed: len(sessions),
	}

	for _, c := range checkpoints {
		if c.Completed {
			stats.CompletedCheckpoints++
		}
	}
	if stats.TotalCheckpoints > 0 {
		stats.ProgressPercentage = float64(stats.CompletedCheckpoints) / float64(stats.TotalCheckpoints) * 100
	}

	var totalMs int
	for _, s := range sessions {
		totalMs += s.DurationMs
	}
	stats.TotalListeningMinutes = float64(totalMs) / msPerMinute

	return stats
}

// AggregatePlaylist deduplicates sessions by external track reference, keeping the first occurrence.
//
// sessions must already be in play order (played_at, then insertion sequence); the result keeps that order.
func AggregatePlaylist(quest *models.Quest, sessions []*models.MusicSession) *models.QuestPlaylist {
	seen := make(map[string]struct{}, len(sessions))
	playlist := make([]*models.MusicSession, 0, len(sessions))

	for _, s := range sessions {
		if _, ok := seen[s.ExternalTrackRef]; ok {
			continue
		}
		seen[s.ExternalTrackRef] = struct{}{}
		playlist = append(playlist, s)
	}

	return &models.QuestPlaylist{
		Quest:            quest,
		TotalSongsPlayed: len(sessions),
		UniqueSongs:      len(playlist),
		Playlist:         playlist,
	}
}

// Stats recomputes a quest's statistics from the store.
func (e *QuestEngine) Stats(ctx context.Context, questID string) (*models.QuestStats, error) {
	quest, err := e.store.Quests.Get(ctx, questID)
	if err != nil {
		return nil, err
	}

	checkpoints, err := e.store.Checkpoints.ListByQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	sessions, err := e.store.Sessions.ListByQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	return ComputeStats(quest, checkpoints, sessions), nil
}

// Playlist builds the deduplicated playlist of every track played during a quest.
func (e *QuestEngine) Playlist(ctx context.Context, questID string) (*models.QuestPlaylist, error) {
	quest, err := e.store.Quests.Get(ctx, questID)
	if err != nil {
		return nil, err
	}

	sessions, err := e.store.Sessions.ListByQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	return AggregatePlaylist(quest, sessions), nil
}

// CheckpointMusic lists the sessions recorded against a checkpoint in play order.
func (e *QuestEngine) CheckpointMusic(ctx context.Context, checkpointID string) (*models.CheckpointMusic, error) {
	checkpoint, err := e.store.Checkpoints.Get(ctx, checkpointID)
	if err != nil {
		return nil, err
	}

	sessions, err := e.store.Sessions.ListByCheckpoint(ctx, checkpointID)
	if err != nil {
		return nil, err
	}

	return &models.CheckpointMusic{
		Checkpoint: checkpoint,
		Sessions:   sessions,
		TotalSongs: len(sessions),
	}, nil
}
