package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/desertthunder/questsync/internal/models"
)

func track(uri string) *models.TrackInfo {
	return &models.TrackInfo{
		TrackName:        "Song " + uri,
		Artist:           "Band",
		Album:            "Record",
		ExternalTrackRef: uri,
		DurationMs:       200_000,
		IsPlaying:        true,
	}
}

func TestTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("No Syncing Quest", func(t *testing.T) {
		e, bridge := setupTestEngine(t)
		bridge.SetTrack(track("spotify:track:1"))
		tracker := NewTracker(e, bridge, 0, nil)

		session, err := tracker.Poll(ctx)
		if err != nil || session != nil {
			t.Errorf("expected nothing recorded, got %v %v", session, err)
		}
		if bridge.CallCount("current") != 0 {
			t.Error("bridge should not be queried without a syncing quest")
		}
	})

	t.Run("Nothing Playing", func(t *testing.T) {
		e, bridge := setupTestEngine(t)
		quest := mustQuest(t, e, "Q")
		mustCheckpoint(t, e, quest.ID, "Step", 0)
		e.SetSyncing(ctx, quest.ID, true)

		session, err := NewTracker(e, bridge, 0, nil).Poll(ctx)
		if err != nil || session != nil {
			t.Errorf("expected nothing recorded, got %v %v", session, err)
		}
	})

	t.Run("Records Once Per Track", func(t *testing.T) {
		e, bridge := setupTestEngine(t)
		quest := mustQuest(t, e, "Q")
		later := mustCheckpoint(t, e, quest.ID, "Later", 5)
		first := mustCheckpoint(t, e, quest.ID, "First", 1)
		e.SetSyncing(ctx, quest.ID, true)

		tracker := NewTracker(e, bridge, 0, nil)
		bridge.SetTrack(track("spotify:track:1"))

		session, err := tracker.Poll(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session == nil || session.CheckpointID != first.ID {
			t.Fatalf("expected session on the lowest ordered checkpoint, got %+v", session)
		}
		if album, _ := session.Album.Get(); album != "Record" {
			t.Errorf("expected album to be kept, got %q", album)
		}

		if again, _ := tracker.Poll(ctx); again != nil {
			t.Error("same track should not be recorded twice")
		}

		e.CompleteCheckpoint(ctx, first.ID)
		bridge.SetTrack(track("spotify:track:2"))

		next, err := tracker.Poll(ctx)
		if err != nil || next == nil {
			t.Fatalf("expected a second session, got %v %v", next, err)
		}
		if next.CheckpointID != later.ID {
			t.Errorf("expected session on the next incomplete checkpoint, got %s", next.CheckpointID)
		}

		if tracker.Polls() != 3 {
			t.Errorf("expected 3 polls, got %d", tracker.Polls())
		}
	})

	t.Run("All Checkpoints Complete", func(t *testing.T) {
		e, bridge := setupTestEngine(t)
		quest := mustQuest(t, e, "Q")
		only := mustCheckpoint(t, e, quest.ID, "Only", 0)
		e.CompleteCheckpoint(ctx, only.ID)
		e.SetSyncing(ctx, quest.ID, true)
		bridge.SetTrack(track("spotify:track:1"))

		session, err := NewTracker(e, bridge, 0, nil).Poll(ctx)
		if err != nil || session != nil {
			t.Errorf("expected nothing recorded, got %v %v", session, err)
		}
	})

	t.Run("Resumes From Last Recorded Track", func(t *testing.T) {
		e, bridge := setupTestEngine(t)
		quest := mustQuest(t, e, "Q")
		checkpoint := mustCheckpoint(t, e, quest.ID, "Step", 0)
		mustSession(t, e, checkpoint.ID, "spotify:track:1", 1000)
		e.SetSyncing(ctx, quest.ID, true)
		bridge.SetTrack(track("spotify:track:1"))

		session, err := NewTracker(e, bridge, 0, nil).Poll(ctx)
		if err != nil || session != nil {
			t.Errorf("a restarted tracker should not re-record the last track, got %v %v", session, err)
		}
	})

	t.Run("Run Stops On Cancel", func(t *testing.T) {
		e, bridge := setupTestEngine(t)
		quest := mustQuest(t, e, "Q")
		mustCheckpoint(t, e, quest.ID, "Step", 0)
		e.SetSyncing(ctx, quest.ID, true)
		bridge.SetTrack(track("spotify:track:1"))

		tracker := NewTracker(e, bridge, 10*time.Millisecond, nil)
		progress := make(chan ProgressUpdate, 100)
		runCtx, cancel := context.WithCancel(ctx)

		done := make(chan error, 1)
		go func() { done <- tracker.Run(runCtx, progress) }()

		deadline := time.After(2 * time.Second)
		for recorded := false; !recorded; {
			select {
			case update := <-progress:
				recorded = update.Phase == RecordTrack
			case <-deadline:
				t.Fatal("tracker never recorded a track")
			}
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean stop, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("tracker did not stop after cancel")
		}

		count, _ := e.Store().Sessions.CountByQuest(ctx, quest.ID)
		if count != 1 {
			t.Errorf("expected exactly one session, got %d", count)
		}
	})
}
