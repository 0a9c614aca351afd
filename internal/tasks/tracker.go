package tasks

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/services"
	"github.com/desertthunder/questsync/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultTrackerInterval is the time between playback polls.
const DefaultTrackerInterval = 5 * time.Second

// Tracker records what the bridge is playing against the syncing quest's current checkpoint.
//
// The current checkpoint is the lowest-ordered incomplete one. A session is recorded only when
// the track differs from the last one recorded for that quest, so a song that spans several polls
// is logged once.
type Tracker struct {
	engine   *QuestEngine
	bridge   services.Bridge
	interval time.Duration
	logger   *log.Logger

	mu        sync.Mutex
	lastQuest string
	lastURI   string
	polls     int
}

// NewTracker creates a Tracker. A non-positive interval uses [DefaultTrackerInterval].
func NewTracker(engine *QuestEngine, bridge services.Bridge, interval time.Duration, logger *log.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultTrackerInterval
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Tracker{
		engine:   engine,
		bridge:   bridge,
		interval: interval,
		logger:   shared.WithLogger(logger, "component", "tracker"),
	}
}

// Poll performs one tracking step and returns the recorded session.
//
// It returns nil without error when there is no syncing quest, nothing playing,
// no incomplete checkpoint, or the track was already recorded.
func (t *Tracker) Poll(ctx context.Context) (*models.MusicSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls++

	quest, err := t.engine.SyncingQuest(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	if quest.ID != t.lastQuest {
		if err := t.resume(ctx, quest); err != nil {
			return nil, err
		}
	}

	track := t.bridge.CurrentTrack(ctx)
	if track == nil || track.ExternalTrackRef == "" || track.ExternalTrackRef == t.lastURI {
		return nil, nil
	}

	checkpoint, err := t.engine.store.Checkpoints.FirstIncomplete(ctx, quest.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	session, err := t.engine.RecordSession(ctx, track.Session(checkpoint.ID))
	if err != nil {
		return nil, err
	}

	t.lastURI = track.ExternalTrackRef
	t.logger.Info("track recorded", "quest", quest.Title, "checkpoint", checkpoint.Title, "track", track.TrackName, "artist", track.Artist)
	return session, nil
}

// resume picks up the last recorded track when the syncing quest changes, so restarting the
// tracker does not record the song that was already logged.
func (t *Tracker) resume(ctx context.Context, quest *models.Quest) error {
	t.lastQuest = quest.ID
	t.lastURI = ""

	latest, err := t.engine.store.Sessions.Latest(ctx, quest.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	t.lastURI = latest.ExternalTrackRef
	return nil
}

// Run polls until ctx is cancelled. Store errors are logged and polling continues.
func (t *Tracker) Run(ctx context.Context, progress chan<- ProgressUpdate) error {
	limiter := rate.NewLimiter(rate.Every(t.interval), 1)
	t.logger.Info("tracker started", "interval", t.interval)

	for step := 1; ; step++ {
		if err := limiter.Wait(ctx); err != nil {
			t.logger.Info("tracker stopped")
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		session, err := t.Poll(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			t.logger.Error("tracker poll failed", "error", err)
			sendProgress(progress, idleUpdate(step, err.Error()))
		case session != nil:
			sendProgress(progress, recordedUpdate(step, session))
		default:
			sendProgress(progress, idleUpdate(step, "Waiting for a new track..."))
		}
	}
}

// Polls returns how many polls have run.
func (t *Tracker) Polls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.polls
}
