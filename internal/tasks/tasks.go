package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/questsync/internal/ledger"
	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/repositories"
	"github.com/desertthunder/questsync/internal/services"
	"github.com/desertthunder/questsync/internal/shared"
)

// DefaultPlaylistPrefix is prepended to quest titles when exporting playlists.
const DefaultPlaylistPrefix = "Quest:"

// EngineOpts contains optional collaborators for a [QuestEngine].
type EngineOpts struct {
	Bridge         services.Bridge  // Playback bridge used for exports (optional)
	Logger         *log.Logger      // Defaults to a discard logger
	Now            func() time.Time // Clock (default: time.Now in UTC)
	PlaylistPrefix string           // Default: DefaultPlaylistPrefix
}

// QuestEngine applies progression rules to quests and checkpoints.
type QuestEngine struct {
	store  *repositories.Store
	ledger *ledger.Ledger
	bridge services.Bridge
	logger *log.Logger
	now    func() time.Time
	prefix string
}

// NewQuestEngine creates a QuestEngine over store that awards XP through ldg.
func NewQuestEngine(store *repositories.Store, ldg *ledger.Ledger, opts EngineOpts) *QuestEngine {
	e := &QuestEngine{
		store:  store,
		ledger: ldg,
		bridge: opts.Bridge,
		logger: opts.Logger,
		now:    opts.Now,
		prefix: opts.PlaylistPrefix,
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	e.logger = shared.WithLogger(e.logger, "component", "engine")
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.prefix == "" {
		e.prefix = DefaultPlaylistPrefix
	}
	return e
}

// Store exposes the underlying store.
func (e *QuestEngine) Store() *repositories.Store {
	return e.store
}

// Ledger exposes the XP ledger.
func (e *QuestEngine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Bridge returns the playback bridge, or nil when none is configured.
func (e *QuestEngine) Bridge() services.Bridge {
	return e.bridge
}

// CreateQuest stores a new active quest.
func (e *QuestEngine) CreateQuest(ctx context.Context, title string, description models.Optional[string]) (*models.Quest, error) {
	quest := models.NewQuest(title, description)
	quest.CreatedAt = e.now()

	if err := e.store.Quests.Create(ctx, quest); err != nil {
		return nil, err
	}

	e.logger.Info("quest created", "id", quest.ID, "title", quest.Title)
	return quest, nil
}

func (e *QuestEngine) GetQuest(ctx context.Context, id string) (*models.Quest, error) {
	return e.store.Quests.Get(ctx, id)
}

// QuestDetails returns a quest with its ordered checkpoints.
func (e *QuestEngine) QuestDetails(ctx context.Context, id string) (*models.QuestDetails, error) {
	quest, err := e.store.Quests.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	checkpoints, err := e.store.Checkpoints.ListByQuest(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.QuestDetails{Quest: quest, Checkpoints: checkpoints}, nil
}

// ListQuests returns quests newest first. An empty status lists every quest.
func (e *QuestEngine) ListQuests(ctx context.Context, status string) ([]*models.Quest, error) {
	criteria := map[string]any{}
	if status != "" {
		s, err := models.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		criteria["status"] = s
	}
	return e.store.Quests.List(ctx, criteria)
}

// EditQuest applies a partial edit.
func (e *QuestEngine) EditQuest(ctx context.Context, id string, patch models.QuestPatch) (*models.Quest, error) {
	quest, err := e.store.Quests.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("quest edited", "id", id)
	return quest, nil
}

// DeleteQuest removes a quest with its checkpoints and their sessions.
func (e *QuestEngine) DeleteQuest(ctx context.Context, id string) error {
	if err := e.store.Quests.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("quest deleted", "id", id)
	return nil
}

// SetStatus moves a quest to status.
//
// Every transition into completed stamps completed_at and awards [ledger.QuestCompletionXP]
// plus one completed quest, including completed -> completed. Leaving completed clears
// completed_at without taking XP back.
func (e *QuestEngine) SetStatus(ctx context.Context, id, status string) (*models.Quest, error) {
	s, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	completedAt := models.None[time.Time]()
	if s == models.StatusCompleted {
		completedAt = models.Some(e.now())
	}

	if err := e.store.Quests.SetStatus(ctx, id, s, completedAt); err != nil {
		return nil, err
	}

	if s == models.StatusCompleted {
		if err := e.ledger.AwardQuestCompletion(ctx); err != nil {
			return nil, fmt.Errorf("failed to award quest completion: %w", err)
		}
	}

	e.logger.Info("quest status changed", "id", id, "status", s)
	return e.store.Quests.Get(ctx, id)
}

// SetSyncing makes a quest the syncing quest or clears its flag.
// Turning sync on clears it on every other quest in the same statement.
func (e *QuestEngine) SetSyncing(ctx context.Context, id string, syncing bool) (*models.Quest, error) {
	if err := e.store.Quests.SetSyncing(ctx, id, syncing); err != nil {
		return nil, err
	}
	e.logger.Info("quest sync changed", "id", id, "syncing", syncing)
	return e.store.Quests.Get(ctx, id)
}

// SyncingQuest returns the quest currently syncing, or NotFound when there is none.
func (e *QuestEngine) SyncingQuest(ctx context.Context) (*models.Quest, error) {
	return e.store.Quests.Syncing(ctx)
}

// RetrieveLoot marks a quest's loot as collected. It awards nothing and can be repeated.
func (e *QuestEngine) RetrieveLoot(ctx context.Context, id string) (*models.Quest, error) {
	if err := e.store.Quests.RetrieveLoot(ctx, id); err != nil {
		return nil, err
	}
	return e.store.Quests.Get(ctx, id)
}

// AddCheckpoint creates a checkpoint under an existing quest.
func (e *QuestEngine) AddCheckpoint(ctx context.Context, questID, title string, orderIndex int) (*models.Checkpoint, error) {
	checkpoint := models.NewCheckpoint(questID, title, orderIndex)
	if err := e.store.Checkpoints.Create(ctx, checkpoint); err != nil {
		return nil, err
	}
	e.logger.Debug("checkpoint added", "quest", questID, "id", checkpoint.ID, "order", orderIndex)
	return checkpoint, nil
}

// ListCheckpoints returns a quest's checkpoints by order index.
func (e *QuestEngine) ListCheckpoints(ctx context.Context, questID string) ([]*models.Checkpoint, error) {
	if _, err := e.store.Quests.Get(ctx, questID); err != nil {
		return nil, err
	}
	return e.store.Checkpoints.ListByQuest(ctx, questID)
}

func (e *QuestEngine) EditCheckpoint(ctx context.Context, id string, patch models.CheckpointPatch) (*models.Checkpoint, error) {
	return e.store.Checkpoints.Update(ctx, id, patch)
}

func (e *QuestEngine) DeleteCheckpoint(ctx context.Context, id string) error {
	return e.store.Checkpoints.Delete(ctx, id)
}

// CompleteCheckpoint marks a checkpoint completed. Only the call that performs the
// transition awards [ledger.CheckpointXP]; later calls return the checkpoint unchanged.
func (e *QuestEngine) CompleteCheckpoint(ctx context.Context, id string) (*models.Checkpoint, error) {
	first, err := e.store.Checkpoints.Complete(ctx, id, e.now())
	if err != nil {
		return nil, err
	}

	if first {
		if err := e.ledger.AddXP(ctx, ledger.CheckpointXP); err != nil {
			return nil, fmt.Errorf("failed to award checkpoint xp: %w", err)
		}
		e.logger.Info("checkpoint completed", "id", id, "xp", ledger.CheckpointXP)
	}

	return e.store.Checkpoints.Get(ctx, id)
}

// RecordSession appends a music session to a checkpoint. PlayedAt is always the engine clock.
func (e *QuestEngine) RecordSession(ctx context.Context, session *models.MusicSession) (*models.MusicSession, error) {
	session.PlayedAt = e.now()
	if err := e.store.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	e.logger.Debug("music session recorded", "checkpoint", session.CheckpointID, "track", session.TrackName)
	return session, nil
}

// UserStats returns the ledger totals with level progress.
//
// Totals are reloaded from the store so awards made by another process sharing
// the database are visible.
func (e *QuestEngine) UserStats(ctx context.Context) (models.UserStats, error) {
	return e.ledger.Refresh(ctx)
}

// playlistName is the default external playlist name for a quest.
func (e *QuestEngine) playlistName(quest *models.Quest) string {
	return strings.TrimSpace(e.prefix + " " + quest.Title)
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
