// package ledger accumulates experience points and completed-quest counts.
//
// A [Ledger] is created once per process and injected into everything that awards XP.
// Mutations are serialized by a mutex and written through to an optional [Sink].
package ledger

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
)

const (
	// CheckpointXP is awarded the first time a checkpoint is completed.
	CheckpointXP = 5
	// QuestCompletionXP is awarded every time a quest is set to completed.
	QuestCompletionXP = 25
)

// Sink persists ledger increments. Add must apply both deltas atomically and return the new totals.
type Sink interface {
	Load(ctx context.Context) (models.UserStats, error)
	Add(ctx context.Context, xp, questsCompleted int) (models.UserStats, error)
}

// Ledger is the XP and completed-quest accumulator.
type Ledger struct {
	mu     sync.Mutex
	totals models.UserStats
	sink   Sink
	logger *log.Logger
}

// New loads the current totals from sink. A nil sink keeps the ledger in memory only.
func New(ctx context.Context, sink Sink, logger *log.Logger) (*Ledger, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	l := &Ledger{sink: sink, logger: shared.WithLogger(logger, "component", "ledger"), totals: models.NewUserStats(0, 0)}

	if sink != nil {
		totals, err := sink.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger: %w", err)
		}
		l.totals = totals
	}

	return l, nil
}

// AddXP adds amount to the XP total.
func (l *Ledger) AddXP(ctx context.Context, amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: xp amount must not be negative (got %d)", shared.ErrInvalidArgument, amount)
	}
	return l.add(ctx, amount, 0)
}

// IncrementQuestsCompleted adds one to the completed-quest counter.
func (l *Ledger) IncrementQuestsCompleted(ctx context.Context) error {
	return l.add(ctx, 0, 1)
}

// AwardQuestCompletion adds [QuestCompletionXP] and one completed quest in a single write.
func (l *Ledger) AwardQuestCompletion(ctx context.Context) error {
	return l.add(ctx, QuestCompletionXP, 1)
}

// Stats returns a snapshot of the totals.
func (l *Ledger) Stats() models.UserStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals
}

// Refresh reloads the totals from the sink, picking up writes made by other processes.
func (l *Ledger) Refresh(ctx context.Context) (models.UserStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sink == nil {
		return l.totals, nil
	}

	totals, err := l.sink.Load(ctx)
	if err != nil {
		return l.totals, fmt.Errorf("failed to refresh ledger: %w", err)
	}
	l.totals = totals
	return totals, nil
}

func (l *Ledger) add(ctx context.Context, xp, quests int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sink == nil {
		l.totals = models.NewUserStats(l.totals.TotalXP+xp, l.totals.QuestsCompleted+quests)
		return nil
	}

	totals, err := l.sink.Add(ctx, xp, quests)
	if err != nil {
		l.logger.Error("failed to persist ledger increment", "xp", xp, "quests", quests, "error", err)
		return err
	}

	if totals.Level > l.totals.Level {
		l.logger.Info("level up", "level", totals.Level, "total_xp", totals.TotalXP)
	}
	l.totals = totals
	return nil
}
