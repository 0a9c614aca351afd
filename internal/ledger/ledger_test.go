package ledger

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/repositories"
	"github.com/desertthunder/questsync/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

type failingSink struct{ loadErr, addErr error }

func (f failingSink) Load(context.Context) (models.UserStats, error) {
	return models.UserStats{}, f.loadErr
}

func (f failingSink) Add(context.Context, int, int) (models.UserStats, error) {
	return models.UserStats{}, f.addErr
}

// recordingSink keeps every Add call in memory.
type recordingSink struct {
	mu    sync.Mutex
	calls [][2]int
	xp    int
	count int
}

func (r *recordingSink) Load(context.Context) (models.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.NewUserStats(r.xp, r.count), nil
}

func (r *recordingSink) Add(_ context.Context, xp, quests int) (models.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, [2]int{xp, quests})
	r.xp += xp
	r.count += quests
	return models.NewUserStats(r.xp, r.count), nil
}

func TestLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("in memory", func(t *testing.T) {
		l, err := New(ctx, nil, nil)
		if err != nil {
			t.Fatalf("failed to create ledger: %v", err)
		}

		if err := l.AddXP(ctx, CheckpointXP); err != nil {
			t.Fatalf("failed to add xp: %v", err)
		}
		if err := l.AddXP(ctx, QuestCompletionXP); err != nil {
			t.Fatalf("failed to add xp: %v", err)
		}
		if err := l.IncrementQuestsCompleted(ctx); err != nil {
			t.Fatalf("failed to increment: %v", err)
		}

		stats := l.Stats()
		if stats.TotalXP != 30 || stats.QuestsCompleted != 1 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("negative xp rejected", func(t *testing.T) {
		l, _ := New(ctx, nil, nil)
		if err := l.AddXP(ctx, -5); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if l.Stats().TotalXP != 0 {
			t.Error("rejected increment must not change totals")
		}
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		store := repositories.NewStore(setupTestDB(t))
		l, err := New(ctx, store.Stats, nil)
		if err != nil {
			t.Fatalf("failed to create ledger: %v", err)
		}

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				if err := l.AddXP(ctx, CheckpointXP); err != nil {
					t.Errorf("add xp: %v", err)
				}
			}()
			go func() {
				defer wg.Done()
				if err := l.IncrementQuestsCompleted(ctx); err != nil {
					t.Errorf("increment: %v", err)
				}
			}()
		}
		wg.Wait()

		if got := l.Stats(); got.TotalXP != 250 || got.QuestsCompleted != 50 {
			t.Errorf("expected 250 xp and 50 quests, got %+v", got)
		}

		persisted, err := store.Stats.Load(ctx)
		if err != nil {
			t.Fatalf("failed to load stats: %v", err)
		}
		if persisted.TotalXP != 250 || persisted.QuestsCompleted != 50 {
			t.Errorf("expected persisted totals to match, got %+v", persisted)
		}
	})

	t.Run("loads existing totals", func(t *testing.T) {
		store := repositories.NewStore(setupTestDB(t))
		if _, err := store.Stats.Add(ctx, 60, 2); err != nil {
			t.Fatalf("failed to seed stats: %v", err)
		}

		l, err := New(ctx, store.Stats, nil)
		if err != nil {
			t.Fatalf("failed to create ledger: %v", err)
		}
		if got := l.Stats(); got.TotalXP != 60 || got.Level != 2 {
			t.Errorf("unexpected stats %+v", got)
		}
	})

	t.Run("Refresh sees other writers", func(t *testing.T) {
		store := repositories.NewStore(setupTestDB(t))
		l, _ := New(ctx, store.Stats, nil)

		if _, err := store.Stats.Add(ctx, 10, 0); err != nil {
			t.Fatalf("failed to add stats: %v", err)
		}
		got, err := l.Refresh(ctx)
		if err != nil {
			t.Fatalf("failed to refresh: %v", err)
		}
		if got.TotalXP != 10 {
			t.Errorf("expected refreshed xp 10, got %d", got.TotalXP)
		}
	})

	t.Run("sink errors", func(t *testing.T) {
		boom := errors.New("boom")

		if _, err := New(ctx, failingSink{loadErr: boom}, nil); !errors.Is(err, boom) {
			t.Errorf("expected load error, got %v", err)
		}

		l, err := New(ctx, failingSink{addErr: boom}, nil)
		if err != nil {
			t.Fatalf("failed to create ledger: %v", err)
		}
		if err := l.AddXP(ctx, 5); !errors.Is(err, boom) {
			t.Errorf("expected add error, got %v", err)
		}
		if l.Stats().TotalXP != 0 {
			t.Error("failed write must not change totals")
		}
		if err := l.AwardQuestCompletion(ctx); !errors.Is(err, boom) {
			t.Errorf("expected add error, got %v", err)
		}
		if got := l.Stats(); got.TotalXP != 0 || got.QuestsCompleted != 0 {
			t.Errorf("failed completion award must change nothing, got %+v", got)
		}
	})

	t.Run("quest completion is one write", func(t *testing.T) {
		sink := &recordingSink{}
		l, err := New(ctx, sink, nil)
		if err != nil {
			t.Fatalf("failed to create ledger: %v", err)
		}

		if err := l.AwardQuestCompletion(ctx); err != nil {
			t.Fatalf("failed to award completion: %v", err)
		}

		if len(sink.calls) != 1 || sink.calls[0] != [2]int{QuestCompletionXP, 1} {
			t.Errorf("expected a single Add(%d, 1), got %v", QuestCompletionXP, sink.calls)
		}
		if got := l.Stats(); got.TotalXP != QuestCompletionXP || got.QuestsCompleted != 1 {
			t.Errorf("unexpected stats %+v", got)
		}
	})
}
