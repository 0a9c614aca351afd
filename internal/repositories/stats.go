package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
)

// StatsRepository persists the single-row gamification ledger.
type StatsRepository struct {
	db DBTX
}

// NewStatsRepository creates a new StatsRepository with the given database handle
func NewStatsRepository(db DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// Load reads the stored totals.
func (r *StatsRepository) Load(ctx context.Context) (models.UserStats, error) {
	return r.load(ctx, r.db)
}

// Add atomically increments the totals and returns the new values.
//
// The increment happens in SQL, so concurrent writers (including other processes) never lose updates.
func (r *StatsRepository) Add(ctx context.Context, xp, questsCompleted int) (models.UserStats, error) {
	if xp < 0 || questsCompleted < 0 {
		return models.UserStats{}, fmt.Errorf("%w: ledger increments must not be negative", shared.ErrInvalidArgument)
	}

	var stats models.UserStats
	err := inTx(ctx, r.db, func(db DBTX) error {
		query := `
			INSERT INTO user_stats (id, total_xp, quests_completed, updated_at)
			VALUES (1, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				total_xp = total_xp + excluded.total_xp,
				quests_completed = quests_completed + excluded.quests_completed,
				updated_at = CURRENT_TIMESTAMP
		`
		if _, err := db.ExecContext(ctx, query, xp, questsCompleted); err != nil {
			return internal("update user stats", err)
		}

		var err error
		stats, err = r.load(ctx, db)
		return err
	})
	return stats, err
}

func (r *StatsRepository) load(ctx context.Context, db DBTX) (models.UserStats, error) {
	var xp, quests int
	err := db.QueryRowContext(ctx, "SELECT total_xp, quests_completed FROM user_stats WHERE id = 1").Scan(&xp, &quests)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewUserStats(0, 0), nil
		}
		return models.UserStats{}, internal("load user stats", err)
	}
	return models.NewUserStats(xp, quests), nil
}
