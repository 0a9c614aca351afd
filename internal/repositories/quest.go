package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
)

const questColumns = `id, sequence, title, description, status, created_at, completed_at, is_syncing, loot_retrieved`

var _ models.Repository[*models.Quest] = (*QuestRepository)(nil)

// QuestRepository implements models.Repository[*models.Quest].
type QuestRepository struct {
	db DBTX
}

// NewQuestRepository creates a new QuestRepository with the given database handle
func NewQuestRepository(db DBTX) *QuestRepository {
	return &QuestRepository{db: db}
}

// Create inserts a new quest with generated ID and sequence.
func (r *QuestRepository) Create(ctx context.Context, quest *models.Quest) error {
	if err := quest.Validate(); err != nil {
		return err
	}

	if quest.ID == "" {
		quest.ID = shared.GenerateID()
	}
	if quest.CreatedAt.IsZero() {
		quest.CreatedAt = time.Now()
	}
	quest.CreatedAt = quest.CreatedAt.UTC()

	return inTx(ctx, r.db, func(db DBTX) error {
		sequence, err := NextSequence(ctx, db, "quests")
		if err != nil {
			return internal("generate sequence", err)
		}
		quest.Sequence = sequence

		query := `
			INSERT INTO quests (id, sequence, title, description, status, created_at, completed_at, is_syncing, loot_retrieved)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = db.ExecContext(ctx, query,
			quest.ID,
			quest.Sequence,
			quest.Title,
			quest.Description,
			string(quest.Status),
			quest.CreatedAt,
			utcOptional(quest.CompletedAt),
			quest.IsSyncing,
			quest.LootRetrieved,
		)
		if err != nil {
			return internal("insert quest", err)
		}
		return nil
	})
}

// Get retrieves a quest by ID
func (r *QuestRepository) Get(ctx context.Context, id string) (*models.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests WHERE id = ?`
	quest, err := scanQuest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, scanErr(err, "quest", id)
	}
	return quest, nil
}

// Exists reports whether a quest with id is stored.
func (r *QuestRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM quests WHERE id = ?)", id).Scan(&exists); err != nil {
		return false, internal("check quest", err)
	}
	return exists, nil
}

// List retrieves quests, most recently created first.
//
// Supported criteria: "status" (string or [models.Status]) and "is_syncing" (bool).
func (r *QuestRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests WHERE 1 = 1`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.Status:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	if syncing, ok := criteria["is_syncing"].(bool); ok {
		query += " AND is_syncing = ?"
		args = append(args, syncing)
	}

	query += " ORDER BY created_at DESC, sequence DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internal("query quests", err)
	}
	defer rows.Close()

	quests := []*models.Quest{}
	for rows.Next() {
		quest, err := scanQuest(rows)
		if err != nil {
			return nil, internal("scan quest", err)
		}
		quests = append(quests, quest)
	}

	if err := rows.Err(); err != nil {
		return nil, internal("iterate quests", err)
	}

	return quests, nil
}

// Update writes the present fields of patch and returns the stored quest.
func (r *QuestRepository) Update(ctx context.Context, id string, patch models.QuestPatch) (*models.Quest, error) {
	if patch.Empty() {
		return r.Get(ctx, id)
	}

	sets := []string{}
	args := []any{}

	if title, ok := patch.Title.Get(); ok {
		if strings.TrimSpace(title) == "" {
			return nil, fmt.Errorf("%w: quest title is required", shared.ErrInvalidArgument)
		}
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(title))
	}
	if patch.Description.Present() {
		sets = append(sets, "description = ?")
		args = append(args, patch.Description)
	}

	query := "UPDATE quests SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, internal("update quest", err)
	}
	if err := affected(result, "quest", id); err != nil {
		return nil, err
	}

	return r.Get(ctx, id)
}

// SetStatus writes status and completed_at together.
func (r *QuestRepository) SetStatus(ctx context.Context, id string, status models.Status, completedAt models.Optional[time.Time]) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE quests SET status = ?, completed_at = ? WHERE id = ?",
		string(status), utcOptional(completedAt), id,
	)
	if err != nil {
		return internal("update quest status", err)
	}
	return affected(result, "quest", id)
}

// SetSyncing flags a quest as the syncing quest or clears its flag.
//
// Turning sync on is one conditional UPDATE that sets the target and clears every other flagged quest,
// so at most one quest is ever syncing. Turning it off only touches the target.
func (r *QuestRepository) SetSyncing(ctx context.Context, id string, syncing bool) error {
	return inTx(ctx, r.db, func(db DBTX) error {
		var exists bool
		if err := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM quests WHERE id = ?)", id).Scan(&exists); err != nil {
			return internal("check quest", err)
		}
		if !exists {
			return notFound("quest", id)
		}

		if !syncing {
			if _, err := db.ExecContext(ctx, "UPDATE quests SET is_syncing = 0 WHERE id = ?", id); err != nil {
				return internal("clear quest sync", err)
			}
			return nil
		}

		query := `
			UPDATE quests
			SET is_syncing = CASE WHEN id = ? THEN 1 ELSE 0 END
			WHERE is_syncing = 1 OR id = ?
		`
		if _, err := db.ExecContext(ctx, query, id, id); err != nil {
			return internal("set quest sync", err)
		}
		return nil
	})
}

// Syncing returns the quest currently flagged as syncing.
func (r *QuestRepository) Syncing(ctx context.Context) (*models.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests WHERE is_syncing = 1 ORDER BY sequence LIMIT 1`
	quest, err := scanQuest(r.db.QueryRowContext(ctx, query))
	if err != nil {
		return nil, scanErr(err, "quest", "syncing")
	}
	return quest, nil
}

// RetrieveLoot sets loot_retrieved. Repeating it is a no-op.
func (r *QuestRepository) RetrieveLoot(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE quests SET loot_retrieved = 1 WHERE id = ?", id)
	if err != nil {
		return internal("retrieve loot", err)
	}
	return affected(result, "quest", id)
}

// Delete removes a quest with its checkpoints and their music sessions in one transaction.
func (r *QuestRepository) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.db, func(db DBTX) error {
		stmts := []string{
			"DELETE FROM music_sessions WHERE checkpoint_id IN (SELECT id FROM checkpoints WHERE quest_id = ?)",
			"DELETE FROM checkpoints WHERE quest_id = ?",
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt, id); err != nil {
				return internal("delete quest children", err)
			}
		}

		result, err := db.ExecContext(ctx, "DELETE FROM quests WHERE id = ?", id)
		if err != nil {
			return internal("delete quest", err)
		}
		return affected(result, "quest", id)
	})
}

func scanQuest(row scanner) (*models.Quest, error) {
	var (
		quest  models.Quest
		status string
	)

	err := row.Scan(
		&quest.ID,
		&quest.Sequence,
		&quest.Title,
		&quest.Description,
		&status,
		&quest.CreatedAt,
		&quest.CompletedAt,
		&quest.IsSyncing,
		&quest.LootRetrieved,
	)
	if err != nil {
		return nil, err
	}

	quest.Status = models.Status(status)
	quest.CreatedAt = quest.CreatedAt.UTC()
	quest.CompletedAt = utcOptional(quest.CompletedAt)
	return &quest, nil
}
