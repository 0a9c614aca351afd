package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
)

const checkpointColumns = `id, sequence, quest_id, title, order_index, completed, completed_at`

var _ models.Repository[*models.Checkpoint] = (*CheckpointRepository)(nil)

// CheckpointRepository implements models.Repository[*models.Checkpoint].
type CheckpointRepository struct {
	db DBTX
}

// NewCheckpointRepository creates a new CheckpointRepository with the given database handle
func NewCheckpointRepository(db DBTX) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// Create inserts a checkpoint under an existing quest.
func (r *CheckpointRepository) Create(ctx context.Context, checkpoint *models.Checkpoint) error {
	if err := checkpoint.Validate(); err != nil {
		return err
	}

	if checkpoint.ID == "" {
		checkpoint.ID = shared.GenerateID()
	}

	return inTx(ctx, r.db, func(db DBTX) error {
		var exists bool
		if err := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM quests WHERE id = ?)", checkpoint.QuestID).Scan(&exists); err != nil {
			return internal("check quest", err)
		}
		if !exists {
			return notFound("quest", checkpoint.QuestID)
		}

		sequence, err := NextSequence(ctx, db, "checkpoints")
		if err != nil {
			return internal("generate sequence", err)
		}
		checkpoint.Sequence = sequence

		query := `
			INSERT INTO checkpoints (id, sequence, quest_id, title, order_index, completed, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err = db.ExecContext(ctx, query,
			checkpoint.ID,
			checkpoint.Sequence,
			checkpoint.QuestID,
			checkpoint.Title,
			checkpoint.OrderIndex,
			checkpoint.Completed,
			utcOptional(checkpoint.CompletedAt),
		)
		if err != nil {
			return internal("insert checkpoint", err)
		}
		return nil
	})
}

// Get retrieves a checkpoint by ID
func (r *CheckpointRepository) Get(ctx context.Context, id string) (*models.Checkpoint, error) {
	query := `SELECT ` + checkpointColumns + ` FROM checkpoints WHERE id = ?`
	checkpoint, err := scanCheckpoint(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, scanErr(err, "checkpoint", id)
	}
	return checkpoint, nil
}

// List retrieves checkpoints ordered by order_index.
//
// Supported criteria: "quest_id" (string) and "completed" (bool).
func (r *CheckpointRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Checkpoint, error) {
	query := `SELECT ` + checkpointColumns + ` FROM checkpoints WHERE 1 = 1`
	args := []any{}

	if questID, ok := criteria["quest_id"].(string); ok && questID != "" {
		query += " AND quest_id = ?"
		args = append(args, questID)
	}

	if completed, ok := criteria["completed"].(bool); ok {
		query += " AND completed = ?"
		args = append(args, completed)
	}

	query += " ORDER BY order_index ASC, sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internal("query checkpoints", err)
	}
	defer rows.Close()

	checkpoints := []*models.Checkpoint{}
	for rows.Next() {
		checkpoint, err := scanCheckpoint(rows)
		if err != nil {
			return nil, internal("scan checkpoint", err)
		}
		checkpoints = append(checkpoints, checkpoint)
	}

	if err := rows.Err(); err != nil {
		return nil, internal("iterate checkpoints", err)
	}

	return checkpoints, nil
}

// ListByQuest returns a quest's checkpoints ordered by order_index ascending.
func (r *CheckpointRepository) ListByQuest(ctx context.Context, questID string) ([]*models.Checkpoint, error) {
	return r.List(ctx, map[string]any{"quest_id": questID})
}

// FirstIncomplete returns the lowest-ordered checkpoint of a quest that is not yet completed.
func (r *CheckpointRepository) FirstIncomplete(ctx context.Context, questID string) (*models.Checkpoint, error) {
	query := `
		SELECT ` + checkpointColumns + `
		FROM checkpoints
		WHERE quest_id = ? AND completed = 0
		ORDER BY order_index ASC, sequence ASC
		LIMIT 1
	`
	checkpoint, err := scanCheckpoint(r.db.QueryRowContext(ctx, query, questID))
	if err != nil {
		return nil, scanErr(err, "incomplete checkpoint for quest", questID)
	}
	return checkpoint, nil
}

// Update writes the present fields of patch and returns the stored checkpoint.
func (r *CheckpointRepository) Update(ctx context.Context, id string, patch models.CheckpointPatch) (*models.Checkpoint, error) {
	if patch.Empty() {
		return r.Get(ctx, id)
	}

	sets := []string{}
	args := []any{}

	if title, ok := patch.Title.Get(); ok {
		if strings.TrimSpace(title) == "" {
			return nil, fmt.Errorf("%w: checkpoint title is required", shared.ErrInvalidArgument)
		}
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(title))
	}
	if idx, ok := patch.OrderIndex.Get(); ok {
		sets = append(sets, "order_index = ?")
		args = append(args, idx)
	}

	query := "UPDATE checkpoints SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, internal("update checkpoint", err)
	}
	if err := affected(result, "checkpoint", id); err != nil {
		return nil, err
	}

	return r.Get(ctx, id)
}

// Complete marks a checkpoint completed at the given time.
//
// It reports true only for the call that performed the transition; the conditional
// UPDATE makes that decision atomic under concurrent callers.
func (r *CheckpointRepository) Complete(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE checkpoints SET completed = 1, completed_at = ? WHERE id = ? AND completed = 0",
		at.UTC(), id,
	)
	if err != nil {
		return false, internal("complete checkpoint", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, internal("get affected rows", err)
	}
	if rows == 1 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM checkpoints WHERE id = ?)", id).Scan(&exists); err != nil {
		return false, internal("check checkpoint", err)
	}
	if !exists {
		return false, notFound("checkpoint", id)
	}
	return false, nil
}

// Delete removes a checkpoint and its music sessions. The owning quest is untouched.
func (r *CheckpointRepository) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.db, func(db DBTX) error {
		if _, err := db.ExecContext(ctx, "DELETE FROM music_sessions WHERE checkpoint_id = ?", id); err != nil {
			return internal("delete checkpoint sessions", err)
		}

		result, err := db.ExecContext(ctx, "DELETE FROM checkpoints WHERE id = ?", id)
		if err != nil {
			return internal("delete checkpoint", err)
		}
		return affected(result, "checkpoint", id)
	})
}

func scanCheckpoint(row scanner) (*models.Checkpoint, error) {
	var checkpoint models.Checkpoint

	err := row.Scan(
		&checkpoint.ID,
		&checkpoint.Sequence,
		&checkpoint.QuestID,
		&checkpoint.Title,
		&checkpoint.OrderIndex,
		&checkpoint.Completed,
		&checkpoint.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	checkpoint.CompletedAt = utcOptional(checkpoint.CompletedAt)
	return &checkpoint, nil
}
