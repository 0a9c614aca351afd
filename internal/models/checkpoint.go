package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/questsync/internal/shared"
)

// Checkpoint is an ordered sub-step of a [Quest].
type Checkpoint struct {
	ID          string              `json:"id"`
	Sequence    int                 `json:"-"`
	QuestID     string              `json:"quest_id"`
	Title       string              `json:"title"`
	OrderIndex  int                 `json:"order_index"`
	Completed   bool                `json:"completed"`
	CompletedAt Optional[time.Time] `json:"completed_at"`
}

// NewCheckpoint builds an incomplete checkpoint owned by questID.
func NewCheckpoint(questID, title string, orderIndex int) *Checkpoint {
	return &Checkpoint{
		QuestID:    questID,
		Title:      strings.TrimSpace(title),
		OrderIndex: orderIndex,
	}
}

func (c *Checkpoint) Identifier() string { return c.ID }

func (c *Checkpoint) Validate() error {
	if c.QuestID == "" {
		return fmt.Errorf("%w: checkpoint quest id is required", shared.ErrInvalidArgument)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: checkpoint title is required", shared.ErrInvalidArgument)
	}
	return nil
}

// CheckpointPatch is a partial checkpoint edit.
type CheckpointPatch struct {
	Title      Optional[string] `json:"title"`
	OrderIndex Optional[int]    `json:"order_index"`
}

func (p CheckpointPatch) Empty() bool {
	return !p.Title.Present() && !p.OrderIndex.Present()
}

func (p CheckpointPatch) Apply(c *Checkpoint) {
	if title, ok := p.Title.Get(); ok {
		c.Title = strings.TrimSpace(title)
	}
	if idx, ok := p.OrderIndex.Get(); ok {
		c.OrderIndex = idx
	}
}
