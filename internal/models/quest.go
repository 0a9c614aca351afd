package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/questsync/internal/shared"
)

// Status is the lifecycle state of a [Quest].
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Statuses lists every valid [Status].
var Statuses = []Status{StatusActive, StatusPaused, StatusCompleted}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus validates a caller-supplied status string. Matching is exact:
// case and surrounding whitespace are not normalized.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("%w: status must be one of active, paused, completed (got %q)", shared.ErrInvalidArgument, s)
	}
	return status, nil
}

// Quest is a top-level trackable task.
type Quest struct {
	ID            string              `json:"id"`
	Sequence      int                 `json:"-"`
	Title         string              `json:"title"`
	Description   Optional[string]    `json:"description"`
	Status        Status              `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	CompletedAt   Optional[time.Time] `json:"completed_at"`
	IsSyncing     bool                `json:"is_syncing"`
	LootRetrieved bool                `json:"loot_retrieved"`
}

// NewQuest builds an active quest. ID, sequence and timestamps are assigned on insert.
func NewQuest(title string, description Optional[string]) *Quest {
	return &Quest{
		Title:       strings.TrimSpace(title),
		Description: description,
		Status:      StatusActive,
	}
}

func (q *Quest) Identifier() string { return q.ID }

func (q *Quest) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("%w: quest title is required", shared.ErrInvalidArgument)
	}
	if !q.Status.Valid() {
		return fmt.Errorf("%w: unknown quest status %q", shared.ErrInvalidArgument, q.Status)
	}
	return nil
}

// QuestPatch is a partial quest edit. Only present fields are written.
type QuestPatch struct {
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
}

// Empty reports whether the patch changes nothing.
func (p QuestPatch) Empty() bool {
	return !p.Title.Present() && !p.Description.Present()
}

// Apply copies the present fields onto q.
func (p QuestPatch) Apply(q *Quest) {
	if title, ok := p.Title.Get(); ok {
		q.Title = strings.TrimSpace(title)
	}
	if p.Description.Present() {
		q.Description = p.Description
	}
}

// QuestDetails is a quest with its checkpoints in order.
type QuestDetails struct {
	*Quest
	Checkpoints []*Checkpoint `json:"checkpoints"`
}

// QuestStats are progress figures derived from a quest's checkpoints and sessions.
type QuestStats struct {
	Quest                 *Quest  `json:"quest"`
	TotalCheckpoints      int     `json:"total_checkpoints"`
	CompletedCheckpoints  int     `json:"completed_checkpoints"`
	ProgressPercentage    float64 `json:"progress_percentage"`
	TotalSongsPlayed      int     `json:"total_songs_played"`
	TotalListeningMinutes float64 `json:"total_listening_minutes"`
}
