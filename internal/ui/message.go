package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/questsync/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgQuestsFetched MsgKind = iota
	MsgDetailsFetched
	MsgQuestUpdated
	MsgCheckpointCompleted
)

type questsFetched struct {
	quests []*models.Quest
	stats  models.UserStats
	err    error
}

type detailsFetched struct {
	details *models.QuestDetails
	err     error
}

type questUpdated struct {
	quest  *models.Quest
	notice string
	err    error
}

type checkpointCompleted struct {
	checkpoint *models.Checkpoint
	err        error
}

// questsFetchedMsg is the constructor for [MsgQuestsFetched]
func questsFetchedMsg(quests []*models.Quest, stats models.UserStats, err error) Msg {
	return Msg{kind: MsgQuestsFetched, data: questsFetched{quests, stats, err}}
}

// detailsFetchedMsg is the constructor for [MsgDetailsFetched]
func detailsFetchedMsg(details *models.QuestDetails, err error) Msg {
	return Msg{kind: MsgDetailsFetched, data: detailsFetched{details, err}}
}

// questUpdatedMsg is the constructor for [MsgQuestUpdated]
func questUpdatedMsg(quest *models.Quest, notice string, err error) Msg {
	return Msg{kind: MsgQuestUpdated, data: questUpdated{quest, notice, err}}
}

// checkpointCompletedMsg is the constructor for [MsgCheckpointCompleted]
func checkpointCompletedMsg(checkpoint *models.Checkpoint, err error) Msg {
	return Msg{kind: MsgCheckpointCompleted, data: checkpointCompleted{checkpoint, err}}
}
