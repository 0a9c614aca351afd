// Package ui implements the quest board, an interactive terminal interface using bubbletea's Elm architecture.
//
// The board has two views:
//  1. [QuestListView] : Browse quests with status badges and a marker on the syncing quest
//  2. [CheckpointView] : Walk one quest's checkpoints under a progress bar
//
// The [Model] implements bubbletea's Init/Update/View pattern. Engine calls run as [tea.Cmd] functions and
// report back through the [Msg] union, so the update loop never blocks on the database.
//
// Keys: j/k move, enter opens a quest, c completes the selected checkpoint, s toggles sync, l retrieves loot,
// r refreshes, esc goes back, and q quits.
package ui
