// Package models defines domain entities and persistence interfaces for questsync.
//
// Persistent entities:
//   - [Quest] : top-level task with an active/paused/completed lifecycle, a sync flag and a loot flag
//   - [Checkpoint] : ordered sub-step of a quest, completed at most once
//   - [MusicSession] : append-only record of a track played while a checkpoint was active
//
// Derived, never stored:
//   - [QuestStats] and [QuestPlaylist] : computed from the entities on every read
//   - [UserStats] : ledger totals with level progress
//
// [Optional] marks nullable columns and the fields of partial edits ([QuestPatch], [CheckpointPatch]),
// so "not supplied" is never confused with a zero value.
package models
