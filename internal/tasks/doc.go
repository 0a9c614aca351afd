// Package tasks applies quest progression rules and runs the jobs built on them.
//
// # Progression
//
// [QuestEngine] is the only writer of quest state outside the repositories. Each command validates
// input, checks the target exists, mutates the store, then updates the ledger:
//
//  1. [QuestEngine.SetStatus] : any status to any status. Every move into completed stamps
//     completed_at and awards 25 XP plus one completed quest. Moving out clears completed_at.
//  2. [QuestEngine.SetSyncing] : at most one quest syncs at a time. Turning sync on clears
//     every other quest in the same UPDATE.
//  3. [QuestEngine.CompleteCheckpoint] : idempotent. Only the call that flips the row awards 5 XP.
//  4. [QuestEngine.RetrieveLoot] : one-way flag, no XP.
//
// # Aggregation
//
// [ComputeStats] and [AggregatePlaylist] are pure functions over rows loaded by
// [QuestEngine.Stats] and [QuestEngine.Playlist]. Nothing is cached; every call recomputes.
//
// # Tracker
//
// [Tracker] polls the playback bridge and records a music session against the syncing quest's
// first incomplete checkpoint whenever the playing track changes.
//
// # Exports
//
// [QuestEngine.ExportToSpotify] turns a quest playlist into an external playlist.
// [QuestEngine.BulkExport] writes playlists to disk with a worker pool.
//
// # Progress Reporting
//
// Long-running operations send [ProgressUpdate] values on an optional channel.
// Updates use select with default to prevent blocking.
package tasks
