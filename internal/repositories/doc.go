// Package repositories implements SQLite persistence for quests, checkpoints, music sessions and the ledger.
//
// Key Implementations:
//   - [QuestRepository] : quest CRUD, the single-sync flag, loot and cascading delete
//   - [CheckpointRepository] : ordered checkpoints with an at-most-once completion transition
//   - [MusicSessionRepository] : append-only session log, listed per checkpoint or per quest
//   - [StatsRepository] : atomic increments of the single-row XP ledger
//
// Every repository wraps a [DBTX], so it runs against the pool or inside a transaction unchanged.
// Writes that touch more than one row open their own transaction when not already inside one.
// [Store] groups the repositories and provides [Store.WithTx] for engine-level units of work.
//
// Sequence numbers break ordering ties between rows written at the same instant.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
