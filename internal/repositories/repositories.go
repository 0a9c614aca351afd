// package repositories provides persistence layer implementations for all model types.
//
// Each repository wraps a [DBTX], so the same code runs against the pool or inside a transaction.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
)

// DBTX is the query surface shared by [sql.DB] and [sql.Tx].
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers break ties between rows written within the same timestamp, so list ordering is stable.
// They are NOT exposed in CLI output. Callers creating a row should run this in the same transaction as the insert.
func NextSequence(ctx context.Context, db DBTX, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := db.QueryRowContext(ctx, query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	return sequence, nil
}

// inTx runs fn inside a transaction. When db is already a transaction fn joins it,
// so repository methods stay atomic whether or not the caller opened one.
func inTx(ctx context.Context, db DBTX, fn func(DBTX) error) error {
	pool, ok := db.(*sql.DB)
	if !ok {
		return fn(db)
	}

	tx, err := pool.BeginTx(ctx, nil)
	if err != nil {
		return internal("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return internal("commit transaction", err)
	}
	return nil
}

func internal(action string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", shared.ErrInternal, action, err)
}

func notFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", shared.ErrNotFound, entity, id)
}

// affected maps a zero-row write to a not-found error.
func affected(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return internal("get affected rows", err)
	}
	if rows == 0 {
		return notFound(entity, id)
	}
	return nil
}

func scanErr(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(entity, id)
	}
	return internal("scan "+entity, err)
}

func utcOptional(o models.Optional[time.Time]) models.Optional[time.Time] {
	if t, ok := o.Get(); ok {
		return models.Some(t.UTC())
	}
	return o
}

// Store bundles the repositories over one handle.
//
// A Store returned to a [Store.WithTx] callback is bound to that transaction.
type Store struct {
	db          *sql.DB
	tx          *sql.Tx
	Quests      *QuestRepository
	Checkpoints *CheckpointRepository
	Sessions    *MusicSessionRepository
	Stats       *StatsRepository
}

// NewStore creates a Store over the pool.
func NewStore(db *sql.DB) *Store {
	return newStore(db, db, nil)
}

func newStore(handle DBTX, db *sql.DB, tx *sql.Tx) *Store {
	return &Store{
		db:          db,
		tx:          tx,
		Quests:      NewQuestRepository(handle),
		Checkpoints: NewCheckpointRepository(handle),
		Sessions:    NewMusicSessionRepository(handle),
		Stats:       NewStatsRepository(handle),
	}
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn with a Store bound to a new transaction, committing when fn returns nil.
// Called on a transaction-bound Store it reuses the open transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internal("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(newStore(tx, s.db, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return internal("commit transaction", err)
	}
	return nil
}
