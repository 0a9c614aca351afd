package repositories

import (
	"context"
	"time"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
)

const sessionColumns = `ms.id, ms.sequence, ms.checkpoint_id, ms.track_name, ms.artist, ms.album, ms.external_track_ref, ms.played_at, ms.duration_ms`

// MusicSessionRepository persists the append-only music session log.
//
// Sessions are never updated; they are removed only with their checkpoint.
type MusicSessionRepository struct {
	db DBTX
}

// NewMusicSessionRepository creates a new MusicSessionRepository with the given database handle
func NewMusicSessionRepository(db DBTX) *MusicSessionRepository {
	return &MusicSessionRepository{db: db}
}

// Create appends a session to an existing checkpoint. PlayedAt defaults to now.
func (r *MusicSessionRepository) Create(ctx context.Context, session *models.MusicSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	if session.ID == "" {
		session.ID = shared.GenerateID()
	}
	if session.PlayedAt.IsZero() {
		session.PlayedAt = time.Now()
	}
	session.PlayedAt = session.PlayedAt.UTC()

	return inTx(ctx, r.db, func(db DBTX) error {
		var exists bool
		if err := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM checkpoints WHERE id = ?)", session.CheckpointID).Scan(&exists); err != nil {
			return internal("check checkpoint", err)
		}
		if !exists {
			return notFound("checkpoint", session.CheckpointID)
		}

		sequence, err := NextSequence(ctx, db, "music_sessions")
		if err != nil {
			return internal("generate sequence", err)
		}
		session.Sequence = sequence

		query := `
			INSERT INTO music_sessions (id, sequence, checkpoint_id, track_name, artist, album, external_track_ref, played_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = db.ExecContext(ctx, query,
			session.ID,
			session.Sequence,
			session.CheckpointID,
			session.TrackName,
			session.Artist,
			session.Album,
			session.ExternalTrackRef,
			session.PlayedAt,
			session.DurationMs,
		)
		if err != nil {
			return internal("insert music session", err)
		}
		return nil
	})
}

// Get retrieves a session by ID
func (r *MusicSessionRepository) Get(ctx context.Context, id string) (*models.MusicSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM music_sessions ms WHERE ms.id = ?`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, scanErr(err, "music session", id)
	}
	return session, nil
}

// ListByCheckpoint returns a checkpoint's sessions ordered by played_at ascending.
func (r *MusicSessionRepository) ListByCheckpoint(ctx context.Context, checkpointID string) ([]*models.MusicSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM music_sessions ms
		WHERE ms.checkpoint_id = ?
		ORDER BY ms.played_at ASC, ms.sequence ASC
	`
	return r.query(ctx, query, checkpointID)
}

// ListByQuest returns every session under a quest's checkpoints ordered by played_at ascending.
func (r *MusicSessionRepository) ListByQuest(ctx context.Context, questID string) ([]*models.MusicSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM music_sessions ms
		JOIN checkpoints c ON c.id = ms.checkpoint_id
		WHERE c.quest_id = ?
		ORDER BY ms.played_at ASC, ms.sequence ASC
	`
	return r.query(ctx, query, questID)
}

// Latest returns the most recent session recorded under a quest.
func (r *MusicSessionRepository) Latest(ctx context.Context, questID string) (*models.MusicSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM music_sessions ms
		JOIN checkpoints c ON c.id = ms.checkpoint_id
		WHERE c.quest_id = ?
		ORDER BY ms.played_at DESC, ms.sequence DESC
		LIMIT 1
	`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, questID))
	if err != nil {
		return nil, scanErr(err, "music session for quest", questID)
	}
	return session, nil
}

// CountByQuest counts the sessions under a quest's checkpoints.
func (r *MusicSessionRepository) CountByQuest(ctx context.Context, questID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM music_sessions ms
		JOIN checkpoints c ON c.id = ms.checkpoint_id
		WHERE c.quest_id = ?
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, questID).Scan(&count); err != nil {
		return 0, internal("count music sessions", err)
	}
	return count, nil
}

func (r *MusicSessionRepository) query(ctx context.Context, query string, args ...any) ([]*models.MusicSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internal("query music sessions", err)
	}
	defer rows.Close()

	sessions := []*models.MusicSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, internal("scan music session", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, internal("iterate music sessions", err)
	}

	return sessions, nil
}

func scanSession(row scanner) (*models.MusicSession, error) {
	var session models.MusicSession

	err := row.Scan(
		&session.ID,
		&session.Sequence,
		&session.CheckpointID,
		&session.TrackName,
		&session.Artist,
		&session.Album,
		&session.ExternalTrackRef,
		&session.PlayedAt,
		&session.DurationMs,
	)
	if err != nil {
		return nil, err
	}

	session.PlayedAt = session.PlayedAt.UTC()
	return &session, nil
}
