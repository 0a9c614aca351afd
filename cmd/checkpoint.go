package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
)

// CheckpointAdd adds a checkpoint. Without --order it goes after the last one.
func (r *Runner) CheckpointAdd(ctx context.Context, cmd *cli.Command) error {
	questID, err := requireArg(cmd, "quest-id")
	if err != nil {
		return err
	}
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	order := cmd.Int("order")
	if !cmd.IsSet("order") {
		existing, err := engine.ListCheckpoints(ctx, questID)
		if err != nil {
			return err
		}
		order = 1
		for _, cp := range existing {
			order = max(order, cp.OrderIndex+1)
		}
	}

	checkpoint, err := engine.AddCheckpoint(ctx, questID, title, order)
	if err != nil {
		return err
	}
	return r.emit(cmd, checkpoint, func() error {
		return r.writePlain("✓ Checkpoint %d. %s added (%s)\n", checkpoint.OrderIndex, checkpoint.Title, checkpoint.ID)
	})
}

// CheckpointList lists a quest's checkpoints in order.
func (r *Runner) CheckpointList(ctx context.Context, cmd *cli.Command) error {
	questID, err := requireArg(cmd, "quest-id")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	checkpoints, err := engine.ListCheckpoints(ctx, questID)
	if err != nil {
		return err
	}
	return r.emit(cmd, checkpoints, func() error {
		r.printCheckpoints(checkpoints)
		return nil
	})
}

// CheckpointEdit changes only the fields whose flags were given.
func (r *Runner) CheckpointEdit(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	var patch models.CheckpointPatch
	if cmd.IsSet("title") {
		patch.Title = models.Some(cmd.String("title"))
	}
	if cmd.IsSet("order") {
		patch.OrderIndex = models.Some(cmd.Int("order"))
	}
	if patch.Empty() {
		return fmt.Errorf("%w: pass --title or --order", shared.ErrMissingArgument)
	}

	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}
	checkpoint, err := engine.EditCheckpoint(ctx, id, patch)
	if err != nil {
		return err
	}
	return r.emit(cmd, checkpoint, func() error {
		return r.writePlain("✓ Checkpoint %d. %s updated\n", checkpoint.OrderIndex, checkpoint.Title)
	})
}

// CheckpointComplete completes a checkpoint. Repeating it changes nothing.
func (r *Runner) CheckpointComplete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	before, err := engine.UserStats(ctx)
	if err != nil {
		return err
	}
	checkpoint, err := engine.CompleteCheckpoint(ctx, id)
	if err != nil {
		return err
	}
	after, err := engine.UserStats(ctx)
	if err != nil {
		return err
	}

	return r.emit(cmd, checkpoint, func() error {
		if after.TotalXP == before.TotalXP {
			return r.writePlain("Checkpoint %s was already completed\n", checkpoint.Title)
		}
		r.writePlain("✓ %s completed (+%d XP)\n", checkpoint.Title, after.TotalXP-before.TotalXP)
		return r.writePlain("  Level %d • %d/%d XP to next level\n", after.Level, after.XPIntoLevel, models.XPPerLevel)
	})
}

// CheckpointDelete removes a checkpoint with its music.
func (r *Runner) CheckpointDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	if err := engine.DeleteCheckpoint(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Checkpoint %s deleted\n", id)
}

// CheckpointMusic lists the sessions recorded on a checkpoint.
func (r *Runner) CheckpointMusic(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	music, err := engine.CheckpointMusic(ctx, id)
	if err != nil {
		return err
	}
	return r.emit(cmd, music, func() error {
		r.writePlain("%s: %d songs\n", music.Checkpoint.Title, music.TotalSongs)
		for i, s := range music.Sessions {
			r.writePlain("%d. %s - %s [%s]\n", i+1, s.Artist, s.TrackName, shared.FormatDuration(s.DurationMs))
		}
		return nil
	})
}

// MusicTrack records a played track by hand.
func (r *Runner) MusicTrack(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	session := &models.MusicSession{
		CheckpointID:     cmd.String("checkpoint"),
		TrackName:        cmd.String("name"),
		Artist:           cmd.String("artist"),
		ExternalTrackRef: cmd.String("uri"),
		DurationMs:       cmd.Int("duration-ms"),
	}
	if cmd.IsSet("album") {
		session.Album = models.Some(cmd.String("album"))
	}

	session, err = engine.RecordSession(ctx, session)
	if err != nil {
		return err
	}
	return r.emit(cmd, session, func() error {
		return r.writePlain("✓ Recorded %s - %s\n", session.Artist, session.TrackName)
	})
}

// UserStats prints the XP ledger.
func (r *Runner) UserStats(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	stats, err := engine.UserStats(ctx)
	if err != nil {
		return err
	}
	return r.emit(cmd, stats, func() error {
		r.writePlainHeader(fmt.Sprintf("Level %d", stats.Level))
		r.writePlain("Total XP: %d\n", stats.TotalXP)
		r.writePlain("Next level: %d/%d XP\n", stats.XPIntoLevel, models.XPPerLevel)
		r.writePlain("Quests completed: %d\n", stats.QuestsCompleted)
		return nil
	})
}
