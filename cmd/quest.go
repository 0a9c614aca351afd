package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/questsync/internal/formatter"
	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
	"github.com/desertthunder/questsync/internal/tasks"
)

// requireArg returns the named positional argument or ErrMissingArgument.
func requireArg(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(cmd.StringArg(name))
	if v == "" {
		return "", fmt.Errorf("%w: <%s>", shared.ErrMissingArgument, name)
	}
	return v, nil
}

// emit writes v as JSON when --json is set and calls plain otherwise.
func (r *Runner) emit(cmd *cli.Command, v any, plain func() error) error {
	if cmd.Bool("json") {
		return r.writeJSON(v, cmd.Bool("pretty"))
	}
	return plain()
}

func (r *Runner) printQuest(q *models.Quest) {
	marker := ""
	if q.IsSyncing {
		marker = " ♪ syncing"
	}
	r.writePlain("%s [%s]%s\n", q.Title, q.Status, marker)
	r.writePlain("  ID: %s\n", q.ID)
	if d, ok := q.Description.Get(); ok && d != "" {
		r.writePlain("  Description: %s\n", d)
	}
	r.writePlain("  Created: %s\n", q.CreatedAt.Local().Format("2006-01-02 15:04"))
	if at, ok := q.CompletedAt.Get(); ok {
		r.writePlain("  Completed: %s\n", at.Local().Format("2006-01-02 15:04"))
	}
	if q.LootRetrieved {
		r.writePlain("  Loot: retrieved\n")
	}
}

func (r *Runner) printCheckpoints(checkpoints []*models.Checkpoint) {
	if len(checkpoints) == 0 {
		r.writePlain("  No checkpoints\n")
		return
	}
	for _, cp := range checkpoints {
		check := " "
		if cp.Completed {
			check = "x"
		}
		r.writePlain("  %d. [%s] %s (%s)\n", cp.OrderIndex, check, cp.Title, cp.ID)
	}
}

// QuestCreate creates a quest.
func (r *Runner) QuestCreate(ctx context.Context, cmd *cli.Command) error {
	title, err := requireArg(cmd, "title")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	description := models.None[string]()
	if cmd.IsSet("description") {
		description = models.Some(cmd.String("description"))
	}

	quest, err := engine.CreateQuest(ctx, title, description)
	if err != nil {
		return err
	}
	return r.emit(cmd, quest, func() error {
		r.writePlain("✓ Quest created\n")
		r.printQuest(quest)
		return nil
	})
}

// QuestList lists quests, optionally filtered by --status.
func (r *Runner) QuestList(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	quests, err := engine.ListQuests(ctx, cmd.String("status"))
	if err != nil {
		return err
	}
	return r.emit(cmd, quests, func() error {
		if len(quests) == 0 {
			return r.writePlain("No quests found\n")
		}
		r.writePlain("Found %d quests:\n\n", len(quests))
		for _, q := range quests {
			r.printQuest(q)
			r.writePlain("\n")
		}
		return nil
	})
}

// QuestShow prints a quest with its checkpoints.
func (r *Runner) QuestShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	details, err := engine.QuestDetails(ctx, id)
	if err != nil {
		return err
	}
	return r.emit(cmd, details, func() error {
		r.printQuest(details.Quest)
		r.writePlain("\nCheckpoints:\n")
		r.printCheckpoints(details.Checkpoints)
		return nil
	})
}

// QuestEdit changes only the fields whose flags were given.
func (r *Runner) QuestEdit(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	var patch models.QuestPatch
	if cmd.IsSet("title") {
		patch.Title = models.Some(cmd.String("title"))
	}
	if cmd.IsSet("description") {
		patch.Description = models.Some(cmd.String("description"))
	}
	if patch.Empty() {
		return fmt.Errorf("%w: pass --title or --description", shared.ErrMissingArgument)
	}

	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}
	quest, err := engine.EditQuest(ctx, id, patch)
	if err != nil {
		return err
	}
	return r.emit(cmd, quest, func() error {
		r.writePlain("✓ Quest updated\n")
		r.printQuest(quest)
		return nil
	})
}

// QuestStatus sets a quest's status. Completing a quest awards XP.
func (r *Runner) QuestStatus(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	status, err := requireArg(cmd, "status")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	quest, err := engine.SetStatus(ctx, id, status)
	if err != nil {
		return err
	}
	return r.emit(cmd, quest, func() error {
		r.writePlain("✓ %s is now %s\n", quest.Title, quest.Status)
		if quest.Status == models.StatusCompleted {
			stats, err := engine.UserStats(ctx)
			if err != nil {
				return err
			}
			r.writePlain("  Level %d • %d XP\n", stats.Level, stats.TotalXP)
		}
		return nil
	})
}

// QuestSync makes a quest the syncing quest, or stops it with --off.
func (r *Runner) QuestSync(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	quest, err := engine.SetSyncing(ctx, id, !cmd.Bool("off"))
	if err != nil {
		return err
	}
	return r.emit(cmd, quest, func() error {
		if quest.IsSyncing {
			return r.writePlain("✓ Syncing %s\n", quest.Title)
		}
		return r.writePlain("✓ Stopped syncing %s\n", quest.Title)
	})
}

// QuestLoot marks a quest's loot as retrieved.
func (r *Runner) QuestLoot(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	quest, err := engine.RetrieveLoot(ctx, id)
	if err != nil {
		return err
	}
	return r.emit(cmd, quest, func() error {
		return r.writePlain("✓ Loot retrieved for %s\n", quest.Title)
	})
}

// QuestDelete removes a quest with everything under it.
func (r *Runner) QuestDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	if err := engine.DeleteQuest(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Quest %s deleted\n", id)
}

// QuestStats prints checkpoint progress and listening totals.
func (r *Runner) QuestStats(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	stats, err := engine.Stats(ctx, id)
	if err != nil {
		return err
	}
	return r.emit(cmd, stats, func() error {
		r.writePlainHeader(stats.Quest.Title)
		r.writePlain("Checkpoints: %d/%d (%.1f%%)\n", stats.CompletedCheckpoints, stats.TotalCheckpoints, stats.ProgressPercentage)
		r.writePlain("Songs played: %d\n", stats.TotalSongsPlayed)
		r.writePlain("Listening time: %.1f minutes\n", stats.TotalListeningMinutes)
		return nil
	})
}

// QuestPlaylist renders a quest's playlist to stdout or writes it with --output.
func (r *Runner) QuestPlaylist(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	playlist, err := engine.Playlist(ctx, id)
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		return r.writePlaylistFile(playlist, format, path)
	}

	data, err := formatter.Export(playlist, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlaylistFile(playlist *models.QuestPlaylist, format, path string) error {
	switch format {
	case models.FormatCSV:
		res, err := formatter.WriteCSVExport(playlist, strings.TrimSuffix(path, ".csv"))
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s and %s\n", res.TracksFile, res.MetadataFile)
	case models.FormatMarkdown:
		res, err := formatter.WriteMarkdownExport(playlist, path)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", strings.Join(res.Files, ", "))
	case models.FormatText:
		written, err := formatter.WriteTextExport(playlist, path)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", written)
	default:
		written, err := formatter.WriteJSONExport(playlist, path)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", written)
	}
}

// QuestExport creates a Spotify playlist from a quest's tracks.
func (r *Runner) QuestExport(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	if _, err := r.requireSpotify(ctx); err != nil {
		return err
	}
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 4)
	result, err := engine.ExportToSpotify(ctx, id, cmd.String("name"), progress)
	close(progress)
	if err != nil {
		return err
	}

	for update := range progress {
		r.logger.Debug(update.Message, "phase", update.Phase.String(), "step", update.Step, "total", update.Total)
	}

	if !result.Created {
		return fmt.Errorf("%w: spotify did not create playlist %q", shared.ErrAPIRequest, result.Name)
	}
	return r.emit(cmd, result, func() error {
		r.writePlain("✓ Created playlist %s with %d tracks\n", result.Name, result.TrackCount)
		r.writePlain("  %s\n", result.URL)
		return nil
	})
}

// QuestExportAll writes playlist files for many quests with a worker pool.
func (r *Runner) QuestExportAll(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	opts := tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output-dir"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.ExportPlaylist:
				r.logger.Info(update.Message, "step", update.Step, "total", update.Total)
			default:
				r.logger.Debug(update.Message, "phase", update.Phase.String())
			}
		}
	}()

	result, err := engine.BulkExport(ctx, progress, cmd.Args().Slice(), opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	return r.emit(cmd, result, func() error {
		r.writePlainHeader("Export complete")
		r.writePlain("Quests: %d (%d ok, %d failed)\n", result.TotalQuests, result.SuccessfulExports, result.FailedExports)
		r.writePlain("Directory: %s\n", result.OutputDirectory)
		r.writePlain("Manifest: %s\n", result.ManifestPath)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  ✗ %s: %v\n", res.QuestID, res.Error)
			}
		}
		return nil
	})
}
