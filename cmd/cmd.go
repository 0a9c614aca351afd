// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/questsync/internal/services"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true},
	}
}

func withJSON(flags ...cli.Flag) []cli.Flag {
	return append(flags, jsonFlags()...)
}

func idArg(name string) []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: name}}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config file to --config",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// questCommand handles quest lifecycle, stats, playlists, and exports.
func questCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "quest",
		Aliases: []string{"q"},
		Usage:   "Manage quests",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a quest",
				Arguments: idArg("title"),
				Flags: withJSON(
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Quest description"},
				),
				Action: r.QuestCreate,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List quests, newest first",
				Flags: withJSON(
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status (active, paused, completed)"},
				),
				Action: r.QuestList,
			},
			{
				Name:      "show",
				Usage:     "Show a quest with its checkpoints",
				Arguments: idArg("id"),
				Flags:     jsonFlags(),
				Action:    r.QuestShow,
			},
			{
				Name:      "edit",
				Usage:     "Edit a quest's title or description",
				Arguments: idArg("id"),
				Flags: withJSON(
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
				),
				Action: r.QuestEdit,
			},
			{
				Name:  "status",
				Usage: "Set a quest's status (active, paused, completed)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "status"},
				},
				Flags:  jsonFlags(),
				Action: r.QuestStatus,
			},
			{
				Name:      "sync",
				Usage:     "Make a quest the syncing quest",
				Arguments: idArg("id"),
				Flags: withJSON(
					&cli.BoolFlag{Name: "off", Usage: "Stop syncing instead"},
				),
				Action: r.QuestSync,
			},
			{
				Name:      "loot",
				Usage:     "Retrieve a quest's loot",
				Arguments: idArg("id"),
				Flags:     jsonFlags(),
				Action:    r.QuestLoot,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a quest with its checkpoints and music",
				Arguments: idArg("id"),
				Action:    r.QuestDelete,
			},
			{
				Name:      "stats",
				Usage:     "Show checkpoint progress and listening time",
				Arguments: idArg("id"),
				Flags:     jsonFlags(),
				Action:    r.QuestStats,
			},
			{
				Name:      "playlist",
				Usage:     "Show the deduplicated playlist of a quest",
				Arguments: idArg("id"),
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format (json, csv, markdown, txt)", Value: "txt"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to a file (a directory for markdown) instead of stdout"},
				},
				Action: r.QuestPlaylist,
			},
			{
				Name:      "export",
				Usage:     "Create a Spotify playlist from a quest's tracks",
				Arguments: idArg("id"),
				Flags: withJSON(
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Playlist name (default: \"<prefix> <quest title>\")"},
				),
				Action: r.QuestExport,
			},
			{
				Name:      "export-all",
				Usage:     "Write playlist files for every quest (or the given quest IDs)",
				ArgsUsage: "[quest-id...]",
				Flags: withJSON(
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format (json, csv, markdown, txt)", Value: "json"},
					&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Output directory (default: questsync_export_<timestamp>)"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent writers (max 10)", Value: 5},
					&cli.FloatFlag{Name: "rate", Usage: "Playlists built per second", Value: 20},
				),
				Action: r.QuestExportAll,
			},
		},
	}
}

// checkpointCommand handles checkpoints of a quest.
func checkpointCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "checkpoint",
		Aliases: []string{"cp"},
		Usage:   "Manage checkpoints",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a checkpoint to a quest",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "quest-id"},
					&cli.StringArg{Name: "title"},
				},
				Flags: withJSON(
					&cli.IntFlag{Name: "order", Aliases: []string{"o"}, Usage: "Order index (default: after the last checkpoint)"},
				),
				Action: r.CheckpointAdd,
			},
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List a quest's checkpoints in order",
				Arguments: idArg("quest-id"),
				Flags:     jsonFlags(),
				Action:    r.CheckpointList,
			},
			{
				Name:      "edit",
				Usage:     "Edit a checkpoint's title or order",
				Arguments: idArg("id"),
				Flags: withJSON(
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
					&cli.IntFlag{Name: "order", Aliases: []string{"o"}, Usage: "New order index"},
				),
				Action: r.CheckpointEdit,
			},
			{
				Name:      "complete",
				Aliases:   []string{"done"},
				Usage:     "Complete a checkpoint",
				Arguments: idArg("id"),
				Flags:     jsonFlags(),
				Action:    r.CheckpointComplete,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a checkpoint and its music",
				Arguments: idArg("id"),
				Action:    r.CheckpointDelete,
			},
			{
				Name:      "music",
				Usage:     "List music played during a checkpoint",
				Arguments: idArg("id"),
				Flags:     jsonFlags(),
				Action:    r.CheckpointMusic,
			},
		},
	}
}

// musicCommand records music sessions by hand.
func musicCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "music",
		Usage: "Record music sessions",
		Commands: []*cli.Command{
			{
				Name:  "track",
				Usage: "Record a played track on a checkpoint",
				Flags: withJSON(
					&cli.StringFlag{Name: "checkpoint", Aliases: []string{"c"}, Usage: "Checkpoint ID", Required: true},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Track name", Required: true},
					&cli.StringFlag{Name: "artist", Aliases: []string{"a"}, Usage: "Artist", Required: true},
					&cli.StringFlag{Name: "album", Usage: "Album"},
					&cli.StringFlag{Name: "uri", Aliases: []string{"u"}, Usage: "External track reference (spotify:track:...)", Required: true},
					&cli.IntFlag{Name: "duration-ms", Usage: "Track duration in milliseconds"},
				),
				Action: r.MusicTrack,
			},
		},
	}
}

// userCommand reports the XP ledger.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "User progress",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show XP, level, and completed quests",
				Flags:  jsonFlags(),
				Action: r.UserStats,
			},
		},
	}
}

// spotifyCommand handles authentication and playback controls.
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify authentication and playback",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyAuth,
			},
			{
				Name:   "status",
				Usage:  "Show authentication state and account",
				Flags:  jsonFlags(),
				Action: r.SpotifyStatus,
			},
			{
				Name:   "current",
				Usage:  "Show the track playing now",
				Flags:  jsonFlags(),
				Action: r.SpotifyCurrent,
			},
			{Name: "play", Usage: "Resume playback", Action: r.SpotifyControl("play")},
			{Name: "pause", Usage: "Pause playback", Action: r.SpotifyControl("pause")},
			{Name: "next", Usage: "Skip to the next track", Action: r.SpotifyControl("next")},
			{Name: "previous", Aliases: []string{"prev"}, Usage: "Go to the previous track", Action: r.SpotifyControl("previous")},
			{
				Name:      "volume",
				Usage:     "Set volume (0-100)",
				Arguments: idArg("percent"),
				Action:    r.SpotifyVolume,
			},
			{
				Name:      "devices",
				Usage:     "List available playback devices",
				Flags:     jsonFlags(),
				Action:    r.SpotifyDevices,
			},
			{
				Name:      "transfer",
				Usage:     "Move playback to a device",
				Arguments: idArg("device-id"),
				Action:    r.SpotifyTransfer,
			},
			{
				Name:   "logout",
				Usage:  "Forget stored Spotify tokens",
				Action: r.SpotifyLogout,
			},
		},
	}
}

// trackerCommand runs the now-playing tracker in the foreground.
func trackerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Record what Spotify plays into the syncing quest",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Poll Spotify until interrupted",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Usage: "Poll interval (default from config)"},
				},
				Action: r.TrackerRun,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config)"},
			&cli.BoolFlag{Name: "track", Aliases: []string{"t"}, Usage: "Run the tracker alongside the server"},
		},
		Action: r.Serve,
	}
}

// apiCommand is a client for a running questsync server.
func apiCommand(r *Runner) *cli.Command {
	urlFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "url", Usage: "Server base URL", Value: services.DefaultAPIURL}
	}
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to a running questsync server",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a path and print the response",
				Arguments: idArg("path"),
				Flags: []cli.Flag{
					urlFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output compact JSON"},
				},
				Action: r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST a JSON body to a path",
				Arguments: idArg("path"),
				Flags: []cli.Flag{
					urlFlag(),
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "JSON body to send"},
				},
				Action: r.APIPost,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for the interactive quest board.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive quest board",
		Action:  r.TUI,
	}
}
