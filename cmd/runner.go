package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/questsync/internal/ledger"
	"github.com/desertthunder/questsync/internal/repositories"
	"github.com/desertthunder/questsync/internal/services"
	"github.com/desertthunder/questsync/internal/shared"
	"github.com/desertthunder/questsync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    services.Player
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	engine     *tasks.QuestEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.Player
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Engine     *tasks.QuestEngine // skips opening the configured database
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(services.DefaultAPIURL, opts.HTTPClient)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		engine:     opts.Engine,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, questCommand, checkpointCommand, musicCommand, userCommand,
		spotifyCommand, trackerCommand, serveCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, including the one used by the playback bridge.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if s, ok := r.spotify.(*services.SpotifyService); ok {
		s.SetLogger(l)
	}
}

// Load reads the config file named by --config, applies the log level, and builds the Spotify bridge.
//
// A missing config file is not an error; the embedded defaults are used instead.
// QUESTSYNC_* environment variables override either.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}
	if err := shared.ApplyEnv(r.config); err != nil {
		return ctx, err
	}

	level, err := shared.ParseLogLevel(r.config.Log.Level)
	if err != nil {
		return ctx, err
	}
	if cmd.Bool("debug") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	if r.spotify == nil {
		r.spotify = r.newSpotify(ctx)
	}
	return ctx, nil
}

// newSpotify returns nil when no client credentials are configured.
func (r *Runner) newSpotify(ctx context.Context) services.Player {
	creds := r.config.Credentials.Spotify
	svc, err := services.NewSpotifyService(creds.Credentials())
	if err != nil {
		r.logger.Debug("spotify bridge disabled", "reason", err)
		return nil
	}
	svc.SetLogger(r.logger)

	if token := creds.Token(); token != nil {
		if err := svc.OAuthenticate(ctx, token); err != nil {
			r.logger.Warn("stored spotify token rejected", "error", err)
		}
	}
	return svc
}

// Close persists a refreshed Spotify token and closes the database.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if auth, ok := r.spotify.(services.OAuthService); ok {
		if token := auth.Token(); token != nil && token.AccessToken != r.config.Credentials.Spotify.AccessToken {
			if err := r.saveTokens(token); err != nil {
				r.logger.Warn("failed to persist refreshed token", "error", err)
			}
		}
	}

	if r.db != nil {
		err := r.db.Close()
		r.db, r.engine = nil, nil
		return err
	}
	return nil
}

// Engine opens the configured database on first use, applying pending migrations.
func (r *Runner) Engine(ctx context.Context) (*tasks.QuestEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	path := r.config.Database.Path
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, path, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store := repositories.NewStore(db)
	ldg, err := ledger.New(ctx, store.Stats, r.logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	opts := tasks.EngineOpts{
		Logger:         r.logger,
		PlaylistPrefix: r.config.Tracker.PlaylistPrefix,
	}
	if r.spotify != nil {
		opts.Bridge = r.spotify
	}

	r.db = db
	r.engine = tasks.NewQuestEngine(store, ldg, opts)
	return r.engine, nil
}

// requireSpotify returns the bridge or an error telling the user how to configure it.
func (r *Runner) requireSpotify(ctx context.Context) (services.Player, error) {
	if r.spotify == nil {
		return nil, fmt.Errorf("%w: set credentials.spotify in %s", shared.ErrServiceUnavailable, r.configPath)
	}
	if !r.spotify.IsAuthenticated(ctx) {
		return nil, fmt.Errorf("%w: run `questsync spotify auth` first", shared.ErrNotAuthenticated)
	}
	return r.spotify, nil
}

// saveTokens stores token in the config and writes it to configPath when one is set.
//
// A nil token clears the stored tokens.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrInvalidConfig)
	}

	r.config.Credentials.Spotify.Update(token)
	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
