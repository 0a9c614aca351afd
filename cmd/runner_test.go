package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/questsync/internal/ledger"
	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/repositories"
	"github.com/desertthunder/questsync/internal/server"
	"github.com/desertthunder/questsync/internal/services"
	"github.com/desertthunder/questsync/internal/shared"
	tu "github.com/desertthunder/questsync/internal/testing"
	"github.com/desertthunder/questsync/internal/tasks"
)

func setupTestEngine(t *testing.T) *tasks.QuestEngine {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	store := repositories.NewStore(db)
	ldg, err := ledger.New(context.Background(), store.Stats, nil)
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	return tasks.NewQuestEngine(store, ldg, tasks.EngineOpts{})
}

func setupTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Engine: setupTestEngine(t),
		Logger: log.New(io.Discard),
		Output: output,
	})
	return runner, output
}

// runCLI runs args against a fresh command tree and returns what was written.
func runCLI(t *testing.T, r *Runner, out *bytes.Buffer, args ...string) (string, error) {
	t.Helper()
	out.Reset()
	app := &cli.Command{
		Name:     "questsync",
		Writer:   io.Discard,
		Commands: r.register(),
	}
	err := app.Run(context.Background(), append([]string{"questsync"}, args...))
	return out.String(), err
}

func mustRunJSON[T any](t *testing.T, r *Runner, out *bytes.Buffer, args ...string) T {
	t.Helper()
	text, err := runCLI(t, r, out, append(args, "--json")...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatalf("failed to decode output of %v: %v\n%s", args, err, text)
	}
	return v
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := &services.APIService{}
			engine := setupTestEngine(t)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
				Engine:     engine,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if got, _ := runner.Engine(context.Background()); got != engine {
				t.Error("expected the provided engine to be reused")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.api == nil {
				t.Error("expected a default API client")
			}
			if runner.spotify != nil {
				t.Error("expected no spotify bridge before Load")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		names := map[string]bool{}
		for _, c := range runner.register() {
			names[c.Name] = true
		}
		for _, want := range []string{"setup", "quest", "checkpoint", "music", "user", "spotify", "tracker", "serve", "api", "tui"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("formats text", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writePlainln wraps in newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("done")
			if output.String() != "\ndone\n" {
				t.Errorf("expected %q, got %q", "\ndone\n", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writePlain("text"); err == nil {
				t.Fatal("expected error from failing writer")
			}
		})
	})

	t.Run("saveTokens", func(t *testing.T) {
		token := &oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour),
		}

		t.Run("writes the token to the config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			runner := NewRunner(RunnerOpts{ConfigPath: path})

			if err := runner.saveTokens(token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			tu.AssertFileExists(t, path)

			loaded, err := shared.LoadConfig(path)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loaded.Credentials.Spotify.AccessToken != "access" {
				t.Errorf("expected access token to persist, got %q", loaded.Credentials.Spotify.AccessToken)
			}
		})

		t.Run("nil config", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			runner.config = nil

			err := runner.saveTokens(token)
			if !errors.Is(err, shared.ErrInvalidConfig) || !strings.Contains(err.Error(), "config is nil") {
				t.Errorf("expected config is nil error, got %v", err)
			}
		})

		t.Run("empty path only updates memory", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if err := runner.saveTokens(token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Credentials.Spotify.AccessToken != "access" {
				t.Error("expected in-memory config to hold the token")
			}
		})

		t.Run("save failure", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing", "dir", "config.toml")
			runner := NewRunner(RunnerOpts{ConfigPath: path})

			err := runner.saveTokens(token)
			if err == nil || !strings.Contains(err.Error(), "failed to save config") {
				t.Errorf("expected save error, got %v", err)
			}
		})

		t.Run("nil token clears stored tokens", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			runner.saveTokens(token)

			if err := runner.saveTokens(nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Credentials.Spotify.Token() != nil {
				t.Error("expected tokens to be cleared")
			}
		})
	})

	t.Run("requireSpotify", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		if _, err := runner.requireSpotify(context.Background()); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("quest lifecycle", func(t *testing.T) {
		runner, out := setupTestRunner(t)

		quest := mustRunJSON[models.Quest](t, runner, out, "quest", "create", "Ship the release", "-d", "v1")
		if quest.ID == "" || quest.Status != models.StatusActive {
			t.Fatalf("unexpected quest: %+v", quest)
		}

		text, err := runCLI(t, runner, out, "quest", "list")
		if err != nil {
			t.Fatalf("quest list failed: %v", err)
		}
		if !strings.Contains(text, "Found 1 quests") || !strings.Contains(text, "Ship the release") {
			t.Errorf("unexpected list output: %s", text)
		}

		edited := mustRunJSON[models.Quest](t, runner, out, "quest", "edit", quest.ID, "--title", "Ship it")
		if edited.Title != "Ship it" {
			t.Errorf("expected edited title, got %q", edited.Title)
		}
		if d, _ := edited.Description.Get(); d != "v1" {
			t.Errorf("expected description to survive the edit, got %q", d)
		}

		if _, err := runCLI(t, runner, out, "quest", "edit", quest.ID); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument for an empty edit, got %v", err)
		}

		text, err = runCLI(t, runner, out, "quest", "delete", quest.ID)
		if err != nil {
			t.Fatalf("quest delete failed: %v", err)
		}
		if !strings.Contains(text, "deleted") {
			t.Errorf("unexpected delete output: %s", text)
		}

		if _, err := runCLI(t, runner, out, "quest", "show", quest.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("missing argument", func(t *testing.T) {
		runner, out := setupTestRunner(t)

		if _, err := runCLI(t, runner, out, "quest", "show"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("checkpoints award XP once", func(t *testing.T) {
		runner, out := setupTestRunner(t)

		quest := mustRunJSON[models.Quest](t, runner, out, "quest", "create", "Read a book")
		first := mustRunJSON[models.Checkpoint](t, runner, out, "checkpoint", "add", quest.ID, "Chapter 1")
		second := mustRunJSON[models.Checkpoint](t, runner, out, "checkpoint", "add", quest.ID, "Chapter 2")
		if second.OrderIndex <= first.OrderIndex {
			t.Errorf("expected auto order after %d, got %d", first.OrderIndex, second.OrderIndex)
		}

		text, err := runCLI(t, runner, out, "checkpoint", "complete", first.ID)
		if err != nil {
			t.Fatalf("checkpoint complete failed: %v", err)
		}
		if !strings.Contains(text, "completed (+5 XP)") {
			t.Errorf("unexpected completion output: %s", text)
		}

		text, err = runCLI(t, runner, out, "checkpoint", "complete", first.ID)
		if err != nil {
			t.Fatalf("repeat complete failed: %v", err)
		}
		if !strings.Contains(text, "already completed") {
			t.Errorf("expected repeat completion to be a no-op, got %s", text)
		}

		stats := mustRunJSON[models.QuestStats](t, runner, out, "quest", "stats", quest.ID)
		if stats.CompletedCheckpoints != 1 || stats.TotalCheckpoints != 2 {
			t.Errorf("expected 1/2 checkpoints, got %d/%d", stats.CompletedCheckpoints, stats.TotalCheckpoints)
		}
		if stats.ProgressPercentage != 50 {
			t.Errorf("expected 50%% progress, got %v", stats.ProgressPercentage)
		}
	})

	t.Run("completing a quest updates user stats", func(t *testing.T) {
		runner, out := setupTestRunner(t)

		quest := mustRunJSON[models.Quest](t, runner, out, "quest", "create", "Run a 10k")
		cp := mustRunJSON[models.Checkpoint](t, runner, out, "checkpoint", "add", quest.ID, "5k")
		if _, err := runCLI(t, runner, out, "checkpoint", "complete", cp.ID); err != nil {
			t.Fatalf("checkpoint complete failed: %v", err)
		}

		completed := mustRunJSON[models.Quest](t, runner, out, "quest", "status", quest.ID, "completed")
		if completed.Status != models.StatusCompleted || !completed.CompletedAt.Present() {
			t.Errorf("expected completed quest with timestamp, got %+v", completed)
		}

		stats := mustRunJSON[models.UserStats](t, runner, out, "user", "stats")
		if want := ledger.CheckpointXP + ledger.QuestCompletionXP; stats.TotalXP != want {
			t.Errorf("expected %d XP, got %d", want, stats.TotalXP)
		}
		if stats.QuestsCompleted != 1 {
			t.Errorf("expected 1 quest completed, got %d", stats.QuestsCompleted)
		}

		if _, err := runCLI(t, runner, out, "quest", "status", quest.ID, "archived"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for an unknown status, got %v", err)
		}
	})

	t.Run("only one quest syncs", func(t *testing.T) {
		runner, out := setupTestRunner(t)

		a := mustRunJSON[models.Quest](t, runner, out, "quest", "create", "A")
		b := mustRunJSON[models.Quest](t, runner, out, "quest", "create", "B")
		mustRunJSON[models.Quest](t, runner, out, "quest", "sync", a.ID)
		mustRunJSON[models.Quest](t, runner, out, "quest", "sync", b.ID)

		quests := mustRunJSON[[]models.Quest](t, runner, out, "quest", "list")
		syncing := 0
		for _, q := range quests {
			if q.IsSyncing {
				syncing++
				if q.ID != b.ID {
					t.Errorf("expected %s to be syncing, got %s", b.ID, q.ID)
				}
			}
		}
		if syncing != 1 {
			t.Errorf("expected exactly one syncing quest, got %d", syncing)
		}

		off := mustRunJSON[models.Quest](t, runner, out, "quest", "sync", b.ID, "--off")
		if off.IsSyncing {
			t.Error("expected --off to stop syncing")
		}
	})

	t.Run("music and playlist", func(t *testing.T) {
		runner, out := setupTestRunner(t)

		quest := mustRunJSON[models.Quest](t, runner, out, "quest", "create", "Focus")
		cp := mustRunJSON[models.Checkpoint](t, runner, out, "checkpoint", "add", quest.ID, "Deep work")

		for range 2 {
			if _, err := runCLI(t, runner, out, "music", "track",
				"--checkpoint", cp.ID, "--name", "Windowlicker", "--artist", "Aphex Twin",
				"--uri", "spotify:track:abc", "--duration-ms", "360000",
			); err != nil {
				t.Fatalf("music track failed: %v", err)
			}
		}

		text, err := runCLI(t, runner, out, "checkpoint", "music", cp.ID)
		if err != nil {
			t.Fatalf("checkpoint music failed: %v", err)
		}
		if !strings.Contains(text, "2 songs") {
			t.Errorf("expected both sessions listed, got %s", text)
		}

		text, err = runCLI(t, runner, out, "quest", "playlist", quest.ID, "--format", "csv")
		if err != nil {
			t.Fatalf("quest playlist failed: %v", err)
		}
		if strings.Count(text, "Windowlicker") != 1 {
			t.Errorf("expected the track once in the playlist, got %s", text)
		}

		dir := t.TempDir()
		path := filepath.Join(dir, "focus.json")
		if _, err := runCLI(t, runner, out, "quest", "playlist", quest.ID, "--format", "json", "--output", path); err != nil {
			t.Fatalf("quest playlist --output failed: %v", err)
		}
		if !strings.Contains(tu.MustReadFile(t, path), "spotify:track:abc") {
			t.Error("expected the playlist file to contain the track reference")
		}

		if _, err := runCLI(t, runner, out, "quest", "playlist", quest.ID, "--format", "xml"); err == nil {
			t.Error("expected an error for an unknown format")
		}
	})

	t.Run("spotify commands need a bridge", func(t *testing.T) {
		runner, out := setupTestRunner(t)

		for _, args := range [][]string{
			{"spotify", "play"},
			{"tracker", "run"},
			{"quest", "export", "some-id"},
		} {
			if _, err := runCLI(t, runner, out, args...); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("%v: expected ErrServiceUnavailable, got %v", args, err)
			}
		}
	})

	t.Run("api client", func(t *testing.T) {
		runner, out := setupTestRunner(t)
		engine, _ := runner.Engine(context.Background())
		srv := httptest.NewServer(server.NewAPI(engine, server.APIOpts{Logger: log.New(io.Discard)}).Handler())
		defer srv.Close()

		text, err := runCLI(t, runner, out, "api", "get", "/health", "--url", srv.URL)
		if err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if !strings.Contains(text, "healthy") {
			t.Errorf("expected health response, got %s", text)
		}

		text, err = runCLI(t, runner, out, "api", "post", "/quests", "--url", srv.URL, "--data", `{"title":"From the API"}`)
		if err != nil {
			t.Fatalf("api post failed: %v", err)
		}
		if !strings.Contains(text, "From the API") {
			t.Errorf("expected created quest, got %s", text)
		}

		if _, err := runCLI(t, runner, out, "api", "post", "/quests", "--url", srv.URL, "--data", "{nope"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag for bad JSON, got %v", err)
		}

		if _, err := runCLI(t, runner, out, "api", "get", "/quests/missing", "--url", srv.URL); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest for a 404, got %v", err)
		}
	})

	t.Run("setup config", func(t *testing.T) {
		runner, out := setupTestRunner(t)
		runner.configPath = filepath.Join(t.TempDir(), "config.toml")

		if _, err := runCLI(t, runner, out, "setup", "config"); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, runner.configPath)
	})
}
